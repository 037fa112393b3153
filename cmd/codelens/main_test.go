package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// setupTestProject writes a tiny Go project plus a TypeScript file (the
// definition index does not parse Go files) to a temp directory and
// returns its root, grounded on the teacher's own setupTestProject
// helper in cmd/lci/main_test.go.
func setupTestProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(`package main

func greet(name string) string {
	return "hello " + name
}

func main() {
	greet("world")
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "greet.ts"), []byte(`export function greet(name: string): string {
  return "hello " + name;
}

export function main(): void {
  greet("world");
}
`), 0o644))
	return root
}

func buildTestApp() *cli.App {
	return &cli.App{
		Name: "codelens",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}},
			&cli.BoolFlag{Name: "no-watch"},
		},
		Commands: []*cli.Command{
			grepCommand,
			definitionsCommand,
			callersCommand,
			findCommand,
			reindexCommand,
			serveCommand,
		},
	}
}

// runCLI invokes the app in-process and captures everything written to
// stdout, mirroring the spirit of the teacher's subprocess-based CLI
// tests without paying a `go build` per test run.
func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	app := buildTestApp()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fullArgs := append([]string{"codelens"}, args...)
	runErr := app.RunContext(context.Background(), fullArgs)

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)

	require.NoError(t, runErr)
	return buf.String()
}

func TestGrepCommand_FindsMatchInFile(t *testing.T) {
	root := setupTestProject(t)
	out := runCLI(t, "--root", root, "--no-watch", "grep", "greet")

	var res struct {
		Files []map[string]any `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Files)
}

func TestFindCommand_FindsFileByBasename(t *testing.T) {
	root := setupTestProject(t)
	out := runCLI(t, "--root", root, "--no-watch", "find", "main.go")

	var res struct {
		Entries []map[string]any `json:"Entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Entries)
}

func TestDefinitionsCommand_FindsFunction(t *testing.T) {
	root := setupTestProject(t)
	out := runCLI(t, "--root", root, "--no-watch", "definitions", "--name", "greet")

	var res struct {
		Entries []map[string]any `json:"Entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Entries)
}

func TestCallersCommand_RejectsBadDirection(t *testing.T) {
	app := buildTestApp()
	err := app.RunContext(context.Background(), []string{"codelens", "callers", "--direction", "sideways", "greet"})
	require.Error(t, err)
}

func TestCallersCommand_RequiresMethodArgument(t *testing.T) {
	app := buildTestApp()
	err := app.RunContext(context.Background(), []string{"codelens", "callers"})
	require.Error(t, err)
}
