package mcpserver

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codelens/internal/config"
	"github.com/standardbeagle/codelens/internal/engine"
)

// newTestServer builds a Server over a small real project tree (a Go file
// plus a TypeScript file, since the definition index does not parse Go
// files), waiting
// for the content and definition indexes to finish their background
// build before returning (mirrors test_helpers.go's in-process pattern
// from the teacher, minus the stdio transport).
func newTestServer(t *testing.T) *Server {
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

	cfg := config.Defaults(root)
	cfg.WatchMode = false

	eng, err := engine.New(cfg, log.New(os.Stderr, "", 0))
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))

	require.Eventually(t, func() bool {
		_, cErr := eng.ContentIndex()
		_, dErr := eng.DefinitionIndex()
		return cErr == nil && dErr == nil
	}, 5*time.Second, 10*time.Millisecond, "indexes never became ready")

	return New(eng)
}

func callTool(t *testing.T, s *Server, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}}
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	if res.IsError {
		out["_isError"] = true
	}
	return out
}

func TestHandleGrep_FindsMatchInFile(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleGrep, map[string]any{"terms": "greet"})
	require.NotContains(t, out, "_isError")
	files, ok := out["files"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, files)
}

func TestHandleGrep_RejectsEmptyTermsInOrMode(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleGrep, map[string]any{"mode": "or"})
	require.Equal(t, true, out["_isError"])
	require.Equal(t, "search_grep", out["operation"])
}

func TestHandleGrep_RejectsUnknownMode(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleGrep, map[string]any{"mode": "nonsense", "terms": "greet"})
	require.Equal(t, true, out["_isError"])
}

func TestHandleFast_RequiresPattern(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleFast, map[string]any{})
	require.Equal(t, true, out["_isError"])
}

func TestHandleFast_FindsSubstring(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleFast, map[string]any{"pattern": "hello"})
	require.NotContains(t, out, "_isError")
	files, ok := out["files"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, files)
}

func TestHandleDefinitions_FindsFunction(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleDefinitions, map[string]any{"name": "greet"})
	require.NotContains(t, out, "_isError")
	defs, ok := out["definitions"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, defs)
}

func TestHandleDefinitions_RejectsInvalidContainsLine(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleDefinitions, map[string]any{"containsLine": -1})
	require.Equal(t, true, out["_isError"])
}

func TestHandleCallers_RequiresMethod(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleCallers, map[string]any{"direction": "up"})
	require.Equal(t, true, out["_isError"])
}

func TestHandleCallers_RejectsBadDirection(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleCallers, map[string]any{"method": "greet", "direction": "sideways", "depth": 1})
	require.Equal(t, true, out["_isError"])
}

func TestHandleCallers_RejectsDepthBelowOne(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleCallers, map[string]any{"method": "greet", "direction": "up", "depth": 0})
	require.Equal(t, true, out["_isError"])
}

func TestHandleCallers_FindsCallersOfGreet(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleCallers, map[string]any{"method": "greet", "direction": "up", "depth": 2})
	require.NotContains(t, out, "_isError")
	require.Contains(t, out, "callTree")
}

func TestHandleFind_FindsFileByBasename(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleFind, map[string]any{"pattern": "main.go"})
	require.NotContains(t, out, "_isError")
	files, ok := out["files"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, files)
}

func TestHandleFind_RequiresPattern(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleFind, map[string]any{})
	require.Equal(t, true, out["_isError"])
}

func TestHandleInfo_ReportsRootAndReadyIndexes(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleInfo, map[string]any{})
	require.Equal(t, "ready", out["contentIndex"])
	require.Equal(t, "ready", out["definitionIndex"])
	require.NotEmpty(t, out["root"])
}

func TestHandleHelp_UnknownToolIsError(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleHelp, map[string]any{"tool": "not_a_real_tool"})
	require.Equal(t, true, out["_isError"])
}

func TestHandleHelp_ListsAllToolsWhenNoneNamed(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleHelp, map[string]any{})
	tools, ok := out["tools"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, tools, "search_grep")
	require.Contains(t, tools, "search_callers")
}

func TestHandleReindex_StartsRebuild(t *testing.T) {
	s := newTestServer(t)
	out := callTool(t, s, s.handleReindex, map[string]any{"definitions": true})
	require.Equal(t, true, out["success"])
}
