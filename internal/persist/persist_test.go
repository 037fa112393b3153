package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type sample struct {
	Root  string
	Files []string
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	name := FileName("/repo", []string{".go", ".ts"}, KindWordSearch)

	in := sample{Root: "/repo", Files: []string{"a.go", "b.ts"}}
	require.NoError(t, Save(dir, name, in))

	var out sample
	require.NoError(t, Load(dir, name, &out))
	assert.Equal(t, in, out)
}

func TestSave_WritesLZ4SMagic(t *testing.T) {
	dir := t.TempDir()
	name := FileName("/repo", nil, KindFileList)
	require.NoError(t, Save(dir, name, sample{Root: "/repo"}))

	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 4)
	assert.Equal(t, "LZ4S", string(raw[:4]))
}

func TestLoad_LegacyRawMsgpackFallback(t *testing.T) {
	dir := t.TempDir()
	name := FileName("/repo", nil, KindGitHistory)

	// Simulate a pre-LZ4S legacy file: raw msgpack, no magic prefix.
	legacyPayload, err := msgpack.Marshal(sample{Root: "/legacy"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), legacyPayload, 0o644))

	var out sample
	require.NoError(t, Load(dir, name, &out))
	assert.Equal(t, "/legacy", out.Root)
}

func TestFileName_StableForSameInputs(t *testing.T) {
	a := FileName("/repo", []string{".go", ".ts"}, KindWordSearch)
	b := FileName("/repo", []string{".ts", ".go"}, KindWordSearch)
	assert.Equal(t, a, b, "extension order must not affect the hash")
}

func TestSaveLoad_Idempotent(t *testing.T) {
	dir := t.TempDir()
	name := FileName("/repo", nil, KindCodeStructure)
	in := sample{Root: "/repo", Files: []string{"x.cs"}}
	require.NoError(t, Save(dir, name, in))

	first, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	require.NoError(t, Save(dir, name, in))
	second, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
