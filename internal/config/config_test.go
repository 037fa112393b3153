package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Root)
	assert.True(t, cfg.WatchMode)
	assert.Equal(t, 900_000, cfg.ResponseByteBudget)
}

func TestLoad_ParsesKDLFields(t *testing.T) {
	dir := t.TempDir()
	kdl := `
extensions ".go" ".ts" ".tsx"
exclude "**/vendor/**" "**/dist/**"
response_byte_budget 500000
max_age_secs 3600
watch_mode #false
server_mode #true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codelens.kdl"), []byte(kdl), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{".go", ".ts", ".tsx"}, cfg.Extensions)
	assert.Equal(t, []string{"**/vendor/**", "**/dist/**"}, cfg.Exclude)
	assert.Equal(t, 500000, cfg.ResponseByteBudget)
	assert.Equal(t, int64(3600), cfg.MaxAgeSecs)
	assert.False(t, cfg.WatchMode)
	assert.True(t, cfg.ServerMode)
}

func TestLoad_RelativeRootResolvedAgainstProjectRoot(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codelens.kdl"), []byte(`root "src"`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, sub, cfg.Root)
}
