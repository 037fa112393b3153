package engine

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codelens/internal/config"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0o644))

	cfg := config.Defaults(root)
	cfg.WatchMode = false // watcher isn't under test here

	e, err := New(cfg, log.New(os.Stderr, "", 0))
	require.NoError(t, err)
	e.dataDir = t.TempDir() // isolate from the real platform cache dir
	return e, root
}

func TestStart_BuildsIndexesAndMarksReady(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Start(context.Background()))
	assertEventuallyReady(t, e)
}

func assertEventuallyReady(t *testing.T, e *Engine) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, cErr := e.ContentIndex()
		_, dErr := e.DefinitionIndex()
		return cErr == nil && dErr == nil
	}, 5*time.Second, 10*time.Millisecond, "indexes never became ready")
}

func TestContentIndex_NotReadyBeforeBuildCompletes(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.ContentIndex()
	require.Error(t, err)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindNotReady, ee.Kind)
	assert.Contains(t, err.Error(), "being built in the background")
}

func TestResolveScopedDir_RejectsOutsideRoot(t *testing.T) {
	e, root := newTestEngine(t)
	_ = root

	_, err := e.ResolveScopedDir("/etc")
	require.Error(t, err)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindScope, ee.Kind)
}

func TestResolveScopedDir_AcceptsSubdirOfRoot(t *testing.T) {
	e, root := newTestEngine(t)
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	resolved, err := e.ResolveScopedDir("sub")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(sub), resolved)
}

func TestReindex_WhileBuildingReturnsAlreadyBeingBuiltError(t *testing.T) {
	e, _ := newTestEngine(t)
	e.contentBuild.Store(true)

	err := e.Reindex(context.Background(), true, false)
	require.Error(t, err)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindNotReady, ee.Kind)
	assert.Contains(t, err.Error(), "already being built")
}

func TestShutdown_SavesDirtyIndexesOnly(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Start(context.Background()))
	assertEventuallyReady(t, e)

	require.NoError(t, e.Shutdown(context.Background()))

	contentName := e.contentFileName()
	assert.True(t, fileExists(filepath.Join(e.dataDir, contentName)))
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
