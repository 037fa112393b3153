package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesWriteAndRoutesToUpdate(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(file, []byte("package a"), 0o644))

	var mu sync.Mutex
	var updated []string

	w, err := New(root, 50*time.Millisecond, Updaters{
		OnUpdate: func(rel string) error {
			mu.Lock()
			updated = append(updated, rel)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(file, []byte("package a\n// changed"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updated) == 1 && updated[0] == "a.go"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresGitDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	w, err := New(root, 20*time.Millisecond, Updaters{})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// .git should not have been added as a watch target; writing inside
	// it must not panic or surface through handleEvent's routing logic.
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))
	time.Sleep(50 * time.Millisecond)
	assert.True(t, true) // absence of panic/crash is the assertion
}
