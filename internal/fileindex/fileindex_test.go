package fileindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range []string{"user.go", "user_service.go", "admin.go", "sub/userhelper.go"} {
		full := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("package x"), 0o644))
	}
	return root
}

func TestBuild_RanksExactBeforePrefixBeforeContains(t *testing.T) {
	idx, err := Build(mkTree(t), []string{".go"}, nil)
	require.NoError(t, err)

	res, err := idx.Search(Query{Pattern: "user"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Entries)
	assert.Equal(t, "user.go", filepath.Base(res.Entries[0].Path))
}

func TestBuild_ExcludesGitDir(t *testing.T) {
	root := mkTree(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "objects", "x.go"), []byte("x"), 0o644))
	idx, err := Build(root, []string{".go"}, nil)
	require.NoError(t, err)
	for _, e := range idx.entries {
		assert.NotContains(t, e.Path, ".git")
	}
}

func TestSearch_CountOnly(t *testing.T) {
	idx, err := Build(mkTree(t), []string{".go"}, nil)
	require.NoError(t, err)
	res, err := idx.Search(Query{Pattern: "user", CountOnly: true})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Greater(t, res.TotalFound, 0)
}

func TestSearch_CommaOR(t *testing.T) {
	idx, err := Build(mkTree(t), []string{".go"}, nil)
	require.NoError(t, err)
	res, err := idx.Search(Query{Pattern: "admin,userhelper"})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)
}
