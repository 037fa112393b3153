package defindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codelens/internal/astparse"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

const sample = `
public interface IGreeter
{
    string Greet(string name);
}

public class Greeter : IGreeter
{
    public string Greet(string name)
    {
        if (name == null) { throw new System.ArgumentNullException(); }
        return "hi " + name;
    }
}
`

func buildSample(t *testing.T) (*Index, string) {
	root := t.TempDir()
	writeFile(t, root, "greeter.cs", sample)
	idx := New(root, []string{".cs"})
	require.NoError(t, idx.Build(context.Background()))
	return idx, root
}

func TestSearch_NameRanking_ExactBeforePrefixBeforeContains(t *testing.T) {
	idx, _ := buildSample(t)
	res, err := idx.Search(Query{Name: "Greeter"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Entries)
	assert.Equal(t, "Greeter", res.Entries[0].Name)
}

func TestSearch_KindFilter(t *testing.T) {
	idx, _ := buildSample(t)
	res, err := idx.Search(Query{Kind: astparse.KindInterface})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "IGreeter", res.Entries[0].Name)
}

func TestSearch_ContainsLineRequiresFile(t *testing.T) {
	idx, _ := buildSample(t)
	_, err := idx.Search(Query{ContainsLine: 3})
	assert.Error(t, err)
}

func TestSearch_IncludeBody_CapsRespected(t *testing.T) {
	idx, _ := buildSample(t)
	res, err := idx.Search(Query{Name: "Greet", Kind: astparse.KindMethod, IncludeBody: true, MaxBodyLines: 1})
	require.NoError(t, err)
	require.NotEmpty(t, res.Entries)
	assert.LessOrEqual(t, len(res.Entries[0].Body), 1)
}

func TestUpdateFile_TombstonesOldDefinitions(t *testing.T) {
	idx, root := buildSample(t)
	writeFile(t, root, "greeter.cs", "public class Empty {}\n")
	require.NoError(t, idx.UpdateFile("greeter.cs"))

	res, err := idx.Search(Query{Name: "Greeter"})
	require.NoError(t, err)
	for _, e := range res.Entries {
		assert.NotEqual(t, "Greeter", e.Name)
	}
	res, err = idx.Search(Query{Name: "Empty"})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
}

func TestRemoveFile_TombstonesEverything(t *testing.T) {
	idx, _ := buildSample(t)
	require.NoError(t, idx.RemoveFile("greeter.cs"))
	res, err := idx.Search(Query{Name: "Greeter"})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
}

func TestCallSites_LineRangeInvariant(t *testing.T) {
	idx, _ := buildSample(t)
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for di, calls := range idx.methodCalls {
		d := idx.definitions[di]
		for _, c := range calls {
			assert.GreaterOrEqual(t, c.Line, d.LineStart)
			assert.LessOrEqual(t, c.Line, d.LineEnd)
		}
	}
}
