package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

func buildBasicIndex(t *testing.T) (*Index, string) {
	root := t.TempDir()
	writeFile(t, root, "a.x", "foo bar foo")
	writeFile(t, root, "b.x", "bar")
	idx := New(root, nil, true)
	require.NoError(t, idx.Build(context.Background()))
	return idx, root
}

func TestSearch_OR_RanksByOccurrenceAndOrdersFirst(t *testing.T) {
	idx, _ := buildBasicIndex(t)

	res, err := idx.Search(Query{Terms: []string{"foo"}, Mode: ModeOR})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "a.x", res.Files[0].Path)
	assert.Equal(t, 2, res.Files[0].Occurrences)

	res, err = idx.Search(Query{Terms: []string{"foo", "bar"}, Mode: ModeOR})
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "a.x", res.Files[0].Path)
}

func TestSearch_OR_PopulatesMatchedTokens(t *testing.T) {
	idx, _ := buildBasicIndex(t)
	res, err := idx.Search(Query{Terms: []string{"foo", "bar"}, Mode: ModeOR})
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "a.x", res.Files[0].Path)
	assert.Equal(t, []string{"bar", "foo"}, res.Files[0].MatchedTokens)
}

func TestSearch_AND_OnlyFilesWithAllTerms(t *testing.T) {
	idx, _ := buildBasicIndex(t)
	res, err := idx.Search(Query{Terms: []string{"foo", "bar"}, Mode: ModeAND})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "a.x", res.Files[0].Path)
}

func TestSearch_Substring_ShortTerm(t *testing.T) {
	idx, _ := buildBasicIndex(t)
	sub := true
	res, err := idx.Search(Query{Terms: []string{"fo"}, Mode: ModeOR, Substring: &sub})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "a.x", res.Files[0].Path)
}

func TestSearch_Substring_ANDMode_NoFalsePositive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "u1.x", "userservice")
	writeFile(t, root, "u2.x", "userservice servicehelper servicemanager")
	idx := New(root, nil, true)
	require.NoError(t, idx.Build(context.Background()))

	sub := true
	res, err := idx.Search(Query{Terms: []string{"user", "manager"}, Mode: ModeAND, Substring: &sub})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "u2.x", res.Files[0].Path)
}

func TestSearch_Phrase_PostFilterOnNonIdentifierChars(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "match.x", "<Root></Property> </Property></Root>")
	writeFile(t, root, "nomatch.x", "property words property more words")
	idx := New(root, nil, true)
	require.NoError(t, idx.Build(context.Background()))

	res, err := idx.Search(Query{Phrase: "</Property> </Property>", Mode: ModePhrase})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "match.x", res.Files[0].Path)
}

func TestSearch_EmptyQuery_Errors(t *testing.T) {
	idx, _ := buildBasicIndex(t)
	_, err := idx.Search(Query{Terms: []string{""}, Mode: ModeOR})
	assert.Error(t, err)
}

func TestSearch_Regex(t *testing.T) {
	idx, _ := buildBasicIndex(t)
	res, err := idx.Search(Query{Pattern: "^ba.$", Mode: ModeRegex})
	require.NoError(t, err)
	var paths []string
	for _, f := range res.Files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "a.x")
	assert.Contains(t, paths, "b.x")
}

func TestSearch_MaxResultsZeroMeansUnlimited(t *testing.T) {
	idx, _ := buildBasicIndex(t)
	res, err := idx.Search(Query{Terms: []string{"foo", "bar"}, Mode: ModeOR, MaxResults: 0})
	require.NoError(t, err)
	assert.Len(t, res.Files, 2)
}

func TestUpdateFile_InvariantsAfterIncrementalUpdate(t *testing.T) {
	idx, root := buildBasicIndex(t)
	writeFile(t, root, "a.x", "zzz zzz yyy")
	require.NoError(t, idx.UpdateFile("a.x"))

	idx.mu.RLock()
	fid := idx.pathToID["a.x"]
	tokensFromForward := make(map[string]struct{})
	for tok := range idx.forward[fid] {
		tokensFromForward[tok] = struct{}{}
	}
	idx.mu.RUnlock()

	assert.Contains(t, tokensFromForward, "zzz")
	assert.Contains(t, tokensFromForward, "yyy")
	assert.NotContains(t, tokensFromForward, "foo")

	res, err := idx.Search(Query{Terms: []string{"foo"}, Mode: ModeOR})
	require.NoError(t, err)
	for _, f := range res.Files {
		assert.NotEqual(t, "a.x", f.Path)
	}
}

func TestRemoveFile_TombstonesSlotNeverReused(t *testing.T) {
	idx, root := buildBasicIndex(t)
	require.NoError(t, idx.UpdateFile("a.x"))
	idx.mu.RLock()
	fid := idx.pathToID["a.x"]
	idx.mu.RUnlock()

	require.NoError(t, idx.RemoveFile("a.x"))
	assert.Equal(t, "", idx.Path(fid))

	writeFile(t, root, "c.x", "new content here")
	require.NoError(t, idx.UpdateFile("c.x"))
	idx.mu.RLock()
	newFid := idx.pathToID["c.x"]
	idx.mu.RUnlock()
	assert.NotEqual(t, fid, newFid)
}

func TestTrigramRebuild_IdempotentAcrossRebuilds(t *testing.T) {
	idx, _ := buildBasicIndex(t)
	idx.mu.RLock()
	t1 := idx.buildTrigramLocked()
	t2 := idx.buildTrigramLocked()
	idx.mu.RUnlock()
	assert.Equal(t, t1.tokens, t2.tokens)
	assert.Equal(t, len(t1.trigramMap), len(t2.trigramMap))
}

func TestTrigram_DirtyAfterMutationThenRebuilds(t *testing.T) {
	idx, root := buildBasicIndex(t)
	idx.mu.RLock()
	before := idx.currentTrigramLocked()
	idx.mu.RUnlock()

	writeFile(t, root, "d.x", "brandnewtoken")
	require.NoError(t, idx.UpdateFile("d.x"))

	idx.mu.RLock()
	after := idx.currentTrigramLocked()
	idx.mu.RUnlock()
	assert.NotEqual(t, before.generation, after.generation)
}
