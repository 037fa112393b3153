package mcpserver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codelens/internal/content"
)

func TestFileShrinkFuncs_CapMatchedTokens_CapsRealFileResult(t *testing.T) {
	f := content.FileResult{
		Path:          "a.go",
		MatchedTokens: []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet", "kilo"},
	}
	obj, err := json.Marshal(f)
	require.NoError(t, err)

	shrunk := fileShrinkFuncs.CapMatchedTokens(obj, 10)

	var out content.FileResult
	require.NoError(t, json.Unmarshal(shrunk, &out))
	assert.Len(t, out.MatchedTokens, 10)
	assert.Equal(t, f.MatchedTokens[:10], out.MatchedTokens)
}
