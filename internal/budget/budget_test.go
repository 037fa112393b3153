package budget

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fileResult struct {
	Path          string   `json:"path"`
	Lines         []int    `json:"lines,omitempty"`
	LineContent   []string `json:"lineContent,omitempty"`
	MatchedTokens []string `json:"matchedTokens,omitempty"`
}

func encodeFiles(t *testing.T, files []fileResult) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(files))
	for i, f := range files {
		b, err := json.Marshal(f)
		require.NoError(t, err)
		out[i] = b
	}
	return out
}

func shrinkFuncs(t *testing.T) FileShrinkFuncs {
	decode := func(obj json.RawMessage) fileResult {
		var f fileResult
		require.NoError(t, json.Unmarshal(obj, &f))
		return f
	}
	encode := func(f fileResult) json.RawMessage {
		b, err := json.Marshal(f)
		require.NoError(t, err)
		return b
	}
	return FileShrinkFuncs{
		CapLines: func(obj json.RawMessage, max int) json.RawMessage {
			f := decode(obj)
			if len(f.Lines) > max {
				f.Lines = f.Lines[:max]
			}
			return encode(f)
		},
		DropLineContent: func(obj json.RawMessage) json.RawMessage {
			f := decode(obj)
			f.LineContent = nil
			return encode(f)
		},
		CapMatchedTokens: func(obj json.RawMessage, max int) json.RawMessage {
			f := decode(obj)
			if len(f.MatchedTokens) > max {
				f.MatchedTokens = f.MatchedTokens[:max]
			}
			return encode(f)
		},
		DropLines: func(obj json.RawMessage) json.RawMessage {
			f := decode(obj)
			f.Lines = nil
			return encode(f)
		},
	}
}

func TestEnforce_UnderBudget_NoTruncation(t *testing.T) {
	files := []fileResult{{Path: "a.go", Lines: []int{1, 2}}}
	resp := &Response{Summary: &Summary{}, ArrayName: "files", Array: encodeFiles(t, files), FileShrink: shrinkFuncs(t)}

	out, err := Enforce(resp, 10_000)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.False(t, resp.Summary.ResponseTruncated)
}

func TestEnforce_OverBudget_CapsLinesFirst(t *testing.T) {
	var files []fileResult
	for i := 0; i < 50; i++ {
		lines := make([]int, 100)
		for j := range lines {
			lines[j] = j
		}
		files = append(files, fileResult{Path: "file.go", Lines: lines})
	}
	resp := &Response{Summary: &Summary{}, ArrayName: "files", Array: encodeFiles(t, files), FileShrink: shrinkFuncs(t)}

	out, err := Enforce(resp, 2000)
	require.NoError(t, err)
	require.LessOrEqual(t, len(out), 2000+200) // generous slack for summary metadata
	assert.True(t, resp.Summary.ResponseTruncated)
	assert.NotEmpty(t, resp.Summary.TruncationReason)
	assert.NotEmpty(t, resp.Summary.Hint)
	assert.Equal(t, len(resp.Array), resp.Summary.Returned)
}

func TestEnforce_GenericArrayFallback_TruncatesArrayAndReportsCounts(t *testing.T) {
	entries := make([]json.RawMessage, 200)
	for i := range entries {
		entries[i] = json.RawMessage(`{"name":"verylongdefinitionnamepaddedoutforsize_________________________"}`)
	}
	resp := &Response{Summary: &Summary{TotalResults: 200}, ArrayName: "definitions", Array: entries}

	out, err := Enforce(resp, 500)
	require.NoError(t, err)
	assert.True(t, resp.Summary.ResponseTruncated)
	assert.Equal(t, 200, resp.Summary.TotalResults)
	assert.Equal(t, len(resp.Array), resp.Summary.Returned)
	assert.Less(t, len(resp.Array), 200)
	_ = out
}
