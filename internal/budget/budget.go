// Package budget implements the response-budget enforcer (spec.md
// §4.10): every tool response is serialized, measured, and if it
// exceeds the configured byte budget, truncated progressively until it
// fits.
package budget

import (
	"encoding/json"
	"fmt"
)

// Summary is the envelope every tool response carries at its top level
// (spec.md §6.1).
type Summary struct {
	Returned              int    `json:"returned"`
	TotalResults          int    `json:"totalResults,omitempty"`
	TotalFiles            int    `json:"totalFiles,omitempty"`
	Warnings              []string `json:"warnings,omitempty"`
	BranchWarning         string `json:"branchWarning,omitempty"`
	ResponseTruncated     bool   `json:"responseTruncated,omitempty"`
	TruncationReason      string `json:"truncationReason,omitempty"`
	OriginalResponseBytes int    `json:"originalResponseBytes,omitempty"`
	Hint                  string `json:"hint,omitempty"`
}

// Response is the generic shape budget.Enforce operates on: a summary
// plus exactly one named top-level domain array.
type Response struct {
	Summary   *Summary
	ArrayName string // "files", "definitions", "callTree", "commits", etc.
	Array     []json.RawMessage

	// Per-file shrink hooks, used only when ArrayName == "files": each
	// phase below operates on the decoded file objects before
	// re-encoding, so the enforcer can shrink their `lines`/
	// `matchedTokens` sub-fields without understanding the whole schema.
	FileShrink FileShrinkFuncs
}

// FileShrinkFuncs lets the caller describe how to progressively shrink
// one file-result object at increasing truncation phases, without
// budget needing to know the concrete result type.
type FileShrinkFuncs struct {
	CapLines        func(obj json.RawMessage, max int) json.RawMessage
	DropLineContent func(obj json.RawMessage) json.RawMessage
	CapMatchedTokens func(obj json.RawMessage, max int) json.RawMessage
	DropLines       func(obj json.RawMessage) json.RawMessage
}

const (
	capLinesMax         = 5
	capMatchedTokensMax = 10
)

// Enforce serializes resp and, if it exceeds maxBytes, applies the
// progressive truncation phases from spec.md §4.10 in order until the
// result fits (or every phase has been exhausted).
func Enforce(resp *Response, maxBytes int) ([]byte, error) {
	out, err := marshal(resp)
	if err != nil {
		return nil, err
	}
	if maxBytes <= 0 || len(out) <= maxBytes {
		resp.Summary.Returned = len(resp.Array)
		return marshal(resp)
	}
	originalBytes := len(out)
	resp.Summary.ResponseTruncated = true
	resp.Summary.OriginalResponseBytes = originalBytes

	phases := []struct {
		reason string
		apply  func()
	}{
		{"lines capped", func() { capPerFileLines(resp) }},
		{"lineContent removed", func() { dropLineContent(resp) }},
		{"matchedTokens capped", func() { capMatchedTokens(resp) }},
		{"lines dropped", func() { dropLines(resp) }},
	}
	for _, p := range phases {
		p.apply()
		resp.Summary.TruncationReason = p.reason
		out, err = marshal(resp)
		if err != nil {
			return nil, err
		}
		if len(out) <= maxBytes {
			resp.Summary.Returned = len(resp.Array)
			resp.Summary.Hint = hintFor(resp.ArrayName)
			return marshal(resp)
		}
	}

	// Generic fallback: truncate the top-level array itself.
	resp.Summary.TotalResults = totalResultsOr(resp.Summary, len(resp.Array))
	truncated := resp.Array
	for len(truncated) > 0 {
		resp.Array = truncated
		out, err = marshal(resp)
		if err != nil {
			return nil, err
		}
		if len(out) <= maxBytes {
			break
		}
		truncated = truncated[:len(truncated)-1]
	}
	resp.Summary.TruncationReason = "array truncated"
	resp.Summary.Returned = len(resp.Array)
	resp.Summary.Hint = hintFor(resp.ArrayName)
	return marshal(resp)
}

func totalResultsOr(s *Summary, fallback int) int {
	if s.TotalResults > 0 {
		return s.TotalResults
	}
	if s.TotalFiles > 0 {
		return s.TotalFiles
	}
	return fallback
}

func hintFor(arrayName string) string {
	switch arrayName {
	case "files":
		return "narrow filters (extension, dir, excludeDir) or pass countOnly=true"
	case "definitions":
		return "narrow name/kind/attribute filters or reduce maxResults"
	case "callTree":
		return "reduce depth or maxTotalNodes"
	default:
		return "narrow the query or reduce maxResults"
	}
}

func capPerFileLines(resp *Response) {
	if resp.ArrayName != "files" || resp.FileShrink.CapLines == nil {
		return
	}
	for i, obj := range resp.Array {
		resp.Array[i] = resp.FileShrink.CapLines(obj, capLinesMax)
	}
}

func dropLineContent(resp *Response) {
	if resp.ArrayName != "files" || resp.FileShrink.DropLineContent == nil {
		return
	}
	for i, obj := range resp.Array {
		resp.Array[i] = resp.FileShrink.DropLineContent(obj)
	}
}

func capMatchedTokens(resp *Response) {
	if resp.ArrayName != "files" || resp.FileShrink.CapMatchedTokens == nil {
		return
	}
	for i, obj := range resp.Array {
		resp.Array[i] = resp.FileShrink.CapMatchedTokens(obj, capMatchedTokensMax)
	}
}

func dropLines(resp *Response) {
	if resp.ArrayName != "files" || resp.FileShrink.DropLines == nil {
		return
	}
	for i, obj := range resp.Array {
		resp.Array[i] = resp.FileShrink.DropLines(obj)
	}
}

func marshal(resp *Response) ([]byte, error) {
	wrapper := map[string]any{
		"summary": resp.Summary,
	}
	if resp.ArrayName != "" {
		wrapper[resp.ArrayName] = resp.Array
	}
	out, err := json.Marshal(wrapper)
	if err != nil {
		return nil, fmt.Errorf("budget: marshal: %w", err)
	}
	return out, nil
}
