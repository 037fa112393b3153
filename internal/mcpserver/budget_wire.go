package mcpserver

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codelens/internal/budget"
	"github.com/standardbeagle/codelens/internal/content"
)

// rawResult wraps an already-serialized JSON body (typically
// budget.Enforce's output) as the tool's text content, without a second
// marshal pass.
func rawResult(body []byte) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil
}

// fileShrinkFuncs implements budget.FileShrinkFuncs over content.FileResult
// JSON objects (spec.md §4.10's four progressive phases).
var fileShrinkFuncs = budget.FileShrinkFuncs{
	CapLines: func(obj json.RawMessage, max int) json.RawMessage {
		var f content.FileResult
		if json.Unmarshal(obj, &f) != nil {
			return obj
		}
		if len(f.Lines) > max {
			f.Lines = f.Lines[:max]
		}
		out, err := json.Marshal(f)
		if err != nil {
			return obj
		}
		return out
	},
	DropLineContent: func(obj json.RawMessage) json.RawMessage {
		var f content.FileResult
		if json.Unmarshal(obj, &f) != nil {
			return obj
		}
		for i := range f.Lines {
			f.Lines[i].Lines = nil
		}
		out, err := json.Marshal(f)
		if err != nil {
			return obj
		}
		return out
	},
	CapMatchedTokens: func(obj json.RawMessage, max int) json.RawMessage {
		var f content.FileResult
		if json.Unmarshal(obj, &f) != nil {
			return obj
		}
		if len(f.MatchedTokens) > max {
			f.MatchedTokens = f.MatchedTokens[:max]
		}
		out, err := json.Marshal(f)
		if err != nil {
			return obj
		}
		return out
	},
	DropLines: func(obj json.RawMessage) json.RawMessage {
		var f content.FileResult
		if json.Unmarshal(obj, &f) != nil {
			return obj
		}
		f.Lines = nil
		out, err := json.Marshal(f)
		if err != nil {
			return obj
		}
		return out
	},
}

// encodeArray marshals each element of items independently, as
// budget.Response.Array requires.
func encodeArray[T any](items []T) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			out[i] = json.RawMessage(`null`)
			continue
		}
		out[i] = b
	}
	return out
}

// enforceFiles wires a content-index Result into the response-budget
// enforcer under the "files" domain array name.
func (s *Server) enforceFiles(summary *budget.Summary, files []content.FileResult) ([]byte, error) {
	summary.Returned = len(files)
	resp := &budget.Response{
		Summary:    summary,
		ArrayName:  "files",
		Array:      encodeArray(files),
		FileShrink: fileShrinkFuncs,
	}
	return budget.Enforce(resp, s.responseByteBudget())
}

// enforceArray wires any other domain array (definitions, callTree) into
// the generic-fallback truncation path.
func enforceArray[T any](s *Server, summary *budget.Summary, arrayName string, items []T) ([]byte, error) {
	summary.Returned = len(items)
	resp := &budget.Response{
		Summary:   summary,
		ArrayName: arrayName,
		Array:     encodeArray(items),
	}
	return budget.Enforce(resp, s.responseByteBudget())
}
