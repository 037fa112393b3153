// Package mcpserver is a thin adapter: it registers the `search_*` tools
// spec.md §6.1 names against internal/engine and translates every
// engine.EngineError into the MCP `isError: true` envelope. All wire
// framing (stdio transport, JSON-RPC dispatch, tool schema validation)
// is delegated to the SDK, per spec.md §1's explicit out-of-scope note.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codelens/internal/engine"
)

// Server wraps an *mcp.Server bound to one engine.Engine.
type Server struct {
	eng *engine.Engine
	mcp *mcp.Server
}

// New builds a Server with every tool registered, ready to Run.
func New(eng *engine.Engine) *Server {
	s := &Server{
		eng: eng,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "codelens-mcp-server",
			Version: "0.1.0",
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves tool calls over stdio until the transport closes.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_grep",
		Description: "Token/substring/phrase/regex search over the content index. Returns matched files with optional context lines.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"terms":        {Type: "string", Description: "Comma-separated terms (OR/AND mode) or empty when using phrase/pattern"},
				"mode":         {Type: "string", Description: "or | and | phrase | regex"},
				"phrase":       {Type: "string", Description: "Exact phrase to match (mode=phrase)"},
				"pattern":      {Type: "string", Description: "Regex pattern (mode=regex)"},
				"substring":    {Type: "boolean", Description: "Force substring matching on/off"},
				"ext":          {Type: "string", Description: "Restrict to one extension, e.g. \".go\""},
				"dir":          {Type: "string", Description: "Restrict to a subdirectory of the server root"},
				"excludeDir":   {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"maxResults":   {Type: "integer", Description: "0 = all"},
				"countOnly":    {Type: "boolean"},
				"showLines":    {Type: "boolean"},
				"contextLines": {Type: "integer", Description: ">0 auto-enables showLines"},
			},
		},
	}, s.handleGrep)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_definitions",
		Description: "Search the AST-derived definition index: classes, interfaces, methods, fields, and more, with optional body inclusion.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name":              {Type: "string"},
				"nameRegex":         {Type: "boolean"},
				"kind":              {Type: "string"},
				"attribute":         {Type: "string"},
				"baseType":          {Type: "string"},
				"file":              {Type: "string"},
				"parent":            {Type: "string"},
				"containsLine":      {Type: "integer", Description: "Requires file; must be >= 1"},
				"excludeDir":        {Type: "string"},
				"includeBody":       {Type: "boolean"},
				"maxBodyLines":      {Type: "integer", Description: "0 = unlimited per-entry body line cap"},
				"maxTotalBodyLines": {Type: "integer", Description: "0 = unlimited; caps summed body lines across the response"},
				"maxResults":        {Type: "integer"},
				"sortBy":            {Type: "string", Description: "cyclomatic | cognitive | lines | params"},
				"minCyclomatic":     {Type: "integer", Description: "Keep only definitions at or above this cyclomatic complexity"},
				"minCognitive":      {Type: "integer", Description: "Keep only definitions at or above this cognitive complexity"},
				"minLines":          {Type: "integer", Description: "Keep only definitions at or above this line count"},
				"audit":             {Type: "boolean", Description: "Return an index health report instead of matching definitions"},
				"suspiciousBytes":   {Type: "integer", Description: "Audit mode: flag files at or above this size as suspicious"},
			},
		},
	}, s.handleDefinitions)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_callers",
		Description: "Bounded caller/callee tree for a method, direction=up (who calls it) or down (what it calls).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"method":            {Type: "string"},
				"class":             {Type: "string"},
				"direction":         {Type: "string", Description: "up | down, case-insensitive"},
				"depth":             {Type: "integer", Description: "must be >= 1"},
				"maxTotalNodes":     {Type: "integer"},
				"excludeDir":        {Type: "string"},
				"excludeFile":       {Type: "string"},
				"ext":               {Type: "string"},
				"resolveInterfaces": {Type: "boolean"},
			},
			Required: []string{"method", "direction"},
		},
	}, s.handleCallers)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_fast",
		Description: "Trigram-backed substring search over file contents, fast for short patterns.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":    {Type: "string"},
				"ext":        {Type: "string"},
				"dir":        {Type: "string"},
				"maxResults": {Type: "integer"},
			},
			Required: []string{"pattern"},
		},
	}, s.handleFast)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_find",
		Description: "Find files by name (substring/regex/comma-OR over basenames). Available immediately, even while other indexes build.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":    {Type: "string"},
				"substring":  {Type: "boolean"},
				"regex":      {Type: "boolean"},
				"ci":         {Type: "boolean"},
				"dirsOnly":   {Type: "boolean"},
				"filesOnly":  {Type: "boolean"},
				"maxResults": {Type: "integer"},
			},
			Required: []string{"pattern"},
		},
	}, s.handleFind)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_info",
		Description: "Server status: which indexes are ready, built, or still building, plus the configured root.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleInfo)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_reindex",
		Description: "Force a rebuild of the content index (and/or definition index).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"definitions": {Type: "boolean", Description: "Also rebuild the definition index"},
			},
		},
	}, s.handleReindex)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_reindex_definitions",
		Description: "Force a rebuild of the definition index only.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleReindexDefinitions)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_help",
		Description: "Usage help and examples for every search_* tool.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"tool": {Type: "string"}},
		},
	}, s.handleHelp)
}

// jsonResult wraps data as the MCP tool content the SDK expects.
func jsonResult(data any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: marshal response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil
}

// errorResult reports err inside the result envelope (isError: true) per
// the MCP spec's "errors from the tool are reported in-result, not as a
// protocol error" requirement, so the calling model can see and
// self-correct.
func errorResult(op string, err error) (*mcp.CallToolResult, error) {
	payload := map[string]any{
		"success":   false,
		"operation": op,
		"error":     err.Error(),
	}
	if ee, ok := err.(*engine.EngineError); ok {
		payload["kind"] = string(ee.Kind)
		if ee.Param != "" {
			payload["param"] = ee.Param
		}
	}
	res, marshalErr := jsonResult(payload)
	if marshalErr != nil {
		return nil, marshalErr
	}
	res.IsError = true
	return res, nil
}

func unmarshalArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, dst)
}
