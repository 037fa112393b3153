package mcpserver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codelens/internal/astparse"
	"github.com/standardbeagle/codelens/internal/budget"
	"github.com/standardbeagle/codelens/internal/callgraph"
	"github.com/standardbeagle/codelens/internal/content"
	"github.com/standardbeagle/codelens/internal/defindex"
	"github.com/standardbeagle/codelens/internal/engine"
	"github.com/standardbeagle/codelens/internal/fileindex"
)

// responseByteBudget returns the configured per-response byte budget
// (spec.md §4.10), falling back to a conservative default.
func (s *Server) responseByteBudget() int {
	if b := s.eng.ResponseByteBudget(); b > 0 {
		return b
	}
	return 900_000
}

// --- search_grep ---

type grepParams struct {
	Terms        string   `json:"terms"`
	Mode         string   `json:"mode"`
	Phrase       string   `json:"phrase"`
	Pattern      string   `json:"pattern"`
	Substring    *bool    `json:"substring"`
	Ext          string   `json:"ext"`
	Dir          string   `json:"dir"`
	ExcludeDir   []string `json:"excludeDir"`
	MaxResults   int      `json:"maxResults"`
	CountOnly    bool     `json:"countOnly"`
	ShowLines    bool     `json:"showLines"`
	ContextLines int      `json:"contextLines"`
}

func (s *Server) handleGrep(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p grepParams
	if err := unmarshalArgs(req, &p); err != nil {
		return errorResult("search_grep", fmt.Errorf("invalid parameters: %w", err))
	}

	mode := content.ModeOR
	switch strings.ToLower(p.Mode) {
	case "", "or":
		mode = content.ModeOR
	case "and":
		mode = content.ModeAND
	case "phrase":
		mode = content.ModePhrase
	case "regex":
		mode = content.ModeRegex
	default:
		return errorResult("search_grep", fmt.Errorf("mode must be one of or|and|phrase|regex, got %q", p.Mode))
	}

	var terms []string
	if p.Terms != "" {
		for _, t := range strings.Split(p.Terms, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				terms = append(terms, t)
			}
		}
	}
	if mode != content.ModePhrase && mode != content.ModeRegex && len(terms) == 0 {
		return errorResult("search_grep", fmt.Errorf("terms must be non-empty for mode %q", p.Mode))
	}
	if mode == content.ModeRegex && p.Pattern == "" {
		return errorResult("search_grep", fmt.Errorf("pattern is required for mode=regex"))
	}

	if p.ContextLines > 0 {
		p.ShowLines = true
	}

	idx, err := s.eng.ContentIndex()
	if err != nil {
		return errorResult("search_grep", err)
	}

	dir, err := s.resolveQueryDir(p.Dir)
	if err != nil {
		return errorResult("search_grep", err)
	}

	res, err := idx.Search(content.Query{
		Terms:        terms,
		Phrase:       p.Phrase,
		Pattern:      p.Pattern,
		Mode:         mode,
		Substring:    p.Substring,
		Ext:          p.Ext,
		Dir:          dir,
		ExcludeDirs:  p.ExcludeDir,
		MaxResults:   p.MaxResults,
		CountOnly:    p.CountOnly,
		ShowLines:    p.ShowLines,
		ContextLines: p.ContextLines,
	})
	if err != nil {
		return errorResult("search_grep", err)
	}

	summary := budget.Summary{TotalFiles: res.TotalFiles, Warnings: res.Warnings}
	body, err := s.enforceFiles(&summary, res.Files)
	if err != nil {
		return errorResult("search_grep", err)
	}
	return rawResult(body)
}

// --- search_fast ---

type fastParams struct {
	Pattern    string `json:"pattern"`
	Ext        string `json:"ext"`
	Dir        string `json:"dir"`
	MaxResults int    `json:"maxResults"`
}

func (s *Server) handleFast(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p fastParams
	if err := unmarshalArgs(req, &p); err != nil {
		return errorResult("search_fast", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.Pattern == "" {
		return errorResult("search_fast", fmt.Errorf("pattern must not be empty"))
	}

	idx, err := s.eng.ContentIndex()
	if err != nil {
		return errorResult("search_fast", err)
	}
	dir, err := s.resolveQueryDir(p.Dir)
	if err != nil {
		return errorResult("search_fast", err)
	}

	substring := true
	res, err := idx.Search(content.Query{
		Terms:      []string{p.Pattern},
		Mode:       content.ModeOR,
		Substring:  &substring,
		Ext:        p.Ext,
		Dir:        dir,
		MaxResults: p.MaxResults,
	})
	if err != nil {
		return errorResult("search_fast", err)
	}

	summary := budget.Summary{TotalFiles: res.TotalFiles, Warnings: res.Warnings}
	body, err := s.enforceFiles(&summary, res.Files)
	if err != nil {
		return errorResult("search_fast", err)
	}
	return rawResult(body)
}

// --- search_definitions ---

type definitionsParams struct {
	Name              string `json:"name"`
	NameRegex         bool   `json:"nameRegex"`
	Kind              string `json:"kind"`
	Attribute         string `json:"attribute"`
	BaseType          string `json:"baseType"`
	File              string `json:"file"`
	Parent            string `json:"parent"`
	ContainsLine      int    `json:"containsLine"`
	ExcludeDir        string `json:"excludeDir"`
	IncludeBody       bool   `json:"includeBody"`
	MaxBodyLines      int    `json:"maxBodyLines"`
	MaxTotalBodyLines int    `json:"maxTotalBodyLines"`
	MaxResults        int    `json:"maxResults"`
	SortBy            string `json:"sortBy"`
	MinCyclomatic     int    `json:"minCyclomatic"`
	MinCognitive      int    `json:"minCognitive"`
	MinLines          int    `json:"minLines"`
	Audit             bool   `json:"audit"`
	SuspiciousBytes   int64  `json:"suspiciousBytes"`
}

func (s *Server) handleDefinitions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p definitionsParams
	if err := unmarshalArgs(req, &p); err != nil {
		return errorResult("search_definitions", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.ContainsLine != 0 && p.ContainsLine < 1 {
		return errorResult("search_definitions", fmt.Errorf("containsLine must be >= 1, got %d", p.ContainsLine))
	}

	idx, err := s.eng.DefinitionIndex()
	if err != nil {
		return errorResult("search_definitions", err)
	}

	res, err := idx.Search(defindex.Query{
		Name:              p.Name,
		NameRegex:         p.NameRegex,
		Kind:              astparse.Kind(p.Kind),
		Attribute:         p.Attribute,
		BaseType:          p.BaseType,
		File:              p.File,
		Parent:            p.Parent,
		ContainsLine:      p.ContainsLine,
		ExcludeDir:        p.ExcludeDir,
		IncludeBody:       p.IncludeBody,
		MaxBodyLines:      p.MaxBodyLines,
		MaxTotalBodyLines: p.MaxTotalBodyLines,
		MaxResults:        p.MaxResults,
		SortBy:            p.SortBy,
		MinCyclomatic:     p.MinCyclomatic,
		MinCognitive:      p.MinCognitive,
		MinLines:          p.MinLines,
		Audit:             p.Audit,
		SuspiciousBytes:   p.SuspiciousBytes,
	})
	if err != nil {
		return errorResult("search_definitions", err)
	}

	if res.Audit != nil {
		return jsonResult(res.Audit)
	}

	summary := budget.Summary{TotalResults: res.TotalFound}
	body, err := enforceArray(s, &summary, "definitions", res.Entries)
	if err != nil {
		return errorResult("search_definitions", err)
	}
	return rawResult(body)
}

// --- search_callers ---

type callersParams struct {
	Method            string `json:"method"`
	Class             string `json:"class"`
	Direction         string `json:"direction"`
	Depth             int    `json:"depth"`
	MaxTotalNodes     int    `json:"maxTotalNodes"`
	ExcludeDir        string `json:"excludeDir"`
	ExcludeFile       string `json:"excludeFile"`
	Ext               string `json:"ext"`
	ResolveInterfaces bool   `json:"resolveInterfaces"`
}

func (s *Server) handleCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p callersParams
	if err := unmarshalArgs(req, &p); err != nil {
		return errorResult("search_callers", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.Method == "" {
		return errorResult("search_callers", fmt.Errorf("method is required"))
	}

	var dir callgraph.Direction
	switch strings.ToLower(p.Direction) {
	case "up":
		dir = callgraph.Up
	case "down":
		dir = callgraph.Down
	default:
		return errorResult("search_callers", fmt.Errorf("direction must be \"up\" or \"down\", got %q", p.Direction))
	}
	if p.Depth < 1 {
		return errorResult("search_callers", fmt.Errorf("depth must be >= 1, got %d", p.Depth))
	}

	idx, err := s.eng.DefinitionIndex()
	if err != nil {
		return errorResult("search_callers", err)
	}

	res, err := callgraph.Find(idx, callgraph.Query{
		Method:            p.Method,
		Class:             p.Class,
		Direction:         dir,
		Depth:             p.Depth,
		MaxTotalNodes:     p.MaxTotalNodes,
		ExcludeDir:        p.ExcludeDir,
		ExcludeFile:       p.ExcludeFile,
		Ext:               p.Ext,
		ResolveInterfaces: p.ResolveInterfaces,
	})
	if err != nil {
		return errorResult("search_callers", err)
	}

	summary := budget.Summary{Warnings: res.Warnings}
	body, err := enforceArray(s, &summary, "callTree", res.Tree)
	if err != nil {
		return errorResult("search_callers", err)
	}
	return rawResult(body)
}

// --- search_find ---

type findParams struct {
	Pattern    string `json:"pattern"`
	Substring  bool   `json:"substring"`
	Regex      bool   `json:"regex"`
	CI         bool   `json:"ci"`
	DirsOnly   bool   `json:"dirsOnly"`
	FilesOnly  bool   `json:"filesOnly"`
	MaxResults int    `json:"maxResults"`
}

func (s *Server) handleFind(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p findParams
	if err := unmarshalArgs(req, &p); err != nil {
		return errorResult("search_find", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.Pattern == "" {
		return errorResult("search_find", fmt.Errorf("pattern must not be empty"))
	}

	idx, err := s.eng.FileIndex()
	if err != nil {
		return errorResult("search_find", err)
	}

	res, err := idx.Search(fileindex.Query{
		Pattern:    p.Pattern,
		Substring:  p.Substring,
		Regex:      p.Regex,
		CaseInsens: p.CI,
		DirsOnly:   p.DirsOnly,
		FilesOnly:  p.FilesOnly,
		MaxResults: p.MaxResults,
	})
	if err != nil {
		return errorResult("search_find", err)
	}

	summary := budget.Summary{TotalResults: res.TotalFound}
	body, err := enforceArray(s, &summary, "files", res.Entries)
	if err != nil {
		return errorResult("search_find", err)
	}
	return rawResult(body)
}

// --- search_info ---

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := func(err error) string {
		if err == nil {
			return "ready"
		}
		return "building"
	}
	_, contentErr := s.eng.ContentIndex()
	_, defsErr := s.eng.DefinitionIndex()
	_, gitErr := s.eng.GitCache()

	info := map[string]any{
		"root":            s.eng.Root(),
		"contentIndex":    status(contentErr),
		"definitionIndex": status(defsErr),
		"gitHistoryCache": status(gitErr),
	}
	if w := s.eng.BranchWarning(); w != "" {
		info["branchWarning"] = w
	}
	return jsonResult(info)
}

// --- search_reindex / search_reindex_definitions ---

type reindexParams struct {
	Definitions bool `json:"definitions"`
}

func (s *Server) handleReindex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p reindexParams
	if err := unmarshalArgs(req, &p); err != nil {
		return errorResult("search_reindex", fmt.Errorf("invalid parameters: %w", err))
	}
	if err := s.eng.Reindex(ctx, true, p.Definitions); err != nil {
		return errorResult("search_reindex", err)
	}
	return jsonResult(map[string]any{"success": true, "message": "reindex started"})
}

func (s *Server) handleReindexDefinitions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.eng.Reindex(ctx, false, true); err != nil {
		return errorResult("search_reindex_definitions", err)
	}
	return jsonResult(map[string]any{"success": true, "message": "definition reindex started"})
}

// --- search_help ---

var toolHelp = map[string]string{
	"search_grep":                "Token search over file contents. terms (comma-separated) or phrase or pattern (mode=regex). mode: or|and|phrase|regex.",
	"search_fast":                "Trigram-backed substring search; best for short literal patterns. pattern is required.",
	"search_definitions":         "Search classes/interfaces/methods/etc by name, kind, attribute, base type, file, or parent.",
	"search_callers":             "Bounded caller/callee tree. method and direction (up|down) are required; depth must be >= 1.",
	"search_find":                "Find files by basename. pattern is required.",
	"search_info":                "Server/index readiness status.",
	"search_reindex":             "Force a content index rebuild; pass definitions=true to also rebuild the definition index.",
	"search_reindex_definitions": "Force a definition index rebuild.",
}

func (s *Server) handleHelp(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p struct {
		Tool string `json:"tool"`
	}
	_ = unmarshalArgs(req, &p)
	if p.Tool == "" {
		return jsonResult(map[string]any{"tools": toolHelp})
	}
	help, ok := toolHelp[p.Tool]
	if !ok {
		return errorResult("search_help", fmt.Errorf("unknown tool %q", p.Tool))
	}
	return jsonResult(map[string]any{"tool": p.Tool, "help": help})
}

// resolveQueryDir validates a caller-supplied dir parameter against the
// server root (spec.md §4.8 directory security) and returns it as a
// root-relative, forward-slash path suitable for content.Query.Dir.
func (s *Server) resolveQueryDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	resolved, err := s.eng.ResolveScopedDir(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.eng.Root(), resolved)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}
