// Package config loads `.codelens.kdl` (spec.md §2 ambient stack,
// §4.9/§6.3): project root, extension allow-list, exclude-glob list,
// response byte budget, staleness max-age, and server listen mode.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// Config is the fully-resolved server configuration.
type Config struct {
	Root              string
	Extensions        []string
	Exclude           []string
	ResponseByteBudget int
	MaxAgeSecs        int64
	WatchMode         bool
	WatchDebounceMs   int
	ServerMode        bool
}

// Defaults mirror the teacher's conservative defaults, adjusted to
// spec.md's server-mode-first posture (substring search on by default).
func Defaults(root string) *Config {
	return &Config{
		Root:               root,
		Extensions:         nil, // nil = all extensions
		Exclude:            []string{"**/.git/**", "**/node_modules/**", "**/bin/**", "**/obj/**"},
		ResponseByteBudget: 900_000,
		MaxAgeSecs:         24 * 60 * 60,
		WatchMode:          true,
		WatchDebounceMs:    300,
		ServerMode:         true,
	}
}

// Load reads `.codelens.kdl` from projectRoot, falling back to Defaults
// when absent (spec.md is silent on a hard failure here; the teacher's
// own `.lci.kdl` is optional too).
func Load(projectRoot string) (*Config, error) {
	cfg := Defaults(projectRoot)
	kdlPath := filepath.Join(projectRoot, ".codelens.kdl")
	raw, err := os.ReadFile(kdlPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", kdlPath, err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", kdlPath, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "root":
			if s, ok := firstStringArg(n); ok {
				cfg.Root = resolveRoot(projectRoot, s)
			}
		case "extensions":
			cfg.Extensions = collectStringArgs(n)
		case "exclude":
			if args := collectStringArgs(n); len(args) > 0 {
				cfg.Exclude = args
			}
		case "response_byte_budget":
			if v, ok := firstIntArg(n); ok {
				cfg.ResponseByteBudget = v
			}
		case "max_age_secs":
			if v, ok := firstIntArg(n); ok {
				cfg.MaxAgeSecs = int64(v)
			}
		case "watch_mode":
			if b, ok := firstBoolArg(n); ok {
				cfg.WatchMode = b
			}
		case "watch_debounce_ms":
			if v, ok := firstIntArg(n); ok {
				cfg.WatchDebounceMs = v
			}
		case "server_mode":
			if b, ok := firstBoolArg(n); ok {
				cfg.ServerMode = b
			}
		}
	}
	return cfg, nil
}

func resolveRoot(projectRoot, root string) string {
	if filepath.IsAbs(root) {
		return filepath.Clean(root)
	}
	return filepath.Clean(filepath.Join(projectRoot, root))
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	for _, cn := range n.Children {
		if s, ok := firstStringArg(cn); ok {
			out = append(out, s)
		}
	}
	return out
}
