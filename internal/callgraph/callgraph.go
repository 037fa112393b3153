// Package callgraph implements the caller/callee engine (spec.md §4.6):
// a bounded, interface-aware traversal over internal/defindex's
// definitions and call sites.
package callgraph

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/codelens/internal/astparse"
	"github.com/standardbeagle/codelens/internal/defindex"
)

// Direction selects which way the tree is walked.
type Direction int

const (
	Up Direction = iota
	Down
)

// builtinReceivers blocks language-standard container/platform types from
// ever resolving to a user-defined target in direction=down resolution.
// Preserved verbatim per spec.md §9's open question — this is the
// reference list, not tuned further.
var builtinReceivers = map[string]bool{
	"promise": true, "array": true, "map": true, "set": true, "math": true,
	"json": true, "console": true, "task": true, "list": true, "dictionary": true,
	"ienumerable": true, "idisposable": true, "object": true, "string": true,
	"number": true, "boolean": true, "func": true, "action": true,
}

// Query is a search_callers request.
type Query struct {
	Method             string
	Class              string
	Direction          Direction
	Depth              int
	MaxCallersPerLevel int
	MaxTotalNodes      int // 0 = unlimited
	ExcludeDir         string
	ExcludeFile        string
	Ext                string
	ResolveInterfaces  bool
}

// Node is one entry in the returned call tree.
type Node struct {
	Method    string
	Class     string
	File      string
	LineStart int
	Children  []Node
}

// Result is the outcome of Find.
type Result struct {
	Tree     []Node
	Warnings []string
}

type visitedKey struct {
	fileID    defindex.FileID
	method    string
	lineStart int
}

// Find implements spec.md §4.6: direction=up finds callers, direction=down
// finds callees, both bounded by depth and maxTotalNodes and deduplicated
// by (file_id, method_name, line_start) so overloads are never collapsed.
func Find(idx *defindex.Index, q Query) (Result, error) {
	if q.Depth < 1 {
		return Result{}, fmt.Errorf("depth must be >= 1")
	}
	targets, warnings := resolveTargets(idx, q.Method, q.Class)
	if len(targets) == 0 {
		return Result{Warnings: warnings}, nil
	}

	visited := map[visitedKey]bool{}
	remaining := q.MaxTotalNodes

	var tree []Node
	for _, t := range targets {
		var node Node
		var ok bool
		switch q.Direction {
		case Up:
			node, ok = buildCallerNode(idx, t, q, visited, &remaining, 0)
		default:
			node, ok = buildCalleeNode(idx, t, q, visited, &remaining, 0)
		}
		if ok {
			tree = append(tree, node)
		}
	}
	return Result{Tree: tree, Warnings: warnings}, nil
}

type target struct {
	defIdx    int
	className string
}

// resolveTargets finds every definition matching method (and, if given,
// class), and emits the ambiguity warning (spec.md §4.6.4) when class is
// omitted and many unrelated classes implement the method.
func resolveTargets(idx *defindex.Index, method, class string) ([]target, []string) {
	defs := idx.DefinitionsNamed(method)
	var targets []target
	classSet := map[string]bool{}
	for _, di := range defs {
		d := idx.DefinitionAt(di)
		if d.Name == "" {
			continue
		}
		if d.Kind != astparse.KindMethod && d.Kind != astparse.KindFunction && d.Kind != astparse.KindConstructor {
			continue
		}
		if class != "" && !strings.EqualFold(d.Parent, class) {
			continue
		}
		targets = append(targets, target{defIdx: di, className: d.Parent})
		classSet[d.Parent] = true
	}
	var warnings []string
	if class == "" && len(classSet) > 1 {
		names := make([]string, 0, len(classSet))
		for c := range classSet {
			names = append(names, c)
		}
		shown := names
		suffix := ""
		if len(shown) > 10 {
			shown = shown[:10]
			suffix = fmt.Sprintf("... (%d total)", len(names))
		}
		warnings = append(warnings, fmt.Sprintf(
			"method %q exists in %d unrelated classes: %s%s", method, len(classSet), strings.Join(shown, ", "), suffix))
	}
	return targets, warnings
}

// isBuiltinReceiver reports whether typeName is on the blocklist.
func isBuiltinReceiver(typeName string) bool {
	return builtinReceivers[strings.ToLower(typeName)]
}

// compatibleReceiver implements spec.md §4.6.1 step 4's matching rule:
// exact case-insensitive match, the class's direct interface, or a fuzzy
// DI stem match (strip leading "I", stem >= 4 chars, stem and
// implementation class name sharing a case-insensitive leading prefix of
// at least 4 chars).
func compatibleReceiver(receiverType, implClass string, interfaces []string) bool {
	if receiverType == "" {
		return true // None is a graceful fallback accept
	}
	if strings.EqualFold(receiverType, implClass) {
		return true
	}
	for _, iface := range interfaces {
		if strings.EqualFold(receiverType, iface) {
			return true
		}
	}
	if diMatch(receiverType, implClass) {
		return true
	}
	return false
}

// diMatch implements the IFoo/Foo fuzzy DI heuristic: strip a leading
// "I", require stem length >= 4, and require the stem and implClass to
// share a leading prefix of at least 4 characters (case-insensitive),
// not the stem merely being contained anywhere in implClass. A
// shared-leading-prefix test keeps the heuristic scoped to the naming
// convention it models (FooService / IFooService, DataModelWebService /
// IDataModelService) instead of matching any unrelated class whose name
// happens to embed the stem mid-string (e.g. PlatformService embedding
// "formService").
func diMatch(interfaceName, implClass string) bool {
	stem := interfaceName
	if len(stem) > 1 && (stem[0] == 'I' || stem[0] == 'i') && stem[1] >= 'A' && stem[1] <= 'Z' {
		stem = stem[1:]
	}
	if len(stem) < 4 {
		return false
	}
	return sharedPrefixLen(strings.ToLower(stem), strings.ToLower(implClass)) >= 4
}

// sharedPrefixLen returns the length of the common leading substring of
// a and b.
func sharedPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
