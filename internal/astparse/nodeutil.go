package astparse

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// nodeText returns the source slice a node spans.
func nodeText(n *tree_sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

// nodeLines returns the 1-based inclusive start/end line of a node.
func nodeLines(n *tree_sitter.Node) (start, end int) {
	if n == nil {
		return 0, 0
	}
	return int(n.StartPosition().Row) + 1, int(n.EndPosition().Row) + 1
}

// findChildByType returns the first direct child of n whose Kind matches
// kind, or nil.
func findChildByType(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		c := n.Child(i)
		if c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}

// childByField is a defensive wrapper over the grammar's named-field
// accessor, returning nil instead of panicking when the field is absent.
func childByField(n *tree_sitter.Node, field string) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(field)
}

// walk calls visit for n and every descendant, depth-first, pre-order.
// visit returns false to skip descending into that node's children.
func walk(n *tree_sitter.Node, visit func(n *tree_sitter.Node, depth int) bool) {
	walkDepth(n, 0, visit)
}

func walkDepth(n *tree_sitter.Node, depth int, visit func(n *tree_sitter.Node, depth int) bool) {
	if n == nil {
		return
	}
	if !visit(n, depth) {
		return
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		walkDepth(n.Child(i), depth+1, visit)
	}
}

// modifiersOf collects leaf tokens under a "modifier"-ish child (C#'s
// modifier keywords appear as plain unnamed tokens preceding the
// declaration's own keyword, e.g. "public", "static", "async").
func modifiersOf(n *tree_sitter.Node, content []byte, stopKind string) []string {
	if n == nil {
		return nil
	}
	var mods []string
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if c.Kind() == stopKind {
			break
		}
		if c.IsNamed() {
			continue
		}
		text := strings.TrimSpace(nodeText(c, content))
		if text != "" {
			mods = append(mods, text)
		}
	}
	return mods
}

// attributesOf collects C# attribute_list text preceding a declaration.
func attributesOf(n *tree_sitter.Node, content []byte) []string {
	if n == nil {
		return nil
	}
	var attrs []string
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		c := n.Child(i)
		if c != nil && c.Kind() == "attribute_list" {
			attrs = append(attrs, strings.TrimSpace(nodeText(c, content)))
		}
	}
	return attrs
}

func countParams(paramList *tree_sitter.Node) int {
	if paramList == nil {
		return 0
	}
	n := 0
	count := paramList.ChildCount()
	for i := uint(0); i < count; i++ {
		c := paramList.Child(i)
		if c != nil && strings.HasSuffix(c.Kind(), "parameter") {
			n++
		}
	}
	return n
}
