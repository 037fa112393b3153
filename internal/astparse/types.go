// Package astparse wraps tree-sitter to extract definitions, call sites,
// and code statistics from source files, grounding spec.md §4.5's "AST
// derived from a grammar appropriate to its extension" over the two
// language families the spec names: a C-family curly-braces language
// (C#) and a TypeScript-family language (TypeScript/TSX, which also
// covers plain JavaScript as a syntactic subset).
package astparse

// Kind mirrors spec.md §3's DefinitionEntry.kind enumeration.
type Kind string

const (
	KindClass       Kind = "class"
	KindInterface   Kind = "interface"
	KindEnum        Kind = "enum"
	KindStruct      Kind = "struct"
	KindRecord      Kind = "record"
	KindMethod      Kind = "method"
	KindFunction    Kind = "function"
	KindConstructor Kind = "constructor"
	KindProperty    Kind = "property"
	KindField       Kind = "field"
	KindEvent       Kind = "event"
	KindDelegate    Kind = "delegate"
	KindEnumMember  Kind = "enumMember"
	KindTypeAlias   Kind = "typeAlias"
	KindVariable    Kind = "variable"
)

// Definition is one extracted program entity, pre-file-id (the caller
// assigns FileID when merging into internal/defindex).
type Definition struct {
	Name       string
	Kind       Kind
	LineStart  int
	LineEnd    int
	Parent     string
	Signature  string
	Modifiers  []string
	Attributes []string
	BaseTypes  []string
}

// CallSite is a call expression found inside some definition's body.
// ReceiverType carries a resolved class/interface name, or — when
// unresolved — the literal receiver identifier, or "" when no receiver
// info is available at all (spec.md §3's `None`).
type CallSite struct {
	MethodName   string
	ReceiverType string
	HasReceiver  bool // false means ReceiverType is not meaningful ("None")
	Line         int
}

// CodeStats are the per-definition metrics spec.md §4.5 requires.
type CodeStats struct {
	Lines       int
	Cyclomatic  int
	Cognitive   int
	MaxNesting  int
	Params      int
	Returns     int
	Calls       int
	Lambdas     int
}

// Unit is the full per-file extraction result.
type Unit struct {
	Definitions []Definition
	// CallSites maps a Definition's index in Definitions to its call
	// sites, matching internal/defindex's method_calls-by-definition
	// shape.
	CallSites map[int][]CallSite
	Stats     map[int]CodeStats
}
