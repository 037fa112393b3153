package astparse

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// csharpContainerKinds and tsContainerKinds are node kinds that introduce a new "Parent" scope for
// nested definitions (spec.md §4.5's DefinitionEntry.parent).
var csharpContainerKinds = map[string]Kind{
	"class_declaration":     KindClass,
	"interface_declaration": KindInterface,
	"struct_declaration":    KindStruct,
	"record_declaration":    KindRecord,
	"enum_declaration":      KindEnum,
}

var csharpMemberKinds = map[string]Kind{
	"method_declaration":      KindMethod,
	"constructor_declaration": KindConstructor,
	"property_declaration":    KindProperty,
	"field_declaration":       KindField,
	"event_field_declaration": KindEvent,
	"event_declaration":       KindEvent,
	"delegate_declaration":    KindDelegate,
	"enum_member_declaration": KindEnumMember,
}

var tsContainerKinds = map[string]Kind{
	"class_declaration":     KindClass,
	"interface_declaration": KindInterface,
	"enum_declaration":      KindEnum,
}

var tsMemberKinds = map[string]Kind{
	"method_definition":       KindMethod,
	"function_declaration":    KindFunction,
	"property_signature":      KindProperty,
	"public_field_definition": KindField,
	"type_alias_declaration":  KindTypeAlias,
}

// scope carries the field/receiver type map accumulated for the
// container currently being visited, plus its name (spec.md §4.5's
// per-file field type map built from class fields, constructor-promoted
// params, property initializers, and `inject(T)` call sites).
type scope struct {
	name       string
	fieldTypes map[string]string
}

// Extract parses content with lang's grammar and returns every definition,
// its call sites (with receiver_type resolved per spec.md §4.5), and its
// code statistics.
func Extract(lang Language, content []byte) (Unit, error) {
	tree, err := parseSource(lang, content)
	if err != nil {
		return Unit{}, err
	}
	defer tree.Close()

	u := Unit{CallSites: map[int][]CallSite{}, Stats: map[int]CodeStats{}}
	root := tree.RootNode()

	var stack []scope
	parentName := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1].name
	}
	currentFieldTypes := func() map[string]string {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1].fieldTypes
	}

	containers, members := csharpContainerKinds, csharpMemberKinds
	if lang == LangTypeScript || lang == LangTSX {
		containers, members = tsContainerKinds, tsMemberKinds
	}

	var visit func(n *tree_sitter.Node)
	visit = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		kind := n.Kind()

		if ck, ok := containers[kind]; ok {
			name := declName(n, content)
			start, end := nodeLines(n)
			u.Definitions = append(u.Definitions, Definition{
				Name:       name,
				Kind:       ck,
				LineStart:  start,
				LineEnd:    end,
				Parent:     parentName(),
				Modifiers:  modifiersOf(n, content, kind),
				Attributes: attributesOf(n, content),
				BaseTypes:  baseTypesOf(n, content, lang),
			})
			stack = append(stack, scope{name: name, fieldTypes: buildFieldTypes(n, content, lang)})
			children := n.ChildCount()
			for i := uint(0); i < children; i++ {
				visit(n.Child(i))
			}
			stack = stack[:len(stack)-1]
			return
		}

		if mk, ok := members[kind]; ok {
			name := declName(n, content)
			start, end := nodeLines(n)
			defIdx := len(u.Definitions)
			u.Definitions = append(u.Definitions, Definition{
				Name:       name,
				Kind:       mk,
				LineStart:  start,
				LineEnd:    end,
				Parent:     parentName(),
				Signature:  signatureOf(n, content),
				Modifiers:  modifiersOf(n, content, kind),
				Attributes: attributesOf(n, content),
			})
			body := childByField(n, "body")
			if body == nil {
				body = findChildByType(n, "statement_block")
			}
			calls, stats := analyzeBody(n, body, content, lang, parentName(), currentFieldTypes())
			u.CallSites[defIdx] = calls
			u.Stats[defIdx] = stats
			return // member bodies are scanned by analyzeBody, not descended into again
		}

		children := n.ChildCount()
		for i := uint(0); i < children; i++ {
			visit(n.Child(i))
		}
	}
	visit(root)
	return u, nil
}

func declName(n *tree_sitter.Node, content []byte) string {
	if name := childByField(n, "name"); name != nil {
		return nodeText(name, content)
	}
	// field_declaration / lexical_declaration wrap a declarator; fall
	// back to the first identifier-ish descendant.
	var found string
	walk(n, func(d *tree_sitter.Node, depth int) bool {
		if found != "" {
			return false
		}
		if depth > 0 && depth <= 3 && (d.Kind() == "identifier" || d.Kind() == "property_identifier" || d.Kind() == "type_identifier") {
			found = nodeText(d, content)
			return false
		}
		return true
	})
	return found
}

func signatureOf(n *tree_sitter.Node, content []byte) string {
	params := childByField(n, "parameters")
	retType := childByField(n, "type")
	name := declName(n, content)
	sig := name
	if params != nil {
		sig += nodeText(params, content)
	} else {
		sig += "()"
	}
	if retType != nil {
		sig += " : " + nodeText(retType, content)
	}
	return sig
}

func baseTypesOf(n *tree_sitter.Node, content []byte, lang Language) []string {
	var baseList *tree_sitter.Node
	if lang == LangCSharp {
		baseList = findChildByType(n, "base_list")
	} else {
		baseList = childByField(n, "superclass")
		if baseList == nil {
			baseList = findChildByType(n, "class_heritage")
		}
	}
	if baseList == nil {
		return nil
	}
	var out []string
	walk(baseList, func(d *tree_sitter.Node, depth int) bool {
		if d.Kind() == "identifier" || d.Kind() == "type_identifier" || d.Kind() == "generic_name" || d.Kind() == "qualified_name" {
			out = append(out, nodeText(d, content))
			return false
		}
		return true
	})
	return out
}

// buildFieldTypes implements spec.md §4.5's field type map: class fields,
// constructor-promoted params, property initializers, and
// `inject(TypeName)` DI call sites (including `this.x = inject(T)`).
func buildFieldTypes(container *tree_sitter.Node, content []byte, lang Language) map[string]string {
	types := map[string]string{}
	body := childByField(container, "body")
	if body == nil {
		body = findChildByType(container, "declaration_list")
	}
	if body == nil {
		return types
	}
	count := body.ChildCount()
	for i := uint(0); i < count; i++ {
		member := body.Child(i)
		if member == nil {
			continue
		}
		switch member.Kind() {
		case "field_declaration": // C#
			typeNode := childByField(member, "type")
			walk(member, func(d *tree_sitter.Node, depth int) bool {
				if d.Kind() == "variable_declarator" {
					if nameNode := childByField(d, "name"); nameNode != nil && typeNode != nil {
						types[nodeText(nameNode, content)] = nodeText(typeNode, content)
					}
					return false
				}
				return true
			})
		case "property_declaration", "property_signature", "public_field_definition":
			nameNode := childByField(member, "name")
			typeNode := childByField(member, "type")
			if nameNode != nil && typeNode != nil {
				types[nodeText(nameNode, content)] = strings.TrimPrefix(nodeText(typeNode, content), ":")
			}
		case "constructor_declaration", "method_definition":
			if lang != LangCSharp {
				// TypeScript parameter-property promotion:
				// constructor(private x: T) implicitly declares field x.
				params := childByField(member, "parameters")
				if params != nil {
					pc := params.ChildCount()
					for j := uint(0); j < pc; j++ {
						p := params.Child(j)
						if p == nil || !strings.Contains(p.Kind(), "parameter") {
							continue
						}
						hasModifier := false
						walk(p, func(d *tree_sitter.Node, depth int) bool {
							if d.Kind() == "accessibility_modifier" {
								hasModifier = true
							}
							return true
						})
						if !hasModifier {
							continue
						}
						nameNode := childByField(p, "pattern")
						if nameNode == nil {
							nameNode = childByField(p, "name")
						}
						typeNode := childByField(p, "type")
						if nameNode != nil && typeNode != nil {
							types[nodeText(nameNode, content)] = strings.TrimPrefix(nodeText(typeNode, content), ":")
						}
					}
				}
			}
			recordInjectAssignments(member, content, types)
		}
	}
	recordInjectAssignments(body, content, types)
	return types
}

// recordInjectAssignments scans for `this.x = inject(T)` (or bare
// `x = inject(T)`) assignments and records field->type T.
func recordInjectAssignments(n *tree_sitter.Node, content []byte, types map[string]string) {
	walk(n, func(d *tree_sitter.Node, depth int) bool {
		if d.Kind() != "assignment_expression" {
			return true
		}
		left := childByField(d, "left")
		right := childByField(d, "right")
		if left == nil || right == nil {
			return true
		}
		fieldName := ""
		switch left.Kind() {
		case "member_access_expression", "member_expression":
			if nm := childByField(left, "name"); nm != nil {
				fieldName = nodeText(nm, content)
			} else if nm := childByField(left, "property"); nm != nil {
				fieldName = nodeText(nm, content)
			}
		case "identifier":
			fieldName = nodeText(left, content)
		}
		if fieldName == "" {
			return true
		}
		callKind := right.Kind()
		if callKind != "invocation_expression" && callKind != "call_expression" {
			return true
		}
		fn := childByField(right, "function")
		args := childByField(right, "arguments")
		if fn == nil || nodeText(fn, content) != "inject" || args == nil {
			return true
		}
		argc := args.ChildCount()
		for i := uint(0); i < argc; i++ {
			a := args.Child(i)
			if a != nil && a.IsNamed() {
				types[fieldName] = nodeText(a, content)
				break
			}
		}
		return true
	})
}

var decisionKinds = map[string]bool{
	"if_statement": true, "for_statement": true, "for_each_statement": true,
	"foreach_statement": true, "while_statement": true, "do_statement": true,
	"catch_clause": true, "switch_section": true, "switch_case": true,
	"conditional_expression": true, "ternary_expression": true,
	"for_in_statement": true,
}

// nestingKinds opens a nesting level for cognitive-complexity purposes;
// try_statement is included because spec.md §4.5 calls out that `try`
// opens a nesting level in the C-family language.
var nestingKinds = map[string]bool{
	"if_statement": true, "for_statement": true, "for_each_statement": true,
	"foreach_statement": true, "while_statement": true, "do_statement": true,
	"try_statement": true, "switch_statement": true, "switch_expression": true,
	"for_in_statement": true,
}

var callKinds = map[string]bool{
	"invocation_expression": true, "object_creation_expression": true,
	"call_expression": true, "new_expression": true,
}

var lambdaKinds = map[string]bool{
	"lambda_expression": true, "anonymous_method_expression": true,
	"arrow_function": true, "function_expression": true,
}

var returnKinds = map[string]bool{"return_statement": true, "throw_statement": true}

// analyzeBody walks def's body (or def itself if no separate body node)
// to collect call sites and code statistics, maintaining a local
// variable type map alongside the container's field type map so call
// site receivers can be resolved per spec.md §4.5.
func analyzeBody(def, body *tree_sitter.Node, content []byte, lang Language, className string, fieldTypes map[string]string) ([]CallSite, CodeStats) {
	target := body
	if target == nil {
		target = def
	}
	stats := CodeStats{}
	if start, end := nodeLines(def); end >= start {
		stats.Lines = end - start + 1
	}
	stats.Params = countParams(childByField(def, "parameters"))
	stats.Cyclomatic = 1

	localTypes := map[string]string{}
	recordLocalDeclarations(target, content, localTypes)

	var calls []CallSite
	var walkNest func(n *tree_sitter.Node, depth, nestLevel int)
	walkNest = func(n *tree_sitter.Node, depth, nestLevel int) {
		if n == nil {
			return
		}
		kind := n.Kind()
		nextNest := nestLevel

		if decisionKinds[kind] {
			stats.Cyclomatic++
			stats.Cognitive += 1 + nestLevel
		}
		if kind == "binary_expression" {
			op := childByField(n, "operator")
			if op != nil {
				txt := nodeText(op, content)
				if txt == "&&" || txt == "||" {
					stats.Cyclomatic++
				}
			}
		}
		if nestingKinds[kind] {
			nextNest = nestLevel + 1
			if nextNest > stats.MaxNesting {
				stats.MaxNesting = nextNest
			}
		}
		if returnKinds[kind] {
			stats.Returns++
		}
		if lambdaKinds[kind] {
			stats.Lambdas++
		}
		if callKinds[kind] {
			stats.Calls++
			calls = append(calls, callSiteFrom(n, content, lang, className, fieldTypes, localTypes))
		}

		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			walkNest(n.Child(i), depth+1, nextNest)
		}
	}
	walkNest(target, 0, 0)
	return calls, stats
}

// recordLocalDeclarations implements spec.md §4.5's local-variable type
// map: explicit annotations, `new Type(...)` initializers (generic
// arguments stripped), and typed declarations. An untyped `var x =
// call()` records x itself as its own type, per spec, so later
// resolution can distinguish "unknown-but-named" from "truly ambiguous".
func recordLocalDeclarations(n *tree_sitter.Node, content []byte, localTypes map[string]string) {
	walk(n, func(d *tree_sitter.Node, depth int) bool {
		switch d.Kind() {
		case "variable_declaration", "local_declaration_statement": // C#
			typeNode := findChildByType(d, "predefined_type")
			if typeNode == nil {
				typeNode = findChildByType(d, "identifier_name")
			}
			if typeNode == nil {
				typeNode = findChildByType(d, "generic_name")
			}
			walk(d, func(decl *tree_sitter.Node, depth2 int) bool {
				if decl.Kind() != "variable_declarator" {
					return true
				}
				nameNode := childByField(decl, "name")
				if nameNode == nil {
					return true
				}
				name := nodeText(nameNode, content)
				if init := childByField(decl, "value"); init != nil && init.Kind() == "object_creation_expression" {
					if tn := childByField(init, "type"); tn != nil {
						localTypes[name] = stripGeneric(nodeText(tn, content))
						return true
					}
				}
				if typeNode != nil {
					txt := nodeText(typeNode, content)
					if txt != "var" {
						localTypes[name] = txt
						return true
					}
				}
				localTypes[name] = name
				return true
			})
		case "lexical_declaration", "variable_declarator": // TS const/let
			if d.Kind() == "variable_declarator" {
				nameNode := childByField(d, "name")
				if nameNode == nil {
					return true
				}
				name := nodeText(nameNode, content)
				if typeNode := childByField(d, "type"); typeNode != nil {
					localTypes[name] = strings.TrimPrefix(nodeText(typeNode, content), ":")
					return true
				}
				if init := childByField(d, "value"); init != nil && init.Kind() == "new_expression" {
					if tn := childByField(init, "constructor"); tn != nil {
						localTypes[name] = stripGeneric(nodeText(tn, content))
						return true
					}
				}
				localTypes[name] = name
			}
		}
		return true
	})
}

func stripGeneric(typeName string) string {
	if i := strings.IndexAny(typeName, "<["); i >= 0 {
		return typeName[:i]
	}
	return typeName
}

func callSiteFrom(n *tree_sitter.Node, content []byte, lang Language, className string, fieldTypes, localTypes map[string]string) CallSite {
	line := int(n.StartPosition().Row) + 1

	if n.Kind() == "object_creation_expression" || n.Kind() == "new_expression" {
		typeNode := childByField(n, "type")
		if typeNode == nil {
			typeNode = childByField(n, "constructor")
		}
		typeName := stripGeneric(nodeText(typeNode, content))
		return CallSite{MethodName: typeName, ReceiverType: typeName, HasReceiver: true, Line: line}
	}

	var fn *tree_sitter.Node
	if n.Kind() == "invocation_expression" || n.Kind() == "call_expression" {
		fn = childByField(n, "function")
	}
	if fn == nil {
		return CallSite{MethodName: nodeText(n, content), Line: line}
	}

	switch fn.Kind() {
	case "member_access_expression", "member_expression":
		recv := childByField(fn, "expression")
		if recv == nil {
			recv = childByField(fn, "object")
		}
		name := childByField(fn, "name")
		if name == nil {
			name = childByField(fn, "property")
		}
		methodName := nodeText(name, content)
		recvText := nodeText(recv, content)
		return CallSite{
			MethodName:   methodName,
			ReceiverType: resolveReceiver(recvText, className, fieldTypes, localTypes),
			HasReceiver:  recv != nil,
			Line:         line,
		}
	default:
		return CallSite{MethodName: nodeText(fn, content), HasReceiver: false, Line: line}
	}
}

// resolveReceiver implements the final step of spec.md §4.5's resolution
// rule: field type, local type, class name (for `this`), or the literal
// receiver identifier when nothing resolves.
func resolveReceiver(recvText, className string, fieldTypes, localTypes map[string]string) string {
	recvText = strings.TrimSpace(recvText)
	if recvText == "this" {
		return className
	}
	if strings.HasPrefix(recvText, "this.") {
		field := strings.TrimPrefix(recvText, "this.")
		if t, ok := fieldTypes[field]; ok {
			return t
		}
		return field
	}
	if t, ok := localTypes[recvText]; ok {
		return t
	}
	if t, ok := fieldTypes[recvText]; ok {
		return t
	}
	return recvText
}
