package defindex

import "strings"

// DefinitionAt returns a copy of the definition at di, or a zero value
// (empty Name) if di is tombstoned or out of range. Exposed for
// internal/callgraph's traversal.
func (idx *Index) DefinitionAt(di int) Definition {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if di < 0 || di >= len(idx.definitions) {
		return Definition{}
	}
	return idx.definitions[di]
}

// DefinitionsNamed returns every live definition index whose name
// case-insensitively equals name.
func (idx *Index) DefinitionsNamed(name string) []int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]int(nil), idx.byName[strings.ToLower(name)]...)
}

// CallSitesOf returns the outgoing call sites recorded for di.
func (idx *Index) CallSitesOf(di int) []CallSite {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.methodCalls[di]
}

// MethodLikeDefinitions returns every live method/function/constructor
// definition index, the candidate set for caller-resolution scans.
func (idx *Index) MethodLikeDefinitions() []int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []int
	out = append(out, idx.byKind["method"]...)
	out = append(out, idx.byKind["function"]...)
	out = append(out, idx.byKind["constructor"]...)
	return out
}

// InterfacesOf returns className's direct base types (its declared
// interfaces), used by the DI-aware receiver-compatibility check.
func (idx *Index) InterfacesOf(className string) []string {
	if className == "" {
		return nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, di := range idx.byName[strings.ToLower(className)] {
		d := idx.definitions[di]
		if d.Name != "" && strings.EqualFold(d.Name, className) && len(d.BaseTypes) > 0 {
			return d.BaseTypes
		}
	}
	return nil
}

// ResolveCallees finds method/function definitions named method, filtered
// by receiver-type compatibility (interface-aware: a call to IFoo.Bar()
// resolves to Foo.Bar() when Foo declares IFoo as a base type or is
// DI-paired with it). Every compatible definition is returned; whether an
// implementation is the only one is not checked.
// Built-in receivers must already be filtered out by the caller.
func (idx *Index) ResolveCallees(method, receiverType string) []int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []int
	for _, di := range idx.byName[strings.ToLower(method)] {
		d := idx.definitions[di]
		if d.Name == "" {
			continue
		}
		if d.Kind != "method" && d.Kind != "function" && d.Kind != "constructor" {
			continue
		}
		if receiverType == "" {
			out = append(out, di)
			continue
		}
		if strings.EqualFold(receiverType, d.Parent) {
			out = append(out, di)
			continue
		}
		parentDeclares := false
		for _, pi := range idx.byName[strings.ToLower(d.Parent)] {
			p := idx.definitions[pi]
			if p.Name != "" && strings.EqualFold(p.Name, d.Parent) && declaresInterface(p.BaseTypes, receiverType) {
				parentDeclares = true
				break
			}
		}
		if parentDeclares {
			out = append(out, di)
			continue
		}
		if diMatchReceiver(receiverType, d.Parent) {
			out = append(out, di)
		}
	}
	return out
}

// declaresInterface reports whether baseTypes contains name, case-insensitive.
func declaresInterface(baseTypes []string, name string) bool {
	for _, bt := range baseTypes {
		if strings.EqualFold(bt, name) {
			return true
		}
	}
	return false
}

// diMatchReceiver mirrors internal/callgraph's DI stem heuristic: strip a
// leading "I", require stem length >= 4, and require the stem and
// implClass to share a leading prefix of at least 4 characters
// (case-insensitive) rather than the stem merely being contained
// anywhere in implClass, keeping the match scoped to the naming
// convention it models instead of any unrelated class with an embedded
// substring.
func diMatchReceiver(interfaceName, implClass string) bool {
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
