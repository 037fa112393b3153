package callgraph

import (
	"strings"

	"github.com/standardbeagle/codelens/internal/defindex"
)

func passesNodeFilters(idx *defindex.Index, path string, q Query) bool {
	if q.ExcludeDir != "" && strings.Contains(path, q.ExcludeDir) {
		return false
	}
	if q.ExcludeFile != "" && strings.Contains(path, q.ExcludeFile) {
		return false
	}
	if q.Ext != "" {
		ok := false
		for _, e := range strings.Split(q.Ext, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if strings.HasSuffix(strings.ToLower(path), e) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func toNode(idx *defindex.Index, di int, d defindex.Definition) Node {
	return Node{
		Method:    d.Name,
		Class:     d.Parent,
		File:      idx.Path(d.FileID),
		LineStart: d.LineStart,
	}
}

// buildCallerNode finds callers of targetIdx (a method/function/
// constructor definition) and recurses up to q.Depth, spec.md §4.6.1.
func buildCallerNode(idx *defindex.Index, t target, q Query, visited map[visitedKey]bool, remaining *int, level int) (Node, bool) {
	d := idx.DefinitionAt(t.defIdx)
	selfNode := toNode(idx, t.defIdx, d)
	if level >= q.Depth {
		return selfNode, true
	}

	interfaces := idx.InterfacesOf(d.Parent)
	found := 0
	for _, candIdx := range idx.MethodLikeDefinitions() {
		if q.MaxCallersPerLevel > 0 && found >= q.MaxCallersPerLevel {
			break
		}
		if *remaining <= 0 && q.MaxTotalNodes > 0 {
			break
		}
		cand := idx.DefinitionAt(candIdx)
		if cand.Name == "" {
			continue
		}
		path := idx.Path(cand.FileID)
		if !passesNodeFilters(idx, path, q) {
			continue
		}
		matches := false
		for _, cs := range idx.CallSitesOf(candIdx) {
			if !strings.EqualFold(cs.MethodName, d.Name) {
				continue
			}
			receiver := ""
			if cs.HasReceiver {
				receiver = cs.ReceiverType
			}
			if compatibleReceiver(receiver, d.Parent, interfaces) {
				matches = true
				break
			}
		}
		if !matches {
			continue
		}
		key := visitedKey{fileID: cand.FileID, method: strings.ToLower(cand.Name), lineStart: cand.LineStart}
		if visited[key] {
			continue
		}
		visited[key] = true
		found++
		if q.MaxTotalNodes > 0 {
			*remaining--
		}

		childNode, _ := buildCallerNode(idx, target{defIdx: candIdx, className: cand.Parent}, q, visited, remaining, level+1)
		selfNode.Children = append(selfNode.Children, childNode)
	}
	return selfNode, true
}

// buildCalleeNode enumerates targetIdx's own call sites and resolves
// each callee, spec.md §4.6.2.
func buildCalleeNode(idx *defindex.Index, t target, q Query, visited map[visitedKey]bool, remaining *int, level int) (Node, bool) {
	d := idx.DefinitionAt(t.defIdx)
	selfNode := toNode(idx, t.defIdx, d)
	if level >= q.Depth {
		return selfNode, true
	}

	found := 0
	for _, cs := range idx.CallSitesOf(t.defIdx) {
		if q.MaxCallersPerLevel > 0 && found >= q.MaxCallersPerLevel {
			break
		}
		if *remaining <= 0 && q.MaxTotalNodes > 0 {
			break
		}
		receiver := ""
		if cs.HasReceiver {
			receiver = cs.ReceiverType
		}
		if receiver != "" && isBuiltinReceiver(receiver) {
			continue
		}
		callees := idx.ResolveCallees(cs.MethodName, receiver)
		for _, calleeIdx := range callees {
			callee := idx.DefinitionAt(calleeIdx)
			path := idx.Path(callee.FileID)
			if !passesNodeFilters(idx, path, q) {
				continue
			}
			key := visitedKey{fileID: callee.FileID, method: strings.ToLower(callee.Name), lineStart: callee.LineStart}
			if visited[key] {
				continue
			}
			visited[key] = true
			found++
			if q.MaxTotalNodes > 0 {
				*remaining--
			}
			childNode, _ := buildCalleeNode(idx, target{defIdx: calleeIdx, className: callee.Parent}, q, visited, remaining, level+1)
			selfNode.Children = append(selfNode.Children, childNode)
		}
	}
	return selfNode, true
}
