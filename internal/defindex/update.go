package defindex

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/codelens/internal/astparse"
)

// UpdateFile performs the per-file incremental update described in
// spec.md §4.5: remove relPath's old definitions from every secondary
// index and from method_calls, reparse, then insert fresh definitions.
// Old slots are left tombstoned (empty Name), never reused.
func (idx *Index) UpdateFile(relPath string) error {
	relPath = normalizePath(relPath)
	raw, err := os.ReadFile(filepath.Join(idx.Root, filepath.FromSlash(relPath)))
	if err != nil {
		if os.IsNotExist(err) {
			return idx.RemoveFile(relPath)
		}
		return err
	}
	lang := astparse.LanguageForExt(filepath.Ext(relPath))

	idx.mu.Lock()
	defer idx.mu.Unlock()

	fid, existed := idx.pathToID[relPath]
	if !existed {
		fid = idx.allocateSlotLocked(relPath)
	} else {
		idx.purgeFileLocked(fid)
	}
	idx.files[fid] = relPath
	idx.pathToID[relPath] = fid
	delete(idx.readErrors, relPath)
	delete(idx.nonUTF8Files, relPath)

	if lang == astparse.LangUnknown {
		return nil
	}
	unit, uerr := astparse.Extract(lang, raw)
	if uerr != nil {
		idx.readErrors[relPath] = uerr.Error()
		return nil
	}
	idx.insertUnitLocked(fid, unit)
	return nil
}

// RemoveFile tombstones relPath's slot and every definition it owned.
func (idx *Index) RemoveFile(relPath string) error {
	relPath = normalizePath(relPath)
	idx.mu.Lock()
	defer idx.mu.Unlock()

	fid, ok := idx.pathToID[relPath]
	if !ok {
		return nil
	}
	idx.purgeFileLocked(fid)
	idx.files[fid] = ""
	delete(idx.pathToID, relPath)
	delete(idx.readErrors, relPath)
	delete(idx.nonUTF8Files, relPath)
	return nil
}

// purgeFileLocked tombstones every definition belonging to fid and
// removes their presence from every secondary index and method_calls.
// Callers must hold idx.mu for writing.
func (idx *Index) purgeFileLocked(fid FileID) {
	owned := idx.byFile[fid]
	for _, di := range owned {
		d := idx.definitions[di]
		if d.Name == "" {
			continue
		}
		lname := strings.ToLower(d.Name)
		idx.byName[lname] = removeInt(idx.byName[lname], di)
		idx.byKind[d.Kind] = removeInt(idx.byKind[d.Kind], di)
		for _, a := range d.Attributes {
			k := strings.ToLower(a)
			idx.byAttribute[k] = removeInt(idx.byAttribute[k], di)
		}
		for _, b := range d.BaseTypes {
			k := strings.ToLower(b)
			idx.byBaseType[k] = removeInt(idx.byBaseType[k], di)
		}
		if d.Parent != "" {
			k := strings.ToLower(d.Parent)
			idx.byParent[k] = removeInt(idx.byParent[k], di)
		}
		idx.definitions[di] = Definition{} // tombstone: empty Name
		delete(idx.methodCalls, di)
	}
	delete(idx.byFile, fid)
}

func removeInt(xs []int, v int) []int {
	out := xs[:0]
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
