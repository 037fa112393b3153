// Package defindex implements the AST-derived definition index (spec.md
// §4.5): classes/interfaces/methods/etc. across a C-family curly-braces
// language and a TypeScript-family language, with secondary indexes and
// per-definition code statistics.
package defindex

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codelens/internal/astparse"
	"github.com/standardbeagle/codelens/internal/fileindex"
)

// FileID identifies a file within an Index. Slots are tombstoned, never
// reused, once a file is removed (spec.md §3).
type FileID uint32

// Definition is one stored program entity. An empty Name marks a
// tombstoned (dead) slot, filtered on every read path.
type Definition struct {
	Name       string
	Kind       astparse.Kind
	FileID     FileID
	LineStart  int
	LineEnd    int
	Parent     string
	Signature  string
	Modifiers  []string
	Attributes []string
	BaseTypes  []string
	Stats      astparse.CodeStats
}

// CallSite is one outgoing call recorded against the Definition that
// contains it.
type CallSite struct {
	MethodName   string
	ReceiverType string
	HasReceiver  bool
	Line         int
}

// Index is the definition store plus its secondary indexes. All exported
// methods are safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	Root       string
	Extensions []string
	CreatedAt  time.Time
	MaxAgeSecs int64

	definitions []Definition
	methodCalls map[int][]CallSite // definition index -> outgoing calls

	files    []string // file_id -> relative path; "" = tombstone
	pathToID map[string]FileID

	byName      map[string][]int // lowercase name -> definition indices
	byKind      map[astparse.Kind][]int
	byAttribute map[string][]int
	byBaseType  map[string][]int
	byFile      map[FileID][]int
	byParent    map[string][]int

	readErrors    map[string]string
	nonUTF8Files  map[string]bool
	noStatsLoaded bool
}

// New creates an empty Index rooted at root.
func New(root string, extensions []string) *Index {
	return &Index{
		Root:         root,
		Extensions:   extensions,
		CreatedAt:    time.Now(),
		methodCalls:  map[int][]CallSite{},
		pathToID:     map[string]FileID{},
		byName:       map[string][]int{},
		byKind:       map[astparse.Kind][]int{},
		byAttribute:  map[string][]int{},
		byBaseType:   map[string][]int{},
		byFile:       map[FileID][]int{},
		byParent:     map[string][]int{},
		readErrors:   map[string]string{},
		nonUTF8Files: map[string]bool{},
	}
}

// Generation-free full rebuild: walk root with parallel workers, parse
// every file whose extension maps to a supported language, and populate
// every secondary index. Grounded on the teacher's errgroup-bounded
// bulk-build idiom (also used by internal/content.Index.Build).
func (idx *Index) Build(ctx context.Context) error {
	fi, err := fileindex.Build(idx.Root, idx.Extensions, nil)
	if err != nil {
		return err
	}
	entries := fi.Entries()

	type parsed struct {
		path string
		unit astparse.Unit
		err  error
	}
	results := make([]parsed, len(entries))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit())
	for i, e := range entries {
		i, e := i, e
		if e.IsDir {
			continue
		}
		lang := astparse.LanguageForExt(filepath.Ext(e.Path))
		if lang == astparse.LangUnknown {
			continue
		}
		g.Go(func() error {
			raw, rerr := os.ReadFile(filepath.Join(idx.Root, filepath.FromSlash(e.Path)))
			if rerr != nil {
				results[i] = parsed{path: e.Path, err: rerr}
				return nil
			}
			unit, uerr := astparse.Extract(lang, raw)
			results[i] = parsed{path: e.Path, unit: unit, err: uerr}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, r := range results {
		if r.path == "" {
			continue
		}
		fid := idx.allocateSlotLocked(r.path)
		idx.files[fid] = r.path
		idx.pathToID[r.path] = fid
		if r.err != nil {
			idx.readErrors[r.path] = r.err.Error()
			continue
		}
		idx.insertUnitLocked(fid, r.unit)
	}
	return nil
}

func (idx *Index) allocateSlotLocked(path string) FileID {
	fid := FileID(len(idx.files))
	idx.files = append(idx.files, "")
	return fid
}

// insertUnitLocked merges one file's extraction result into the store,
// assigning FileID to every definition and indexing it. Callers must
// hold idx.mu for writing.
func (idx *Index) insertUnitLocked(fid FileID, unit astparse.Unit) {
	for i, d := range unit.Definitions {
		defIdx := len(idx.definitions)
		idx.definitions = append(idx.definitions, Definition{
			Name:       d.Name,
			Kind:       d.Kind,
			FileID:     fid,
			LineStart:  d.LineStart,
			LineEnd:    d.LineEnd,
			Parent:     d.Parent,
			Signature:  d.Signature,
			Modifiers:  d.Modifiers,
			Attributes: d.Attributes,
			BaseTypes:  d.BaseTypes,
			Stats:      unit.Stats[i],
		})
		idx.indexDefinitionLocked(defIdx)
		if calls, ok := unit.CallSites[i]; ok {
			conv := make([]CallSite, 0, len(calls))
			for _, c := range calls {
				conv = append(conv, CallSite{MethodName: c.MethodName, ReceiverType: c.ReceiverType, HasReceiver: c.HasReceiver, Line: c.Line})
			}
			idx.methodCalls[defIdx] = conv
		}
	}
}

func (idx *Index) indexDefinitionLocked(defIdx int) {
	d := idx.definitions[defIdx]
	lname := strings.ToLower(d.Name)
	idx.byName[lname] = append(idx.byName[lname], defIdx)
	idx.byKind[d.Kind] = append(idx.byKind[d.Kind], defIdx)
	for _, a := range d.Attributes {
		idx.byAttribute[strings.ToLower(a)] = append(idx.byAttribute[strings.ToLower(a)], defIdx)
	}
	for _, b := range d.BaseTypes {
		idx.byBaseType[strings.ToLower(b)] = append(idx.byBaseType[strings.ToLower(b)], defIdx)
	}
	idx.byFile[d.FileID] = append(idx.byFile[d.FileID], defIdx)
	if d.Parent != "" {
		idx.byParent[strings.ToLower(d.Parent)] = append(idx.byParent[strings.ToLower(d.Parent)], defIdx)
	}
}

// Path returns the stored path for fid, or "" for a tombstoned/unknown slot.
func (idx *Index) Path(fid FileID) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if int(fid) >= len(idx.files) {
		return ""
	}
	return idx.files[fid]
}

// Stale reports whether the index has outlived MaxAgeSecs.
func (idx *Index) Stale() bool {
	if idx.MaxAgeSecs <= 0 {
		return false
	}
	return time.Since(idx.CreatedAt) > time.Duration(idx.MaxAgeSecs)*time.Second
}

func workerLimit() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// sortInts sorts xs in ascending order in place. Nothing in the package
// calls it at present.
func sortInts(xs []int) {
	sort.Ints(xs)
}
