// Package content implements the token inverted index (spec.md §4.3) and
// its derived trigram substring index (spec.md §4.4). Both indexes are
// generation-locked together: the trigram index's dirty generation never
// exceeds the content index's committed generation (spec.md §3 Ownership).
package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codelens/internal/tokenize"
)

// FileID identifies a file within an Index. Slots are tombstoned, never
// reused, once a file is removed.
type FileID uint32

// Posting is a (file_id, ascending line numbers) record for one token in
// one file.
type Posting struct {
	FileID FileID
	Lines  []int32
}

// Index is the token inverted index plus its bookkeeping. All exported
// methods are safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	Root       string
	Extensions []string
	CreatedAt  time.Time
	MaxAgeSecs int64

	// ServerMode enables the forward index and path_to_id reverse map,
	// required for incremental update without a brute-force scan.
	ServerMode bool

	files           []string // file_id -> relative path; "" = tombstone
	fileTokenCounts []int64
	tokenIndex      map[string][]Posting
	forward         map[FileID]map[string]struct{}
	pathToID        map[string]FileID

	generation atomic.Uint64

	trigram        atomic.Pointer[Trigram]
	trigramBuildMu sync.Mutex
}

// New creates an empty Index rooted at root, indexing only files whose
// extension (lowercased, with leading dot) is in extensions. An empty
// extensions list means "index every regular file".
func New(root string, extensions []string, serverMode bool) *Index {
	idx := &Index{
		Root:       filepath.ToSlash(root),
		Extensions: normalizeExtensions(extensions),
		CreatedAt:  time.Now(),
		ServerMode: serverMode,
		tokenIndex: make(map[string][]Posting),
		pathToID:   make(map[string]FileID),
	}
	if serverMode {
		idx.forward = make(map[FileID]map[string]struct{})
	}
	idx.trigram.Store(NewTrigram())
	return idx
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func (idx *Index) matchesExtension(path string) bool {
	if len(idx.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range idx.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// fileBuild is the per-file result of a parallel tokenize pass.
type fileBuild struct {
	path    string
	postinG map[string][]int32
	total   int64
}

// Build walks idx.Root with a bounded worker pool, tokenizing every file
// whose extension matches, and populates the index from scratch.
func (idx *Index) Build(ctx context.Context) error {
	canonicalRoot, err := filepath.Abs(idx.Root)
	if err != nil {
		return fmt.Errorf("resolve root %q: %w", idx.Root, err)
	}

	var paths []string
	err = filepath.WalkDir(canonicalRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(canonicalRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if idx.matchesExtension(rel) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %q: %w", canonicalRoot, err)
	}

	results := make([]fileBuild, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit())
	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			raw, err := os.ReadFile(filepath.Join(canonicalRoot, rel))
			if err != nil {
				return nil // unreadable files are skipped, not fatal
			}
			text := tokenize.Decode(raw)
			toks := tokenize.Tokenize(text)
			postings := make(map[string][]int32)
			for _, t := range toks {
				postings[t.Text] = append(postings[t.Text], int32(t.Line))
			}
			results[i] = fileBuild{path: rel, postinG: postings, total: int64(len(toks))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.files = idx.files[:0]
	idx.fileTokenCounts = idx.fileTokenCounts[:0]
	idx.tokenIndex = make(map[string][]Posting)
	idx.pathToID = make(map[string]FileID)
	if idx.ServerMode {
		idx.forward = make(map[FileID]map[string]struct{})
	}

	for _, r := range results {
		if r.path == "" {
			continue
		}
		fid := FileID(len(idx.files))
		idx.files = append(idx.files, r.path)
		idx.fileTokenCounts = append(idx.fileTokenCounts, r.total)
		idx.pathToID[r.path] = fid
		if idx.ServerMode {
			set := make(map[string]struct{}, len(r.postinG))
			for tok := range r.postinG {
				set[tok] = struct{}{}
			}
			idx.forward[fid] = set
		}
		for tok, lines := range r.postinG {
			sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })
			idx.tokenIndex[tok] = append(idx.tokenIndex[tok], Posting{FileID: fid, Lines: lines})
		}
	}
	for tok := range idx.tokenIndex {
		sort.Slice(idx.tokenIndex[tok], func(i, j int) bool {
			return idx.tokenIndex[tok][i].FileID < idx.tokenIndex[tok][j].FileID
		})
	}
	idx.generation.Add(1)
	return nil
}

func workerLimit() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// FileCount returns the number of live (non-tombstoned) file slots.
func (idx *Index) FileCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, p := range idx.files {
		if p != "" {
			n++
		}
	}
	return n
}

// Path returns the relative path stored for fid, or "" if tombstoned.
func (idx *Index) Path(fid FileID) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if int(fid) >= len(idx.files) {
		return ""
	}
	return idx.files[fid]
}

// Generation returns the current committed generation counter, used by
// the trigram index to detect staleness.
func (idx *Index) Generation() uint64 {
	return idx.generation.Load()
}

// Stale reports whether the index exceeds its configured max age.
func (idx *Index) Stale() bool {
	if idx.MaxAgeSecs <= 0 {
		return false
	}
	return time.Since(idx.CreatedAt) > time.Duration(idx.MaxAgeSecs)*time.Second
}
