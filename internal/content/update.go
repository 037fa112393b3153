package content

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/standardbeagle/codelens/internal/tokenize"
)

// UpdateFile performs the per-file incremental update described in
// spec.md §4.3 for the file at relPath (relative to idx.Root): purge the
// file's old postings (using the forward index when available, otherwise
// a brute-force scan), re-tokenize, and write new postings. It marks the
// trigram index dirty by bumping the generation counter.
func (idx *Index) UpdateFile(relPath string) error {
	relPath = filepath.ToSlash(relPath)
	raw, err := os.ReadFile(filepath.Join(idx.Root, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return idx.RemoveFile(relPath)
		}
		return err
	}
	path := relPath
	text := tokenize.Decode(raw)
	toks := tokenize.Tokenize(text)

	newPostings := make(map[string][]int32)
	for _, t := range toks {
		newPostings[t.Text] = append(newPostings[t.Text], int32(t.Line))
	}
	for tok := range newPostings {
		lines := newPostings[tok]
		sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })
		newPostings[tok] = lines
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	fid, existed := idx.pathToID[path]
	if !existed {
		fid = idx.allocateSlotLocked(path)
	} else {
		idx.purgeFileLocked(fid)
	}

	idx.files[fid] = path
	idx.pathToID[path] = fid
	var total int64
	newSet := make(map[string]struct{}, len(newPostings))
	for tok, lines := range newPostings {
		idx.tokenIndex[tok] = insertPostingSorted(idx.tokenIndex[tok], Posting{FileID: fid, Lines: lines})
		total += int64(len(lines))
		newSet[tok] = struct{}{}
	}
	idx.fileTokenCounts[fid] = total
	if idx.ServerMode {
		idx.forward[fid] = newSet
	}
	idx.generation.Add(1)
	return nil
}

// RemoveFile tombstones path's slot: the path is cleared and its
// postings purged, but the slot index is never reused (spec.md §3).
func (idx *Index) RemoveFile(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	fid, ok := idx.pathToID[path]
	if !ok {
		return nil
	}
	idx.purgeFileLocked(fid)
	idx.files[fid] = ""
	idx.fileTokenCounts[fid] = 0
	delete(idx.pathToID, path)
	if idx.ServerMode {
		delete(idx.forward, fid)
	}
	idx.generation.Add(1)
	return nil
}

// allocateSlotLocked appends a new tombstone-eligible slot for path.
// Callers must hold idx.mu for writing.
func (idx *Index) allocateSlotLocked(path string) FileID {
	fid := FileID(len(idx.files))
	idx.files = append(idx.files, "")
	idx.fileTokenCounts = append(idx.fileTokenCounts, 0)
	return fid
}

// purgeFileLocked removes every posting referencing fid, using the
// forward index when present and falling back to a brute-force scan of
// every token's posting list otherwise. Callers must hold idx.mu.
func (idx *Index) purgeFileLocked(fid FileID) {
	if idx.ServerMode {
		if tokens, ok := idx.forward[fid]; ok {
			for tok := range tokens {
				idx.removePostingLocked(tok, fid)
			}
			return
		}
	}
	for tok := range idx.tokenIndex {
		idx.removePostingLocked(tok, fid)
	}
}

func (idx *Index) removePostingLocked(tok string, fid FileID) {
	postings := idx.tokenIndex[tok]
	for i, p := range postings {
		if p.FileID == fid {
			postings = append(postings[:i], postings[i+1:]...)
			break
		}
	}
	if len(postings) == 0 {
		delete(idx.tokenIndex, tok)
		return
	}
	idx.tokenIndex[tok] = postings
}

func insertPostingSorted(postings []Posting, p Posting) []Posting {
	i := sort.Search(len(postings), func(i int) bool { return postings[i].FileID >= p.FileID })
	if i < len(postings) && postings[i].FileID == p.FileID {
		postings[i] = p
		return postings
	}
	postings = append(postings, Posting{})
	copy(postings[i+1:], postings[i:])
	postings[i] = p
	return postings
}
