package content

import (
	"sort"
	"strings"
)

// sentinel pads short tokens so every token contributes at least one
// trigram (spec.md §4.4: "a sentinel prefix/suffix for boundary
// matching").
const sentinel = '\x01'

// Trigram maps each lowercase 3-gram of a padded token to the sorted set
// of token-ids whose token contains it. It is generation-locked to the
// Index it was built from: generation is the content-index generation the
// trigram was last rebuilt against.
type Trigram struct {
	tokens     []string
	trigramMap map[[3]byte][]int32
	generation uint64
}

// NewTrigram returns an empty Trigram at generation 0.
func NewTrigram() *Trigram {
	return &Trigram{trigramMap: make(map[[3]byte][]int32)}
}

// findCandidates returns the sorted, deduplicated token-ids that share
// every trigram of term (before literal verification). The term itself
// is not sentinel-padded, so a term found anywhere inside a token (not
// only at its boundaries) yields that token.
func (t *Trigram) findCandidates(term string) []int32 {
	var grams [][3]byte
	for i := 0; i+3 <= len(term); i++ {
		var g [3]byte
		copy(g[:], term[i:i+3])
		grams = append(grams, g)
	}
	if len(grams) == 0 {
		return nil
	}
	var cur []int32
	for i, g := range grams {
		list := t.trigramMap[g]
		if i == 0 {
			cur = append([]int32(nil), list...)
			continue
		}
		cur = intersectSortedInt32(cur, list)
		if len(cur) == 0 {
			return nil
		}
	}
	return cur
}

func trigramsOf(term string) [][3]byte {
	padded := string(sentinel) + term + string(sentinel)
	if len(padded) < 3 {
		return nil
	}
	var out [][3]byte
	for i := 0; i+3 <= len(padded); i++ {
		var g [3]byte
		copy(g[:], padded[i:i+3])
		out = append(out, g)
	}
	return out
}

func intersectSortedInt32(a, b []int32) []int32 {
	var out []int32
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// buildTrigramLocked assigns fresh token-ids over every unique token
// currently in idx and emits each token's trigrams. Rebuild is
// idempotent: the same token set always produces equal maps (spec.md
// §8). Callers must already hold idx.mu (at least for reading).
func (idx *Index) buildTrigramLocked() *Trigram {
	tokens := make([]string, 0, len(idx.tokenIndex))
	for tok := range idx.tokenIndex {
		tokens = append(tokens, tok)
	}
	gen := idx.generation.Load()

	sort.Strings(tokens)

	tm := make(map[[3]byte][]int32)
	for id, tok := range tokens {
		for _, g := range trigramsOf(tok) {
			tm[g] = append(tm[g], int32(id))
		}
	}
	for g := range tm {
		sort.Slice(tm[g], func(i, j int) bool { return tm[g][i] < tm[g][j] })
	}
	return &Trigram{tokens: tokens, trigramMap: tm, generation: gen}
}

// currentTrigramLocked returns a trigram index guaranteed to be built
// from a generation no older than idx's current committed generation,
// rebuilding under double-checked locking when dirty (spec.md §4.4).
// Callers must already hold idx.mu (at least for reading); the rebuild
// itself only needs that same read access, so it never upgrades to a
// write lock on the content index.
func (idx *Index) currentTrigramLocked() *Trigram {
	t := idx.trigram.Load()
	if t != nil && t.generation == idx.generation.Load() {
		return t
	}
	idx.trigramBuildMu.Lock()
	defer idx.trigramBuildMu.Unlock()
	t = idx.trigram.Load()
	if t != nil && t.generation == idx.generation.Load() {
		return t
	}
	fresh := idx.buildTrigramLocked()
	idx.trigram.Store(fresh)
	return fresh
}

// Warmup touches every trigram posting list and token string to fault OS
// pages into resident memory (spec.md §4.4). Idempotent, safe on an empty
// index.
func (idx *Index) Warmup() (tokens int, trigrams int) {
	idx.mu.RLock()
	t := idx.currentTrigramLocked()
	idx.mu.RUnlock()
	sum := 0
	for _, tok := range t.tokens {
		sum += len(tok)
	}
	postings := 0
	for _, ids := range t.trigramMap {
		postings += len(ids)
	}
	return len(t.tokens), len(t.trigramMap)
}

// substringTokenCandidatesLocked returns the token strings that
// literally contain term (case-insensitive), found via trigram
// intersection for term of length >= 3, or a full token scan for
// shorter terms. Callers must hold idx.mu for reading (the trigram
// itself is rebuilt out-of-line, see currentTrigramLocked).
func (idx *Index) substringTokenCandidatesLocked(term string) []string {
	if len(term) < 3 {
		var out []string
		for tok := range idx.tokenIndex {
			if strings.Contains(tok, term) {
				out = append(out, tok)
			}
		}
		return out
	}
	t := idx.currentTrigramLocked()
	ids := t.findCandidates(term)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if int(id) >= len(t.tokens) {
			continue
		}
		tok := t.tokens[id]
		if strings.Contains(tok, term) {
			out = append(out, tok)
		}
	}
	return out
}
