package content

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/standardbeagle/codelens/internal/tokenize"
)

// Mode selects the retrieval semantics for Search, per spec.md §4.3.
type Mode int

const (
	ModeOR Mode = iota
	ModeAND
	ModePhrase
	ModeRegex
)

// Query describes a single content-index search.
type Query struct {
	Terms        []string // comma-split exact tokens (OR/AND/substring modes)
	Phrase       string   // raw phrase text (ModePhrase)
	Pattern      string   // regex source (ModeRegex)
	Mode         Mode
	Substring    *bool // nil = unspecified; see resolveSubstring
	Ext          string
	Dir          string
	ExcludeDirs  []string
	ExcludePaths []string
	MaxResults   int
	CountOnly    bool
	ShowLines    bool
	ContextLines int
}

// LineGroup is a run of consecutive matched/context lines for one file.
type LineGroup struct {
	StartLine    int
	Lines        []string
	MatchIndices []int
}

// FileResult is one matched file plus ranking and optional line detail.
type FileResult struct {
	Path          string
	Score         float64
	Occurrences   int
	TermsMatched  int
	MatchedTokens []string // the actual terms matched, for budget.CapMatchedTokens
	Lines         []LineGroup
}

// Result is the outcome of a Search call.
type Result struct {
	Files      []FileResult
	TotalFiles int
	Warnings   []string
}

// resolveSubstring implements spec.md §4.3's auto-disable rule: substring
// is mutually exclusive with regex/phrase only when explicitly requested;
// left unspecified, it is silently disabled for those modes.
func (q Query) resolveSubstring() bool {
	if q.Substring != nil {
		return *q.Substring
	}
	return q.Mode != ModeRegex && q.Mode != ModePhrase
}

// Search executes q against idx and returns a ranked Result.
func (idx *Index) Search(q Query) (Result, error) {
	switch q.Mode {
	case ModeRegex:
		return idx.searchRegex(q)
	case ModePhrase:
		return idx.searchPhrase(q)
	default:
		terms := nonEmpty(q.Terms)
		if len(terms) == 0 {
			return Result{}, errors.New("No search terms provided")
		}
		return idx.searchTerms(q, terms)
	}
}

func nonEmpty(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// matchedFile tracks per-term hit data for one file while scoring.
type matchedFile struct {
	fid          FileID
	occurrences  int
	termsMatched map[string]struct{}
	lineHits     map[int32]struct{} // union of all matched lines, for showLines
}

func (idx *Index) searchTerms(q Query, terms []string) (Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	useSubstring := q.resolveSubstring()
	var warnings []string

	perTerm := make([]map[FileID]*matchedFile, len(terms))
	for i, term := range terms {
		lower := strings.ToLower(term)
		perTerm[i] = make(map[FileID]*matchedFile)
		if useSubstring {
			if len(lower) < 3 {
				warnings = append(warnings, shortTermWarning(lower))
			}
			candidates := idx.substringTokenCandidatesLocked(lower)
			for _, tok := range candidates {
				idx.accumulatePostingsLocked(tok, perTerm[i])
			}
		} else {
			idx.accumulatePostingsLocked(lower, perTerm[i])
		}
	}

	var fids map[FileID]struct{}
	switch q.Mode {
	case ModeAND:
		fids = intersectKeys(perTerm)
	default: // OR
		fids = unionKeys(perTerm)
	}

	merged := make(map[FileID]*matchedFile, len(fids))
	for fid := range fids {
		mf := &matchedFile{fid: fid, termsMatched: make(map[string]struct{}), lineHits: make(map[int32]struct{})}
		for i, m := range perTerm {
			if hit, ok := m[fid]; ok {
				mf.occurrences += hit.occurrences
				mf.termsMatched[terms[i]] = struct{}{}
				for l := range hit.lineHits {
					mf.lineHits[l] = struct{}{}
				}
			}
		}
		merged[fid] = mf
	}

	n := idx.liveFileCountLocked()
	results := idx.rankAndFilterLocked(q, merged, terms, n)
	return idx.finalize(q, results, warnings)
}

func shortTermWarning(term string) string {
	return "substring term \"" + term + "\" is shorter than 3 characters; results may be broad"
}

func (idx *Index) accumulatePostingsLocked(tok string, dst map[FileID]*matchedFile) {
	for _, p := range idx.tokenIndex[tok] {
		if idx.files[p.FileID] == "" {
			continue
		}
		mf, ok := dst[p.FileID]
		if !ok {
			mf = &matchedFile{fid: p.FileID, termsMatched: make(map[string]struct{}), lineHits: make(map[int32]struct{})}
			dst[p.FileID] = mf
		}
		mf.occurrences += len(p.Lines)
		for _, l := range p.Lines {
			mf.lineHits[l] = struct{}{}
		}
	}
}

func intersectKeys(perTerm []map[FileID]*matchedFile) map[FileID]struct{} {
	if len(perTerm) == 0 {
		return nil
	}
	out := make(map[FileID]struct{})
	for fid := range perTerm[0] {
		out[fid] = struct{}{}
	}
	for _, m := range perTerm[1:] {
		for fid := range out {
			if _, ok := m[fid]; !ok {
				delete(out, fid)
			}
		}
	}
	return out
}

func unionKeys(perTerm []map[FileID]*matchedFile) map[FileID]struct{} {
	out := make(map[FileID]struct{})
	for _, m := range perTerm {
		for fid := range m {
			out[fid] = struct{}{}
		}
	}
	return out
}

func (idx *Index) liveFileCountLocked() int {
	n := 0
	for _, p := range idx.files {
		if p != "" {
			n++
		}
	}
	return n
}

// rankAndFilterLocked applies extension/dir/exclude filters and computes
// TF-IDF scores (OR/AND) per spec.md §4.3. Callers must hold idx.mu.
func (idx *Index) rankAndFilterLocked(q Query, merged map[FileID]*matchedFile, terms []string, n int) []FileResult {
	df := make(map[string]int)
	for _, term := range terms {
		lower := strings.ToLower(term)
		count := 0
		for _, p := range idx.tokenIndex[lower] {
			if idx.files[p.FileID] != "" {
				count++
			}
		}
		df[lower] = count
	}

	out := make([]FileResult, 0, len(merged))
	for fid, mf := range merged {
		path := idx.files[fid]
		if path == "" {
			continue
		}
		if !idx.passesFiltersLocked(q, path) {
			continue
		}
		score := 0.0
		matched := make([]string, 0, len(mf.termsMatched))
		for term := range mf.termsMatched {
			if term != "_" { // regex-mode sentinel, not a real term
				matched = append(matched, term)
			}
			lower := strings.ToLower(term)
			tf := 0.0
			if idx.fileTokenCounts[fid] > 0 {
				tf = float64(mf.occurrences) / float64(idx.fileTokenCounts[fid])
			}
			idf := math.Log(float64(n+1)/float64(df[lower]+1)) + 1
			score += tf * idf
		}
		sort.Strings(matched)
		fr := FileResult{
			Path:          path,
			Score:         score,
			Occurrences:   mf.occurrences,
			TermsMatched:  len(mf.termsMatched),
			MatchedTokens: matched,
		}
		if q.ShowLines {
			fr.Lines = idx.buildLineGroups(path, mf.lineHits, q.ContextLines)
		}
		out = append(out, fr)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func (idx *Index) passesFiltersLocked(q Query, path string) bool {
	if q.Ext != "" {
		allowed := false
		ext := strings.ToLower(filepath.Ext(path))
		for _, e := range strings.Split(q.Ext, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e != "" && !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			if e == ext {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	if q.Dir != "" && !strings.HasPrefix(path+"/", strings.TrimSuffix(q.Dir, "/")+"/") {
		return false
	}
	for _, ex := range q.ExcludeDirs {
		if ex != "" && strings.Contains(path, ex) {
			return false
		}
	}
	for _, ex := range q.ExcludePaths {
		if ex != "" && strings.Contains(path, ex) {
			return false
		}
	}
	return true
}

func (idx *Index) buildLineGroups(relPath string, hits map[int32]struct{}, contextLines int) []LineGroup {
	if len(hits) == 0 {
		return nil
	}
	lineNums := make([]int, 0, len(hits))
	for l := range hits {
		lineNums = append(lineNums, int(l))
	}
	sort.Ints(lineNums)

	expanded := make(map[int]struct{}, len(lineNums))
	matchSet := make(map[int]struct{}, len(lineNums))
	for _, l := range lineNums {
		matchSet[l] = struct{}{}
		for d := -contextLines; d <= contextLines; d++ {
			if l+d > 0 {
				expanded[l+d] = struct{}{}
			}
		}
	}
	all := make([]int, 0, len(expanded))
	for l := range expanded {
		all = append(all, l)
	}
	sort.Ints(all)

	fileLines, _ := idx.readLinesLossy(relPath)

	var groups []LineGroup
	var cur *LineGroup
	for _, l := range all {
		if cur == nil || l != cur.StartLine+len(cur.Lines) {
			if cur != nil {
				groups = append(groups, *cur)
			}
			cur = &LineGroup{StartLine: l}
		}
		text := ""
		if l-1 >= 0 && l-1 < len(fileLines) {
			text = fileLines[l-1]
		}
		if _, isMatch := matchSet[l]; isMatch {
			cur.MatchIndices = append(cur.MatchIndices, len(cur.Lines))
		}
		cur.Lines = append(cur.Lines, text)
	}
	if cur != nil {
		groups = append(groups, *cur)
	}
	return groups
}

func (idx *Index) readLinesLossy(relPath string) ([]string, error) {
	full := filepath.Join(idx.Root, relPath)
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	return tokenize.Lines(tokenize.Decode(raw)), nil
}

func (idx *Index) finalize(q Query, results []FileResult, warnings []string) (Result, error) {
	total := len(results)
	if q.CountOnly {
		return Result{TotalFiles: total, Warnings: warnings}, nil
	}
	if q.MaxResults > 0 && len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}
	return Result{Files: results, TotalFiles: total, Warnings: warnings}, nil
}

func (idx *Index) searchRegex(q Query) (Result, error) {
	re, err := regexp.Compile(q.Pattern)
	if err != nil {
		return Result{}, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	merged := make(map[FileID]*matchedFile)
	for tok, postings := range idx.tokenIndex {
		if !re.MatchString(tok) {
			continue
		}
		idx.accumulatePostingsLockedInto(postings, merged)
	}
	n := idx.liveFileCountLocked()
	results := idx.rankAndFilterLocked(q, merged, []string{q.Pattern}, n)
	return idx.finalize(q, results, nil)
}

func (idx *Index) accumulatePostingsLockedInto(postings []Posting, dst map[FileID]*matchedFile) {
	for _, p := range postings {
		if idx.files[p.FileID] == "" {
			continue
		}
		mf, ok := dst[p.FileID]
		if !ok {
			mf = &matchedFile{fid: p.FileID, termsMatched: map[string]struct{}{"_": {}}, lineHits: make(map[int32]struct{})}
			dst[p.FileID] = mf
		}
		mf.occurrences += len(p.Lines)
		for _, l := range p.Lines {
			mf.lineHits[l] = struct{}{}
		}
	}
}

func (idx *Index) searchPhrase(q Query) (Result, error) {
	phrase := strings.TrimSpace(q.Phrase)
	if phrase == "" {
		return Result{}, errors.New("No search terms provided")
	}
	toks := tokenize.Tokenize(phrase)
	terms := make([]string, 0, len(toks))
	for _, t := range toks {
		terms = append(terms, t.Text)
	}
	if len(terms) == 0 {
		return Result{}, errors.New("No search terms provided")
	}

	idx.mu.RLock()
	candidateFids := idx.phraseCandidatesLocked(terms)
	needsRawFilter := hasNonIdentifierChars(phrase)
	idx.mu.RUnlock()

	var results []FileResult
	for fid, occ := range candidateFids {
		path := idx.Path(fid)
		if path == "" {
			continue
		}
		if !idx.passesFiltersLockedPublic(q, path) {
			continue
		}
		if needsRawFilter {
			ok, err := idx.containsPhraseRaw(path, phrase)
			if err != nil || !ok {
				continue
			}
		}
		results = append(results, FileResult{Path: path, Occurrences: occ, TermsMatched: len(terms), MatchedTokens: terms})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Occurrences != results[j].Occurrences {
			return results[i].Occurrences > results[j].Occurrences
		}
		return results[i].Path < results[j].Path
	})
	return idx.finalize(q, results, nil)
}

func (idx *Index) passesFiltersLockedPublic(q Query, path string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.passesFiltersLocked(q, path)
}

// phraseCandidatesLocked AND-intersects files containing every phrase
// term, returning an approximate per-file occurrence count (minimum
// across terms). Callers must hold idx.mu.
func (idx *Index) phraseCandidatesLocked(terms []string) map[FileID]int {
	perTerm := make([]map[FileID]int, len(terms))
	for i, term := range terms {
		lower := strings.ToLower(term)
		m := make(map[FileID]int)
		for _, p := range idx.tokenIndex[lower] {
			if idx.files[p.FileID] != "" {
				m[p.FileID] = len(p.Lines)
			}
		}
		perTerm[i] = m
	}
	if len(perTerm) == 0 {
		return nil
	}
	out := make(map[FileID]int)
	for fid, c := range perTerm[0] {
		min := c
		ok := true
		for _, m := range perTerm[1:] {
			v, present := m[fid]
			if !present {
				ok = false
				break
			}
			if v < min {
				min = v
			}
		}
		if ok {
			out[fid] = min
		}
	}
	return out
}

func hasNonIdentifierChars(phrase string) bool {
	for _, r := range phrase {
		if isTokenRune(r) || r == ' ' {
			continue
		}
		return true
	}
	return false
}

func isTokenRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

func (idx *Index) containsPhraseRaw(relPath, phrase string) (bool, error) {
	full := filepath.Join(idx.Root, relPath)
	raw, err := os.ReadFile(full)
	if err != nil {
		return false, err
	}
	text := strings.ToLower(tokenize.Decode(raw))
	return strings.Contains(text, strings.ToLower(phrase)), nil
}
