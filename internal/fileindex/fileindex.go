// Package fileindex implements the file-name index (spec.md §4.2): an
// ordered sequence of file/directory entries supporting substring/regex/
// comma-OR basename queries with stem-based ranking.
package fileindex

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Entry is one file or directory record.
type Entry struct {
	Path     string // forward-slash relative path
	Size     int64
	Modified time.Time
	IsDir    bool
}

// Index is an ordered, queryable sequence of Entry.
type Index struct {
	Root       string
	Extensions []string
	entries    []Entry
}

// Build walks root, recording every file/dir whose extension (when it's
// a file) matches extensions (empty = all), filtered by excludeGlobs
// (doublestar patterns matched against the forward-slash relative path).
func Build(root string, extensions []string, excludeGlobs []string) (*Index, error) {
	canonicalRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	idx := &Index{Root: filepath.ToSlash(canonicalRoot), Extensions: normalize(extensions)}

	err = filepath.WalkDir(canonicalRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == canonicalRoot {
			return nil
		}
		rel, rerr := filepath.Rel(canonicalRoot, path)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.Name() == ".git" && d.IsDir() {
			return filepath.SkipDir
		}
		for _, g := range excludeGlobs {
			if ok, _ := doublestar.Match(g, rel); ok {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if !d.IsDir() && !idx.matchesExtension(rel) {
			return nil
		}
		info, ierr := d.Info()
		var size int64
		var mod time.Time
		if ierr == nil {
			size = info.Size()
			mod = info.ModTime()
		}
		idx.entries = append(idx.entries, Entry{Path: rel, Size: size, Modified: mod, IsDir: d.IsDir()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Entries returns every indexed file/dir record, in walk order.
func (idx *Index) Entries() []Entry {
	return idx.entries
}

func normalize(exts []string) []string {
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
	return out
}

func (idx *Index) matchesExtension(rel string) bool {
	if len(idx.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(rel))
	for _, e := range idx.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Query describes a single file-name lookup.
type Query struct {
	Pattern       string // comma-separated OR patterns
	Substring     bool
	Regex         bool
	CaseInsens    bool
	DirsOnly      bool
	FilesOnly     bool
	ExcludeGlobs  []string
	MaxResults    int
	CountOnly     bool
}

// Result is the outcome of a Search call.
type Result struct {
	Entries    []Entry
	TotalFound int
}

// Search ranks entries whose basename matches q.Pattern: exact stem
// match, then stem-prefix, then stem-contains; ties broken by shorter
// stem then alphabetical (spec.md §4.2).
func (idx *Index) Search(q Query) (Result, error) {
	var matchers []func(stem string) bool
	if q.Regex {
		flags := ""
		if q.CaseInsens {
			flags = "(?i)"
		}
		re, err := regexp.Compile(flags + q.Pattern)
		if err != nil {
			return Result{}, err
		}
		matchers = []func(string) bool{re.MatchString}
	} else {
		for _, p := range strings.Split(q.Pattern, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			needle := p
			if q.CaseInsens {
				needle = strings.ToLower(p)
			}
			matchers = append(matchers, func(stem string) bool {
				s := stem
				if q.CaseInsens {
					s = strings.ToLower(s)
				}
				return strings.Contains(s, needle)
			})
		}
	}

	type ranked struct {
		e        Entry
		rank     int // 0 = exact, 1 = prefix, 2 = contains
		stemLen  int
	}
	var out []ranked
	for _, e := range idx.entries {
		if q.DirsOnly && !e.IsDir {
			continue
		}
		if q.FilesOnly && e.IsDir {
			continue
		}
		if excluded(e.Path, q.ExcludeGlobs) {
			continue
		}
		base := filepath.Base(e.Path)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		matched := false
		for _, m := range matchers {
			if m(base) || m(stem) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		out = append(out, ranked{e: e, rank: rankOf(stem, q), stemLen: len(stem)})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].rank != out[j].rank {
			return out[i].rank < out[j].rank
		}
		if out[i].stemLen != out[j].stemLen {
			return out[i].stemLen < out[j].stemLen
		}
		return out[i].e.Path < out[j].e.Path
	})

	total := len(out)
	if q.CountOnly {
		return Result{TotalFound: total}, nil
	}
	entries := make([]Entry, 0, len(out))
	for _, r := range out {
		entries = append(entries, r.e)
	}
	if q.MaxResults > 0 && len(entries) > q.MaxResults {
		entries = entries[:q.MaxResults]
	}
	return Result{Entries: entries, TotalFound: total}, nil
}

func rankOf(stem string, q Query) int {
	s := stem
	p := q.Pattern
	if q.CaseInsens {
		s = strings.ToLower(s)
		p = strings.ToLower(p)
	}
	for _, term := range strings.Split(p, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if s == term {
			return 0
		}
	}
	for _, term := range strings.Split(p, ",") {
		term = strings.TrimSpace(term)
		if term != "" && strings.HasPrefix(s, term) {
			return 1
		}
	}
	return 2
}

func excluded(path string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, path); ok {
			return true
		}
	}
	return false
}
