package defindex

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/standardbeagle/codelens/internal/astparse"
	"github.com/standardbeagle/codelens/internal/tokenize"
)

// Query is one search_definitions request (spec.md §4.5).
type Query struct {
	Name         string
	NameRegex    bool
	Kind         astparse.Kind
	Attribute    string
	BaseType     string
	File         string
	Parent       string
	ContainsLine int // 0 = unset; requires File
	ExcludeDir   string

	IncludeBody       bool
	MaxBodyLines      int // 0 = unlimited
	MaxTotalBodyLines int // 0 = unlimited
	MaxResults        int // 0 = unlimited

	Audit           bool
	SuspiciousBytes int64

	SortBy        string // "" | "cyclomatic" | "cognitive" | "lines" | "params"
	MinCyclomatic int
	MinCognitive  int
	MinLines      int
}

// ResultEntry is one definition in a search_definitions response.
type ResultEntry struct {
	Definition
	Path        string
	Body        []string
	BodyOmitted bool
	BodyError   string
}

// AuditReport is the response to Query.Audit == true.
type AuditReport struct {
	TotalFiles       int
	FilesWithDefs    int
	FilesWithoutDefs int
	ReadErrorFiles   int
	NonUTF8Files     int
	Suspicious       []string
}

// Result is the outcome of a Search call.
type Result struct {
	Entries    []ResultEntry
	TotalFound int
	Audit      *AuditReport
}

var typeLevelKinds = map[astparse.Kind]bool{
	astparse.KindClass: true, astparse.KindInterface: true, astparse.KindStruct: true,
	astparse.KindRecord: true, astparse.KindEnum: true, astparse.KindTypeAlias: true,
	astparse.KindDelegate: true,
}

// Search implements spec.md §4.5's search_definitions semantics.
func (idx *Index) Search(q Query) (Result, error) {
	if q.ContainsLine != 0 && q.File == "" {
		return Result{}, fmt.Errorf("containsLine requires file")
	}
	if q.ContainsLine < 0 {
		return Result{}, fmt.Errorf("containsLine must be >= 1")
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if q.Audit {
		return Result{Audit: idx.auditLocked(q.SuspiciousBytes)}, nil
	}

	if q.SortBy != "" && idx.noStatsLoaded {
		return Result{}, fmt.Errorf("sortBy/min* filters require code stats, which this legacy index lacks")
	}

	candidates := idx.candidateSetLocked(q)

	type ranked struct {
		idx  int
		rank int
	}
	var out []ranked
	lname := strings.ToLower(q.Name)
	var nameRe *regexp.Regexp
	if q.NameRegex && q.Name != "" {
		re, err := regexp.Compile(q.Name)
		if err != nil {
			return Result{}, fmt.Errorf("invalid name regex: %w", err)
		}
		nameRe = re
	}

	for _, di := range candidates {
		d := idx.definitions[di]
		if d.Name == "" {
			continue // tombstoned
		}
		if !idx.passesFiltersLocked(di, q) {
			continue
		}
		rank := 2
		if q.Name != "" {
			if nameRe != nil {
				if !nameRe.MatchString(d.Name) {
					continue
				}
			} else {
				lower := strings.ToLower(d.Name)
				switch {
				case lower == lname:
					rank = 0
				case strings.HasPrefix(lower, lname):
					rank = 1
				case strings.Contains(lower, lname):
					rank = 2
				default:
					continue
				}
			}
		}
		out = append(out, ranked{idx: di, rank: rank})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := idx.definitions[out[i].idx], idx.definitions[out[j].idx]
		if out[i].rank != out[j].rank {
			return out[i].rank < out[j].rank
		}
		if q.SortBy != "" {
			if v := compareByStat(a.Stats, b.Stats, q.SortBy); v != 0 {
				return v > 0
			}
		}
		at, bt := typeLevelKinds[a.Kind], typeLevelKinds[b.Kind]
		if at != bt {
			return at
		}
		if len(a.Name) != len(b.Name) {
			return len(a.Name) < len(b.Name)
		}
		return a.Name < b.Name
	})

	total := len(out)
	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}

	entries := make([]ResultEntry, 0, len(out))
	var totalBodyLines int
	budgetExhausted := false
	for _, r := range out {
		d := idx.definitions[r.idx]
		entry := ResultEntry{Definition: d, Path: idx.files[d.FileID]}
		if q.IncludeBody {
			if budgetExhausted {
				entry.BodyOmitted = true
			} else {
				lines, err := idx.readBodyLocked(d, q.MaxBodyLines)
				if err != nil {
					entry.BodyError = err.Error()
				} else {
					entry.Body = lines
					totalBodyLines += len(lines)
					if q.MaxTotalBodyLines > 0 && totalBodyLines >= q.MaxTotalBodyLines {
						budgetExhausted = true
					}
				}
			}
		}
		entries = append(entries, entry)
	}

	return Result{Entries: entries, TotalFound: total}, nil
}

func compareByStat(a, b astparse.CodeStats, sortBy string) int {
	var av, bv int
	switch sortBy {
	case "cyclomatic":
		av, bv = a.Cyclomatic, b.Cyclomatic
	case "cognitive":
		av, bv = a.Cognitive, b.Cognitive
	case "lines":
		av, bv = a.Lines, b.Lines
	case "params":
		av, bv = a.Params, b.Params
	}
	return av - bv
}

// candidateSetLocked narrows the search to the cheapest available
// secondary index before the full filter/rank pass.
func (idx *Index) candidateSetLocked(q Query) []int {
	switch {
	case q.Kind != "":
		return append([]int(nil), idx.byKind[q.Kind]...)
	case q.Attribute != "":
		return append([]int(nil), idx.byAttribute[strings.ToLower(q.Attribute)]...)
	case q.BaseType != "":
		return append([]int(nil), idx.byBaseType[strings.ToLower(q.BaseType)]...)
	case q.Parent != "":
		return append([]int(nil), idx.byParent[strings.ToLower(q.Parent)]...)
	case q.File != "":
		fid, ok := idx.pathToID[normalizePath(q.File)]
		if !ok {
			return nil
		}
		return append([]int(nil), idx.byFile[fid]...)
	default:
		all := make([]int, len(idx.definitions))
		for i := range all {
			all[i] = i
		}
		return all
	}
}

func (idx *Index) passesFiltersLocked(di int, q Query) bool {
	d := idx.definitions[di]
	if q.File != "" && idx.files[d.FileID] != normalizePath(q.File) {
		return false
	}
	if q.ContainsLine > 0 && !(d.LineStart <= q.ContainsLine && q.ContainsLine <= d.LineEnd) {
		return false
	}
	if q.ExcludeDir != "" && strings.Contains(idx.files[d.FileID], q.ExcludeDir) {
		return false
	}
	if q.MinCyclomatic > 0 && d.Stats.Cyclomatic < q.MinCyclomatic {
		return false
	}
	if q.MinCognitive > 0 && d.Stats.Cognitive < q.MinCognitive {
		return false
	}
	if q.MinLines > 0 && d.Stats.Lines < q.MinLines {
		return false
	}
	return true
}

func normalizePath(p string) string {
	return filepath.ToSlash(strings.TrimPrefix(p, "./"))
}

func (idx *Index) readBodyLocked(d Definition, maxLines int) ([]string, error) {
	path := idx.files[d.FileID]
	raw, err := os.ReadFile(filepath.Join(idx.Root, filepath.FromSlash(path)))
	if err != nil {
		return nil, err
	}
	text := tokenize.Decode(raw)
	sc := bufio.NewScanner(bytes.NewReader([]byte(text)))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	var out []string
	line := 0
	for sc.Scan() {
		line++
		if line < d.LineStart {
			continue
		}
		if line > d.LineEnd {
			break
		}
		out = append(out, sc.Text())
		if maxLines > 0 && len(out) >= maxLines {
			break
		}
	}
	return out, nil
}

func (idx *Index) auditLocked(suspiciousBytes int64) *AuditReport {
	report := &AuditReport{}
	for fid, path := range idx.files {
		if path == "" {
			continue
		}
		report.TotalFiles++
		if errMsg, isErr := idx.readErrors[path]; isErr && errMsg != "" {
			report.ReadErrorFiles++
			continue
		}
		if idx.nonUTF8Files[path] {
			report.NonUTF8Files++
		}
		defs := idx.byFile[FileID(fid)]
		live := 0
		for _, di := range defs {
			if idx.definitions[di].Name != "" {
				live++
			}
		}
		if live > 0 {
			report.FilesWithDefs++
			continue
		}
		report.FilesWithoutDefs++
		if suspiciousBytes > 0 {
			if info, err := os.Stat(filepath.Join(idx.Root, filepath.FromSlash(path))); err == nil && info.Size() >= suspiciousBytes {
				report.Suspicious = append(report.Suspicious, path)
			}
		}
	}
	return report
}
