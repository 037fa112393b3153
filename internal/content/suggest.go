package content

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"
)

// Suggestion is a best-effort "did you mean" hint for a zero-result
// query, surfaced via summary.warnings. Not part of the spec's core
// query contract; an additive enrichment grounded in the teacher's
// semantic fuzzy-matching package (see DESIGN.md).
type Suggestion struct {
	Term  string
	Token string
	Score float64
}

// Suggest returns up to max candidate tokens close to term, ranked by
// Jaro-Winkler similarity, falling back to stemmed-token overlap when no
// similarity candidate clears the threshold.
func (idx *Index) Suggest(term string, max int) []Suggestion {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	lower := strings.ToLower(term)
	var out []Suggestion
	for tok := range idx.tokenIndex {
		score, err := edlib.StringsSimilarity(lower, tok, edlib.JaroWinkler)
		if err != nil || score < 0.82 {
			continue
		}
		out = append(out, Suggestion{Term: term, Token: tok, Score: float64(score)})
	}
	if len(out) == 0 {
		stem := porter2.Stem(lower)
		for tok := range idx.tokenIndex {
			if porter2.Stem(tok) == stem && tok != lower {
				out = append(out, Suggestion{Term: term, Token: tok, Score: 0.5})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Token < out[j].Token
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
