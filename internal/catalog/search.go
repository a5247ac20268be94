package catalog

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"
)

// DefaultCutoff is the minimum score FuzzySearch keeps.
const DefaultCutoff = 0.4

// SearchOptions restricts and tunes FuzzySearch.
type SearchOptions struct {
	// Repositories limits the search to these repository names.
	Repositories []string
	// Cutoff drops matches scoring below it. Zero means DefaultCutoff;
	// a negative value keeps every candidate.
	Cutoff float64
}

// Match is one FuzzySearch result.
type Match struct {
	Name       string  `json:"name"`
	Repository string  `json:"repository"`
	Script     string  `json:"script"`
	Score      float64 `json:"score"`
}

var folder = cases.Fold()

// FuzzySearch ranks scripts by how well their bare name matches query.
// Results are sorted by descending score; equal scores keep catalog order.
func (c *Catalog) FuzzySearch(query string, opts SearchOptions) []Match {
	cutoff := opts.Cutoff
	if cutoff == 0 {
		cutoff = DefaultCutoff
	}

	var matches []Match
	for _, s := range c.Scripts(opts.Repositories...) {
		score := Score(query, s.Name)
		if score < cutoff {
			continue
		}
		matches = append(matches, Match{
			Name:       s.QualifiedName(),
			Repository: s.Repository,
			Script:     s.Name,
			Score:      score,
		})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return matches
}

// Score rates name against query on a 0..1 scale, rounded to three decimals.
// Case is folded first. A query contained in the name scores
// 0.9 + 0.1*len(query)/len(name); anything else scores the normalized edit
// similarity of the two strings.
func Score(query, name string) float64 {
	q := folder.String(query)
	n := folder.String(name)

	var score float64
	switch {
	case n == "":
		if q == "" {
			score = 1
		}
	case strings.Contains(n, q):
		score = 0.9 + 0.1*float64(utf8.RuneCountInString(q))/float64(utf8.RuneCountInString(n))
	default:
		score = levenshtein.Similarity(q, n, nil)
	}
	return math.Round(score*1000) / 1000
}
