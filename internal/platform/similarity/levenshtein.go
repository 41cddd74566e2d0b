package similarity

import (
	"sort"
	"strings"
)

// Scorer rates how likely two normalized name strings refer to the same
// person on a 0..1 scale. The identity resolver treats the implementation
// as opaque so the algorithm and thresholds can change independently.
type Scorer interface {
	Score(a, b string) float64
}

// LevenshteinScorer scores names by normalized edit distance. Token order
// is canonicalized first so "Endo Wataru" and "Wataru Endo" score 1.0.
type LevenshteinScorer struct{}

func NewLevenshteinScorer() LevenshteinScorer {
	return LevenshteinScorer{}
}

func (LevenshteinScorer) Score(a, b string) float64 {
	a = tokenSort(a)
	b = tokenSort(b)
	if a == "" && b == "" {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func tokenSort(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(values ...int) int {
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}
