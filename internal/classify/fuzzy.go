package classify

import (
	"github.com/agext/levenshtein"
)

// indel counts insertions and deletions only: a substitution costs one of each.
var indel = levenshtein.NewParams().SubCost(2)

// Ratio is the normalized Indel similarity of a and b on a 0..100 scale.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	return ratioRunes(ra, rb)
}

func ratioRunes(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	d := levenshtein.Distance(string(a), string(b), indel)
	return 100 * (1 - float64(d)/float64(total))
}

// PartialRatio scores the best alignment of the shorter string inside the longer one:
// every full-length window of the longer string is compared, plus the shorter
// prefixes and suffixes that hang off either end.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	m, n := len(short), len(long)
	if m == 0 {
		if n == 0 {
			return 100
		}
		return 0
	}

	best := 0.0
	consider := func(window []rune) bool {
		if s := ratioRunes(short, window); s > best {
			best = s
		}
		return best == 100
	}
	for i := 1; i < m; i++ {
		if consider(long[:i]) {
			return best
		}
	}
	for i := 0; i+m <= n; i++ {
		if consider(long[i : i+m]) {
			return best
		}
	}
	for i := n - m + 1; i < n; i++ {
		if consider(long[i:]) {
			return best
		}
	}
	return best
}
