// Package levenshtein computes edit distances for domain typo suggestions.
package levenshtein

// Distance computes the Levenshtein edit distance between two strings,
// counted in runes. Memory use is O(min(m,n)).
func Distance(s, t string) int {
	a, b := []rune(s), []rune(t)
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) == 0 {
		return len(b)
	}

	row := make([]int, len(a)+1)
	for i := range row {
		row[i] = i
	}

	for j := 1; j <= len(b); j++ {
		diag := row[0]
		row[0] = j
		for i := 1; i <= len(a); i++ {
			above := row[i]
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[i] = min(row[i-1]+1, above+1, diag+cost)
			diag = above
		}
	}
	return row[len(a)]
}

// Within reports whether s and t are at most max edits apart.
// Strings whose lengths differ by more than max are rejected without
// computing the full distance.
func Within(s, t string, max int) bool {
	ls, lt := len([]rune(s)), len([]rune(t))
	if ls-lt > max || lt-ls > max {
		return false
	}
	return Distance(s, t) <= max
}
