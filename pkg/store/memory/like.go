package memory

import (
	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// matchLike reports whether s matches a SQL LIKE pattern, ignoring case.
// '%' matches any run of characters and '_' matches exactly one. There is no
// escape character.
func matchLike(pattern, s string) bool {
	p := []rune(folder.String(pattern))
	r := []rune(folder.String(s))

	// Iterative wildcard match with backtracking to the last '%'.
	pi, ri := 0, 0
	starP, starR := -1, 0
	for ri < len(r) {
		switch {
		case pi < len(p) && p[pi] == '%':
			starP = pi
			starR = ri
			pi++
		case pi < len(p) && (p[pi] == '_' || p[pi] == r[ri]):
			pi++
			ri++
		case starP >= 0:
			pi = starP + 1
			starR++
			ri = starR
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}
