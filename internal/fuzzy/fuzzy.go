// Package fuzzy implements order-insensitive token-set string similarity
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Normalize lowercases s, replaces every non-alphanumeric rune with a
// space and collapses whitespace.
func Normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// Ratio returns the indel similarity of a and b in [0,100]: twice the
// longest common subsequence over the combined length, so a substitution
// costs two edits. Either string empty yields 0.
func Ratio(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if a == b {
		return 100
	}

	lensum := float64(len(ra) + len(rb))
	common := float64(2 * lcsLength(ra, rb))
	return int(math.RoundToEven(common / lensum * 100))
}

// lcsLength is the length of the longest common subsequence of a and b
func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// TokenSetRatio compares the sets of words in a and b. The shared words
// are compared against each side's shared-plus-remaining words and the
// highest pairwise ratio is returned.
func TokenSetRatio(a, b string) int {
	pa := Normalize(a)
	pb := Normalize(b)
	if pa == "" || pb == "" {
		return 0
	}

	setA := tokenSet(pa)
	setB := tokenSet(pb)

	var shared, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := Ratio(sect, combinedA)
	if r := Ratio(sect, combinedB); r > best {
		best = r
	}
	if r := Ratio(combinedA, combinedB); r > best {
		best = r
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}
