package diff

// Similarity returns the longest-common-subsequence ratio of two strings,
// in [0,1]. Two empty inputs are identical (1.0); exactly one empty input
// shares nothing (0.0).
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ra, rb := []rune(a), []rune(b)
	lcs := lcsLength(ra, rb)
	return float64(2*lcs) / float64(len(ra)+len(rb))
}

// lcsLength computes the LCS length with a two-row table.
func lcsLength[T comparable](a, b []T) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
