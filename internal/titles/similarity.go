package titles

import "strings"

const (
	// DuplicateThreshold is the default score at or above which two titles
	// name the same commemoration.
	DuplicateThreshold = 0.8

	// minComparableLen guards against short common phrases ("saint peter")
	// producing false merges.
	minComparableLen = 10
)

// Similarity scores two normalized titles in [0,1] as the mean of token-set
// overlap and character-bigram Dice coefficient. Titles shorter than ten
// characters always score 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if len(a) < minComparableLen || len(b) < minComparableLen {
		return 0
	}
	if a == b {
		return 1
	}
	return (tokenScore(a, b) + diceScore(a, b)) / 2
}

// IsDuplicate normalizes both titles and compares their similarity with threshold.
func IsDuplicate(a, b string, threshold float64) bool {
	return Similarity(Normalize(a), Normalize(b)) >= threshold
}

// tokenScore is |A ∩ B| / max(|A|, |B|) over whitespace-delimited token sets.
func tokenScore(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(setA), len(setB)))
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// diceScore is the bigram Dice coefficient with whitespace removed and
// bigrams counted as a multiset.
func diceScore(a, b string) float64 {
	bigramsA := bigrams(strings.Join(strings.Fields(a), ""))
	bigramsB := bigrams(strings.Join(strings.Fields(b), ""))
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0
	}

	counts := make(map[string]int, len(bigramsA))
	for _, bg := range bigramsA {
		counts[bg]++
	}
	shared := 0
	for _, bg := range bigramsB {
		if counts[bg] > 0 {
			counts[bg]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(bigramsA)+len(bigramsB))
}

func bigrams(s string) []string {
	r := []rune(s)
	if len(r) < 2 {
		return nil
	}
	out := make([]string, 0, len(r)-1)
	for i := 0; i+1 < len(r); i++ {
		out = append(out, string(r[i:i+2]))
	}
	return out
}
