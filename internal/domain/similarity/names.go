package similarity

import "strings"

// TokenMatchThreshold is the minimum similarity for two name tokens to pair
const TokenMatchThreshold = 0.80

// NameSimilarity compares two display names independent of word order.
// "Silva Ana" and "Ana Silva" score 1.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeText(a), NormalizeText(b)
	whole := normalizedSimilarity(na, nb)

	ta, tb := strings.Fields(na), strings.Fields(nb)
	if len(ta) < 2 && len(tb) < 2 {
		return whole
	}
	return max(whole, tokenSimilarity(ta, tb))
}

// tokenSimilarity pairs tokens greedily by best similarity. Unpaired
// tokens count as zero against the longer name.
func tokenSimilarity(ta, tb []string) float64 {
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}

	used := make([]bool, len(tb))
	var total float64
	for _, x := range ta {
		best, bestIdx := 0.0, -1
		for j, y := range tb {
			if used[j] {
				continue
			}
			if s := normalizedSimilarity(x, y); s > best {
				best, bestIdx = s, j
			}
		}
		if bestIdx >= 0 && best >= TokenMatchThreshold {
			used[bestIdx] = true
			total += best
		}
	}

	return total / float64(len(tb))
}
