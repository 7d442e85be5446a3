package cards

// Rand is the slice of a seeded generator the ledger and combat code
// consume. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// WeightedIndex picks an index with probability proportional to its
// weight, consuming exactly one draw. It returns false without consuming
// anything when every weight is zero.
func WeightedIndex(rng Rand, weights []uint32) (int, bool) {
	var total int
	for _, w := range weights {
		total += int(w)
	}
	if total == 0 {
		return 0, false
	}
	r := rng.IntN(total)
	for i, w := range weights {
		if r < int(w) {
			return i, true
		}
		r -= int(w)
	}
	// unreachable while weights are unchanged
	return len(weights) - 1, true
}
