package search

import (
	"math/rand"
	"sort"
)

type Mode int

const (
	ModeRandom          Mode = 1
	ModePriceAscending  Mode = 2
	ModeStockDescending Mode = 3
)

// Rank returns a reordered copy of results. Unknown modes rank by price.
//
// Stock-descending sorts ascending and then reverses the whole list, so equal
// stocks come out in reverse of their input order.
func Rank(results []Result, mode Mode, rng *rand.Rand) []Result {
	out := make([]Result, len(results))
	copy(out, results)

	switch mode {
	case ModeRandom:
		swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
		if rng != nil {
			rng.Shuffle(len(out), swap)
		} else {
			rand.Shuffle(len(out), swap)
		}
	case ModeStockDescending:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Remaining < out[j].Remaining })
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	}
	return out
}
