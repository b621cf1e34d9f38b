// Package util holds the randomness and logging helpers shared by every
// package.
package util

import (
	"math/rand"
	"sort"
)

// PickWeighted returns an index of weights with probability proportional to
// its weight. Non-positive weights are never picked unless every weight is,
// in which case the pick is uniform.
func PickWeighted(r *rand.Rand, weights []int) int {
	cumulative := make([]int, len(weights))
	total := 0
	for i, w := range weights {
		if w > 0 {
			total += w
		}
		cumulative[i] = total
	}
	if total == 0 {
		return r.Intn(len(weights))
	}
	roll := r.Intn(total)
	return sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > roll })
}

// Chance reports true with the given percent probability.
func Chance(r *rand.Rand, percent int) bool {
	switch {
	case percent <= 0:
		return false
	case percent >= 100:
		return true
	}
	return r.Intn(100) < percent
}
