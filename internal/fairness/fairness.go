// Package fairness picks assignees with probability inversely proportional
// to their current workload, so lightly loaded children are favored without
// ever excluding anyone.
package fairness

import (
	"math/rand"

	"github.com/dukerupert/chorewheel/internal/model"
)

// LoadMap tracks per-child load counts for a single scheduling pass. It is
// seeded once from the store and incremented in-process after every
// successful assignment creation, so later picks in the same pass see
// assignments already made.
type LoadMap map[int64]int

// Increment records one more assignment for the given child.
func (m LoadMap) Increment(userID int64) {
	m[userID]++
}

// Weight returns the selection weight for a child with the given load.
// Zero load gives weight 1; heavier loads shrink the weight but never
// reach zero.
func Weight(load int) float64 {
	return 1.0 / float64(load+1)
}

// Choose returns one candidate selected by weighted random sampling over
// cumulative weights, or nil when candidates is empty. The caller supplies
// the random source so passes can be made deterministic.
func Choose(rng *rand.Rand, candidates []model.User, loads LoadMap) *model.User {
	if len(candidates) == 0 {
		return nil
	}

	cumulative := make([]float64, len(candidates))
	total := 0.0
	for i, c := range candidates {
		total += Weight(loads[c.ID])
		cumulative[i] = total
	}

	r := rng.Float64() * total
	for i := range cumulative {
		if r < cumulative[i] {
			return &candidates[i]
		}
	}
	// Float round-off can leave r == total; fall back to the last candidate.
	return &candidates[len(candidates)-1]
}
