package fairness

import (
	"math"
	"math/rand"
	"testing"

	"github.com/dukerupert/chorewheel/internal/model"
)

func TestChooseEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if got := Choose(rng, nil, LoadMap{}); got != nil {
		t.Errorf("Choose(empty) = %v, want nil", got)
	}
}

func TestChooseSingleCandidate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	candidates := []model.User{{ID: 7, Username: "amy"}}
	got := Choose(rng, candidates, LoadMap{7: 100})
	if got == nil || got.ID != 7 {
		t.Fatalf("Choose(single) = %v, want user 7", got)
	}
}

func TestWeight(t *testing.T) {
	if w := Weight(0); w != 1.0 {
		t.Errorf("Weight(0) = %v, want 1.0", w)
	}
	if w := Weight(5); math.Abs(w-1.0/6.0) > 1e-12 {
		t.Errorf("Weight(5) = %v, want %v", w, 1.0/6.0)
	}
}

func TestChooseDeterministicWithSeed(t *testing.T) {
	candidates := []model.User{{ID: 1}, {ID: 2}, {ID: 3}}
	loads := LoadMap{1: 2, 2: 0, 3: 5}

	first := Choose(rand.New(rand.NewSource(42)), candidates, loads)
	second := Choose(rand.New(rand.NewSource(42)), candidates, loads)
	if first.ID != second.ID {
		t.Errorf("same seed picked %d then %d", first.ID, second.ID)
	}
}

func TestChooseFavorsLowerLoad(t *testing.T) {
	// Load 0 (weight 1.0) vs load 5 (weight ~0.1667): the idle child should
	// win roughly 6x as often. Verify the empirical ratio over many draws.
	candidates := []model.User{{ID: 1}, {ID: 2}}
	loads := LoadMap{1: 0, 2: 5}
	rng := rand.New(rand.NewSource(99))

	const draws = 20000
	wins := map[int64]int{}
	for i := 0; i < draws; i++ {
		wins[Choose(rng, candidates, loads).ID]++
	}

	if wins[1] <= wins[2] {
		t.Fatalf("load-0 child won %d draws, load-5 child won %d; expected strict majority", wins[1], wins[2])
	}
	ratio := float64(wins[1]) / float64(wins[2])
	if ratio < 4.5 || ratio > 7.5 {
		t.Errorf("win ratio = %.2f, want around 6.0", ratio)
	}
	if wins[2] == 0 {
		t.Error("heavily loaded child should retain non-zero probability")
	}
}

func TestIncrementShiftsWeights(t *testing.T) {
	loads := LoadMap{}
	loads.Increment(4)
	loads.Increment(4)
	if loads[4] != 2 {
		t.Errorf("loads[4] = %d, want 2", loads[4])
	}
	if loads[9] != 0 {
		t.Errorf("loads[9] = %d, want 0", loads[9])
	}
}
