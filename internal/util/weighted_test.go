package util

import "testing"

func TestPickWeightedSkipsZeroWeights(t *testing.T) {
	r := NewRand(3)
	for i := 0; i < 500; i++ {
		idx := PickWeighted(r, []int{0, 4, 0, 1})
		if idx != 1 && idx != 3 {
			t.Fatalf("picked zero-weight index %d", idx)
		}
	}
}

func TestPickWeightedSingleCandidate(t *testing.T) {
	r := NewRand(9)
	for i := 0; i < 50; i++ {
		if idx := PickWeighted(r, []int{0, 0, 7}); idx != 2 {
			t.Fatalf("expected index 2, got %d", idx)
		}
	}
}

func TestChanceBounds(t *testing.T) {
	r := NewRand(11)
	if Chance(r, 0) {
		t.Fatalf("Chance(0) must be false")
	}
	if !Chance(r, 100) {
		t.Fatalf("Chance(100) must be true")
	}
}
