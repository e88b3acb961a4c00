package submission

import "testing"

func TestAwardDecay(t *testing.T) {
	// base=500, rate=0.5, divisor=10, min=50
	cases := []struct {
		solveCount int
		want       int
	}{
		{0, 500},   // 500 * 0.5^0
		{10, 250},  // 500 * 0.5^1
		{20, 125},  // 500 * 0.5^2
		{100, 50},  // floor dominates: 500 * 0.5^10 < 50
		{1000, 50}, // still floored
	}
	for _, tc := range cases {
		if got := Award(500, tc.solveCount, 0.5, 10, 50); got != tc.want {
			t.Errorf("Award(500, %d, 0.5, 10, 50) = %d, want %d", tc.solveCount, got, tc.want)
		}
	}
}

func TestAwardFloorsFractionalPoints(t *testing.T) {
	// 300 * 0.5^(5/10) = 212.13..., floored
	if got := Award(300, 5, 0.5, 10, 0); got != 212 {
		t.Errorf("Award(300, 5, 0.5, 10, 0) = %d, want 212", got)
	}
}

func TestAwardDegenerateInputs(t *testing.T) {
	if got := Award(0, 3, 0.5, 10, 50); got != 0 {
		t.Errorf("zero base awarded %d, want 0", got)
	}
	// Out-of-range decay parameters degrade to no decay, never panic.
	if got := Award(500, 10, 0, 0, 50); got != 500 {
		t.Errorf("Award with degenerate rate/divisor = %d, want 500", got)
	}
}

func TestAwardWithBonusAdditiveAboveFloor(t *testing.T) {
	// Decayed value is below the floor; the bonus lands on top of the
	// floored award, not inside it.
	if got := AwardWithBonus(500, 100, 0.5, 10, 50, true, 25); got != 75 {
		t.Errorf("floored first blood = %d, want 75", got)
	}
	if got := AwardWithBonus(500, 0, 0.5, 10, 50, true, 25); got != 525 {
		t.Errorf("first blood = %d, want 525", got)
	}
	if got := AwardWithBonus(500, 0, 0.5, 10, 50, false, 25); got != 500 {
		t.Errorf("non-first-blood got a bonus: %d, want 500", got)
	}
}
