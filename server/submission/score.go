package submission

import "math"

// Award computes the points for the next solve of a challenge. solveCount is
// the number of solves recorded before this one; the decay is geometric in
// solveCount/divisor and never drops below minPoints.
func Award(base, solveCount int, rate, divisor float64, minPoints int) int {
	if base <= 0 {
		return 0
	}
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	if divisor <= 0 {
		divisor = 1
	}

	points := int(math.Floor(float64(base) * math.Pow(rate, float64(solveCount)/divisor)))
	if points < minPoints {
		points = minPoints
	}
	return points
}

// AwardWithBonus adds the first-blood bonus on top of the decayed award. The
// bonus is additive after the floor, so a floored challenge still pays the
// full bonus to its first solver.
func AwardWithBonus(base, solveCount int, rate, divisor float64, minPoints int, firstBlood bool, bonus int) int {
	points := Award(base, solveCount, rate, divisor, minPoints)
	if firstBlood && bonus > 0 {
		points += bonus
	}
	return points
}
