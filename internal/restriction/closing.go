package restriction

import "math/rand"

const (
	secondsPerHour = 3600
	secondsPerDay  = 24 * secondsPerHour
)

// OverlapWithClosingHours returns how many seconds of the interval
// [startSec, endSec) fall into the daily closing window. Times are seconds
// since simulation start, day 0 beginning at midnight.
func (r Restriction) OverlapWithClosingHours(startSec, endSec int) int {
	ch, ok := r.ClosingHours()
	if !ok || endSec <= startSec {
		return 0
	}
	start := ch.Start * secondsPerHour
	end := ch.End * secondsPerHour
	if end <= start {
		end += secondsPerDay
	}

	total := 0
	for day := floorDiv(startSec, secondsPerDay) - 1; day <= floorDiv(endSec-1, secondsPerDay); day++ {
		base := day * secondsPerDay
		lo := max(startSec, base+start)
		hi := min(endSec, base+end)
		if hi > lo {
			total += hi - lo
		}
	}
	return total
}

// DetermineMask draws the mask a person wears under the compliance rates.
// Rates are accumulated in the order CLOTH, SURGICAL, N95; the remainder
// wears no mask.
func (r Restriction) DetermineMask(rnd *rand.Rand) Mask {
	if len(r.a.Masks) == 0 {
		return MaskNone
	}
	p := rnd.Float64()
	cum := 0.0
	for _, m := range maskOrder {
		rate, ok := r.a.Masks[m]
		if !ok {
			continue
		}
		cum += rate
		if p < cum {
			return m
		}
	}
	return MaskNone
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
