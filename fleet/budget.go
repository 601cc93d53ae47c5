package fleet

import "time"

// Budget adapts a ship's per-tick queue operation allowance to the time its
// ticks actually take. The allowance doubles while ticks finish fast with
// work left over, and halves when they overrun.
type Budget struct {
	Ops int

	min     int
	max     int
	minTime time.Duration
	maxTime time.Duration
}

// NewBudget creates a budget starting at ops, clamped to [min, max].
func NewBudget(ops, min, max int, minTime, maxTime time.Duration) Budget {
	if ops < min {
		ops = min
	}
	if ops > max {
		ops = max
	}
	return Budget{Ops: ops, min: min, max: max, minTime: minTime, maxTime: maxTime}
}

// Adjust updates the allowance after a tick that took elapsed and left busy
// work behind. Reports whether the allowance changed and in which direction.
func (b *Budget) Adjust(elapsed time.Duration, busy bool) (changed, raised bool) {
	switch {
	case busy && elapsed < b.minTime && b.Ops < b.max:
		b.Ops *= 2
		if b.Ops > b.max {
			b.Ops = b.max
		}
		return true, true
	case elapsed > b.maxTime && b.Ops > b.min:
		b.Ops /= 2
		if b.Ops < b.min {
			b.Ops = b.min
		}
		return true, false
	}
	return false, false
}
