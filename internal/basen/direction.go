package basen

import "math"

// direction describes a conversion between two radixes.
type direction struct {
	fromBase int
	toBase   int
	// ratio is log(fromBase) / log(toBase), the output digits per input digit.
	ratio float64
}

func newDirection(from, to int) direction {
	return direction{
		fromBase: from,
		toBase:   to,
		ratio:    math.Log(float64(from)) / math.Log(float64(to)),
	}
}

// approximateSize is an upper bound on the digit count needed to hold size
// digits of fromBase in toBase.
func (d direction) approximateSize(size int) int {
	return int(math.Ceil(float64(size)*d.ratio)) + 1
}

// divmod divides the big number digits[startAt:] by toBase in place and
// returns the remainder.
func (d direction) divmod(digits []int, startAt int) int {
	remaining := 0
	for i := startAt; i < len(digits); i++ {
		num := d.fromBase*remaining + digits[i]
		digits[i] = num / d.toBase
		remaining = num % d.toBase
	}
	return remaining
}
