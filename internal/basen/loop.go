package basen

// NewLoop returns a codec that repeatedly divides the digit array in place.
// It produces the same output as NewBigInt.
func NewLoop(a *Alphabet) Codec {
	return &codec{alphabet: a, repack: repackLoop}
}

func repackLoop(digits []int, dir direction, leadingZeros int, out []int) int {
	work := make([]int, len(digits))
	copy(work, digits)

	startAt := leadingZeros
	j := len(out)
	firstNonZero := j
	for startAt < len(work) && leadingZeros < j {
		mod := dir.divmod(work, startAt)
		if work[startAt] == 0 {
			startAt++
		}
		j--
		out[j] = mod
		if mod != 0 {
			firstNonZero = j
		}
	}
	return firstNonZero
}
