package basen

import "math/big"

// NewBigInt returns a codec that converts through a single big integer.
func NewBigInt(a *Alphabet) Codec {
	return &codec{alphabet: a, repack: repackBigInt}
}

func repackBigInt(digits []int, dir direction, leadingZeros int, out []int) int {
	from := big.NewInt(int64(dir.fromBase))
	to := big.NewInt(int64(dir.toBase))

	acc := new(big.Int)
	for _, d := range digits[leadingZeros:] {
		acc.Mul(acc, from)
		acc.Add(acc, big.NewInt(int64(d)))
	}

	j := len(out)
	firstNonZero := j
	mod := new(big.Int)
	for acc.Sign() > 0 {
		acc.DivMod(acc, to, mod)
		j--
		out[j] = int(mod.Int64())
		if out[j] != 0 {
			firstNonZero = j
		}
	}
	return firstNonZero
}
