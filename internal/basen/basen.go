// Package basen converts byte slices to and from text in an arbitrary radix.
// Leading zero bytes are kept as leading zero digits, so the encoding is
// length preserving in that respect.
package basen

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
)

var (
	ErrInvalidCharacter = errors.New("character not in alphabet")
	ErrChecksum         = errors.New("checksum does not match")
)

// Codec encodes bytes to text and back.
type Codec interface {
	Encode(data []byte) string
	Decode(text string) ([]byte, error)
	Alphabet() *Alphabet
}

// repacker moves the significant digits into the tail of out and returns the
// index of the first non-zero digit written.
type repacker func(digits []int, dir direction, leadingZeros int, out []int) int

type codec struct {
	alphabet *Alphabet
	repack   repacker
}

// Base62 is the codec used for share codes, keys and content hashes.
var Base62 Codec = NewBigInt(Predefined(62))

func (c *codec) Alphabet() *Alphabet { return c.alphabet }

func (c *codec) Encode(data []byte) string {
	digits := make([]int, len(data))
	for i, b := range data {
		digits[i] = int(b)
	}
	return c.alphabet.toChars(c.codeDigits(digits, c.alphabet.encoder))
}

func (c *codec) Decode(text string) ([]byte, error) {
	digits, err := c.alphabet.toDigits(text)
	if err != nil {
		return nil, err
	}
	out := c.codeDigits(digits, c.alphabet.decoder)
	data := make([]byte, len(out))
	for i, d := range out {
		data[i] = byte(d)
	}
	return data, nil
}

func (c *codec) codeDigits(digits []int, dir direction) []int {
	if len(digits) == 0 {
		return []int{}
	}
	lz := countLeadingZeros(digits)
	out := make([]int, lz+dir.approximateSize(len(digits)-lz))
	firstNonZero := c.repack(digits, dir, lz, out)
	if firstNonZero == lz {
		return out
	}
	return out[firstNonZero-lz:]
}

func countLeadingZeros(digits []int) int {
	z := 0
	for z < len(digits) && digits[z] == 0 {
		z++
	}
	return z
}

// EncodeCheck appends the first four bytes of a double SHA-256 of data
// before encoding.
func EncodeCheck(c Codec, data []byte) string {
	buf := make([]byte, len(data), len(data)+4)
	copy(buf, data)
	sum := sha256x2(data)
	return c.Encode(append(buf, sum[:4]...))
}

// DecodeCheck reverses EncodeCheck and verifies the checksum.
func DecodeCheck(c Codec, text string) ([]byte, error) {
	data, err := c.Decode(text)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: payload too short", ErrChecksum)
	}
	payload := data[:len(data)-4]
	sum := sha256x2(payload)
	if subtle.ConstantTimeCompare(sum[:4], data[len(data)-4:]) != 1 {
		return nil, ErrChecksum
	}
	return payload, nil
}

func sha256x2(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}
