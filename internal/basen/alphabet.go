package basen

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
)

// Predefined alphabets keyed by their radix.
var Alphabets = map[int]string{
	2:  "01",
	8:  "01234567",
	11: "0123456789a",
	16: "0123456789abcdef",
	32: "0123456789ABCDEFGHJKMNPQRSTVWXYZ",
	36: "0123456789abcdefghijklmnopqrstuvwxyz",
	58: "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz",
	62: "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	64: "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/",
	67: "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_.!~",
}

var (
	alphabetMu    sync.Mutex
	alphabetCache = map[string]*Alphabet{}
)

// Alphabet maps digits to characters and back. It is immutable once built.
type Alphabet struct {
	key     []rune
	inverse map[rune]int
	encoder direction
	decoder direction
}

// NewAlphabet builds an alphabet from s. Characters that occur more than once
// are dropped entirely, as is whitespace; the rest keep their first-occurrence
// order. Alphabets are cached by their filtered key.
func NewAlphabet(s string) *Alphabet {
	counts := map[rune]int{}
	var order []rune
	for _, r := range s {
		if counts[r] == 0 {
			order = append(order, r)
		}
		counts[r]++
	}
	var key []rune
	for _, r := range order {
		if counts[r] == 1 && !unicode.IsSpace(r) {
			key = append(key, r)
		}
	}

	filtered := string(key)
	alphabetMu.Lock()
	defer alphabetMu.Unlock()
	if a, ok := alphabetCache[filtered]; ok {
		return a
	}

	a := &Alphabet{
		key:     key,
		inverse: make(map[rune]int, len(key)),
		encoder: newDirection(256, len(key)),
		decoder: newDirection(len(key), 256),
	}
	for i, r := range key {
		a.inverse[r] = i
	}
	alphabetCache[filtered] = a
	return a
}

// Predefined returns the alphabet registered for radix, or nil.
func Predefined(radix int) *Alphabet {
	s, ok := Alphabets[radix]
	if !ok {
		return nil
	}
	return NewAlphabet(s)
}

// Radix returns the number of distinct characters.
func (a *Alphabet) Radix() int { return len(a.key) }

func (a *Alphabet) String() string { return string(a.key) }

func (a *Alphabet) toDigits(s string) ([]int, error) {
	digits := make([]int, 0, len(s))
	for _, r := range s {
		d, ok := a.inverse[r]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCharacter, r)
		}
		digits = append(digits, d)
	}
	return digits, nil
}

func (a *Alphabet) toChars(digits []int) string {
	var sb strings.Builder
	sb.Grow(len(digits))
	for _, d := range digits {
		sb.WriteRune(a.key[d])
	}
	return sb.String()
}
