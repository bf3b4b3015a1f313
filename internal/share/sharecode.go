package share

import (
	"encoding/hex"
	"strings"

	"github.com/ssd-technologies/mixfile/internal/basen"
	"github.com/ssd-technologies/mixfile/internal/crypto"
)

const (
	Prefix = "mf://"

	// variation selectors VS1..VS16 carry one hex nibble each
	invisibleBase = 0xFE00
)

// ShareCode renders the user-facing share string. The short form hides the
// code in invisible variation selectors followed by a short visible tag.
func (s *ShareInfo) ShareCode(short bool) string {
	if !short {
		return Prefix + s.Code()
	}
	tag := basen.Base62.Encode(crypto.MD5String(s.URL)[:6])
	return Prefix + encodeInvisible(s.Code()) + tag
}

// Parse accepts either share string form, with or without the mf:// prefix.
func Parse(value string) (*ShareInfo, error) {
	code := value
	if i := strings.Index(value, Prefix); i >= 0 {
		code = value[i+len(Prefix):]
	}
	code = strings.TrimSpace(code)
	if hidden, ok := decodeInvisible(code); ok {
		if info, err := ParseCode(hidden); err == nil {
			return info, nil
		}
	}
	return ParseCode(code)
}

func encodeInvisible(s string) string {
	var sb strings.Builder
	for _, c := range hex.EncodeToString([]byte(s)) {
		var nibble rune
		if c <= '9' {
			nibble = c - '0'
		} else {
			nibble = c - 'a' + 10
		}
		sb.WriteRune(invisibleBase + nibble)
	}
	return sb.String()
}

func decodeInvisible(s string) (string, bool) {
	var sb strings.Builder
	for _, r := range s {
		if r >= invisibleBase && r <= invisibleBase+0xF {
			sb.WriteByte("0123456789abcdef"[r-invisibleBase])
		}
	}
	if sb.Len() == 0 {
		return "", false
	}
	data, err := hex.DecodeString(sb.String())
	if err != nil {
		return "", false
	}
	return string(data), true
}
