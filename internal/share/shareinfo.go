// Package share holds the objects a user passes around: the ShareInfo behind
// every share code and the MixFile index that lists a file's chunks.
package share

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/ssd-technologies/mixfile/internal/basen"
	"github.com/ssd-technologies/mixfile/internal/crypto"
)

var ErrInvalidShareCode = errors.New("invalid share code")

// codeKey is the fixed AES key that wraps ShareInfo JSON. It only obfuscates
// the code; confidentiality rests on the per-file Key inside.
var codeKey = crypto.MD5String("123")

// ShareInfo is everything needed to download a file.
type ShareInfo struct {
	FileName string `json:"f"`
	FileSize int64  `json:"s"`
	HeadSize int    `json:"h"`
	URL      string `json:"u"`
	Key      string `json:"k"`
	Referer  string `json:"r"`

	mu   sync.Mutex
	code string
}

// ParseCode decodes a bare share code (no mf:// prefix).
func ParseCode(code string) (*ShareInfo, error) {
	sealed, err := basen.Base62.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareCode, err)
	}
	plain, err := crypto.Decrypt(sealed, codeKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareCode, err)
	}
	var info ShareInfo
	if err := json.Unmarshal(plain, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareCode, err)
	}
	if info.URL == "" {
		return nil, fmt.Errorf("%w: missing url", ErrInvalidShareCode)
	}
	info.code = code
	return &info, nil
}

// Code returns the bare share code, encoding it on first use. Every call
// on the same ShareInfo returns the same code.
func (s *ShareInfo) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code != "" {
		return s.code
	}
	data, err := json.Marshal(s)
	if err != nil {
		panic("marshal share info: " + err.Error())
	}
	sealed, err := crypto.Encrypt(data, codeKey)
	if err != nil {
		panic("seal share info: " + err.Error())
	}
	s.code = basen.Base62.Encode(sealed)
	return s.code
}

func (s *ShareInfo) String() string { return s.Code() }

// KeyBytes decodes the per-file AES key.
func (s *ShareInfo) KeyBytes() ([]byte, error) {
	key, err := basen.Base62.Decode(s.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: key: %v", ErrInvalidShareCode, err)
	}
	return key, nil
}

// WithFileName returns a copy carrying a different name and a fresh code.
func (s *ShareInfo) WithFileName(name string) *ShareInfo {
	return &ShareInfo{
		FileName: name,
		FileSize: s.FileSize,
		HeadSize: s.HeadSize,
		URL:      s.URL,
		Key:      s.Key,
		Referer:  s.Referer,
	}
}

// Equal reports whether both describe the same uploaded index.
func (s *ShareInfo) Equal(other *ShareInfo) bool {
	return other != nil && s.URL == other.URL
}

func (s *ShareInfo) ContentType() string {
	return ContentType(s.FileName)
}

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}
