// Package history keeps the bounded list of files this server uploaded.
package history

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ssd-technologies/mixfile/internal/share"
)

const (
	DefaultLimit    = 1000
	DefaultCategory = "default"
)

// Entry is one uploaded file as shown in the history list.
type Entry struct {
	ShareInfoData string `json:"shareInfoData"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	Time          int64  `json:"time"`
	Category      string `json:"category"`
}

// NewEntry records info as uploaded now.
func NewEntry(info *share.ShareInfo) Entry {
	return Entry{
		ShareInfoData: info.Code(),
		Name:          info.FileName,
		Size:          info.FileSize,
		Time:          time.Now().UnixMilli(),
		Category:      DefaultCategory,
	}
}

// Same reports whether both entries describe the same file in the same
// category.
func (e Entry) Same(other Entry) bool {
	return e.ShareInfoData == other.ShareInfoData && e.Category == other.Category
}

// Log is an append-only list capped at limit entries, persisted as gzip
// compressed JSON after every change.
type Log struct {
	mu      sync.Mutex
	path    string
	limit   int
	entries []Entry
}

// Open loads the log at path; a missing file starts an empty log.
func Open(path string, limit int) (*Log, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	l := &Log{path: path, limit: limit}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	entries, err := Decode(data)
	if err != nil {
		return nil, err
	}
	l.entries = l.trim(entries)
	return l, nil
}

// Add appends e, dropping the oldest entries past the limit.
func (l *Log) Add(e Entry) error {
	if e.Category == "" {
		e.Category = DefaultCategory
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.trim(append(l.entries, e))
	return l.persist()
}

// Entries returns a copy, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// JSON returns the entries as a plain JSON array.
func (l *Log) JSON() ([]byte, error) {
	entries := l.Entries()
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

func (l *Log) trim(entries []Entry) []Entry {
	if over := len(entries) - l.limit; over > 0 {
		entries = append([]Entry(nil), entries[over:]...)
	}
	return entries
}

func (l *Log) persist() error {
	if l.path == "" {
		return nil
	}
	data, err := Encode(l.entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// Encode renders entries as gzip compressed JSON, the .mix_list format.
func Encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(raw)
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress history: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses the output of Encode. Entries without a category get the
// default one.
func Decode(data []byte) ([]Entry, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress history: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress history: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	for i := range entries {
		if entries[i].Category == "" {
			entries[i].Category = DefaultCategory
		}
	}
	return entries, nil
}
