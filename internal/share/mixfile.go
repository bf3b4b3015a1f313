package share

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrIndexCorrupt = errors.New("corrupt file index")

// MixFile is the index of a chunked upload.
type MixFile struct {
	ChunkSize int64    `json:"chunk_size"`
	FileSize  int64    `json:"file_size"`
	Version   int64    `json:"version"`
	FileList  []string `json:"file_list"`
}

// ChunkRef points into one chunk of the file. Offset is the first byte to
// emit and Limit the number of bytes after it, or -1 for the rest.
type ChunkRef struct {
	URL    string
	Offset int
	Limit  int
}

// ParseMixFile decodes a gzip compressed JSON index.
func ParseMixFile(data []byte) (*MixFile, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	var mf MixFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	return &mf, nil
}

// Bytes encodes the index as gzip compressed JSON.
func (m *MixFile) Bytes() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal index: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress index: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress index: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks that the chunk list covers FileSize exactly.
func (m *MixFile) Validate() error {
	if m.FileSize < 0 {
		return fmt.Errorf("%w: negative file size", ErrIndexCorrupt)
	}
	if m.FileSize == 0 {
		return nil
	}
	if m.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size %d", ErrIndexCorrupt, m.ChunkSize)
	}
	want := (m.FileSize + m.ChunkSize - 1) / m.ChunkSize
	if int64(len(m.FileList)) != want {
		return fmt.Errorf("%w: %d chunks listed, %d expected", ErrIndexCorrupt, len(m.FileList), want)
	}
	for i, u := range m.FileList {
		if u == "" {
			return fmt.Errorf("%w: chunk %d has no url", ErrIndexCorrupt, i)
		}
	}
	return nil
}

// FileListByStartRange returns every chunk from the one holding byte start
// onwards. Only the first carries a non-zero offset.
func (m *MixFile) FileListByStartRange(start int64) []ChunkRef {
	if len(m.FileList) == 0 {
		return nil
	}
	return m.ChunkRange(start, m.FileSize-1)
}

// ChunkRange returns the chunks covering bytes start..end inclusive, with the
// first trimmed by offset and the last trimmed by limit.
func (m *MixFile) ChunkRange(start, end int64) []ChunkRef {
	if m.ChunkSize <= 0 || start < 0 || end < start {
		return nil
	}
	first := start / m.ChunkSize
	last := end / m.ChunkSize
	if first >= int64(len(m.FileList)) {
		return nil
	}
	if last >= int64(len(m.FileList)) {
		last = int64(len(m.FileList)) - 1
	}

	refs := make([]ChunkRef, 0, last-first+1)
	for i := first; i <= last; i++ {
		ref := ChunkRef{URL: m.FileList[i], Limit: -1}
		if i == first {
			ref.Offset = int(start % m.ChunkSize)
		}
		if i == last && end < m.FileSize-1 {
			ref.Limit = int(end%m.ChunkSize) + 1 - ref.Offset
		}
		refs = append(refs, ref)
	}
	return refs
}

// Apply trims a decrypted chunk to the referenced window.
func (r ChunkRef) Apply(data []byte) []byte {
	if r.Offset >= len(data) {
		return nil
	}
	data = data[r.Offset:]
	if r.Limit >= 0 && r.Limit < len(data) {
		data = data[:r.Limit]
	}
	return data
}
