package webdav

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const snapshotPrefix = "V2_:\n"

var ErrSnapshot = errors.New("invalid webdav snapshot")

// MarshalSnapshot encodes the tree under root as gzip("V2_:\n" + JSON).
func MarshalSnapshot(root *Node) ([]byte, error) {
	raw, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(snapshotPrefix))
	zw.Write(raw)
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseSnapshot decodes a current snapshot or a legacy path map into a root
// folder.
func ParseSnapshot(data []byte) (*Node, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}

	text := string(raw)
	if !strings.HasPrefix(text, snapshotPrefix) {
		return parseLegacy(raw)
	}
	root := &Node{}
	if err := json.Unmarshal(raw[len(snapshotPrefix):], root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	if !root.IsFolder {
		return nil, fmt.Errorf("%w: root is not a folder", ErrSnapshot)
	}
	root.Name = "root"
	return root, nil
}

// parseLegacy reads the older format: a JSON object mapping folder paths to
// the nodes directly inside them.
func parseLegacy(raw []byte) (*Node, error) {
	var legacy map[string][]*Node
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}

	root := NewFolder("root")
	for p, nodes := range legacy {
		folder := root
		for _, segment := range strings.Split(NormalizePath(p), "/") {
			if segment == "" {
				continue
			}
			segment = SanitizeName(segment)
			next := folder.Child(segment)
			if next == nil || !next.IsFolder {
				next = NewFolder(segment)
				folder.AddFile(next)
			}
			folder = next
		}
		for _, n := range nodes {
			if n == nil {
				continue
			}
			// folders come with their own path entry; only the
			// timestamp is taken from here
			if n.IsFolder {
				sub := folder.Child(n.Name)
				if sub == nil || !sub.IsFolder {
					sub = NewFolder(n.Name)
					folder.AddFile(sub)
				}
				sub.LastModified = n.LastModified
				continue
			}
			folder.AddFile(n)
		}
	}
	return root, nil
}
