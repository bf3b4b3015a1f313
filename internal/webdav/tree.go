// Package webdav holds the virtual folder tree served over WebDAV. Leaves
// are share codes; the whole tree persists as one compressed snapshot.
package webdav

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ssd-technologies/mixfile/internal/history"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrExists    = errors.New("destination exists")
	ErrNotFolder = errors.New("not a folder")
)

// Tree is the WebDAV filesystem. Each folder guards its own children; the
// tree only guards the root pointer and snapshot writes.
type Tree struct {
	path   string
	root   atomic.Pointer[Node]
	loaded atomic.Bool
	saveMu sync.Mutex
}

// NewTree returns an empty tree persisted at path. An empty path keeps the
// tree in memory only. The tree reports not loaded until Load runs.
func NewTree(path string) *Tree {
	t := &Tree{path: path}
	t.root.Store(NewFolder("root"))
	return t
}

func (t *Tree) Loaded() bool { return t.loaded.Load() }
func (t *Tree) Root() *Node  { return t.root.Load() }
func (t *Tree) Path() string { return t.path }

// Load reads the snapshot file. A missing file leaves the tree empty. The
// tree stays unloaded when the snapshot cannot be read, so a later Save does
// not replace it.
func (t *Tree) Load() error {
	if t.path == "" {
		t.loaded.Store(true)
		return nil
	}
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		t.loaded.Store(true)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read webdav snapshot: %w", err)
	}
	root, err := ParseSnapshot(data)
	if err != nil {
		return err
	}
	t.root.Store(root)
	t.loaded.Store(true)
	log.Printf("[webdav] loaded %d top level entries from %s", root.Len(), t.path)
	return nil
}

// Save writes the snapshot atomically.
func (t *Tree) Save() error {
	if t.path == "" {
		return nil
	}
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	data, err := MarshalSnapshot(t.Root())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0700); err != nil {
		return fmt.Errorf("create webdav dir: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write webdav snapshot: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replace webdav snapshot: %w", err)
	}
	return nil
}

// GetFile resolves p; the empty path is the root.
func (t *Tree) GetFile(p string) *Node {
	node := t.Root()
	for _, segment := range strings.Split(NormalizePath(p), "/") {
		if segment == "" {
			continue
		}
		node = node.Child(segment)
		if node == nil {
			return nil
		}
	}
	return node
}

// ListFiles returns the children of the folder at p, or nil when p is not a
// folder.
func (t *Tree) ListFiles(p string) []*Node {
	node := t.GetFile(p)
	if node == nil || !node.IsFolder {
		return nil
	}
	return node.List()
}

// AddFileNode places node inside the folder at parent.
func (t *Tree) AddFileNode(parent string, node *Node) bool {
	folder := t.GetFile(parent)
	if folder == nil || !folder.IsFolder {
		return false
	}
	folder.AddFile(node)
	return true
}

// RemoveFileNode detaches the node at p. The root cannot be removed.
func (t *Tree) RemoveFileNode(p string) *Node {
	p = NormalizePath(p)
	if p == "" {
		return nil
	}
	folder := t.GetFile(ParentPath(p))
	if folder == nil || !folder.IsFolder {
		return nil
	}
	return folder.Remove(p[strings.LastIndexByte(p, '/')+1:])
}

// CopyFile deep copies src to dest. With keep false the source is removed
// afterwards, which makes a move; the two steps are not atomic. An existing
// destination is replaced only when overwrite is set.
func (t *Tree) CopyFile(src, dest string, overwrite, keep bool) error {
	src, dest = NormalizePath(src), NormalizePath(dest)
	node := t.GetFile(src)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, src)
	}
	if dest == "" {
		return fmt.Errorf("%w: destination is the root", ErrConflict)
	}
	if src == dest {
		return nil
	}
	if src == "" || strings.HasPrefix(dest, src+"/") {
		return fmt.Errorf("%w: %s is inside %s", ErrConflict, dest, src)
	}

	parent := t.GetFile(ParentPath(dest))
	if parent == nil || !parent.IsFolder {
		return fmt.Errorf("%w: no folder for %s", ErrConflict, dest)
	}
	name := FileName(dest)
	if parent.Child(name) != nil {
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrExists, dest)
		}
		parent.Remove(name)
	}

	parent.AddFile(node.Renamed(name))
	if !keep {
		t.RemoveFileNode(src)
	}
	return nil
}

// Export snapshots the folder at p as a standalone tree.
func (t *Tree) Export(p string) ([]byte, error) {
	node := t.GetFile(p)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if !node.IsFolder {
		return nil, fmt.Errorf("%w: %s", ErrNotFolder, p)
	}
	root := node.Clone()
	root.Name = "root"
	return MarshalSnapshot(root)
}

// Import merges the top level of a snapshot into the folder at p.
func (t *Tree) Import(p string, data []byte) error {
	folder := t.GetFile(p)
	if folder == nil || !folder.IsFolder {
		return fmt.Errorf("%w: no folder %s", ErrConflict, p)
	}
	root, err := ParseSnapshot(data)
	if err != nil {
		return err
	}
	for _, child := range root.List() {
		folder.AddFile(child)
	}
	return nil
}

// ImportHistory files each entry under a folder named after its category,
// inside the folder at p.
func (t *Tree) ImportHistory(entries []history.Entry, p string) error {
	folder := t.GetFile(p)
	if folder == nil || !folder.IsFolder {
		return fmt.Errorf("%w: no folder %s", ErrConflict, p)
	}
	for _, e := range entries {
		category := e.Category
		if category == "" {
			category = history.DefaultCategory
		}
		folder.AddFile(NewFolder(category))
		target := folder.Child(SanitizeName(category))
		leaf := NewFile(e.Name, e.Size, e.ShareInfoData)
		if e.Time > 0 {
			leaf.LastModified = e.Time
		}
		target.AddFile(leaf)
	}
	return nil
}
