package webdav

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ssd-technologies/mixfile/internal/crypto"
	"github.com/ssd-technologies/mixfile/internal/share"
)

// Node is a file or folder of the virtual tree. Files hold a share code;
// folders hold children keyed by exact name.
type Node struct {
	Name          string
	IsFolder      bool
	Size          int64
	ShareInfoData string
	LastModified  int64

	mu    sync.RWMutex
	files map[string]*Node
}

func NewFolder(name string) *Node {
	return &Node{
		Name:         SanitizeName(name),
		IsFolder:     true,
		LastModified: time.Now().UnixMilli(),
		files:        make(map[string]*Node),
	}
}

func NewFile(name string, size int64, shareInfoData string) *Node {
	return &Node{
		Name:          SanitizeName(name),
		Size:          size,
		ShareInfoData: shareInfoData,
		LastModified:  time.Now().UnixMilli(),
	}
}

// NewShareFile builds a leaf for an uploaded file.
func NewShareFile(info *share.ShareInfo) *Node {
	return NewFile(info.FileName, info.FileSize, info.Code())
}

// Child returns the direct child called name, or nil.
func (n *Node) Child(name string) *Node {
	if !n.IsFolder {
		return nil
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.files[name]
}

// List returns the children sorted by name.
func (n *Node) List() []*Node {
	if !n.IsFolder {
		return nil
	}
	n.mu.RLock()
	out := make([]*Node, 0, len(n.files))
	for _, c := range n.files {
		out = append(out, c)
	}
	n.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (n *Node) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.files)
}

// AddFile inserts child. A folder landing on an existing folder is merged
// into it recursively; anything else replaces the node of the same name.
func (n *Node) AddFile(child *Node) {
	n.mu.Lock()
	if n.files == nil {
		n.files = make(map[string]*Node)
	}
	existing := n.files[child.Name]
	if existing == nil || !existing.IsFolder || !child.IsFolder || existing == child {
		n.files[child.Name] = child
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	for _, grandchild := range child.List() {
		existing.AddFile(grandchild)
	}
}

// Remove detaches and returns the child called name.
func (n *Node) Remove(name string) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	child := n.files[name]
	delete(n.files, name)
	return child
}

// Clone deep copies n.
func (n *Node) Clone() *Node {
	c := &Node{
		Name:          n.Name,
		IsFolder:      n.IsFolder,
		Size:          n.Size,
		ShareInfoData: n.ShareInfoData,
		LastModified:  n.LastModified,
	}
	if n.IsFolder {
		c.files = make(map[string]*Node)
		for _, child := range n.List() {
			c.files[child.Name] = child.Clone()
		}
	}
	return c
}

// Renamed returns a deep copy called name. A leaf's share code is rewritten
// to carry the new file name when it can be decoded.
func (n *Node) Renamed(name string) *Node {
	c := n.Clone()
	c.Name = SanitizeName(name)
	if !c.IsFolder && c.ShareInfoData != "" {
		if info, err := share.Parse(c.ShareInfoData); err == nil {
			c.ShareInfoData = info.WithFileName(c.Name).Code()
		}
	}
	return c
}

func (n *Node) ContentType() string {
	if n.IsFolder {
		return "httpd/unix-directory"
	}
	return share.ContentType(n.Name)
}

func (n *Node) ETag() string {
	return crypto.SHA256Hex([]byte(n.ShareInfoData))
}

func (n *Node) LastModifiedTime() time.Time {
	return time.UnixMilli(n.LastModified).UTC()
}

// HTTPTime formats the modification time for Last-Modified headers.
func (n *Node) HTTPTime() string {
	return n.LastModifiedTime().Format(http.TimeFormat)
}

type nodeJSON struct {
	Name          string           `json:"name"`
	Size          int64            `json:"size"`
	ShareInfoData string           `json:"shareInfoData"`
	IsFolder      bool             `json:"isFolder"`
	Folder        *bool            `json:"folder,omitempty"`
	LastModified  int64            `json:"lastModified"`
	Files         map[string]*Node `json:"files,omitempty"`
}

func (n *Node) MarshalJSON() ([]byte, error) {
	v := nodeJSON{
		Name:          n.Name,
		Size:          n.Size,
		ShareInfoData: n.ShareInfoData,
		IsFolder:      n.IsFolder,
		LastModified:  n.LastModified,
	}
	if n.IsFolder {
		v.Files = make(map[string]*Node)
		for _, c := range n.List() {
			v.Files[c.Name] = c
		}
	}
	return json.Marshal(v)
}

// UnmarshalJSON also accepts the older "folder" flag.
func (n *Node) UnmarshalJSON(data []byte) error {
	var v nodeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Name = SanitizeName(v.Name)
	n.Size = v.Size
	n.ShareInfoData = v.ShareInfoData
	n.IsFolder = v.IsFolder || (v.Folder != nil && *v.Folder)
	n.LastModified = v.LastModified
	if n.LastModified == 0 {
		n.LastModified = time.Now().UnixMilli()
	}
	if n.IsFolder {
		n.files = make(map[string]*Node, len(v.Files))
		for _, c := range v.Files {
			if c != nil {
				n.files[c.Name] = c
			}
		}
	}
	return nil
}
