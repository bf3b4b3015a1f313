package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/ssd-technologies/mixfile/internal/history"
	"github.com/ssd-technologies/mixfile/internal/share"
	"github.com/ssd-technologies/mixfile/internal/uploader"
	"github.com/ssd-technologies/mixfile/internal/webdav"
)

// maxImportSize bounds .mix_dav and .mix_list bodies.
const maxImportSize = 50 * uploader.MiB

// davLoaded answers 503 until the tree snapshot has been read.
func (s *Server) davLoaded(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.tree.Loaded() {
			http.Error(w, "webdav is loading", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func davPath(r *http.Request) string {
	return webdav.NormalizePath(strings.TrimPrefix(r.URL.Path, davPrefix))
}

func (s *Server) handleWebDAV(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		s.davOptions(w, r)
	case http.MethodGet, http.MethodHead:
		s.davGet(w, r)
	case http.MethodPut:
		s.davPut(w, r)
	case http.MethodDelete:
		s.davDelete(w, r)
	case "MKCOL":
		s.davMkcol(w, r)
	case "COPY":
		s.davCopy(w, r, true)
	case "MOVE":
		s.davCopy(w, r, false)
	case "PROPFIND":
		s.davPropfind(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) saveTree() {
	if err := s.tree.Save(); err != nil {
		log.Printf("[webdav] save: %v", err)
	}
}

func (s *Server) davOptions(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Allow", "OPTIONS, GET, HEAD, PUT, DELETE, MKCOL, COPY, MOVE, PROPFIND")
	h.Set("DAV", "1")
	h.Set("MS-Author-Via", "DAV")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) davGet(w http.ResponseWriter, r *http.Request) {
	p := davPath(r)
	node := s.tree.GetFile(p)
	if node == nil && strings.HasSuffix(p, ".mix_dav") {
		s.davExport(w, r, webdav.ParentPath(p))
		return
	}
	if node == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if node.IsFolder {
		http.Error(w, "is a folder", http.StatusConflict)
		return
	}
	info, err := share.Parse(node.ShareInfoData)
	if err != nil {
		http.Error(w, "broken share code", http.StatusConflict)
		return
	}
	w.Header().Set("ETag", `"`+node.ETag()+`"`)
	w.Header().Set("Last-Modified", node.HTTPTime())
	s.serveShare(w, r, info.WithFileName(node.Name), "")
}

// davExport downloads the snapshot of the folder at p.
func (s *Server) davExport(w http.ResponseWriter, r *http.Request, p string) {
	data, err := s.tree.Export(p)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	name := webdav.FileName(p)
	if p == "" {
		name = "root"
	}
	h := w.Header()
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(name+".mix_dav"))
	w.Write(data)
}

func (s *Server) davPut(w http.ResponseWriter, r *http.Request) {
	p := davPath(r)
	name, parent := webdav.FileName(p), webdav.ParentPath(p)
	size := max(r.ContentLength, 0)

	if size > 0 && size < maxImportSize {
		switch {
		case strings.HasSuffix(name, ".mix_dav"):
			s.davImport(w, r, parent, func(data []byte) error {
				return s.tree.Import(parent, data)
			})
			return
		case strings.HasSuffix(name, ".mix_list"):
			s.davImport(w, r, parent, func(data []byte) error {
				entries, err := history.Decode(data)
				if err != nil {
					return fmt.Errorf("%w: %v", webdav.ErrSnapshot, err)
				}
				return s.tree.ImportHistory(entries, parent)
			})
			return
		}
	}

	if folder := s.tree.GetFile(parent); folder == nil || !folder.IsFolder {
		http.Error(w, "parent folder missing", http.StatusConflict)
		return
	}
	info, err := s.upload(r.Context(), r.Body, name, size, false)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if !s.tree.AddFileNode(parent, webdav.NewShareFile(info)) {
		http.Error(w, "parent folder missing", http.StatusConflict)
		return
	}
	s.saveTree()
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) davImport(w http.ResponseWriter, r *http.Request, parent string, apply func([]byte) error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := apply(data); err != nil {
		writeFailure(w, r, err)
		return
	}
	s.saveTree()
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) davDelete(w http.ResponseWriter, r *http.Request) {
	if s.tree.RemoveFileNode(davPath(r)) == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.saveTree()
	w.WriteHeader(http.StatusNoContent)
}

// davMkcol creates a folder, or a file when the last segment is a share code.
func (s *Server) davMkcol(w http.ResponseWriter, r *http.Request) {
	p := davPath(r)
	parent := webdav.ParentPath(p)
	if folder := s.tree.GetFile(parent); folder == nil || !folder.IsFolder {
		http.Error(w, "parent folder missing", http.StatusConflict)
		return
	}

	raw := p[strings.LastIndexByte(p, '/')+1:]
	if info, err := share.Parse(raw); err == nil {
		s.tree.AddFileNode(parent, webdav.NewShareFile(info))
		s.saveTree()
		w.WriteHeader(http.StatusCreated)
		return
	}

	if s.tree.GetFile(p) != nil {
		http.Error(w, "already exists", http.StatusMethodNotAllowed)
		return
	}
	s.tree.AddFileNode(parent, webdav.NewFolder(webdav.FileName(p)))
	s.saveTree()
	w.WriteHeader(http.StatusCreated)
}

// davCopy handles COPY and MOVE. Overwrite defaults to T.
func (s *Server) davCopy(w http.ResponseWriter, r *http.Request, keep bool) {
	dest, err := destinationPath(r.Header.Get("Destination"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	overwrite := !strings.EqualFold(r.Header.Get("Overwrite"), "F")
	existed := s.tree.GetFile(dest) != nil

	if err := s.tree.CopyFile(davPath(r), dest, overwrite, keep); err != nil {
		writeFailure(w, r, err)
		return
	}
	s.saveTree()
	if existed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// destinationPath turns a Destination header into a tree path.
func destinationPath(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing Destination header")
	}
	u, err := url.Parse(header)
	if err != nil {
		return "", fmt.Errorf("bad Destination header: %w", err)
	}
	p, ok := strings.CutPrefix(u.Path, davPrefix)
	if !ok {
		return "", errors.New("destination outside webdav")
	}
	p = webdav.NormalizePath(p)
	if p == "" {
		return "", errors.New("destination is the root")
	}
	return p, nil
}

func (s *Server) davPropfind(w http.ResponseWriter, r *http.Request) {
	p := davPath(r)
	node := s.tree.GetFile(p)
	if node == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var children []*webdav.Node
	if node.IsFolder && r.Header.Get("Depth") != "0" {
		children = node.List()
		if len(children) > 0 && node.Child(webdav.ExportName) == nil {
			children = append(children, webdav.NewFile(webdav.ExportName, 0, ""))
		}
	}

	body, err := webdav.RenderMultistatus(davPrefix, p, node, children)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	w.Write(body)
}
