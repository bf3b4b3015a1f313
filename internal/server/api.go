package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssd-technologies/mixfile/internal/history"
	"github.com/ssd-technologies/mixfile/internal/share"
	"github.com/ssd-technologies/mixfile/internal/storage"
	"github.com/ssd-technologies/mixfile/internal/transfer"
)

// handleDownload handles GET /api/download?s=&referer=&name= and
// /api/download/{name}.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	info, err := share.Parse(q.Get("s"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	name := q.Get("name")
	if name == "" {
		name = chi.URLParam(r, "name")
	}
	if name != "" {
		info = info.WithFileName(name)
	}
	s.serveShare(w, r, info, q.Get("referer"))
}

// serveShare streams the file behind info, honoring a Range header. Errors
// after the headers went out abort the connection.
func (s *Server) serveShare(w http.ResponseWriter, r *http.Request, info *share.ShareInfo, referer string) {
	mf, err := s.svc.FetchIndex(r.Context(), info, referer)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	h := w.Header()
	rng, err := transfer.ParseRange(r.Header.Get("Range"), mf.FileSize)
	if err != nil {
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", mf.FileSize))
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}

	status, length := http.StatusOK, mf.FileSize
	refs := mf.FileListByStartRange(0)
	if rng != nil {
		status, length = http.StatusPartialContent, rng.Length()
		refs = mf.ChunkRange(rng.Start, rng.End)
		h.Set("Content-Range", rng.ContentRange(mf.FileSize))
	}
	h.Set("Content-Type", info.ContentType())
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	h.Set("Content-Disposition", "inline; filename*=UTF-8''"+url.PathEscape(info.FileName))
	h.Set("Accept-Ranges", "bytes")
	h.Set("x-mix-code", info.ShareCode(false))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}

	err = s.svc.Download(r.Context(), w, info, mf, refs, referer)
	switch {
	case err == nil, errors.Is(err, transfer.ErrSinkClosed), r.Context().Err() != nil:
	default:
		log.Printf("[download] %s: %v", info.FileName, err)
		panic(http.ErrAbortHandler)
	}
}

// handleUpload handles PUT /api/upload?name=&add= and /api/upload/{name}.
// The body is the file; the answer is its share string.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		name = chi.URLParam(r, "name")
	}
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	add := q.Get("add") != "false"

	info, err := s.upload(r.Context(), r.Body, name, max(r.ContentLength, 0), add)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("x-mix-code", info.ShareCode(false))
	io.WriteString(w, info.ShareCode(false))
}

// upload runs body through the transfer service as a tracked task. With add
// set the result is appended to the upload history.
func (s *Server) upload(ctx context.Context, body io.Reader, name string, size int64, add bool) (*share.ShareInfo, error) {
	task := transfer.NewTask(name, size, add, transfer.TaskHooks{
		Progress: s.hub.broadcast,
		Complete: s.recordHistory,
		Finish:   s.finishTransfer,
	})
	s.tasks.Add(task)
	defer s.tasks.Remove(task.ID)
	s.startTransfer(task)

	info, err := s.svc.Upload(ctx, body, transfer.UploadRequest{Name: name, Size: size, Task: task})
	task.Finish(err)
	return info, err
}

func (s *Server) recordHistory(_ *transfer.Task, info *share.ShareInfo) {
	if s.history == nil {
		return
	}
	if err := s.history.Add(history.NewEntry(info)); err != nil {
		log.Printf("[history] add %s: %v", info.FileName, err)
	}
}

func (s *Server) startTransfer(t *transfer.Task) {
	s.hub.broadcast(t)
	if s.db == nil {
		return
	}
	err := s.db.CreateTransfer(&storage.Transfer{
		ID:        t.ID,
		Name:      t.Name,
		Size:      t.Size,
		Status:    storage.TransferRunning,
		CreatedAt: t.CreatedAt.Unix(),
	})
	if err != nil {
		log.Printf("[transfers] create %s: %v", t.ID, err)
	}
}

func (s *Server) finishTransfer(t *transfer.Task) {
	s.hub.broadcast(t)
	if s.db == nil {
		return
	}
	st := t.Status()
	if err := s.db.FinishTransfer(st.ID, st.State, st.ShareCode, st.Error, time.Now().Unix()); err != nil {
		log.Printf("[transfers] finish %s: %v", t.ID, err)
	}
}

// handleFileInfo handles GET /api/file_info?s=.
func (s *Server) handleFileInfo(w http.ResponseWriter, r *http.Request) {
	info, err := share.Parse(r.URL.Query().Get("s"))
	if err != nil {
		_, prefix := classify(err)
		writeError(w, http.StatusBadRequest, prefix+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name": info.FileName,
		"size": info.FileSize,
	})
}

// handleHistory handles GET /api/upload_history. Cross-origin pages may not
// read it. format=mix_list returns the importable gzip form.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Origin") != "" {
		writeError(w, http.StatusForbidden, "cross-origin access denied")
		return
	}
	var entries []history.Entry
	if s.history != nil {
		entries = s.history.Entries()
	}
	if r.URL.Query().Get("format") == "mix_list" {
		data, err := history.Encode(entries)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="history.mix_list"`)
		w.Write(data)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleListTasks handles GET /api/upload_tasks.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tasks.List())
}

// handleCancelTask handles DELETE /api/upload_tasks/{id}.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	if !s.tasks.Cancel(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStats handles GET /api/stats: daily traffic and recent uploads.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Traffic   []storage.Traffic  `json:"traffic"`
		Transfers []storage.Transfer `json:"transfers"`
	}{
		Traffic:   []storage.Traffic{},
		Transfers: []storage.Transfer{},
	}
	if s.db != nil {
		s.flushStats()
		traffic, err := s.db.ListTraffic(30)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		transfers, err := s.db.ListTransfers(50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if traffic != nil {
			resp.Traffic = traffic
		}
		if transfers != nil {
			resp.Transfers = transfers
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
