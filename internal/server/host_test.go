package server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ssd-technologies/mixfile/internal/history"
	"github.com/ssd-technologies/mixfile/internal/storage"
	"github.com/ssd-technologies/mixfile/internal/transfer"
	"github.com/ssd-technologies/mixfile/internal/uploader"
	"github.com/ssd-technologies/mixfile/internal/webdav"
)

// fakeHost stores uploaded blobs in memory and serves them back.
type fakeHost struct {
	srv *httptest.Server

	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	h := &fakeHost{blobs: make(map[string][]byte)}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload" && r.Method == http.MethodGet:
			w.Write([]byte("GIF89a"))
		case r.URL.Path == "/upload" && r.Method == http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			h.mu.Lock()
			path := fmt.Sprintf("/blob/%d", len(h.blobs)+1)
			h.blobs[path] = body
			h.mu.Unlock()
			fmt.Fprint(w, h.srv.URL+path)
		case strings.HasPrefix(r.URL.Path, "/blob/"):
			h.mu.Lock()
			blob, ok := h.blobs[r.URL.Path]
			h.mu.Unlock()
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write(blob)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

type testEnv struct {
	srv      *Server
	host     *fakeHost
	db       *storage.DB
	recorder *storage.Recorder
	tree     *webdav.Tree
	history  *history.Log
}

// setupTestServer wires a Server to a fake host and fresh stores.
func setupTestServer(t *testing.T, password string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	host := newFakeHost(t)

	db, err := storage.NewDB(filepath.Join(dir, "stats.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	recorder := storage.NewRecorder(db)

	hist, err := history.Open(filepath.Join(dir, "history.mix_list"), 100)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	tree := webdav.NewTree(filepath.Join(dir, "webdav.mix_dav"))
	if err := tree.Load(); err != nil {
		t.Fatalf("tree.Load: %v", err)
	}

	svc := transfer.NewService(transfer.Options{
		Client:         host.srv.Client(),
		Registry:       uploader.NewRegistry(uploader.NewCustomBackend(host.srv.URL+"/upload", "", transfer.MiB)),
		Backend:        "custom",
		UploadRetry:    2,
		OnUploadData:   recorder.AddUploaded,
		OnDownloadData: recorder.AddDownloaded,
	})

	srv := New(Options{
		Service:  svc,
		Tree:     tree,
		History:  hist,
		DB:       db,
		Recorder: recorder,
		Password: password,
	})
	return &testEnv{srv: srv, host: host, db: db, recorder: recorder, tree: tree, history: hist}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

// uploadTestFile uploads content and returns the share string.
func (e *testEnv) uploadTestFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	rec := e.do(t, http.MethodPut, "/api/upload?name="+name, strings.NewReader(string(content)))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload %s: status = %d; body = %s", name, rec.Code, rec.Body.String())
	}
	return rec.Body.String()
}
