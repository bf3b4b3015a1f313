package transfer

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ssd-technologies/mixfile/internal/uploader"
)

// memoryHost is an in-memory image host speaking the custom backend protocol.
type memoryHost struct {
	srv *httptest.Server

	mu          sync.Mutex
	blobs       map[string][]byte
	next        int
	putFailures int
	getFailures int
	delay       func() time.Duration

	puts atomic.Int32
	gets atomic.Int32
}

func newMemoryHost(t *testing.T) *memoryHost {
	t.Helper()
	h := &memoryHost{blobs: make(map[string][]byte)}
	h.srv = httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *memoryHost) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/upload" && r.Method == http.MethodGet:
		w.Header().Set("Referer", "https://ref.example.com/")
		w.Write([]byte("GIF89a-test-head"))

	case r.URL.Path == "/upload" && r.Method == http.MethodPut:
		h.puts.Add(1)
		body, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		if h.putFailures != 0 {
			if h.putFailures > 0 {
				h.putFailures--
			}
			h.mu.Unlock()
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		h.next++
		path := fmt.Sprintf("/blob/%d.gif", h.next)
		h.blobs[path] = body
		h.mu.Unlock()
		fmt.Fprint(w, h.srv.URL+path)

	case strings.HasPrefix(r.URL.Path, "/blob/"):
		h.gets.Add(1)
		h.mu.Lock()
		delay := h.delay
		fail := h.getFailures > 0
		if fail {
			h.getFailures--
		}
		blob, ok := h.blobs[r.URL.Path]
		h.mu.Unlock()
		if delay != nil {
			time.Sleep(delay())
		}
		if fail {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(blob)))
		w.Write(blob)

	default:
		http.NotFound(w, r)
	}
}

// replace swaps the blob behind a stored chunk URL.
func (h *memoryHost) replace(t *testing.T, rawURL string, blob []byte) {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.blobs[u.Path]; !ok {
		t.Fatalf("no blob stored at %s", u.Path)
	}
	h.blobs[u.Path] = blob
}

func (h *memoryHost) blob(t *testing.T, rawURL string) []byte {
	t.Helper()
	u, _ := url.Parse(rawURL)
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.blobs[u.Path]...)
}

func testService(t *testing.T, h *memoryHost, mutate ...func(*Options)) *Service {
	t.Helper()
	reg := uploader.NewRegistry(uploader.NewCustomBackend(h.srv.URL+"/upload", "", MiB))
	opts := Options{
		Client:            h.srv.Client(),
		Registry:          reg,
		Backend:           "custom",
		UploadTaskCount:   4,
		DownloadTaskCount: 4,
		UploadRetry:       2,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewService(opts)
}
