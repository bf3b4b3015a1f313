package uploader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCustomBackend_HeadAndUpload(t *testing.T) {
	var stored []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Referer", "https://images.example.com/")
			w.Write([]byte("HEAD"))
		case http.MethodPut:
			stored, _ = io.ReadAll(r.Body)
			w.Write([]byte(" https://images.example.com/f/1.gif\n"))
		}
	}))
	defer srv.Close()

	b := NewCustomBackend(srv.URL, "https://initial/", 0)
	if b.ChunkSize() != DefaultChunkSize {
		t.Fatalf("expected default chunk size, got %d", b.ChunkSize())
	}

	head, err := b.GenHead(context.Background(), srv.Client())
	if err != nil {
		t.Fatalf("GenHead: %v", err)
	}
	if string(head) != "HEAD" {
		t.Fatalf("unexpected head %q", head)
	}
	if b.Referer() != "https://images.example.com/" {
		t.Fatalf("referer should follow the response header, got %q", b.Referer())
	}

	u, err := b.DoUpload(context.Background(), []byte("blob"), srv.Client())
	if err != nil {
		t.Fatalf("DoUpload: %v", err)
	}
	if u != "https://images.example.com/f/1.gif" {
		t.Fatalf("unexpected url %q", u)
	}
	if string(stored) != "blob" {
		t.Fatalf("server stored %q", stored)
	}
}

func TestCustomBackend_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := NewCustomBackend(srv.URL, "", 0)
	if _, err := b.DoUpload(context.Background(), []byte("x"), srv.Client()); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
	if _, err := NewCustomBackend("", "", 0).DoUpload(context.Background(), nil, srv.Client()); err == nil {
		t.Fatal("expected error without endpoint")
	}
}

func TestNewHTTPClient_SetsUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client, err := NewHTTPClient(5*time.Second, "")
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if ua != UserAgent {
		t.Fatalf("expected browser user agent, got %q", ua)
	}
}

func TestNewHTTPClient_Proxy(t *testing.T) {
	if _, err := NewHTTPClient(time.Second, "socks5://127.0.0.1:9050"); err != nil {
		t.Fatalf("socks5 proxy: %v", err)
	}
	if _, err := NewHTTPClient(time.Second, "http://127.0.0.1:3128"); err != nil {
		t.Fatalf("http proxy: %v", err)
	}
	if _, err := NewHTTPClient(time.Second, "gopher://x"); err == nil {
		t.Fatal("expected error for unsupported proxy scheme")
	}
}
