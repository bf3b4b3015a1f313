package server

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ssd-technologies/mixfile/internal/history"
	"github.com/ssd-technologies/mixfile/internal/share"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(7)).Read(b)
	return b
}

func TestUploadAndDownload(t *testing.T) {
	env := setupTestServer(t, "")
	content := randomBytes(300 * 1024)

	code := env.uploadTestFile(t, "photo.png", content)
	if !strings.HasPrefix(code, share.Prefix) {
		t.Fatalf("expected share string, got %q", code)
	}

	rec := env.do(t, http.MethodGet, "/api/download?s="+url.QueryEscape(code), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download: status = %d; body = %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Fatal("downloaded content differs")
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("x-mix-code") == "" || rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Fatalf("missing download headers: %v", rec.Header())
	}

	rec = env.do(t, http.MethodGet, "/api/download/renamed.txt?s="+url.QueryEscape(code), nil)
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "renamed.txt") {
		t.Fatalf("name override ignored: %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestDownloadRange(t *testing.T) {
	env := setupTestServer(t, "")
	content := randomBytes(2621440)
	code := env.uploadTestFile(t, "big.bin", content)

	rec := env.do(t, http.MethodGet, "/api/download?s="+url.QueryEscape(code), nil, "Range", "bytes=1048576-2097151")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 1048576-2097151/2621440" {
		t.Fatalf("Content-Range = %q", got)
	}
	if rec.Body.Len() != 1048576 || !bytes.Equal(rec.Body.Bytes(), content[1048576:2097152]) {
		t.Fatalf("range body mismatch (%d bytes)", rec.Body.Len())
	}

	rec = env.do(t, http.MethodGet, "/api/download?s="+url.QueryEscape(code), nil, "Range", "bytes=9999999-")
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */2621440" {
		t.Fatalf("Content-Range = %q", got)
	}
}

func TestDownloadInvalidCode(t *testing.T) {
	env := setupTestServer(t, "")
	rec := env.do(t, http.MethodGet, "/api/download?s=not-a-code!", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "invalid share code:") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestUploadRequiresName(t *testing.T) {
	env := setupTestServer(t, "")
	rec := env.do(t, http.MethodPut, "/api/upload", strings.NewReader("x"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFileInfo(t *testing.T) {
	env := setupTestServer(t, "")
	code := env.uploadTestFile(t, "notes.md", []byte("# hi"))

	rec := env.do(t, http.MethodGet, "/api/file_info?s="+url.QueryEscape(code), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	json.NewDecoder(rec.Body).Decode(&info)
	if info.Name != "notes.md" || info.Size != 4 {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestUploadHistory(t *testing.T) {
	env := setupTestServer(t, "")
	env.uploadTestFile(t, "kept.txt", []byte("a"))
	if rec := env.do(t, http.MethodPut, "/api/upload?name=skipped.txt&add=false", strings.NewReader("b")); rec.Code != http.StatusOK {
		t.Fatalf("upload: %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/upload_history", nil, "Origin", "https://evil.example")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-origin history: status = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/upload_history", nil)
	var entries []history.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "kept.txt" {
		t.Fatalf("unexpected history %+v", entries)
	}

	rec = env.do(t, http.MethodGet, "/api/upload_history?format=mix_list", nil)
	decoded, err := history.Decode(rec.Body.Bytes())
	if err != nil || len(decoded) != 1 {
		t.Fatalf("mix_list export: %v (%d entries)", err, len(decoded))
	}
}

func TestUploadTasks(t *testing.T) {
	env := setupTestServer(t, "")

	rec := env.do(t, http.MethodGet, "/api/upload_tasks", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty task list, got %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodDelete, "/api/upload_tasks/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cancel unknown task: status = %d, want 404", rec.Code)
	}
}

func TestStats(t *testing.T) {
	env := setupTestServer(t, "")
	env.uploadTestFile(t, "s.bin", randomBytes(1000))

	rec := env.do(t, http.MethodGet, "/api/stats", nil)
	var stats struct {
		Traffic []struct {
			Uploaded int64 `json:"uploaded"`
		} `json:"traffic"`
		Transfers []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"transfers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(stats.Traffic) != 1 || stats.Traffic[0].Uploaded == 0 {
		t.Fatalf("traffic not recorded: %+v", stats.Traffic)
	}
	if len(stats.Transfers) != 1 || stats.Transfers[0].Status != "done" {
		t.Fatalf("transfer not recorded: %+v", stats.Transfers)
	}
}

func TestAuth(t *testing.T) {
	env := setupTestServer(t, "s3cret")

	rec := env.do(t, http.MethodGet, "/api/upload_tasks", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no credentials: status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("WWW-Authenticate"), "Basic") {
		t.Fatal("missing WWW-Authenticate challenge")
	}

	req, _ := http.NewRequest(http.MethodGet, "/api/upload_tasks", nil)
	req.SetBasicAuth("", "wrong")
	if rec := env.do(t, http.MethodGet, "/api/upload_tasks", nil, "Authorization", req.Header.Get("Authorization")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want 401", rec.Code)
	}

	req.SetBasicAuth("any", "s3cret")
	if rec := env.do(t, http.MethodGet, "/api/upload_tasks", nil, "Authorization", req.Header.Get("Authorization")); rec.Code != http.StatusOK {
		t.Fatalf("basic auth: status = %d, want 200", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/upload_tasks?accessKey=s3cret", nil); rec.Code != http.StatusOK {
		t.Fatalf("accessKey: status = %d, want 200", rec.Code)
	}
}

func TestAuthRateLimited(t *testing.T) {
	env := setupTestServer(t, "s3cret")
	env.srv.auth.limiter = newRateLimiter(2, time.Minute)

	for i := 0; i < 2; i++ {
		env.do(t, http.MethodGet, "/api/upload_tasks?accessKey=bad", nil)
	}
	rec := env.do(t, http.MethodGet, "/api/upload_tasks?accessKey=bad", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}
