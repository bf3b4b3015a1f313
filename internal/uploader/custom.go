package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CustomBackend uploads to a user supplied endpoint. GET on the endpoint
// yields the head bytes (and optionally a Referer header); PUT stores a blob
// and answers with its URL as plain text.
type CustomBackend struct {
	endpoint  string
	chunkSize int64

	mu      sync.RWMutex
	referer string
}

func NewCustomBackend(endpoint, referer string, chunkSize int64) *CustomBackend {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &CustomBackend{endpoint: endpoint, referer: referer, chunkSize: chunkSize}
}

func (c *CustomBackend) Name() string     { return "custom" }
func (c *CustomBackend) ChunkSize() int64 { return c.chunkSize }

func (c *CustomBackend) Referer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.referer
}

func (c *CustomBackend) GenHead(ctx context.Context, client *http.Client) ([]byte, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("custom upload url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build head request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch head: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch head: status %d", resp.StatusCode)
	}
	if ref := resp.Header.Get("Referer"); ref != "" {
		c.mu.Lock()
		c.referer = ref
		c.mu.Unlock()
	}
	head, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}
	return head, nil
}

func (c *CustomBackend) DoUpload(ctx context.Context, data []byte, client *http.Client) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("custom upload url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = int64(len(data))
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	text := strings.TrimSpace(string(body))
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("upload: status %d: %s", resp.StatusCode, text)
	}
	return text, nil
}
