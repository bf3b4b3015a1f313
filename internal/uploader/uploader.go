// Package uploader defines how encrypted chunks reach a remote host.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/ssd-technologies/mixfile/internal/basen"
	"github.com/ssd-technologies/mixfile/internal/crypto"
	"github.com/ssd-technologies/mixfile/internal/retry"
)

const (
	MiB = 1 << 20

	// DefaultChunkSize is used by backends that do not pick their own.
	DefaultChunkSize = 1 * MiB
)

var (
	ErrUpload     = errors.New("upload failed")
	ErrInvalidURL = errors.New("backend returned an invalid url")
)

// Backend is a remote host that accepts opaque blobs and returns a URL.
type Backend interface {
	Name() string
	Referer() string
	ChunkSize() int64
	// GenHead returns the bytes prepended to every blob, or nil for the
	// default image head. It may update the referer.
	GenHead(ctx context.Context, client *http.Client) ([]byte, error)
	DoUpload(ctx context.Context, data []byte, client *http.Client) (string, error)
}

// Options control a single Upload call.
type Options struct {
	Client     *http.Client
	RetryCount int
	// OnUploadData is called with the blob size on every attempt.
	OnUploadData func(n int)
}

// Upload encrypts data, prepends head and hands the blob to b. The returned
// URL carries base62(sha256(data)) as its fragment.
func Upload(ctx context.Context, b Backend, head, data, key []byte, opts Options) (string, error) {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	hash := ContentHash(data)

	var result string
	err := retry.Do(ctx, opts.RetryCount, 100*time.Millisecond, func(attempt int) error {
		sealed, err := crypto.Encrypt(data, key)
		if err != nil {
			return retry.Permanent(err)
		}
		blob := make([]byte, 0, len(head)+len(sealed))
		blob = append(append(blob, head...), sealed...)
		if opts.OnUploadData != nil {
			defer opts.OnUploadData(len(blob))
		}

		raw, err := b.DoUpload(ctx, blob, client)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			log.Printf("[upload] %s attempt %d failed: %v", b.Name(), attempt, err)
			return err
		}
		u, err := withFragment(raw, hash)
		if err != nil {
			log.Printf("[upload] %s attempt %d: %v", b.Name(), attempt, err)
			return err
		}
		result = u
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", ErrUpload, b.Name(), err)
	}
	return result, nil
}

// ContentHash is the fragment stored on every chunk URL.
func ContentHash(data []byte) string {
	return basen.Base62.Encode(crypto.SHA256(data))
}

// ValidURL reports whether s is an absolute http(s) URL with a host.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func withFragment(raw, fragment string) (string, error) {
	if !ValidURL(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	u, _ := url.Parse(raw)
	u.Fragment = fragment
	u.RawFragment = ""
	return u.String(), nil
}
