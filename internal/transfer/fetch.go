package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ssd-technologies/mixfile/internal/crypto"
	"github.com/ssd-technologies/mixfile/internal/retry"
	"github.com/ssd-technologies/mixfile/internal/share"
	"github.com/ssd-technologies/mixfile/internal/uploader"
)

// FetchFile downloads one blob of info's upload, strips the head, decrypts it
// and checks the content hash carried in rawURL's fragment.
func (s *Service) FetchFile(ctx context.Context, info *share.ShareInfo, rawURL, referer string, limit int64) ([]byte, error) {
	key, err := info.KeyBytes()
	if err != nil {
		return nil, err
	}
	target := s.opts.Registry.TransformURL(rawURL)
	ref := s.opts.Registry.TransformReferer(rawURL, referer)

	var plain []byte
	err = retry.Do(ctx, fetchRetries+1, 100*time.Millisecond, func(attempt int) error {
		data, err := s.fetchOnce(ctx, target, ref, info.HeadSize, key, limit)
		if err != nil {
			if attempt <= fetchRetries && !isPermanent(err) {
				log.Printf("[fetch] %s attempt %d: %v", target, attempt, err)
			}
			return err
		}
		plain = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	if want := fragment(rawURL); want != "" && want != uploader.ContentHash(plain) {
		return nil, fmt.Errorf("%w: %s", ErrIntegrity, rawURL)
	}
	return plain, nil
}

func (s *Service) fetchOnce(ctx context.Context, target, referer string, headSize int, key []byte, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: %v", ErrFetch, err))
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	resp, err := s.opts.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	case resp.StatusCode/100 != 2:
		return nil, retry.Permanent(fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode))
	}
	if resp.ContentLength > limit+int64(headSize)+crypto.Overhead {
		return nil, retry.Permanent(fmt.Errorf("%w: content length %d", crypto.ErrOversize, resp.ContentLength))
	}

	if _, err := io.CopyN(io.Discard, resp.Body, int64(headSize)); err != nil {
		return nil, fmt.Errorf("%w: skip head: %v", ErrFetch, err)
	}
	plain, err := crypto.DecryptReader(resp.Body, key, limit)
	switch {
	case err == nil:
		return plain, nil
	case errors.Is(err, crypto.ErrOversize), errors.Is(err, crypto.ErrDecrypt):
		return nil, retry.Permanent(err)
	case ctx.Err() != nil:
		return nil, retry.Permanent(ctx.Err())
	default:
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, crypto.ErrOversize) || errors.Is(err, crypto.ErrDecrypt) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func fragment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Fragment)
}

// FetchIndex loads and validates the MixFile behind info, using the index
// cache when one is configured.
func (s *Service) FetchIndex(ctx context.Context, info *share.ShareInfo, referer string) (*share.MixFile, error) {
	if referer == "" {
		referer = info.Referer
	}
	if s.opts.Cache != nil {
		if data, ok := s.opts.Cache.Get(info.URL); ok {
			if mf, err := share.ParseMixFile(data); err == nil && mf.Validate() == nil {
				return mf, nil
			}
		}
	}

	data, err := s.FetchFile(ctx, info, info.URL, referer, MaxChunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexFetch, err)
	}
	mf, err := share.ParseMixFile(data)
	if err != nil {
		return nil, err
	}
	if err := mf.Validate(); err != nil {
		return nil, err
	}

	if s.opts.Cache != nil {
		if err := s.opts.Cache.Put(info.URL, data); err != nil {
			log.Printf("[fetch] cache index %s: %v", info.URL, err)
		}
	}
	return mf, nil
}
