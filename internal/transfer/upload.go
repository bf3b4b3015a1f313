package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ssd-technologies/mixfile/internal/basen"
	"github.com/ssd-technologies/mixfile/internal/crypto"
	"github.com/ssd-technologies/mixfile/internal/share"
	"github.com/ssd-technologies/mixfile/internal/uploader"
)

// UploadRequest describes one file to upload.
type UploadRequest struct {
	Name string
	// Size is the declared length, used for progress only.
	Size int64
	// Key is the file key; a random 32-byte key is used when nil.
	Key  []byte
	Task UploadTask
}

type noopTask struct{}

func (noopTask) UpdateProgress(int64, int64) {}
func (noopTask) Complete(*share.ShareInfo)   {}
func (noopTask) OnStop(func())               {}

// Upload splits r into chunks, uploads them concurrently and then uploads the
// index. Any failed chunk fails the whole upload. If r is an io.Closer it is
// closed when ctx is canceled or the task is stopped.
func (s *Service) Upload(ctx context.Context, r io.Reader, req UploadRequest) (*share.ShareInfo, error) {
	task := req.Task
	if task == nil {
		task = noopTask{}
	}
	key := req.Key
	if key == nil {
		key = crypto.RandomBytes(32)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	task.OnStop(cancel)
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	backend, err := s.opts.Registry.Backend(s.opts.Backend)
	if err != nil {
		return nil, err
	}
	head, err := backend.GenHead(ctx, s.opts.Client)
	if err != nil {
		return nil, fmt.Errorf("%w: generate head: %v", uploader.ErrUpload, err)
	}
	if head == nil {
		head = s.defaultHead()
	}

	chunkSize := s.opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = backend.ChunkSize()
	}
	if chunkSize <= 0 {
		chunkSize = uploader.DefaultChunkSize
	}
	chunkSize = min(chunkSize, MaxChunkSize)

	uopts := uploader.Options{
		Client:       s.opts.Client,
		RetryCount:   s.opts.UploadRetry,
		OnUploadData: s.opts.OnUploadData,
	}

	sem := semaphore.NewWeighted(int64(concurrency(s.opts.UploadTaskCount, chunkSize)))
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu      sync.Mutex
		urls    []string
		total   int64
		readErr error
	)

read:
	for index := 0; ; index++ {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(r, buf)
		last := false
		switch {
		case err == nil:
		case errors.Is(err, io.ErrUnexpectedEOF):
			last = true
		case errors.Is(err, io.EOF):
			sem.Release(1)
			break read
		default:
			sem.Release(1)
			readErr = err
			break read
		}

		chunk := buf[:n]
		total += int64(n)
		mu.Lock()
		urls = append(urls, "")
		mu.Unlock()

		g.Go(func() error {
			defer sem.Release(1)
			u, err := uploader.Upload(gctx, backend, head, chunk, key, uopts)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", index, err)
			}
			mu.Lock()
			urls[index] = u
			mu.Unlock()
			task.UpdateProgress(int64(len(chunk)), req.Size)
			return nil
		})
		if last {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, fmt.Errorf("read input: %w", readErr)
	}
	for i, u := range urls {
		if u == "" {
			return nil, fmt.Errorf("%w: chunk %d has no url", ErrUploadIncomplete, i)
		}
	}

	if urls == nil {
		urls = []string{}
	}
	mf := &share.MixFile{ChunkSize: chunkSize, FileSize: total, Version: 0, FileList: urls}
	index, err := mf.Bytes()
	if err != nil {
		return nil, err
	}
	indexURL, err := uploader.Upload(ctx, backend, head, index, key, uopts)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	info := &share.ShareInfo{
		FileName: req.Name,
		FileSize: total,
		HeadSize: len(head),
		URL:      indexURL,
		Key:      basen.Base62.Encode(key),
		Referer:  backend.Referer(),
	}
	info.Code()
	log.Printf("[upload] %s: %d bytes in %d chunks", req.Name, total, len(urls))
	task.Complete(info)
	return info, nil
}
