package transfer

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/ssd-technologies/mixfile/internal/share"
	"github.com/ssd-technologies/mixfile/internal/sortedtask"
)

// Download fetches refs concurrently and writes them to w in order. A write
// failure stops every fetch and returns an error wrapping ErrSinkClosed.
func (s *Service) Download(ctx context.Context, w io.Writer, info *share.ShareInfo, mf *share.MixFile, refs []share.ChunkRef, referer string) error {
	if len(refs) == 0 {
		return nil
	}
	if referer == "" {
		referer = info.Referer
	}

	st := sortedtask.New(concurrency(s.opts.DownloadTaskCount, mf.ChunkSize))
	g, gctx := errgroup.WithContext(ctx)

	var prepareErr error
	for i, ref := range refs {
		if err := st.Prepare(gctx, int64(i)); err != nil {
			prepareErr = err
			break
		}
		g.Go(func() error {
			data, err := s.FetchFile(gctx, info, ref.URL, referer, MaxChunkSize)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			part := ref.Apply(data)
			st.Add(int64(i), func() error {
				if _, err := w.Write(part); err != nil {
					return fmt.Errorf("%w: %v", ErrSinkClosed, err)
				}
				if s.opts.OnDownloadData != nil {
					s.opts.OnDownloadData(len(part))
				}
				return nil
			})
			return st.Execute()
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return prepareErr
}

// DownloadAll writes the whole file behind info to w.
func (s *Service) DownloadAll(ctx context.Context, w io.Writer, info *share.ShareInfo) error {
	mf, err := s.FetchIndex(ctx, info, "")
	if err != nil {
		return err
	}
	return s.Download(ctx, w, info, mf, mf.FileListByStartRange(0), "")
}
