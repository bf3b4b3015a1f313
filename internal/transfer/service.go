// Package transfer moves whole files between a local stream and the remote
// hosts: chunking, encryption and ordered reassembly.
package transfer

import (
	"errors"
	"net/http"

	"github.com/ssd-technologies/mixfile/internal/share"
	"github.com/ssd-technologies/mixfile/internal/uploader"
)

const (
	MiB = uploader.MiB

	// MaxChunkSize caps both upload chunks and accepted downloads.
	MaxChunkSize = 20 * MiB

	fetchRetries = 3
)

var (
	ErrFetch               = errors.New("fetch failed")
	ErrIntegrity           = errors.New("tampered file")
	ErrIndexFetch          = errors.New("fetch file index")
	ErrIndexCorrupt        = share.ErrIndexCorrupt
	ErrUploadIncomplete    = errors.New("upload incomplete")
	ErrSinkClosed          = errors.New("output closed")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// IndexCache stores decrypted index blobs by index URL.
type IndexCache interface {
	Get(url string) ([]byte, bool)
	Put(url string, data []byte) error
}

// Options configure a Service.
type Options struct {
	Client   *http.Client
	Registry *uploader.Registry
	Cache    IndexCache

	// Backend names the registry entry used for uploads.
	Backend           string
	UploadTaskCount   int
	DownloadTaskCount int
	UploadRetry       int
	// ChunkSize overrides the backend chunk size when positive.
	ChunkSize int64
	// DefaultHead replaces the built-in GIF head when non-nil.
	DefaultHead []byte

	OnUploadData   func(n int)
	OnDownloadData func(n int)
}

// Service runs uploads and downloads. It is safe for concurrent use.
type Service struct {
	opts Options
}

func NewService(opts Options) *Service {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Registry == nil {
		opts.Registry = uploader.NewRegistry()
	}
	if opts.UploadTaskCount < 1 {
		opts.UploadTaskCount = 10
	}
	if opts.DownloadTaskCount < 1 {
		opts.DownloadTaskCount = 5
	}
	if opts.UploadRetry < 1 {
		opts.UploadRetry = 10
	}
	return &Service{opts: opts}
}

func (s *Service) Client() *http.Client         { return s.opts.Client }
func (s *Service) Registry() *uploader.Registry { return s.opts.Registry }

func (s *Service) defaultHead() []byte {
	if s.opts.DefaultHead != nil {
		return append([]byte(nil), s.opts.DefaultHead...)
	}
	return uploader.DefaultHead()
}

// concurrency scales a task budget down for chunks larger than 1 MiB.
func concurrency(budget int, chunkSize int64) int {
	n := budget / max(1, int(chunkSize/MiB))
	return max(1, n)
}
