// Package server exposes the HTTP API: share downloads and uploads, the
// WebDAV tree, upload tasks and traffic statistics.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/ssd-technologies/mixfile/internal/cache"
	"github.com/ssd-technologies/mixfile/internal/history"
	"github.com/ssd-technologies/mixfile/internal/storage"
	"github.com/ssd-technologies/mixfile/internal/transfer"
	"github.com/ssd-technologies/mixfile/internal/webdav"
)

const davPrefix = "/api/webdav"

func init() {
	for _, m := range []string{"PROPFIND", "MKCOL", "COPY", "MOVE"} {
		chi.RegisterMethod(m)
	}
}

// Options wire a Server to its collaborators. DB, Recorder and Cache may be
// nil.
type Options struct {
	Service  *transfer.Service
	Tree     *webdav.Tree
	History  *history.Log
	DB       *storage.DB
	Recorder *storage.Recorder
	Cache    *cache.IndexCache
	Password string
}

// Server is the mixfile HTTP server.
type Server struct {
	svc      *transfer.Service
	tree     *webdav.Tree
	history  *history.Log
	db       *storage.DB
	recorder *storage.Recorder
	cache    *cache.IndexCache

	tasks   *transfer.Tasks
	hub     *progressHub
	auth    *authenticator
	limiter *rateLimiter
	handler http.Handler
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	s := &Server{
		svc:      opts.Service,
		tree:     opts.Tree,
		history:  opts.History,
		db:       opts.DB,
		recorder: opts.Recorder,
		cache:    opts.Cache,
		tasks:    transfer.NewTasks(),
		limiter:  newRateLimiter(20, time.Minute),
	}
	s.auth = newAuthenticator(opts.Password, s.limiter)
	s.hub = newProgressHub(s.tasks, newRateLimiter(60, time.Minute))
	s.handler = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Tasks exposes the running uploads.
func (s *Server) Tasks() *transfer.Tasks { return s.tasks }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Use(s.auth.middleware)

	r.Route("/api", func(r chi.Router) {
		// Shares
		r.Get("/download", s.handleDownload)
		r.Get("/download/{name}", s.handleDownload)
		r.Put("/upload", s.handleUpload)
		r.Put("/upload/{name}", s.handleUpload)
		r.Get("/file_info", s.handleFileInfo)

		// Bookkeeping
		r.Get("/upload_history", s.handleHistory)
		r.Get("/upload_tasks", s.handleListTasks)
		r.Delete("/upload_tasks/{id}", s.handleCancelTask)
		r.Get("/stats", s.handleStats)
		r.Get("/ws/progress", s.hub.handle)
	})

	// WebDAV
	dav := s.davLoaded(http.HandlerFunc(s.handleWebDAV))
	r.Handle(davPrefix, dav)
	r.Handle(davPrefix+"/*", dav)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions,
			"PROPFIND", "MKCOL", "COPY", "MOVE",
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"x-mix-code", "Content-Range", "Content-Length", "Content-Disposition"},
		MaxAge:         600,
	})
	return c.Handler(r)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
