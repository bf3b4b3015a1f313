package uploader

import (
	"fmt"
	"strings"
	"sync"
)

// URLTransform rewrites a chunk URL before it is fetched.
type URLTransform func(url string) string

// RefererTransform rewrites the referer sent when fetching url.
type RefererTransform func(url, referer string) string

type named[T any] struct {
	name string
	fn   T
}

// Registry holds the known backends and the ordered fetch transforms.
type Registry struct {
	mu       sync.RWMutex
	backends []Backend
	urls     []named[URLTransform]
	referers []named[RefererTransform]
}

func NewRegistry(backends ...Backend) *Registry {
	return &Registry{backends: backends}
}

// Register adds b, replacing a backend with the same name.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.backends {
		if existing.Name() == b.Name() {
			r.backends[i] = b
			return
		}
	}
	r.backends = append(r.backends, b)
}

// Backend returns the backend called name, or the first registered one.
func (r *Registry) Backend(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.backends) == 0 {
		return nil, fmt.Errorf("no upload backend registered")
	}
	for _, b := range r.backends {
		if strings.EqualFold(b.Name(), name) {
			return b, nil
		}
	}
	return r.backends[0], nil
}

func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Backend(nil), r.backends...)
}

// RegisterURLTransform adds fn under name. Re-registering a name replaces it
// in place.
func (r *Registry) RegisterURLTransform(name string, fn URLTransform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = upsert(r.urls, name, fn)
}

func (r *Registry) RegisterRefererTransform(name string, fn RefererTransform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.referers = upsert(r.referers, name, fn)
}

// TransformURL applies every URL transform in registration order.
func (r *Registry) TransformURL(url string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.urls {
		url = t.fn(url)
	}
	return strings.TrimSpace(url)
}

// TransformReferer folds the referer transforms over referer. Each sees the
// original chunk url.
func (r *Registry) TransformReferer(url, referer string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.referers {
		referer = t.fn(url, referer)
	}
	return strings.TrimSpace(referer)
}

func upsert[T any](list []named[T], name string, fn T) []named[T] {
	for i := range list {
		if list[i].name == name {
			list[i].fn = fn
			return list
		}
	}
	return append(list, named[T]{name: name, fn: fn})
}
