package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// rateLimiter counts events per client IP in fixed windows.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	limit   int
	period  time.Duration
}

type window struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, period time.Duration) *rateLimiter {
	return &rateLimiter{
		windows: make(map[string]window),
		limit:   limit,
		period:  period,
	}
}

// allow records one event for ip and reports whether it fits the window.
func (rl *rateLimiter) allow(ip string) bool {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[ip]
	if !ok || now.Sub(w.start) > rl.period {
		w = window{start: now}
	}
	w.count++
	rl.windows[ip] = w
	return w.count <= rl.limit
}

// cleanup forgets expired windows and returns how many it dropped.
func (rl *rateLimiter) cleanup() int {
	cutoff := time.Now().Add(-rl.period)
	rl.mu.Lock()
	defer rl.mu.Unlock()

	dropped := 0
	for ip, w := range rl.windows {
		if w.start.Before(cutoff) {
			delete(rl.windows, ip)
			dropped++
		}
	}
	return dropped
}

// getIP returns the first X-Forwarded-For hop, or the remote host.
func getIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
