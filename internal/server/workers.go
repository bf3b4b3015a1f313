package server

import (
	"context"
	"log"
	"time"

	"github.com/ssd-technologies/mixfile/internal/storage"
)

const (
	indexCacheTTL   = 7 * 24 * time.Hour
	trafficKeepDays = 90
	transferTTL     = 30 * 24 * time.Hour
)

// StartWorkers launches all background goroutines. Call with a cancellable
// context for graceful shutdown.
func (s *Server) StartWorkers(ctx context.Context) {
	go s.runStatsFlush(ctx)
	go s.runPrune(ctx)
}

// --- Traffic Flush Worker ---

// runStatsFlush writes buffered traffic counters every minute and once more
// on shutdown.
func (s *Server) runStatsFlush(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.flushStats()
			return
		case <-time.After(time.Minute):
			s.flushStats()
		}
	}
}

// flushStats persists the recorder's counters. Returns false on failure.
func (s *Server) flushStats() bool {
	if s.recorder == nil {
		return true
	}
	if err := s.recorder.Flush(time.Now()); err != nil {
		log.Printf("[worker] flush traffic: %v", err)
		return false
	}
	return true
}

// --- Prune Worker ---

// runPrune drops stale cache entries, old statistics and expired limiter
// windows every hour.
func (s *Server) runPrune(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Hour):
			if n := s.prune(time.Now()); n > 0 {
				log.Printf("[worker] pruned %d stale records", n)
			}
		}
	}
}

// prune removes everything older than its retention window relative to now.
// Returns the number of records removed.
func (s *Server) prune(now time.Time) int {
	total := s.limiter.cleanup() + s.hub.limiter.cleanup()

	if s.cache != nil {
		n, err := s.cache.Prune(now.Add(-indexCacheTTL))
		if err != nil {
			log.Printf("[worker] prune index cache: %v", err)
		}
		total += n
	}
	if s.db != nil {
		n, err := s.db.PruneTraffic(storage.Day(now.AddDate(0, 0, -trafficKeepDays)))
		if err != nil {
			log.Printf("[worker] prune traffic: %v", err)
		}
		total += int(n)

		n, err = s.db.PruneTransfers(now.Add(-transferTTL).Unix())
		if err != nil {
			log.Printf("[worker] prune transfers: %v", err)
		}
		total += int(n)
	}
	return total
}

// RecoverTransfers marks uploads a previous process left running as failed.
func (s *Server) RecoverTransfers() {
	if s.db == nil {
		return
	}
	n, err := s.db.FailRunningTransfers(time.Now().Unix())
	if err != nil {
		log.Printf("[worker] recover transfers: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[worker] marked %d interrupted transfers as failed", n)
	}
}
