// Package sortedtask runs work concurrently but emits results in a fixed
// order. Each unit reserves a slot with Prepare, fills it with Add once its
// result is ready, then calls Execute to flush whatever is contiguous.
package sortedtask

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

type SortedTask struct {
	sem *semaphore.Weighted

	mu      sync.Mutex
	pending map[int64]func() error
	ready   map[int64]bool

	drain sync.Mutex
}

// New returns a scheduler allowing at most limit reserved slots.
func New(limit int) *SortedTask {
	if limit < 1 {
		limit = 1
	}
	return &SortedTask{
		sem:     semaphore.NewWeighted(int64(limit)),
		pending: make(map[int64]func() error),
		ready:   make(map[int64]bool),
	}
}

// Prepare blocks for a permit and reserves order. Orders must be unique and
// increase in the desired emission order.
func (s *SortedTask) Prepare(ctx context.Context, order int64) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending[order] = nil
	s.ready[order] = false
	s.mu.Unlock()
	return nil
}

// Add fills the slot reserved for order.
func (s *SortedTask) Add(order int64, fn func() error) {
	s.mu.Lock()
	s.pending[order] = fn
	s.ready[order] = true
	s.mu.Unlock()
}

// Execute runs ready actions from the lowest order upwards, stopping at the
// first slot that is still reserved. Only one caller drains at a time.
func (s *SortedTask) Execute() error {
	s.drain.Lock()
	defer s.drain.Unlock()

	for {
		fn, ok := s.next()
		if !ok {
			return nil
		}
		err := fn()
		s.sem.Release(1)
		if err != nil {
			return err
		}
	}
}

func (s *SortedTask) next() (func() error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, false
	}
	orders := make([]int64, 0, len(s.pending))
	for o := range s.pending {
		orders = append(orders, o)
	}
	lowest := orders[0]
	for _, o := range orders[1:] {
		if o < lowest {
			lowest = o
		}
	}
	if !s.ready[lowest] {
		return nil, false
	}
	fn := s.pending[lowest]
	delete(s.pending, lowest)
	delete(s.ready, lowest)
	return fn, true
}

// Pending lists reserved or ready orders that have not run yet.
func (s *SortedTask) Pending() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]int64, 0, len(s.pending))
	for o := range s.pending {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i] < orders[j] })
	return orders
}
