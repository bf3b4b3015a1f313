package sortedtask

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestSortedTask_EmitsInOrderUnderRandomLatency(t *testing.T) {
	st := New(4)
	var (
		mu  sync.Mutex
		out []int
		wg  sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		if err := st.Prepare(context.Background(), int64(i)); err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
			st.Add(int64(i), func() error {
				mu.Lock()
				out = append(out, i)
				mu.Unlock()
				return nil
			})
			if err := st.Execute(); err != nil {
				t.Errorf("Execute: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(out) != 50 {
		t.Fatalf("expected 50 emissions, got %d", len(out))
	}
	for i, v := range out {
		if v != i {
			t.Fatalf("emission %d was %d, output out of order: %v", i, v, out)
		}
	}
	if len(st.Pending()) != 0 {
		t.Fatalf("expected no pending slots, got %v", st.Pending())
	}
}

func TestSortedTask_PlaceholderBlocksDrain(t *testing.T) {
	st := New(3)
	ctx := context.Background()
	for i := int64(0); i < 3; i++ {
		st.Prepare(ctx, i)
	}

	var ran []int64
	st.Add(1, func() error { ran = append(ran, 1); return nil })
	st.Add(2, func() error { ran = append(ran, 2); return nil })
	st.Execute()
	if len(ran) != 0 {
		t.Fatalf("nothing should run while slot 0 is reserved, ran %v", ran)
	}

	st.Add(0, func() error { ran = append(ran, 0); return nil })
	st.Execute()
	if len(ran) != 3 || ran[0] != 0 || ran[1] != 1 || ran[2] != 2 {
		t.Fatalf("expected 0,1,2 got %v", ran)
	}
}

func TestSortedTask_PermitsBoundPrepare(t *testing.T) {
	st := New(1)
	if err := st.Prepare(context.Background(), 0); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := st.Prepare(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Prepare should wait for a permit, got %v", err)
	}

	st.Add(0, func() error { return nil })
	st.Execute()
	if err := st.Prepare(context.Background(), 1); err != nil {
		t.Fatalf("permit should be released after execution: %v", err)
	}
}

func TestSortedTask_ActionErrorStopsDrain(t *testing.T) {
	st := New(2)
	st.Prepare(context.Background(), 0)
	st.Prepare(context.Background(), 1)

	boom := errors.New("sink closed")
	ranSecond := false
	st.Add(0, func() error { return boom })
	st.Add(1, func() error { ranSecond = true; return nil })

	if err := st.Execute(); !errors.Is(err, boom) {
		t.Fatalf("expected action error, got %v", err)
	}
	if ranSecond {
		t.Fatal("drain should stop at the failing action")
	}
}
