package transfer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTask_StopRunsCallbacksOnce(t *testing.T) {
	task := NewTask("a", 10, false, TaskHooks{})
	calls := 0
	task.OnStop(func() { calls++ })
	task.Stop()
	task.Stop()
	if calls != 1 {
		t.Fatalf("expected 1 stop callback, got %d", calls)
	}

	late := false
	task.OnStop(func() { late = true })
	if !late {
		t.Fatal("callbacks registered after Stop should run immediately")
	}
}

func TestTask_FinishStates(t *testing.T) {
	tests := []struct {
		name string
		stop bool
		err  error
		want string
	}{
		{"done", false, nil, StateDone},
		{"failed", false, errors.New("boom"), StateFailed},
		{"canceled", false, context.Canceled, StateCanceled},
		{"stopped", true, errors.New("read closed"), StateCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finished := 0
			task := NewTask("f", 1, false, TaskHooks{Finish: func(*Task) { finished++ }})
			if tt.stop {
				task.Stop()
			}
			task.Finish(tt.err)
			st := task.Status()
			if st.State != tt.want {
				t.Fatalf("expected state %s, got %s", tt.want, st.State)
			}
			if (tt.err != nil) != (st.Error != "") {
				t.Fatalf("unexpected error field %q", st.Error)
			}
			if finished != 1 {
				t.Fatalf("finish hook ran %d times", finished)
			}
		})
	}
}

func TestTasks_ListAndCancel(t *testing.T) {
	ts := NewTasks()
	first := NewTask("first", 1, true, TaskHooks{})
	time.Sleep(2 * time.Millisecond)
	second := NewTask("second", 2, true, TaskHooks{})
	ts.Add(second)
	ts.Add(first)

	list := ts.List()
	if len(list) != 2 || list[0].Name != "first" || list[1].Name != "second" {
		t.Fatalf("unexpected list %+v", list)
	}

	stopped := false
	first.OnStop(func() { stopped = true })
	if !ts.Cancel(first.ID) || !stopped {
		t.Fatal("Cancel should stop the task")
	}
	if ts.Cancel("missing") {
		t.Fatal("Cancel of unknown id should report false")
	}

	ts.Remove(first.ID)
	if _, ok := ts.Get(first.ID); ok {
		t.Fatal("removed task still listed")
	}
	if len(ts.List()) != 1 {
		t.Fatal("expected one task left")
	}
}
