package transfer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ssd-technologies/mixfile/internal/share"
)

// UploadTask receives callbacks from a running upload.
type UploadTask interface {
	// UpdateProgress reports delta more bytes uploaded out of total.
	UpdateProgress(delta, total int64)
	// Complete runs once the share code exists.
	Complete(info *share.ShareInfo)
	// OnStop registers fn to run when the task is stopped externally.
	OnStop(fn func())
}

// Task states.
const (
	StateRunning  = "running"
	StateDone     = "done"
	StateFailed   = "failed"
	StateCanceled = "canceled"
)

// TaskHooks observe a Task. Nil hooks are skipped.
type TaskHooks struct {
	Progress func(t *Task)
	// Complete only runs for tasks created with add set.
	Complete func(t *Task, info *share.ShareInfo)
	Finish   func(t *Task)
}

// TaskStatus is a point-in-time view of a Task.
type TaskStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Uploaded  int64  `json:"uploaded"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	ShareCode string `json:"share_code,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Task is the UploadTask used by the server and CLI.
type Task struct {
	ID        string
	Name      string
	Size      int64
	Add       bool
	CreatedAt time.Time

	hooks    TaskHooks
	uploaded atomic.Int64

	mu      sync.Mutex
	stops   []func()
	stopped bool
	state   string
	err     error
	info    *share.ShareInfo
}

func NewTask(name string, size int64, add bool, hooks TaskHooks) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Name:      name,
		Size:      size,
		Add:       add,
		CreatedAt: time.Now(),
		hooks:     hooks,
		state:     StateRunning,
	}
}

func (t *Task) UpdateProgress(delta, total int64) {
	t.uploaded.Add(delta)
	if t.hooks.Progress != nil {
		t.hooks.Progress(t)
	}
}

func (t *Task) Complete(info *share.ShareInfo) {
	t.mu.Lock()
	t.info = info
	t.mu.Unlock()
	if t.Add && t.hooks.Complete != nil {
		t.hooks.Complete(t, info)
	}
}

func (t *Task) OnStop(fn func()) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		fn()
		return
	}
	t.stops = append(t.stops, fn)
	t.mu.Unlock()
}

// Stop runs the registered stop callbacks once.
func (t *Task) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	stops := t.stops
	t.stops = nil
	t.mu.Unlock()

	for _, fn := range stops {
		fn()
	}
}

// Finish records the outcome of the upload.
func (t *Task) Finish(err error) {
	t.mu.Lock()
	switch {
	case err == nil:
		t.state = StateDone
	case errors.Is(err, context.Canceled) || t.stopped:
		t.state = StateCanceled
	default:
		t.state = StateFailed
	}
	t.err = err
	t.stopped = true
	t.stops = nil
	t.mu.Unlock()

	if t.hooks.Finish != nil {
		t.hooks.Finish(t)
	}
}

func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := TaskStatus{
		ID:        t.ID,
		Name:      t.Name,
		Size:      t.Size,
		Uploaded:  t.uploaded.Load(),
		State:     t.state,
		CreatedAt: t.CreatedAt.UnixMilli(),
	}
	if t.err != nil {
		st.Error = t.err.Error()
	}
	if t.info != nil {
		st.ShareCode = t.info.ShareCode(false)
	}
	return st
}

// Tasks tracks the uploads currently running.
type Tasks struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewTasks() *Tasks {
	return &Tasks{tasks: make(map[string]*Task)}
}

func (ts *Tasks) Add(t *Task) {
	ts.mu.Lock()
	ts.tasks[t.ID] = t
	ts.mu.Unlock()
}

func (ts *Tasks) Remove(id string) {
	ts.mu.Lock()
	delete(ts.tasks, id)
	ts.mu.Unlock()
}

func (ts *Tasks) Get(id string) (*Task, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.tasks[id]
	return t, ok
}

// Cancel stops the task with id and reports whether it existed.
func (ts *Tasks) Cancel(id string) bool {
	t, ok := ts.Get(id)
	if ok {
		t.Stop()
	}
	return ok
}

// List returns the running tasks, oldest first.
func (ts *Tasks) List() []TaskStatus {
	ts.mu.Lock()
	tasks := make([]*Task, 0, len(ts.tasks))
	for _, t := range ts.tasks {
		tasks = append(tasks, t)
	}
	ts.mu.Unlock()

	out := make([]TaskStatus, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}
