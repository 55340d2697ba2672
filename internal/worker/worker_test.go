package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wbia/jobengine/internal/bus/memqueue"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/logger"
)

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []jobtypes.Status
	stored        []jobtypes.ExecResult
	done          chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 16)}
}

func (f *fakeNotifier) Notify(jobid string, status jobtypes.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, status)
	if status.Terminal() {
		f.done <- struct{}{}
	}
}

func (f *fakeNotifier) Store(jobid string, result jobtypes.ExecResult, callbackURL string, callbackMethod jobtypes.CallbackMethod, callbackDetailed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, result)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestPoolExecutesRegisteredAction(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("echo", func(ctx *Context, args []any, kwargs map[string]any) (json.RawMessage, error) {
		return json.Marshal(ctx.JobID)
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	q := memqueue.New[jobtypes.WorkItem]()
	notifier := newFakeNotifier()
	pool := NewPool("fast", q, registry, notifier, RetryPolicy{Attempts: 1, DelayMin: time.Millisecond, DelayMax: time.Millisecond}, testLogger(t), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Run(ctx)

	if err := q.Push(ctx, jobtypes.WorkItem{JobID: "job-1", Action: "echo"}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for terminal notification")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.stored) != 1 || notifier.stored[0].ExecStatus != "completed" {
		t.Fatalf("expected one completed result, got %+v", notifier.stored)
	}
}

func TestPoolRetriesThenSucceeds(t *testing.T) {
	registry := NewRegistry()
	var attempts int
	var mu sync.Mutex
	if err := registry.Register("flaky", func(ctx *Context, args []any, kwargs map[string]any) (json.RawMessage, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 2 {
			return nil, errors.New("transient failure")
		}
		return json.Marshal("ok")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	q := memqueue.New[jobtypes.WorkItem]()
	notifier := newFakeNotifier()
	pool := NewPool("fast", q, registry, notifier, RetryPolicy{Attempts: 3, DelayMin: time.Millisecond, DelayMax: 2 * time.Millisecond}, testLogger(t), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Run(ctx)

	if err := q.Push(ctx, jobtypes.WorkItem{JobID: "job-2", Action: "flaky"}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for terminal notification")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.stored) != 1 || notifier.stored[0].ExecStatus != "completed" {
		t.Fatalf("expected eventual success, got %+v", notifier.stored)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
}

func TestPoolExhaustsRetriesIntoException(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("always_fails", func(ctx *Context, args []any, kwargs map[string]any) (json.RawMessage, error) {
		return nil, errors.New("permanent failure")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	q := memqueue.New[jobtypes.WorkItem]()
	notifier := newFakeNotifier()
	pool := NewPool("fast", q, registry, notifier, RetryPolicy{Attempts: 2, DelayMin: time.Millisecond, DelayMax: time.Millisecond}, testLogger(t), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Run(ctx)

	if err := q.Push(ctx, jobtypes.WorkItem{JobID: "job-3", Action: "always_fails"}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for terminal notification")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.stored) != 1 || notifier.stored[0].ExecStatus != "exception" {
		t.Fatalf("expected exhausted retries to land in exception, got %+v", notifier.stored)
	}
}

func TestPoolUnknownActionBecomesException(t *testing.T) {
	registry := NewRegistry()
	q := memqueue.New[jobtypes.WorkItem]()
	notifier := newFakeNotifier()
	pool := NewPool("fast", q, registry, notifier, RetryPolicy{Attempts: 1, DelayMin: time.Millisecond, DelayMax: time.Millisecond}, testLogger(t), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Run(ctx)

	if err := q.Push(ctx, jobtypes.WorkItem{JobID: "job-4", Action: "nonexistent"}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for terminal notification")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.stored) != 1 || notifier.stored[0].ExecStatus != "exception" {
		t.Fatalf("expected unknown action to land in exception, got %+v", notifier.stored)
	}
}

func TestUniformBackoffWithinBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 50*time.Millisecond
	for i := 0; i < 50; i++ {
		d := uniformBackoff(min, max)
		if d < min || d >= max {
			t.Fatalf("uniformBackoff returned %v, want in [%v, %v)", d, min, max)
		}
	}
}

func TestUniformBackoffDegenerateRange(t *testing.T) {
	d := uniformBackoff(5*time.Millisecond, 5*time.Millisecond)
	if d != 5*time.Millisecond {
		t.Fatalf("expected degenerate range to return min, got %v", d)
	}
}
