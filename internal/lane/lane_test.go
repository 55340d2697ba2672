package lane

import (
	"context"
	"testing"

	"github.com/wbia/jobengine/internal/bus"
	"github.com/wbia/jobengine/internal/bus/memqueue"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/logger"
)

func newTestDispatcher(t *testing.T, lanes []string) *Dispatcher {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return New(log, lanes, func(string) bus.Queue[jobtypes.WorkItem] { return memqueue.New[jobtypes.WorkItem]() })
}

func TestNewAddsFallbackLane(t *testing.T) {
	d := newTestDispatcher(t, []string{"fast"})
	lanes := d.Lanes()
	found := false
	for _, l := range lanes {
		if l == "slow" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected implicit 'slow' lane, got %v", lanes)
	}
}

func TestResolveLaneFallsBackOnUnknown(t *testing.T) {
	d := newTestDispatcher(t, []string{"fast", "slow"})

	if resolved, ok := d.ResolveLane("fast"); !ok || resolved != "fast" {
		t.Fatalf("expected fast honored as-is, got %s, %v", resolved, ok)
	}
	if resolved, ok := d.ResolveLane("nonexistent"); ok || resolved != "slow" {
		t.Fatalf("expected fallback to slow, got %s, %v", resolved, ok)
	}
	if resolved, ok := d.ResolveLane(""); ok || resolved != "slow" {
		t.Fatalf("expected empty lane to fall back to slow, got %s, %v", resolved, ok)
	}
}

func TestDispatchPushesToResolvedQueue(t *testing.T) {
	d := newTestDispatcher(t, []string{"fast", "slow"})
	ctx := context.Background()

	item := jobtypes.WorkItem{JobID: "job-1", Action: "helloworld"}
	if err := d.Dispatch(ctx, item, "fast"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	q, ok := d.Queue("fast")
	if !ok {
		t.Fatalf("expected fast queue")
	}
	got, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if got.JobID != "job-1" {
		t.Fatalf("unexpected item popped: %+v", got)
	}
}

func TestDispatchUnknownLaneFallsBackToSlow(t *testing.T) {
	d := newTestDispatcher(t, []string{"fast", "slow"})
	ctx := context.Background()

	item := jobtypes.WorkItem{JobID: "job-2"}
	if err := d.Dispatch(ctx, item, "weird"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	q, _ := d.Queue("slow")
	got, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if got.JobID != "job-2" {
		t.Fatalf("unexpected item popped from slow: %+v", got)
	}
}
