package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wbia/jobengine/internal/callback"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/clock"
	"github.com/wbia/jobengine/internal/platform/logger"
	"github.com/wbia/jobengine/internal/store"
)

func newTestCollector(t *testing.T) (*Collector, string, context.CancelFunc) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	clk := clock.New("UTC")
	dir := t.TempDir()
	st, err := store.New(dir, log, clk, 5*time.Second)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	cb := callback.New(log)
	c := New(log, clk, st, cb)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	return c, dir, cancel
}

func TestNotifyEnforcesForwardTransitions(t *testing.T) {
	c, _, cancel := newTestCollector(t)
	defer cancel()

	c.Notify("job-1", jobtypes.StatusReceived)
	c.Notify("job-1", jobtypes.StatusQueued) // skips accepted, still forward: legal
	// now try to go backward
	c.Notify("job-1", jobtypes.StatusReceived)

	if got := c.Status("job-1"); got != jobtypes.StatusQueued {
		t.Fatalf("expected illegal backward transition to be dropped, status = %s", got)
	}
}

func TestPutMetadataPersistsToStore(t *testing.T) {
	c, _, cancel := newTestCollector(t)
	defer cancel()

	c.Notify("job-2", jobtypes.StatusReceived)
	c.PutMetadata(jobtypes.Metadata{JobID: "job-2", JobCounter: 1, Action: "helloworld", Lane: "slow"})

	md := c.Metadata("job-2")
	if md == nil || md.Action != "helloworld" {
		t.Fatalf("expected persisted metadata, got %+v", md)
	}
}

func TestStoreWritesResultAndFiresCallback(t *testing.T) {
	var received chan struct{} = make(chan struct{}, 1)
	var gotJobID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotJobID = r.URL.Query().Get("jobid")
		w.WriteHeader(http.StatusOK)
		received <- struct{}{}
	}))
	defer srv.Close()

	c, _, cancel := newTestCollector(t)
	defer cancel()

	c.Notify("job-3", jobtypes.StatusReceived)
	c.PutMetadata(jobtypes.Metadata{JobID: "job-3", JobCounter: 1})
	c.Store("job-3", jobtypes.ExecResult{ExecStatus: "completed", JobID: "job-3"}, srv.URL, jobtypes.CallbackGET, false)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for callback delivery")
	}
	if gotJobID != "job-3" {
		t.Fatalf("expected callback for job-3, got %q", gotJobID)
	}

	res := c.Result("job-3")
	if res == nil || res.ExecStatus != "completed" {
		t.Fatalf("expected persisted result, got %+v", res)
	}
}

func TestResultAbsentIsNilWithoutDowngrade(t *testing.T) {
	c, _, cancel := newTestCollector(t)
	defer cancel()

	c.Notify("job-4", jobtypes.StatusReceived)
	c.PutMetadata(jobtypes.Metadata{JobID: "job-4", JobCounter: 1})

	res := c.Result("job-4")
	if res != nil {
		t.Fatalf("expected nil result for a job with no output file yet, got %+v", res)
	}
	if got := c.Status("job-4"); got == jobtypes.StatusCorrupted {
		t.Fatalf("a merely-absent output file should not downgrade status")
	}
}

func TestResultReadErrorDowngradesToCorrupted(t *testing.T) {
	c, dir, cancel := newTestCollector(t)
	defer cancel()

	c.Notify("job-4b", jobtypes.StatusReceived)
	c.PutMetadata(jobtypes.Metadata{JobID: "job-4b", JobCounter: 1})
	// corrupt the output store directly, bypassing the Collector's own
	// writer, to simulate on-disk corruption (§7 ErrStoreUnreadable).
	if err := os.WriteFile(filepath.Join(dir, "job-4b.output"), []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	res := c.Result("job-4b")
	if res != nil {
		t.Fatalf("expected nil result for an unreadable store, got %+v", res)
	}
	if got := c.Status("job-4b"); got != jobtypes.StatusCorrupted {
		t.Fatalf("expected status downgraded to corrupted on unreadable result, got %s", got)
	}
}

func TestRegisterBypassesTransitionGuard(t *testing.T) {
	c, _, cancel := newTestCollector(t)
	defer cancel()

	c.Register("job-5", jobtypes.StatusSuppressed, jobtypes.Metadata{JobID: "job-5", Action: "helloworld"})
	if got := c.Status("job-5"); got != jobtypes.StatusSuppressed {
		t.Fatalf("expected registered status to stick, got %s", got)
	}
}

func TestStatusAllReportsKnownJobs(t *testing.T) {
	c, _, cancel := newTestCollector(t)
	defer cancel()

	c.Notify("job-6", jobtypes.StatusReceived)
	c.PutMetadata(jobtypes.Metadata{JobID: "job-6", JobCounter: 7, Action: "helloworld", Lane: "fast"})

	all := c.StatusAll()
	row, ok := all["job-6"]
	if !ok {
		t.Fatalf("expected job-6 in status_all")
	}
	if row.Action != "helloworld" || row.Lane != "fast" || row.JobCounter != 7 {
		t.Fatalf("unexpected status_all row: %+v", row)
	}
}

func TestListReturnsSortedKnownJobIDs(t *testing.T) {
	c, _, cancel := newTestCollector(t)
	defer cancel()

	for _, id := range []string{"b", "a", "c"} {
		c.Notify(id, jobtypes.StatusReceived)
	}
	// give the single mailbox goroutine a moment to apply all three
	time.Sleep(20 * time.Millisecond)

	ids := c.List()
	want := []string{"a", "b", "c"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}
