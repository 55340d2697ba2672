package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"runtime/debug"
	"time"

	"github.com/wbia/jobengine/internal/bus"
	"github.com/wbia/jobengine/internal/jobengineerr"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/logger"
)

// Notifier is the worker's view of the Collector: notifications plus the
// final store call. Kept narrow so tests can fake it without pulling in
// the whole collector package.
type Notifier interface {
	Notify(jobid string, status jobtypes.Status)
	Store(jobid string, result jobtypes.ExecResult, callbackURL string, callbackMethod jobtypes.CallbackMethod, callbackDetailed bool)
}

// RetryPolicy is the §4.4/§6 bounded-retry tunable set.
type RetryPolicy struct {
	Attempts int // hard ceiling 10, enforced by internal/platform/config
	DelayMin time.Duration
	DelayMax time.Duration
}

// Pool runs one lane's workers: a fixed number of goroutines, each pulling
// one WorkItem at a time from queue and executing it to completion before
// pulling the next (§4.4: "one job per worker at a time").
type Pool struct {
	lane     string
	queue    bus.Queue[jobtypes.WorkItem]
	registry *Registry
	notifier Notifier
	retry    RetryPolicy
	log      *logger.Logger
	workers  int
}

func NewPool(lane string, queue bus.Queue[jobtypes.WorkItem], registry *Registry, notifier Notifier, retry RetryPolicy, log *logger.Logger, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{lane: lane, queue: queue, registry: registry, notifier: notifier, retry: retry, log: log.With("lane", lane), workers: workers}
}

// Run starts p.workers goroutines, each blocking on the lane queue until
// ctx is done.
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.loop(ctx, i)
	}
}

func (p *Pool) loop(ctx context.Context, id int) {
	log := p.log.With("worker_id", id)
	for {
		item, err := p.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("worker: pop failed, retrying", "error", err)
			continue
		}
		p.execute(ctx, log, item)
	}
}

func (p *Pool) execute(ctx context.Context, log *logger.Logger, item jobtypes.WorkItem) {
	p.notifier.Notify(item.JobID, jobtypes.StatusWorking)

	handler, ok := p.registry.Get(item.Action)
	var jsonResult json.RawMessage
	var execStatus string

	if !ok {
		err := fmt.Errorf("%w: action=%q", jobengineerr.ErrActionNotFound, item.Action)
		jsonResult, _ = json.Marshal(err.Error())
		execStatus = "exception"
		log.Warn("worker: action not found", "jobid", item.JobID, "action", item.Action)
	} else {
		jsonResult, execStatus = p.runWithRetry(ctx, log, handler, item)
	}

	p.notifier.Notify(item.JobID, jobtypes.StatusPublishing)

	result := jobtypes.ExecResult{ExecStatus: execStatus, JSONResult: jsonResult, JobID: item.JobID}
	p.notifier.Store(item.JobID, result, item.CallbackURL, item.CallbackMethod, item.CallbackDetailed)

	terminal := jobtypes.StatusCompleted
	if execStatus != "completed" {
		terminal = jobtypes.StatusException
	}
	p.notifier.Notify(item.JobID, terminal)

	// §4.4 step 8: drop references before blocking on the next job.
	jsonResult = nil
}

// runWithRetry implements §4.4 step 5: up to retry.Attempts invocations,
// uniformly random backoff in [DelayMin, DelayMax] between attempts.
func (p *Pool) runWithRetry(ctx context.Context, log *logger.Logger, handler Handler, item jobtypes.WorkItem) (json.RawMessage, string) {
	attempts := p.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	workerCtx := &Context{JobID: item.JobID}

	var lastErr error
retryLoop:
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := invoke(workerCtx, handler, item.Args, item.Kwargs)
		if err == nil {
			return result, "completed"
		}
		lastErr = err
		log.Warn("worker: action attempt failed", "jobid", item.JobID, "action", item.Action, "attempt", attempt, "max_attempts", attempts, "error", err)
		if attempt == attempts {
			break
		}
		delay := uniformBackoff(p.retry.DelayMin, p.retry.DelayMax)
		select {
		case <-ctx.Done():
			break retryLoop
		case <-time.After(delay):
		}
	}

	trace := fmt.Sprintf("%s\n%s", lastErr.Error(), debug.Stack())
	raw, _ := json.Marshal(trace)
	return raw, "exception"
}

// uniformBackoff returns a uniformly random delay in [min, max) (exactly min
// when max <= min), per §4.4's
// "uniformly random backoff" (this engine's jittered-exponential sibling,
// internal/jobs/orchestrator.computeBackoff in the teacher, applies to a
// different retry surface; the spec pins this one to a plain uniform draw).
func uniformBackoff(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// invoke runs handler, recovering a panic into an error so one bad action
// can't take down the whole worker goroutine (§4.7: business exceptions
// surface as the job's terminal state, never a worker crash).
func invoke(ctx *Context, handler Handler, args []any, kwargs map[string]any) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, args, kwargs)
}
