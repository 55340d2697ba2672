// Package intake implements the Intake Queue tier (§4.2): the single
// router that assigns identifiers and counters, records the three-message
// sequence with the Collector, and forwards each job to its lane.
package intake

import (
	"context"

	"github.com/google/uuid"

	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/lane"
	"github.com/wbia/jobengine/internal/platform/clock"
	"github.com/wbia/jobengine/internal/platform/logger"
)

// Collector is Intake's view of the collector: the subset of messages it
// sends during submission (§4.2 step 4, step 7).
type Collector interface {
	Notify(jobid string, status jobtypes.Status)
	PutMetadata(md jobtypes.Metadata)
}

// SubmitResult is the confirmation Intake replies with (§4.2 step 5).
type SubmitResult struct {
	JobID      string
	JobCounter int64
	Status     jobtypes.Status
}

type submitMsg struct {
	Envelope jobtypes.Envelope
	Reply    chan SubmitResult
}

type setCounterMsg struct {
	Value int64
	Reply chan int64
}

// Intake is the single long-lived router. The process-local counter is
// only ever touched from run(), so per §5 it needs no locking.
type Intake struct {
	log       *logger.Logger
	clk       *clock.Clock
	collector Collector
	lanes     *lane.Dispatcher

	mailbox chan any
	counter int64
}

func New(log *logger.Logger, clk *clock.Clock, collector Collector, lanes *lane.Dispatcher) *Intake {
	return &Intake{
		log:       log.With("component", "intake"),
		clk:       clk,
		collector: collector,
		lanes:     lanes,
		mailbox:   make(chan any, 256),
	}
}

// Run drains the mailbox until ctx is done.
func (i *Intake) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-i.mailbox:
			i.handle(ctx, msg)
		}
	}
}

func (i *Intake) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case submitMsg:
		i.onSubmit(ctx, m)
	case setCounterMsg:
		if m.Value > i.counter {
			i.counter = m.Value
		}
		m.Reply <- i.counter
	}
}

// onSubmit implements §4.2 steps 2-7.
func (i *Intake) onSubmit(ctx context.Context, m submitMsg) {
	env := m.Envelope

	var jobid string
	var jobcounter int64
	var received string

	if env.RestartJobID != "" {
		jobid = env.RestartJobID
		jobcounter = env.RestartJobCtr
		received = env.RestartReceived
		if jobcounter > i.counter {
			i.counter = jobcounter
		}
	} else {
		if env.JobID != "" {
			jobid = env.JobID
		} else {
			jobid = uuid.NewString()
		}
		i.counter++
		jobcounter = i.counter
		received = i.clk.NowString()
	}

	resolvedLane, ok := i.lanes.ResolveLane(env.Lane)
	if !ok {
		i.log.Warn("intake: unknown lane, falling back", "jobid", jobid, "requested", env.Lane, "fallback", resolvedLane)
	}
	env.Lane = resolvedLane

	// Step 4: three-message sequence to the Collector, order matters.
	i.collector.Notify(jobid, jobtypes.StatusReceived)
	i.collector.PutMetadata(jobtypes.Metadata{
		JobID:            jobid,
		JobCounter:       jobcounter,
		Action:           env.Action,
		Args:             env.Args,
		Kwargs:           env.Kwargs,
		CallbackURL:      env.CallbackURL,
		CallbackMethod:   env.CallbackMethod,
		CallbackDetailed: env.CallbackDetailed,
		Lane:             resolvedLane,
		Request:          env.Request,
		Times:            jobtypes.Times{Received: received},
	})
	i.collector.Notify(jobid, jobtypes.StatusAccepted)

	// Step 5: reply to the client before forwarding to the lane.
	m.Reply <- SubmitResult{JobID: jobid, JobCounter: jobcounter, Status: jobtypes.StatusReceived}

	// Step 6: forward to the chosen lane.
	item := jobtypes.WorkItem{
		JobID:            jobid,
		JobCounter:       jobcounter,
		Action:           env.Action,
		Args:             env.Args,
		Kwargs:           env.Kwargs,
		CallbackURL:      env.CallbackURL,
		CallbackMethod:   env.CallbackMethod,
		CallbackDetailed: env.CallbackDetailed,
	}
	if err := i.lanes.Dispatch(ctx, item, resolvedLane); err != nil {
		i.log.Error("intake: lane dispatch failed", "jobid", jobid, "lane", resolvedLane, "error", err)
		return
	}

	// Step 7.
	i.collector.Notify(jobid, jobtypes.StatusQueued)
}

// Submit sends env to Intake and blocks for its confirmation, matching the
// synchronous wait the Client facade's submit performs (§4.1).
func (i *Intake) Submit(ctx context.Context, env jobtypes.Envelope) (SubmitResult, error) {
	reply := make(chan SubmitResult, 1)
	select {
	case i.mailbox <- submitMsg{Envelope: env, Reply: reply}:
	case <-ctx.Done():
		return SubmitResult{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return SubmitResult{}, ctx.Err()
	}
}

// SetCounter implements the "__set_jobcounter__" control message (§4.2
// step 1, §4.1 recovery): set the global counter to at least value,
// replying with the counter now in effect. Modeled as a distinct typed
// message rather than a magic field on Envelope (SPEC_FULL.md §3c); the
// wire semantics Intake exposes to the Client facade are unchanged.
func (i *Intake) SetCounter(ctx context.Context, value int64) (int64, error) {
	reply := make(chan int64, 1)
	select {
	case i.mailbox <- setCounterMsg{Value: value, Reply: reply}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
