// Package collector implements the Collector tier (§4.5): the sole owner
// of the in-memory status table and the sole writer of the durable input/
// output/journal stores, plus completion callback delivery.
package collector

import (
	"context"
	"sort"

	"github.com/wbia/jobengine/internal/callback"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/clock"
	"github.com/wbia/jobengine/internal/platform/logger"
	"github.com/wbia/jobengine/internal/store"
)

// jobState is the in-memory row the Collector's single goroutine owns.
// "The Collector is single-threaded on its socket; it serves one request
// at a time and therefore needs no internal locking around the in-memory
// map" (§4.5) — here that translates to: every field below is only ever
// touched from the run() goroutine.
type jobState struct {
	Status     jobtypes.Status
	JobCounter int64
	Metadata   jobtypes.Metadata
}

// Collector owns the job table and the durable stores behind a single
// mailbox goroutine (the in-process analogue of the original's ROUTER
// socket: one handler, messages processed strictly in arrival order).
type Collector struct {
	log   *logger.Logger
	clk   *clock.Clock
	store *store.Store
	cb    *callback.Delivery

	mailbox chan any
	stopped chan struct{}

	jobs  map[string]*jobState
	cache *statusCache
}

func New(log *logger.Logger, clk *clock.Clock, st *store.Store, cb *callback.Delivery) *Collector {
	return &Collector{
		log:     log,
		clk:     clk,
		store:   st,
		cb:      cb,
		mailbox: make(chan any, 256),
		stopped: make(chan struct{}),
		jobs:    make(map[string]*jobState),
		cache:   newStatusCache(),
	}
}

// Run processes the mailbox until ctx is done or Close is called. It is
// meant to run in its own goroutine, supervised by internal/app.
func (c *Collector) Run(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.mailbox:
			c.handle(ctx, msg)
		}
	}
}

func (c *Collector) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case notificationMsg:
		c.onNotification(m)
	case metadataMsg:
		c.onMetadata(m)
	case storeMsg:
		c.onStore(ctx, m)
	case registerMsg:
		c.onRegister(m)
	case statusQuery:
		m.Reply <- c.statusOf(m.JobID)
	case statusesQuery:
		out := make(map[string]jobtypes.Status, len(m.JobIDs))
		for _, id := range m.JobIDs {
			out[id] = c.statusOf(id)
		}
		m.Reply <- out
	case statusAllQuery:
		m.Reply <- c.statusAll()
	case metadataQuery:
		if js, ok := c.jobs[m.JobID]; ok {
			md := js.Metadata
			m.Reply <- &md
		} else {
			m.Reply <- nil
		}
	case resultQuery:
		res, err := c.store.ReadResult(m.JobID)
		if err != nil {
			if js, ok := c.jobs[m.JobID]; ok {
				js.Status = jobtypes.StatusCorrupted
				c.cache.invalidate(m.JobID)
			}
			m.Reply <- nil
			return
		}
		m.Reply <- res
	case listQuery:
		ids := make([]string, 0, len(c.jobs))
		for id := range c.jobs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		m.Reply <- ids
	}
}

func (c *Collector) statusOf(jobid string) jobtypes.Status {
	js, ok := c.jobs[jobid]
	if !ok {
		return jobtypes.StatusUnknown
	}
	return js.Status
}

func (c *Collector) jobOrCreate(jobid string) *jobState {
	js, ok := c.jobs[jobid]
	if !ok {
		js = &jobState{Status: jobtypes.StatusUnknown}
		c.jobs[jobid] = js
	}
	return js
}

// onNotification implements §4.5 "notification" handling.
func (c *Collector) onNotification(m notificationMsg) {
	js := c.jobOrCreate(m.JobID)
	if !jobtypes.CanTransition(js.Status, m.Status) {
		c.log.Warn("collector: dropping illegal transition", "jobid", m.JobID, "from", js.Status, "to", m.Status)
		return
	}

	if js.Status != jobtypes.StatusReceived && m.Status == jobtypes.StatusReceived {
		if err := c.store.CreateLockMarker(m.JobID); err != nil {
			c.log.Warn("collector: create lock marker failed", "jobid", m.JobID, "error", err)
		}
	}

	js.Status = m.Status
	now := c.clk.NowString()
	js.Metadata.Times.Updated = now

	switch m.Status {
	case jobtypes.StatusWorking:
		js.Metadata.Times.Started = now
	case jobtypes.StatusCompleted, jobtypes.StatusException:
		js.Metadata.Times.Completed = now
		c.recomputeDurations(js)
		if err := c.store.RemoveLockMarker(m.JobID); err != nil {
			c.log.Warn("collector: remove lock marker failed", "jobid", m.JobID, "error", err)
		}
		c.markJournalCompleted(m.JobID)
	}

	c.persistMetadataTimes(m.JobID, js)
	c.cache.invalidate(m.JobID)
}

func (c *Collector) recomputeDurations(js *jobState) {
	started, errS := c.clk.Parse(js.Metadata.Times.Started)
	completed, errC := c.clk.Parse(js.Metadata.Times.Completed)
	if errS == nil && errC == nil && !started.IsZero() && !completed.IsZero() {
		d := completed.Sub(started)
		js.Metadata.Times.Runtime = clock.FormatDurationHMS(d)
		sec := clock.DurationSeconds(d)
		js.Metadata.Times.RuntimeSec = &sec
	}
	received, errR := c.clk.Parse(js.Metadata.Times.Received)
	if errR == nil && errC == nil && !received.IsZero() && !completed.IsZero() {
		d := completed.Sub(received)
		js.Metadata.Times.Turnaround = clock.FormatDurationHMS(d)
		sec := clock.DurationSeconds(d)
		js.Metadata.Times.TurnaroundSec = &sec
	}
}

func (c *Collector) persistMetadataTimes(jobid string, js *jobState) {
	if js.Metadata.JobID == "" {
		return // metadata not written yet; nothing durable to update
	}
	if err := c.store.WriteMetadata(jobid, js.Metadata); err != nil {
		c.log.Warn("collector: persist metadata failed", "jobid", jobid, "error", err)
	}
}

func (c *Collector) markJournalCompleted(jobid string) {
	rec, err := c.store.ReadJournal(jobid)
	if err != nil {
		c.log.Warn("collector: read journal for completion mark failed", "jobid", jobid, "error", err)
		return
	}
	rec.Completed = true
	if err := c.store.WriteJournal(jobid, *rec); err != nil {
		c.log.Warn("collector: write journal completion mark failed", "jobid", jobid, "error", err)
	}
}

// onMetadata implements §4.5 "metadata" handling.
func (c *Collector) onMetadata(m metadataMsg) {
	js := c.jobOrCreate(m.Metadata.JobID)
	js.Metadata = m.Metadata
	js.JobCounter = m.Metadata.JobCounter
	if err := c.store.WriteMetadata(m.Metadata.JobID, js.Metadata); err != nil {
		c.log.Warn("collector: write metadata failed", "jobid", m.Metadata.JobID, "error", err)
	}
	c.cache.invalidate(m.Metadata.JobID)
}

// onStore implements §4.5 "store" handling: persist the result, then fire
// the completion callback out-of-band so it never blocks the mailbox.
func (c *Collector) onStore(ctx context.Context, m storeMsg) {
	if err := c.store.WriteResult(m.JobID, m.Result); err != nil {
		c.log.Warn("collector: write result failed", "jobid", m.JobID, "error", err)
		return
	}
	if m.CallbackURL == "" {
		return
	}
	payload := callback.Payload{JobID: m.JobID, Status: jobtypes.Status(m.Result.ExecStatus)}
	if m.CallbackDetailed {
		payload.JSONResult = m.Result.JSONResult
	}
	go c.cb.Send(ctx, m.CallbackURL, m.CallbackMethod, payload)
}

// onRegister implements §4.5 "register": recovery-time insertion of a job
// already in a terminal state, bypassing the transition guard entirely.
func (c *Collector) onRegister(m registerMsg) {
	c.jobs[m.JobID] = &jobState{Status: m.Status, JobCounter: m.Metadata.JobCounter, Metadata: m.Metadata}
	c.cache.invalidate(m.JobID)
}

func (c *Collector) statusAll() map[string]jobtypes.StatusSummary {
	out := make(map[string]jobtypes.StatusSummary, len(c.jobs))
	for jobid, js := range c.jobs {
		if cached, ok := c.cache.get(jobid); ok {
			out[jobid] = cached
			continue
		}
		summary := jobtypes.StatusSummary{
			Status:     js.Status,
			JobCounter: js.JobCounter,
			Action:     js.Metadata.Action,
			Endpoint:   js.Metadata.Request.Endpoint,
			Function:   js.Metadata.Request.Function,
			TimeQueued: js.Metadata.Times.Received,
			TimeStart:  js.Metadata.Times.Started,
			TimeEnd:    js.Metadata.Times.Completed,
			Lane:       js.Metadata.Lane,
		}
		c.cache.put(jobid, summary)
		out[jobid] = summary
	}
	return out
}

// ------------------------------------------------------------- public API
//
// Every method below sends to the mailbox from the caller's own goroutine
// and, for queries, blocks on a reply channel — the same embedded-reply-
// channel pattern internal/intake uses for its synchronous confirmations.

func (c *Collector) Notify(jobid string, status jobtypes.Status) {
	c.mailbox <- notificationMsg{JobID: jobid, Status: status}
}

func (c *Collector) PutMetadata(md jobtypes.Metadata) {
	c.mailbox <- metadataMsg{Metadata: md}
}

func (c *Collector) Store(jobid string, result jobtypes.ExecResult, callbackURL string, callbackMethod jobtypes.CallbackMethod, callbackDetailed bool) {
	c.mailbox <- storeMsg{
		JobID:            jobid,
		Result:           result,
		CallbackURL:      callbackURL,
		CallbackMethod:   callbackMethod,
		CallbackDetailed: callbackDetailed,
	}
}

func (c *Collector) Register(jobid string, status jobtypes.Status, md jobtypes.Metadata) {
	c.mailbox <- registerMsg{JobID: jobid, Status: status, Metadata: md}
}

func (c *Collector) Status(jobid string) jobtypes.Status {
	reply := make(chan jobtypes.Status, 1)
	c.mailbox <- statusQuery{JobID: jobid, Reply: reply}
	return <-reply
}

func (c *Collector) Statuses(jobids []string) map[string]jobtypes.Status {
	reply := make(chan map[string]jobtypes.Status, 1)
	c.mailbox <- statusesQuery{JobIDs: jobids, Reply: reply}
	return <-reply
}

func (c *Collector) StatusAll() map[string]jobtypes.StatusSummary {
	reply := make(chan map[string]jobtypes.StatusSummary, 1)
	c.mailbox <- statusAllQuery{Reply: reply}
	return <-reply
}

func (c *Collector) Metadata(jobid string) *jobtypes.Metadata {
	reply := make(chan *jobtypes.Metadata, 1)
	c.mailbox <- metadataQuery{JobID: jobid, Reply: reply}
	return <-reply
}

func (c *Collector) Result(jobid string) *jobtypes.ExecResult {
	reply := make(chan *jobtypes.ExecResult, 1)
	c.mailbox <- resultQuery{JobID: jobid, Reply: reply}
	return <-reply
}

func (c *Collector) List() []string {
	reply := make(chan []string, 1)
	c.mailbox <- listQuery{Reply: reply}
	return <-reply
}
