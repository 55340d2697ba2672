package collector

import (
	"context"

	"github.com/wbia/jobengine/internal/bus"
	"github.com/wbia/jobengine/internal/jobtypes"
)

// RemoteEvent is the JSON-safe wire shape a distributed worker process
// (cmd/worker, running against redisqueue) uses to report back to a
// Collector living in a different OS process (SPEC_FULL.md §0: the one
// tier spec.md calls out as genuinely multi-process). Exactly one of
// Notification/Store is populated, selected by Kind.
type RemoteEvent struct {
	Kind string `json:"kind"` // "notify" or "store"

	JobID  string          `json:"jobid"`
	Status jobtypes.Status `json:"status,omitempty"`

	Result           jobtypes.ExecResult    `json:"result,omitempty"`
	CallbackURL      string                 `json:"callback_url,omitempty"`
	CallbackMethod   jobtypes.CallbackMethod `json:"callback_method,omitempty"`
	CallbackDetailed bool                   `json:"callback_detailed,omitempty"`
}

const (
	RemoteEventNotify = "notify"
	RemoteEventStore  = "store"
)

// Apply feeds a RemoteEvent into the same mailbox local Notify/Store calls
// use, so remote and in-process workers are indistinguishable once their
// events reach the Collector.
func (c *Collector) Apply(ev RemoteEvent) {
	switch ev.Kind {
	case RemoteEventNotify:
		c.Notify(ev.JobID, ev.Status)
	case RemoteEventStore:
		c.Store(ev.JobID, ev.Result, ev.CallbackURL, ev.CallbackMethod, ev.CallbackDetailed)
	}
}

// DrainRemote pulls RemoteEvents off q until ctx is done, applying each to
// c. Run this in its own goroutine on the engine side when
// Config.DistributedWorkers is enabled.
func DrainRemote(ctx context.Context, q bus.Queue[RemoteEvent], c *Collector) {
	for {
		ev, err := q.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		c.Apply(ev)
	}
}
