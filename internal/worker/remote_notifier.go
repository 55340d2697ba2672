package worker

import (
	"context"

	"github.com/wbia/jobengine/internal/bus"
	"github.com/wbia/jobengine/internal/collector"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/logger"
)

// RemoteNotifier implements Notifier by pushing collector.RemoteEvents onto
// a queue instead of calling a Collector directly, so a Pool can run in
// cmd/worker, a separate OS process from the one hosting the Collector
// (SPEC_FULL.md §0's distributed-workers mode). The other end is
// collector.DrainRemote, running inside cmd/engine against the same queue.
type RemoteNotifier struct {
	events bus.Queue[collector.RemoteEvent]
	log    *logger.Logger
}

func NewRemoteNotifier(events bus.Queue[collector.RemoteEvent], log *logger.Logger) *RemoteNotifier {
	return &RemoteNotifier{events: events, log: log.With("component", "remote_notifier")}
}

func (r *RemoteNotifier) Notify(jobid string, status jobtypes.Status) {
	r.push(collector.RemoteEvent{Kind: collector.RemoteEventNotify, JobID: jobid, Status: status})
}

func (r *RemoteNotifier) Store(jobid string, result jobtypes.ExecResult, callbackURL string, callbackMethod jobtypes.CallbackMethod, callbackDetailed bool) {
	r.push(collector.RemoteEvent{
		Kind:             collector.RemoteEventStore,
		JobID:            jobid,
		Result:           result,
		CallbackURL:      callbackURL,
		CallbackMethod:   callbackMethod,
		CallbackDetailed: callbackDetailed,
	})
}

func (r *RemoteNotifier) push(ev collector.RemoteEvent) {
	// Bounded by the queue's own push timeout/backpressure; a remote worker
	// that can't reach Redis has bigger problems than this event.
	if err := r.events.Push(context.Background(), ev); err != nil {
		r.log.Error("remote_notifier: push failed", "jobid", ev.JobID, "kind", ev.Kind, "error", err)
	}
}
