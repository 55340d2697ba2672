// Package lane implements the Lane Dispatcher tier (§4.2): one named FIFO
// queue per configured lane, fanned out to from Intake and drained by the
// Worker Pool. A job naming an unconfigured lane falls back to "slow"
// rather than being rejected (§4.2 edge case).
package lane

import (
	"context"
	"fmt"

	"github.com/wbia/jobengine/internal/bus"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/logger"
)

const fallbackLane = "slow"

// Dispatcher owns one bus.Queue[WorkItem] per configured lane.
type Dispatcher struct {
	log    *logger.Logger
	queues map[string]bus.Queue[jobtypes.WorkItem]
	lanes  []string
}

// New builds a Dispatcher with one queue per lane, constructed by factory
// (memqueue.New[jobtypes.WorkItem] for the in-process topology, a
// redisqueue.New keyed per lane for the distributed one). lanes must
// include "slow" for ResolveLane's fallback to ever hold a real queue; New
// adds it automatically if missing.
func New(log *logger.Logger, lanes []string, factory func(lane string) bus.Queue[jobtypes.WorkItem]) *Dispatcher {
	lanes = ensureFallbackLane(lanes)
	d := &Dispatcher{log: log, queues: make(map[string]bus.Queue[jobtypes.WorkItem], len(lanes)), lanes: lanes}
	for _, l := range lanes {
		d.queues[l] = factory(l)
	}
	return d
}

func ensureFallbackLane(lanes []string) []string {
	for _, l := range lanes {
		if l == fallbackLane {
			return lanes
		}
	}
	return append(append([]string{}, lanes...), fallbackLane)
}

// ResolveLane maps a caller-requested lane name to one this Dispatcher
// actually has a queue for, falling back to "slow" for empty or unknown
// names. The bool reports whether the requested name was honored as-is.
func (d *Dispatcher) ResolveLane(requested string) (string, bool) {
	if requested == "" {
		return fallbackLane, false
	}
	if _, ok := d.queues[requested]; ok {
		return requested, true
	}
	return fallbackLane, false
}

// Dispatch resolves lane via ResolveLane and pushes item to that lane's
// queue. It does not mutate item; callers that need the resolved lane name
// (e.g. to record it on the job's metadata) must capture ResolveLane's
// return value themselves before calling Dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, item jobtypes.WorkItem, lane string) error {
	resolved, ok := d.ResolveLane(lane)
	if !ok && d.log != nil {
		d.log.Warn("lane: unknown lane, falling back", "jobid", item.JobID, "requested", lane, "fallback", resolved)
	}
	q, exists := d.queues[resolved]
	if !exists {
		return fmt.Errorf("lane: no queue for resolved lane %q", resolved)
	}
	return q.Push(ctx, item)
}

// Queue returns the underlying queue for a lane name, for the Worker Pool
// to Pop from directly.
func (d *Dispatcher) Queue(lane string) (bus.Queue[jobtypes.WorkItem], bool) {
	q, ok := d.queues[lane]
	return q, ok
}

// Lanes returns every configured lane name, including the implicit fallback.
func (d *Dispatcher) Lanes() []string {
	return append([]string{}, d.lanes...)
}

// Close shuts down every lane's queue.
func (d *Dispatcher) Close() error {
	var firstErr error
	for _, q := range d.queues {
		if err := q.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
