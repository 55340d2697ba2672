package client

import (
	"context"
	"sort"

	"github.com/wbia/jobengine/internal/jobtypes"
)

type recoverableJob struct {
	jobID      string
	jobCounter int64
	record     *jobtypes.JournalRecord
	metadata   *jobtypes.Metadata
	readErr    error
}

// QueueInterruptedJobs implements §4.1's recovery procedure: enumerate
// every journal record, process them in increasing jobcounter order, and
// for each apply the five-case disposition. Call once at engine startup,
// after the Intake and Collector goroutines are running (it blocks on their
// replies) and before the HTTP layer starts submitting new jobs.
func (c *Client) QueueInterruptedJobs(ctx context.Context) error {
	if err := c.store.DeleteLeftoverLocks(); err != nil {
		c.log.Warn("client: recovery: failed to clear leftover locks", "error", err)
	}

	ids, err := c.store.ListJobIDs()
	if err != nil {
		return err
	}

	jobs := make([]recoverableJob, 0, len(ids))
	var maxCounter int64
	for _, id := range ids {
		rec, recErr := c.store.ReadJournal(id)
		md, mdErr := c.store.ReadMetadata(id)
		rj := recoverableJob{jobID: id, record: rec, metadata: md}
		if recErr != nil || mdErr != nil || md == nil {
			rj.readErr = firstNonNil(recErr, mdErr)
		} else {
			rj.jobCounter = md.JobCounter
			if md.JobCounter > maxCounter {
				maxCounter = md.JobCounter
			}
		}
		jobs = append(jobs, rj)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].jobCounter < jobs[j].jobCounter })

	if maxCounter > 0 {
		if _, err := c.intake.SetCounter(ctx, maxCounter); err != nil {
			c.log.Warn("client: recovery: failed to set counter", "error", err)
		}
	}

	for _, rj := range jobs {
		c.recoverOne(ctx, rj)
	}
	return nil
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func (c *Client) recoverOne(ctx context.Context, rj recoverableJob) {
	// Case 4: unreadable record or metadata.
	if rj.readErr != nil || rj.record == nil || rj.metadata == nil {
		c.log.Warn("client: recovery: unreadable store, marking corrupted", "jobid", rj.jobID, "error", rj.readErr)
		c.collector.Register(rj.jobID, jobtypes.StatusCorrupted, jobtypes.Metadata{JobID: rj.jobID})
		return
	}

	// Case 1: completed and past the archive horizon.
	if rj.record.Completed {
		if completedAt, err := c.clk.Parse(rj.metadata.Times.Completed); err == nil && !completedAt.IsZero() {
			if c.store.PastArchiveHorizon(completedAt, c.archiveHorizon, c.clk.Now()) {
				if err := c.store.Archive(rj.jobID); err != nil {
					c.log.Error("client: recovery: archive failed", "jobid", rj.jobID, "error", err)
				}
				return
			}
		}
		// Case 2: completed, still live.
		c.collector.Register(rj.jobID, jobtypes.StatusCompleted, *rj.metadata)
		return
	}

	// Case 3: retry attempts exhausted.
	if rj.record.Attempts >= c.maxAttempts {
		c.log.Warn("client: recovery: max attempts exceeded, suppressing", "jobid", rj.jobID, "attempts", rj.record.Attempts)
		c.collector.Register(rj.jobID, jobtypes.StatusSuppressed, *rj.metadata)
		return
	}

	// Case 5: re-submit, preserving identity and original timings.
	rj.record.Attempts++
	if err := c.store.WriteJournal(rj.jobID, *rj.record); err != nil {
		c.log.Error("client: recovery: failed to persist attempt increment", "jobid", rj.jobID, "error", err)
	}

	env := jobtypes.Envelope{
		Action:           rj.metadata.Action,
		Args:             rj.metadata.Args,
		Kwargs:           rj.metadata.Kwargs,
		CallbackURL:      rj.metadata.CallbackURL,
		CallbackMethod:   rj.metadata.CallbackMethod,
		CallbackDetailed: rj.metadata.CallbackDetailed,
		Lane:             rj.metadata.Lane,
		Request:          rj.record.Request,
		RestartJobID:     rj.jobID,
		RestartJobCtr:    rj.metadata.JobCounter,
		RestartReceived:  rj.metadata.Times.Received,
	}
	if _, err := c.intake.Submit(ctx, env); err != nil {
		c.log.Error("client: recovery: resubmit failed", "jobid", rj.jobID, "error", err)
	}
}
