// Package client implements the Client Interface facade (§4.1): the
// in-process surface the HTTP layer calls, plus the crash-recovery
// re-queue procedure run once at engine startup.
package client

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/wbia/jobengine/internal/intake"
	"github.com/wbia/jobengine/internal/jobengineerr"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/clock"
	"github.com/wbia/jobengine/internal/platform/logger"
	"github.com/wbia/jobengine/internal/store"
)

var jobidGrammar = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const maxJobIDLen = 32

// Collector is the facade's view of the Collector for reads and recovery
// registration.
type Collector interface {
	Status(jobid string) jobtypes.Status
	Statuses(jobids []string) map[string]jobtypes.Status
	StatusAll() map[string]jobtypes.StatusSummary
	Metadata(jobid string) *jobtypes.Metadata
	Result(jobid string) *jobtypes.ExecResult
	List() []string
	Register(jobid string, status jobtypes.Status, md jobtypes.Metadata)
}

// Client is the C1 facade.
type Client struct {
	log       *logger.Logger
	clk       *clock.Clock
	store     *store.Store
	intake    *intake.Intake
	collector Collector

	archiveHorizon time.Duration
	maxAttempts    int
}

func New(log *logger.Logger, clk *clock.Clock, st *store.Store, ik *intake.Intake, collector Collector, archiveHorizon time.Duration, maxAttempts int) *Client {
	return &Client{
		log:            log.With("component", "client"),
		clk:            clk,
		store:          st,
		intake:         ik,
		collector:      collector,
		archiveHorizon: archiveHorizon,
		maxAttempts:    maxAttempts,
	}
}

// SubmitRequest mirrors the §4.1 submit operation's inputs.
type SubmitRequest struct {
	Action           string
	Args             []any
	Kwargs           map[string]any
	CallbackURL      string
	CallbackMethod   jobtypes.CallbackMethod
	CallbackDetailed bool
	Lane             string
	JobID            string
	Request          jobtypes.RequestContext
}

// ValidateJobID enforces the §6 grammar: `^[A-Za-z0-9_-]+$`, length <= 32.
func ValidateJobID(jobid string) error {
	if jobid == "" {
		return nil
	}
	if len(jobid) > maxJobIDLen || !jobidGrammar.MatchString(jobid) {
		return fmt.Errorf("%w: %q", jobengineerr.ErrInvalidJobID, jobid)
	}
	return nil
}

// Submit implements §4.1: validate, forward to Intake, wait for
// confirmation, then persist the journal record. No durable state is
// created if the caller-supplied jobid is malformed.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := ValidateJobID(req.JobID); err != nil {
		return "", err
	}
	jobid := req.JobID
	if jobid == "" {
		jobid = uuid.NewString()
	}

	env := jobtypes.Envelope{
		JobID:            jobid,
		Action:           req.Action,
		Args:             req.Args,
		Kwargs:           req.Kwargs,
		CallbackURL:      req.CallbackURL,
		CallbackMethod:   req.CallbackMethod,
		CallbackDetailed: req.CallbackDetailed,
		Lane:             req.Lane,
		Request:          req.Request,
	}

	res, err := c.intake.Submit(ctx, env)
	if err != nil {
		return "", fmt.Errorf("client: submit: %w", err)
	}

	rec := jobtypes.JournalRecord{Request: req.Request, Attempts: 0, Completed: false}
	if err := c.store.WriteJournal(res.JobID, rec); err != nil {
		c.log.Error("client: failed to persist journal on submit", "jobid", res.JobID, "error", err)
	}

	return res.JobID, nil
}

func (c *Client) Status(jobid string) jobtypes.Status {
	return c.collector.Status(jobid)
}

func (c *Client) Statuses(jobids []string) map[string]jobtypes.Status {
	return c.collector.Statuses(jobids)
}

func (c *Client) StatusAll() map[string]jobtypes.StatusSummary {
	return c.collector.StatusAll()
}

func (c *Client) Metadata(jobid string) *jobtypes.Metadata {
	return c.collector.Metadata(jobid)
}

// ResultResponse is the §6 result route's return shape: result is nil for
// a non-terminal job.
type ResultResponse struct {
	Status jobtypes.Status
	Result *jobtypes.ExecResult
}

func (c *Client) Result(jobid string) ResultResponse {
	status := c.collector.Status(jobid)
	if !status.Terminal() {
		return ResultResponse{Status: status}
	}
	return ResultResponse{Status: status, Result: c.collector.Result(jobid)}
}

func (c *Client) List() []string {
	return c.collector.List()
}
