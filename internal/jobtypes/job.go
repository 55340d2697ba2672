// Package jobtypes holds the data shapes shared across every tier of the
// job engine: intake, lane dispatch, worker execution, and the collector.
// Nothing in here owns behavior; it is the wire format the tiers agree on.
package jobtypes

import "encoding/json"

// Status is a job's position in the §4.5 state machine.
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusReceived   Status = "received"
	StatusAccepted   Status = "accepted"
	StatusQueued     Status = "queued"
	StatusWorking    Status = "working"
	StatusPublishing Status = "publishing"
	StatusCompleted  Status = "completed"
	StatusException  Status = "exception"
	StatusSuppressed Status = "suppressed"
	StatusCorrupted  Status = "corrupted"
)

// terminal reports whether a status is a sink the state machine never leaves.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusException, StatusSuppressed, StatusCorrupted:
		return true
	default:
		return false
	}
}

// transitionOrder is the legal non-terminal prefix of the state machine.
// Terminal states are reached from "publishing" (completed/exception) or
// registered directly during recovery (suppressed/corrupted).
var transitionOrder = map[Status]int{
	StatusReceived:   0,
	StatusAccepted:   1,
	StatusQueued:     2,
	StatusWorking:    3,
	StatusPublishing: 4,
}

// CanTransition reports whether moving from "from" to "to" is forward
// progress (or entry into a terminal state from any non-terminal state),
// never backward and never out of a terminal state.
func CanTransition(from, to Status) bool {
	if from == "" || from == StatusUnknown {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to.Terminal() {
		return true
	}
	fi, fok := transitionOrder[from]
	ti, tok := transitionOrder[to]
	if !fok || !tok {
		return false
	}
	return ti > fi
}

// CallbackMethod is the HTTP verb used for a completion callback.
type CallbackMethod string

const (
	CallbackGET  CallbackMethod = "GET"
	CallbackPOST CallbackMethod = "POST"
	CallbackPUT  CallbackMethod = "PUT"
)

// RequestContext captures the caller context at intake time: the HTTP
// endpoint and function the HTTP layer says it is calling on behalf of, plus
// the verbatim input payload, so recovery and status_all can report it back
// (§3 Job.request, supplemented feature in SPEC_FULL.md §3).
type RequestContext struct {
	Endpoint string          `json:"endpoint,omitempty"`
	Function string          `json:"function,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
}

// Times is the fixed timestamp bundle carried on every job (§3, §6).
// String fields use the canonical "YYYY-MM-DD HH:MM:SS ZZZ" format in the
// configured timezone; the *_sec fields are integer seconds.
type Times struct {
	Received      string `json:"received,omitempty"`
	Started       string `json:"started,omitempty"`
	Updated       string `json:"updated,omitempty"`
	Completed     string `json:"completed,omitempty"`
	Runtime       string `json:"runtime,omitempty"`
	RuntimeSec    *int64 `json:"runtime_sec,omitempty"`
	Turnaround    string `json:"turnaround,omitempty"`
	TurnaroundSec *int64 `json:"turnaround_sec,omitempty"`
}

// Envelope is the submission payload a caller hands to Client.Submit, and
// the shape Intake forwards on to workers and stores as metadata.request.
type Envelope struct {
	JobID            string             `json:"jobid,omitempty"`
	Action           string             `json:"action"`
	Args             []any              `json:"args,omitempty"`
	Kwargs           map[string]any     `json:"kwargs,omitempty"`
	CallbackURL      string             `json:"callback_url,omitempty"`
	CallbackMethod   CallbackMethod     `json:"callback_method,omitempty"`
	CallbackDetailed bool               `json:"callback_detailed,omitempty"`
	Lane             string             `json:"lane,omitempty"`
	Request          RequestContext     `json:"request,omitempty"`
	RestartJobID     string             `json:"restart_jobid,omitempty"`
	RestartJobCtr    int64              `json:"restart_jobcounter,omitempty"`
	RestartReceived  string             `json:"restart_received,omitempty"`
}

// Metadata is the full record the Collector persists to <jobid>.input and
// returns from Client.Metadata/Intake's §6 "metadata" route.
type Metadata struct {
	JobID            string         `json:"jobid"`
	JobCounter       int64          `json:"jobcounter"`
	Action           string         `json:"action"`
	Args             []any          `json:"args,omitempty"`
	Kwargs           map[string]any `json:"kwargs,omitempty"`
	CallbackURL      string         `json:"callback_url,omitempty"`
	CallbackMethod   CallbackMethod `json:"callback_method,omitempty"`
	CallbackDetailed bool           `json:"callback_detailed,omitempty"`
	Lane             string         `json:"lane"`
	Request          RequestContext `json:"request,omitempty"`
	Times            Times          `json:"times"`
}

// ExecResult is the §3/§6 output-store payload: <jobid>.output key "result".
type ExecResult struct {
	ExecStatus string          `json:"exec_status"`
	JSONResult json.RawMessage `json:"json_result,omitempty"`
	JobID      string          `json:"jobid"`
}

// JournalRecord is the <jobid>.pkl ground-truth-of-existence file (§3, I1).
type JournalRecord struct {
	Request   RequestContext `json:"request"`
	Attempts  int            `json:"attempts"`
	Completed bool           `json:"completed"`
}

// WorkItem is what a lane dispatcher forwards to a worker: everything the
// worker needs to execute and report back, without re-reading the store.
type WorkItem struct {
	JobID      string         `json:"jobid"`
	JobCounter int64          `json:"jobcounter"`
	Action     string         `json:"action"`
	Args       []any          `json:"args,omitempty"`
	Kwargs     map[string]any `json:"kwargs,omitempty"`

	CallbackURL      string         `json:"callback_url,omitempty"`
	CallbackMethod   CallbackMethod `json:"callback_method,omitempty"`
	CallbackDetailed bool           `json:"callback_detailed,omitempty"`
}

// StatusSummary is the §6 status_all row shape.
type StatusSummary struct {
	Status     Status `json:"status"`
	JobCounter int64  `json:"jobcounter"`
	Action     string `json:"action"`
	Endpoint   string `json:"endpoint,omitempty"`
	Function   string `json:"function,omitempty"`
	TimeQueued string `json:"time_queued,omitempty"`
	TimeStart  string `json:"time_start,omitempty"`
	TimeEnd    string `json:"time_end,omitempty"`
	Lane       string `json:"lane"`
}
