package collector

import "github.com/wbia/jobengine/internal/jobtypes"

// notificationMsg updates the in-memory status table (§4.5 "notification").
type notificationMsg struct {
	JobID  string
	Status jobtypes.Status
}

// metadataMsg writes the full metadata envelope to <jobid>.input (§4.5 "metadata").
type metadataMsg struct {
	Metadata jobtypes.Metadata
}

// storeMsg writes a result to <jobid>.output and fires the completion
// callback if configured (§4.5 "store").
type storeMsg struct {
	JobID            string
	Result           jobtypes.ExecResult
	CallbackURL      string
	CallbackMethod   jobtypes.CallbackMethod
	CallbackDetailed bool
}

// registerMsg inserts a job already in a terminal state, used only during
// recovery (§4.5 "register").
type registerMsg struct {
	JobID    string
	Status   jobtypes.Status
	Metadata jobtypes.Metadata
}

type statusQuery struct {
	JobID string
	Reply chan jobtypes.Status
}

type statusesQuery struct {
	JobIDs []string
	Reply  chan map[string]jobtypes.Status
}

type statusAllQuery struct {
	Reply chan map[string]jobtypes.StatusSummary
}

type metadataQuery struct {
	JobID string
	Reply chan *jobtypes.Metadata
}

type resultQuery struct {
	JobID string
	Reply chan *jobtypes.ExecResult
}

type listQuery struct {
	Reply chan []string
}
