// Package callback delivers the completion notification a submitter can
// attach to a job (§6). Delivery is fire-and-forget: a failed callback is
// logged, never retried, and never affects the job's own completed/
// exception status, grounded on the plain net/http.Client usage pattern the
// teacher's internal/platform/sendgrid.Client follows (minus its retry
// loop, which callback delivery deliberately does not carry).
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/logger"
)

// Payload is what gets delivered to a callback URL: the job's final status
// plus, when CallbackDetailed was set at submission time, the full result.
type Payload struct {
	JobID      string          `json:"jobid"`
	Status     jobtypes.Status `json:"status"`
	JSONResult json.RawMessage `json:"json_result,omitempty"`
}

// Delivery sends completion callbacks over HTTP using the verb and
// detail level recorded on the job at submission time.
type Delivery struct {
	log    *logger.Logger
	client *http.Client
}

func New(log *logger.Logger) *Delivery {
	return &Delivery{log: log, client: &http.Client{Timeout: 10 * time.Second}}
}

// Send delivers payload to callbackURL using method. GET/PUT encode the
// payload as query parameters (jobid, status, and json_result when
// detailed); POST sends it as a JSON body. Any failure is logged and
// swallowed: callback delivery never blocks or fails the job it reports on.
func (d *Delivery) Send(ctx context.Context, callbackURL string, method jobtypes.CallbackMethod, payload Payload) {
	callbackURL = strings.TrimSpace(callbackURL)
	if callbackURL == "" {
		return
	}
	if method == "" {
		method = jobtypes.CallbackGET
	}

	req, err := d.buildRequest(ctx, callbackURL, method, payload)
	if err != nil {
		d.log.Warn("callback: failed to build request", "jobid", payload.JobID, "url", callbackURL, "error", err)
		return
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warn("callback: delivery failed", "jobid", payload.JobID, "url", callbackURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		d.log.Warn("callback: non-2xx response", "jobid", payload.JobID, "url", callbackURL, "status", resp.StatusCode)
		return
	}
	d.log.Debug("callback: delivered", "jobid", payload.JobID, "url", callbackURL, "status", resp.StatusCode)
}

func (d *Delivery) buildRequest(ctx context.Context, callbackURL string, method jobtypes.CallbackMethod, payload Payload) (*http.Request, error) {
	switch method {
	case jobtypes.CallbackPOST:
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("callback: marshal payload: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	default:
		u, err := url.Parse(callbackURL)
		if err != nil {
			return nil, fmt.Errorf("callback: parse url: %w", err)
		}
		q := u.Query()
		q.Set("jobid", payload.JobID)
		q.Set("status", string(payload.Status))
		if len(payload.JSONResult) > 0 {
			q.Set("json_result", string(payload.JSONResult))
		}
		u.RawQuery = q.Encode()
		verb := http.MethodGet
		if method == jobtypes.CallbackPUT {
			verb = http.MethodPut
		}
		return http.NewRequestWithContext(ctx, verb, u.String(), nil)
	}
}
