package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wbia/jobengine/internal/client"
	"github.com/wbia/jobengine/internal/jobengineerr"
	"github.com/wbia/jobengine/internal/jobtypes"
)

// Handler adapts the Client facade to the §6 route table.
type Handler struct {
	client *client.Client
}

func NewHandler(c *client.Client) *Handler {
	return &Handler{client: c}
}

type submitRequest struct {
	Action           string                  `json:"action" binding:"required"`
	Args             []any                   `json:"args"`
	Kwargs           map[string]any          `json:"kwargs"`
	CallbackURL      string                  `json:"callback_url"`
	CallbackMethod   jobtypes.CallbackMethod `json:"callback_method"`
	CallbackDetailed bool                    `json:"callback_detailed"`
	Lane             string                  `json:"lane"`
	JobID            string                  `json:"jobid"`
}

// POST /api/jobs
func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	jobid, err := h.client.Submit(c.Request.Context(), client.SubmitRequest{
		Action:           req.Action,
		Args:             req.Args,
		Kwargs:           req.Kwargs,
		CallbackURL:      req.CallbackURL,
		CallbackMethod:   req.CallbackMethod,
		CallbackDetailed: req.CallbackDetailed,
		Lane:             req.Lane,
		JobID:            req.JobID,
		Request: jobtypes.RequestContext{
			Endpoint: c.FullPath(),
			Function: req.Action,
		},
	})
	if err != nil {
		if errors.Is(err, jobengineerr.ErrInvalidJobID) {
			respondError(c, http.StatusBadRequest, "invalid_jobid", err)
			return
		}
		respondError(c, http.StatusInternalServerError, "submit_failed", err)
		return
	}
	respondOK(c, gin.H{"jobid": jobid})
}

// GET /api/jobs
func (h *Handler) List(c *gin.Context) {
	respondOK(c, gin.H{"jobids": h.client.List()})
}

// GET /api/jobs/:id/status
func (h *Handler) Status(c *gin.Context) {
	jobid := c.Param("id")
	respondOK(c, gin.H{"jobid": jobid, "status": h.client.Status(jobid)})
}

// GET /api/jobs/status_all
func (h *Handler) StatusAll(c *gin.Context) {
	respondOK(c, h.client.StatusAll())
}

// GET /api/jobs/statuses?ids=...
//
// Accepts either a JSON array (`["a","b"]`) or the bracketed
// comma-separated form (`[a,b]`) the original client library used, per
// §6's "Batch variant statuses(ids)".
func (h *Handler) Statuses(c *gin.Context) {
	raw := c.Query("ids")
	ids, err := parseIDList(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_ids", err)
		return
	}
	respondOK(c, h.client.Statuses(ids))
}

func parseIDList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err == nil {
		return ids, nil
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// GET /api/jobs/:id/metadata
func (h *Handler) Metadata(c *gin.Context) {
	jobid := c.Param("id")
	md := h.client.Metadata(jobid)
	if md == nil {
		respondError(c, http.StatusNotFound, "unknown_job", jobengineerr.ErrUnknownJob)
		return
	}
	respondOK(c, md)
}

// GET /api/jobs/:id/result
func (h *Handler) Result(c *gin.Context) {
	jobid := c.Param("id")
	res := h.client.Result(jobid)
	respondOK(c, gin.H{"status": res.Status, "result": res.Result})
}
