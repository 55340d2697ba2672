// Package httpapi is the §6 "Public API consumed by the HTTP layer":
// thin gin handlers over the Client facade, grounded on the teacher's
// internal/handlers package (response envelope, gin.H payloads) with its
// auth/session concerns stripped since this API has none.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError mirrors the teacher's error envelope shape.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, errorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
