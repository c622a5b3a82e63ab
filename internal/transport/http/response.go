package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy-engine/internal/domain"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// StatusFor maps an error kind to a stable HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrStaleSubmission):
		return http.StatusConflict, "stale_submission"
	case errors.Is(err, domain.ErrDuplicateExhausted):
		return http.StatusServiceUnavailable, "duplicate_exhausted"
	case errors.Is(err, domain.ErrAuthoring):
		return http.StatusBadGateway, "authoring_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondDomainError writes err with the status of its kind. Internal errors
// are not echoed to the client.
func RespondDomainError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		RespondError(c, status, code, errors.New("internal error"))
		return
	}
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
