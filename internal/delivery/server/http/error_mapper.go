package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Amit95688/TDS/internal/delivery/server/app"
	"github.com/Amit95688/TDS/internal/shared/logging"
)

const internalErrorDetail = "Internal server error"

// errorBody is the shape of every failure response.
type errorBody struct {
	Detail string `json:"detail"`
	Status string `json:"status"`
}

// mapDomainError translates a service error into an HTTP status code and a
// user-facing detail. Client errors keep the message given at the failure
// site; collaborator failures keep only their summary, never the cause.
//
// Returns (0, "") if the error is not a recognized domain error.
func mapDomainError(err error) (status int, detail string) {
	if err == nil {
		return 0, ""
	}

	switch {
	case errors.Is(err, app.ErrAuth):
		return http.StatusForbidden, messageBefore(err, app.ErrAuth)

	case errors.Is(err, app.ErrValidation):
		return http.StatusBadRequest, messageBefore(err, app.ErrValidation)

	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, messageBefore(err, app.ErrNotFound)

	case errors.Is(err, app.ErrConflict):
		return http.StatusConflict, messageBefore(err, app.ErrConflict)

	case errors.Is(err, app.ErrGeneration):
		return http.StatusInternalServerError, messageThrough(err, app.ErrGeneration)

	case errors.Is(err, app.ErrPublish):
		detail := messageThrough(err, app.ErrPublish)
		if errors.Is(err, app.ErrPartialUpdate) {
			detail += " (" + app.ErrPartialUpdate.Error() + ")"
		}
		return http.StatusInternalServerError, detail

	case errors.Is(err, app.ErrUnavailable):
		return http.StatusServiceUnavailable, messageBefore(err, app.ErrUnavailable)

	default:
		return 0, ""
	}
}

// messageBefore returns the caller-supplied prefix of "msg: sentinel".
func messageBefore(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "+sentinel.Error()); i > 0 {
		return msg[:i]
	}
	return msg
}

// messageThrough returns "msg: sentinel" and drops the wrapped cause.
func messageThrough(err, sentinel error) string {
	msg := err.Error()
	marker := ": " + sentinel.Error()
	if i := strings.Index(msg, marker); i > 0 {
		return msg[:i+len(marker)]
	}
	return sentinel.Error()
}

func writeJSONError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, errorBody{Detail: detail, Status: "error"})
}

// writeMappedError writes an error response using domain error mapping.
// Unrecognized errors become a generic 500 and are logged with their cause.
func writeMappedError(c *gin.Context, logger logging.Logger, err error) {
	logger = logging.FromContext(c.Request.Context(), logger)
	if status, detail := mapDomainError(err); status != 0 {
		if status >= http.StatusInternalServerError {
			logger.Error("%s %s -> %d: %v", c.Request.Method, c.FullPath(), status, err)
		}
		writeJSONError(c, status, detail)
		return
	}
	logger.Error("%s %s -> unhandled error: %v", c.Request.Method, c.FullPath(), err)
	writeJSONError(c, http.StatusInternalServerError, internalErrorDetail)
}
