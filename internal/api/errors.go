package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lecturenotes/internal/logging"
	"lecturenotes/internal/services"
)

var errServiceDisabled = services.Wrap(services.ErrConfiguration, "api", "route", "feature not configured", nil)

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindInput:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindExternal:
		return http.StatusBadGateway
	case services.KindTimeout:
		return http.StatusGatewayTimeout
	case services.KindConfiguration, services.KindResource:
		return http.StatusServiceUnavailable
	case services.KindCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto an HTTP status and logs server-side failures.
func (s *server) writeError(c *gin.Context, err error) {
	details := services.Details(err)
	status := statusFor(details.Kind)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
	}
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(logging.WithContext(c.Request.Context(), s.logger),
			"request failed", "api_error",
			logging.String("route", c.FullPath()),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.String(logging.FieldErrorHint, details.Hint),
			logging.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: details.Message,
		Kind:  string(details.Kind),
		Hint:  details.Hint,
	})
}

func (s *server) writeMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}
