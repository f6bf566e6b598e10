package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lecturenotes/internal/logging"
	"lecturenotes/internal/services"
)

const requestIDHeader = "X-Request-ID"

// requestContext tags the request context with a correlation id, reusing
// the client's X-Request-ID when present.
func (s *server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logging.ErrorWithContext(logging.WithContext(c.Request.Context(), s.logger),
			"handler panic", "api_panic",
			logging.Any("panic", recovered),
			logging.String("path", c.Request.URL.Path),
			logging.String(logging.FieldErrorHint, "report this as a bug"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	})
}

func (s *server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		logger := logging.WithContext(c.Request.Context(), s.logger)
		attrs := logging.Args(
			logging.String("method", c.Request.Method),
			logging.String("route", c.FullPath()),
			logging.Int("status", status),
			logging.Duration("latency", time.Since(start)),
			logging.String(logging.FieldEventType, "http_request"),
		)
		if status >= http.StatusInternalServerError {
			logger.Warn("request failed", attrs...)
			return
		}
		logger.Debug("request served", attrs...)
	}
}

// bearerAuth requires "Authorization: Bearer <token>" when token is set.
// Websocket clients cannot set headers from a browser, so ?token= is also
// accepted.
func bearerAuth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		presented, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			presented = c.Query("token")
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}
