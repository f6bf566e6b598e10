package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"lecturenotes/internal/preflight"
)

// handleHealth answers 503 when any check fails so load balancers can use
// it directly.
func (s *server) handleHealth(c *gin.Context) {
	checks := s.health(c.Request.Context())
	ready := len(preflight.Failed(checks)) == 0
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, HealthResponse{Ready: ready, Checks: checks})
}

// handlePing is a cheap liveness probe; it never runs the preflight checks.
func (s *server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, PingResponse{
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		ActiveJobs:    s.runner.ActiveCount(),
	})
}
