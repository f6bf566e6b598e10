package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"lecturenotes/internal/config"
	"lecturenotes/internal/history"
	"lecturenotes/internal/jobs"
	"lecturenotes/internal/logging"
	"lecturenotes/internal/mapping"
	"lecturenotes/internal/preflight"
	"lecturenotes/internal/realtime"
	"lecturenotes/internal/workflow"
)

const defaultPollInterval = 500 * time.Millisecond

// HealthFunc runs readiness checks.
type HealthFunc func(ctx context.Context) []preflight.Result

// Dependencies are the services the handlers call. History, Embedder and
// Realtime are optional; their routes answer 503 when unset.
type Dependencies struct {
	Config   *config.Config
	Jobs     *jobs.Manager
	Runner   *workflow.Runner
	History  history.Store
	Embedder mapping.Embedder
	Realtime *realtime.Sessions
	Health   HealthFunc
	Logger   *slog.Logger
	// PollInterval paces websocket progress updates.
	PollInterval time.Duration
}

type server struct {
	cfg          *config.Config
	jobs         *jobs.Manager
	runner       *workflow.Runner
	history      history.Store
	embedder     mapping.Embedder
	realtime     *realtime.Sessions
	health       HealthFunc
	logger       *slog.Logger
	pollInterval time.Duration
	maxUpload    int64
	startedAt    time.Time
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil || deps.Jobs == nil || deps.Runner == nil {
		return nil, fmt.Errorf("api: config, jobs and runner are required")
	}
	s := &server{
		cfg:          deps.Config,
		jobs:         deps.Jobs,
		runner:       deps.Runner,
		history:      deps.History,
		embedder:     deps.Embedder,
		realtime:     deps.Realtime,
		health:       deps.Health,
		logger:       logging.NewComponentLogger(deps.Logger, "api"),
		pollInterval: deps.PollInterval,
		maxUpload:    int64(deps.Config.API.MaxUploadMB) << 20,
		startedAt:    time.Now(),
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if s.health == nil {
		cfg := deps.Config
		s.health = func(ctx context.Context) []preflight.Result { return preflight.RunAll(ctx, cfg) }
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(s.requestContext(), s.recovery(), s.accessLog())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/ping", s.handlePing)

	authed := r.Group("/", bearerAuth(deps.Config.API.Token))
	authed.POST("/api/jobs", s.handleSubmit)
	authed.GET("/api/jobs", s.handleListJobs)
	authed.GET("/api/jobs/:id", s.handleGetJob)
	authed.GET("/api/jobs/:id/partial", s.handlePartial)
	authed.POST("/api/jobs/:id/cancel", s.handleCancel)
	authed.DELETE("/api/jobs/:id", s.handleDeleteJob)
	authed.GET("/status/:id", s.handleStatus)
	authed.GET("/result/:id", s.handleResult)
	authed.GET("/ws/status/:id", s.handleStatusStream)

	authed.GET("/api/history", s.handleHistoryList)
	authed.GET("/api/history/search", s.handleHistorySearch)
	authed.GET("/api/history/:filename", s.handleHistoryGet)
	authed.DELETE("/api/history/:filename", s.handleHistoryDelete)

	authed.POST("/api/realtime/start", s.handleRealtimeStart)
	authed.POST("/api/realtime/:id/process", s.handleRealtimeProcess)
	authed.GET("/api/realtime/:id", s.handleRealtimeResult)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, ErrorResponse{Error: "route not found"})
	})
	return r, nil
}
