package preflight

import (
	"context"

	"lecturenotes/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// minFreeBytes is the workspace headroom needed for uploads and rendered slides.
const minFreeBytes = 1 << 30

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir))
	results = append(results, CheckFreeSpace("Workspace free space", cfg.Paths.WorkspaceDir, minFreeBytes))

	for _, status := range CheckSystemDeps(cfg) {
		r := Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: status.Detail}
		if r.Detail == "" {
			r.Detail = status.Command
		}
		results = append(results, r)
	}

	results = append(results, CheckLLM(ctx, "LLM API", cfg.LLM))

	if cfg.Results.Backend == config.ResultsBackendRedis {
		results = append(results, CheckRedis(ctx, cfg.Results.RedisAddr, cfg.Results.RedisPassword, cfg.Results.RedisDB))
	}
	if cfg.History.Backend == config.HistoryBackendPostgres {
		results = append(results, CheckPostgres(ctx, cfg.History.DSN))
	}

	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
