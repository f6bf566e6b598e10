package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sys/unix"

	"lecturenotes/internal/config"
	"lecturenotes/internal/deps"
	"lecturenotes/internal/services/llm"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("LLM API", err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(st.Bavail) * uint64(st.Bsize) //nolint:gosec
	detail := fmt.Sprintf("%s (%s free)", path, humanBytes(free))
	if free < minBytes {
		return Result{Name: name, Detail: detail + fmt.Sprintf(", need %s", humanBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckRedis pings the results redis server.
func CheckRedis(ctx context.Context, addr, password string, db int) Result {
	const name = "Redis results store"
	if strings.TrimSpace(addr) == "" {
		return Result{Name: name, Detail: "missing address"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	defer client.Close()
	if err := client.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: summarizeError("redis", err)}
	}
	return Result{Name: name, Passed: true, Detail: addr + " reachable"}
}

// CheckPostgres connects to the history database and verifies the vector
// extension is installable.
func CheckPostgres(ctx context.Context, dsn string) Result {
	const name = "Postgres history store"
	if strings.TrimSpace(dsn) == "" {
		return Result{Name: name, Detail: "missing dsn"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := pgx.Connect(checkCtx, dsn)
	if err != nil {
		return Result{Name: name, Detail: summarizeError("postgres", err)}
	}
	defer conn.Close(context.Background())

	var available bool
	err = conn.QueryRow(checkCtx, `SELECT EXISTS (SELECT 1 FROM pg_available_extensions WHERE name = 'vector')`).Scan(&available)
	if err != nil {
		return Result{Name: name, Detail: summarizeError("postgres", err)}
	}
	if !available {
		return Result{Name: name, Detail: "pgvector extension not available"}
	}
	return Result{Name: name, Passed: true, Detail: "reachable (pgvector available)"}
}

// CheckSystemDeps evaluates the external binaries used for deck conversion.
// Both the daemon and the doctor command use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "LibreOffice",
			Command:     cfg.Rasterize.SofficeBinary,
			Description: "Converts PPT/PPTX/ODP decks to PDF",
			Optional:    true,
		},
		{
			Name:        "pdfinfo",
			Command:     cfg.Rasterize.PdfinfoBinary,
			Description: "Counts deck pages",
		},
		{
			Name:        "pdftoppm",
			Command:     cfg.Rasterize.PdftoppmBinary,
			Description: "Renders slides to PNG",
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizeError produces a human-readable summary for health check failures.
func summarizeError(service string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", service)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", service)
	}
	return err.Error()
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
