package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	WorkspaceDir string `toml:"workspace_dir"`
	LogDir       string `toml:"log_dir"`
}

// API contains HTTP server settings.
type API struct {
	Bind        string `toml:"bind"`
	Token       string `toml:"token"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// LLM contains connection settings for the OpenAI-compatible endpoint used
// for transcription, captioning, embeddings, and note generation.
type LLM struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	TranscribeModel string `toml:"transcribe_model"`
	CaptionModel    string `toml:"caption_model"`
	EmbedModel      string `toml:"embed_model"`
	NoteModel       string `toml:"note_model"`
	ClassifyModel   string `toml:"classify_model"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	RetryAttempts   int    `toml:"retry_attempts"`
}

// Workflow contains pipeline execution settings.
type Workflow struct {
	MaxConcurrentJobs   int  `toml:"max_concurrent_jobs"`
	CallTimeoutSeconds  int  `toml:"call_timeout_seconds"`
	MaxSentences        int  `toml:"max_sentences"`
	ImportanceEnabled   bool `toml:"importance_enabled"`
	ImportanceBatchSize int  `toml:"importance_batch_size"`
}

// Jobs controls job registry retention. A zero RetentionMinutes keeps
// terminal jobs until they are deleted explicitly.
type Jobs struct {
	RetentionMinutes     int `toml:"retention_minutes"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// Results selects the backend holding per-slide notes.
type Results struct {
	Backend        string `toml:"backend"`
	SQLitePath     string `toml:"sqlite_path"`
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisDB        int    `toml:"redis_db"`
	RedisKeyPrefix string `toml:"redis_key_prefix"`
	RedisTTLHours  int    `toml:"redis_ttl_hours"`
}

// History selects the backend for completed lecture history.
type History struct {
	Backend string `toml:"backend"`
	DSN     string `toml:"dsn"`
}

// Realtime contains settings for live lecture sessions.
type Realtime struct {
	Dir string `toml:"dir"`
}

// Rasterize names the external tools used to turn decks into slide images.
type Rasterize struct {
	SofficeBinary  string `toml:"soffice_binary"`
	PdftoppmBinary string `toml:"pdftoppm_binary"`
	PdfinfoBinary  string `toml:"pdfinfo_binary"`
	DPI            int    `toml:"dpi"`
}

// Notifications configures ntfy alerts for finished jobs. An empty topic
// disables them.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for lecturenotes.
//
// Configuration sections by subsystem:
//   - Paths: data, workspace, and log directories
//   - API: HTTP bind address and bearer token
//   - LLM: OpenAI-compatible endpoint and per-task models
//   - Workflow: concurrency, call timeouts, segmentation
//   - Jobs: registry retention
//   - Results: per-slide note store backend
//   - History: lecture history backend
//   - Realtime: live session storage
//   - Rasterize: deck conversion tools
//   - Notifications: ntfy job alerts
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	LLM           LLM           `toml:"llm"`
	Workflow      Workflow      `toml:"workflow"`
	Jobs          Jobs          `toml:"jobs"`
	Results       Results       `toml:"results"`
	History       History       `toml:"history"`
	Realtime      Realtime      `toml:"realtime"`
	Rasterize     Rasterize     `toml:"rasterize"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lecturenotes.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.WorkspaceDir, c.Paths.LogDir, c.Realtime.Dir, c.TranscriptCacheDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Results.Backend == ResultsBackendSQLite {
		if err := os.MkdirAll(filepath.Dir(c.Results.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create results directory: %w", err)
		}
	}
	return nil
}

// TranscriptCacheDir is where the most recent transcript is cached for
// skip_transcription submissions.
func (c *Config) TranscriptCacheDir() string {
	if c.Paths.DataDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.DataDir, "transcripts")
}

// TranscriptCachePath returns the cached transcript file.
func (c *Config) TranscriptCachePath() string {
	dir := c.TranscriptCacheDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "latest.txt")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "lecturenotesd.lock")
}

// PIDPath returns the file holding the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "lecturenotesd.pid")
}

// CallTimeout is the per-collaborator-call deadline.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Workflow.CallTimeoutSeconds) * time.Second
}

// JobRetention returns how long terminal jobs are kept, or zero when the sweep
// is disabled.
func (c *Config) JobRetention() time.Duration {
	return time.Duration(c.Jobs.RetentionMinutes) * time.Minute
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
