package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

func (c *Config) normalize() error {
	loadDotEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLLM()
	c.normalizeWorkflow()
	if err := c.normalizeResults(); err != nil {
		return err
	}
	c.normalizeHistory()
	c.normalizeRasterize()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

// loadDotEnv reads ./.env when present. Variables already set in the
// environment win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load()
}

// envOverride replaces current with the first non-empty environment value
// among keys. Secrets set in the environment win over the config file.
func envOverride(current *string, keys ...string) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			*current = strings.TrimSpace(value)
			return
		}
	}
	*current = strings.TrimSpace(*current)
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Realtime.Dir) == "" {
		c.Realtime.Dir = defaultRealtimeDir
	}
	if c.Realtime.Dir, err = expandPath(c.Realtime.Dir); err != nil {
		return fmt.Errorf("realtime.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	envOverride(&c.API.Token, "LECTURENOTES_API_TOKEN")
	if c.API.MaxUploadMB <= 0 {
		c.API.MaxUploadMB = defaultMaxUploadMB
	}
}

func (c *Config) normalizeLLM() {
	envOverride(&c.LLM.APIKey, "LECTURENOTES_LLM_API_KEY", "OPENAI_API_KEY")
	envOverride(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.BaseURL = strings.TrimRight(c.LLM.BaseURL, "/")
	defaults := []struct {
		field *string
		value string
	}{
		{&c.LLM.TranscribeModel, defaultTranscribeModel},
		{&c.LLM.CaptionModel, defaultCaptionModel},
		{&c.LLM.EmbedModel, defaultEmbedModel},
		{&c.LLM.NoteModel, defaultNoteModel},
	}
	for _, d := range defaults {
		*d.field = strings.TrimSpace(*d.field)
		if *d.field == "" {
			*d.field = d.value
		}
	}
	c.LLM.ClassifyModel = strings.TrimSpace(c.LLM.ClassifyModel)
	if c.LLM.ClassifyModel == "" {
		c.LLM.ClassifyModel = c.LLM.NoteModel
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.MaxSentences <= 0 {
		c.Workflow.MaxSentences = defaultMaxSentences
	}
	if c.Workflow.ImportanceBatchSize <= 0 {
		c.Workflow.ImportanceBatchSize = defaultImportanceBatchSize
	}
	if c.Jobs.SweepIntervalSeconds <= 0 {
		c.Jobs.SweepIntervalSeconds = defaultSweepIntervalSeconds
	}
}

func (c *Config) normalizeResults() error {
	c.Results.Backend = strings.ToLower(strings.TrimSpace(c.Results.Backend))
	if c.Results.Backend == "" {
		c.Results.Backend = ResultsBackendMemory
	}
	if strings.TrimSpace(c.Results.SQLitePath) == "" {
		c.Results.SQLitePath = defaultSQLitePath
	}
	var err error
	if c.Results.SQLitePath, err = expandPath(c.Results.SQLitePath); err != nil {
		return fmt.Errorf("results.sqlite_path: %w", err)
	}
	envOverride(&c.Results.RedisAddr, "REDIS_ADDR")
	if c.Results.RedisAddr == "" {
		c.Results.RedisAddr = defaultRedisAddr
	}
	envOverride(&c.Results.RedisPassword, "REDIS_PASSWORD")
	c.Results.RedisKeyPrefix = strings.TrimSpace(c.Results.RedisKeyPrefix)
	if c.Results.RedisKeyPrefix == "" {
		c.Results.RedisKeyPrefix = defaultRedisKeyPrefix
	}
	return nil
}

func (c *Config) normalizeHistory() {
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
	envOverride(&c.History.DSN, "DATABASE_URL")
	if c.History.Backend == "" {
		c.History.Backend = HistoryBackendMemory
		if c.History.DSN != "" {
			c.History.Backend = HistoryBackendPostgres
		}
	}
}

func (c *Config) normalizeRasterize() {
	if strings.TrimSpace(c.Rasterize.SofficeBinary) == "" {
		c.Rasterize.SofficeBinary = defaultSofficeBinary
	}
	if strings.TrimSpace(c.Rasterize.PdftoppmBinary) == "" {
		c.Rasterize.PdftoppmBinary = defaultPdftoppmBinary
	}
	if strings.TrimSpace(c.Rasterize.PdfinfoBinary) == "" {
		c.Rasterize.PdfinfoBinary = defaultPdfinfoBinary
	}
	if c.Rasterize.DPI <= 0 {
		c.Rasterize.DPI = defaultRasterDPI
	}
}

func (c *Config) normalizeNotifications() {
	envOverride(&c.Notifications.NtfyTopic, "NTFY_TOPIC")
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
