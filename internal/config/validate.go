package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateResults(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if !strings.Contains(c.API.Bind, ":") {
		return fmt.Errorf("api.bind must be host:port, got %q", c.API.Bind)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if c.LLM.RetryAttempts < 1 {
		return errors.New("llm.retry_attempts must be at least 1")
	}
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
	}
	return nil
}

// RequireLLMKey reports a descriptive error when no API key is configured.
// Only commands that call the model provider need it.
func (c *Config) RequireLLMKey() error {
	if strings.TrimSpace(c.LLM.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("llm.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'lecturenotes config init')", defaultPath)
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxConcurrentJobs < 1 {
		return errors.New("workflow.max_concurrent_jobs must be at least 1")
	}
	if c.Workflow.CallTimeoutSeconds <= 0 {
		return errors.New("workflow.call_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.RetentionMinutes < 0 {
		return errors.New("jobs.retention_minutes must be zero (disabled) or positive")
	}
	return nil
}

func (c *Config) validateResults() error {
	switch c.Results.Backend {
	case ResultsBackendMemory, ResultsBackendSQLite:
	case ResultsBackendRedis:
		if c.Results.RedisDB < 0 {
			return errors.New("results.redis_db must be non-negative")
		}
		if c.Results.RedisTTLHours < 0 {
			return errors.New("results.redis_ttl_hours must be non-negative")
		}
	default:
		return fmt.Errorf("results.backend must be memory, sqlite, or redis, got %q", c.Results.Backend)
	}
	return nil
}

func (c *Config) validateHistory() error {
	switch c.History.Backend {
	case HistoryBackendMemory:
	case HistoryBackendPostgres:
		if c.History.DSN == "" {
			return errors.New("history.dsn is required when history.backend is postgres (or set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("history.backend must be memory or postgres, got %q", c.History.Backend)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full ntfy URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be non-negative")
	}
	return nil
}
