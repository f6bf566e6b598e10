package config

const (
	defaultConfigPath           = "~/.config/lecturenotes/config.toml"
	defaultDataDir              = "~/.local/share/lecturenotes"
	defaultWorkspaceDir         = "~/.local/share/lecturenotes/workspace"
	defaultLogDir               = "~/.local/share/lecturenotes/logs"
	defaultRealtimeDir          = "~/.local/share/lecturenotes/realtime"
	defaultSQLitePath           = "~/.local/share/lecturenotes/results.db"
	defaultAPIBind              = "127.0.0.1:7487"
	defaultMaxUploadMB          = 512
	defaultLLMBaseURL           = "https://api.openai.com/v1"
	defaultTranscribeModel      = "whisper-1"
	defaultCaptionModel         = "gpt-4o-mini"
	defaultEmbedModel           = "text-embedding-3-small"
	defaultNoteModel            = "gpt-4o-mini"
	defaultLLMTimeoutSeconds    = 120
	defaultLLMRetryAttempts     = 3
	defaultMaxConcurrentJobs    = 2
	defaultCallTimeoutSeconds   = 300
	defaultMaxSentences         = 10
	defaultImportanceBatchSize  = 20
	defaultSweepIntervalSeconds = 60
	defaultRedisAddr            = "127.0.0.1:6379"
	defaultRedisKeyPrefix       = "lecturenotes"
	defaultSofficeBinary        = "soffice"
	defaultPdftoppmBinary       = "pdftoppm"
	defaultPdfinfoBinary        = "pdfinfo"
	defaultRasterDPI            = 110
	defaultNtfyTimeoutSeconds   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Backend names accepted by [results] and [history].
const (
	ResultsBackendMemory   = "memory"
	ResultsBackendSQLite   = "sqlite"
	ResultsBackendRedis    = "redis"
	HistoryBackendMemory   = "memory"
	HistoryBackendPostgres = "postgres"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
		},
		API: API{
			Bind:        defaultAPIBind,
			MaxUploadMB: defaultMaxUploadMB,
		},
		LLM: LLM{
			BaseURL:         defaultLLMBaseURL,
			TranscribeModel: defaultTranscribeModel,
			CaptionModel:    defaultCaptionModel,
			EmbedModel:      defaultEmbedModel,
			NoteModel:       defaultNoteModel,
			TimeoutSeconds:  defaultLLMTimeoutSeconds,
			RetryAttempts:   defaultLLMRetryAttempts,
		},
		Workflow: Workflow{
			MaxConcurrentJobs:   defaultMaxConcurrentJobs,
			CallTimeoutSeconds:  defaultCallTimeoutSeconds,
			MaxSentences:        defaultMaxSentences,
			ImportanceEnabled:   true,
			ImportanceBatchSize: defaultImportanceBatchSize,
		},
		Jobs: Jobs{
			SweepIntervalSeconds: defaultSweepIntervalSeconds,
		},
		Results: Results{
			Backend:        ResultsBackendMemory,
			SQLitePath:     defaultSQLitePath,
			RedisAddr:      defaultRedisAddr,
			RedisKeyPrefix: defaultRedisKeyPrefix,
		},
		History: History{
			Backend: HistoryBackendMemory,
		},
		Realtime: Realtime{
			Dir: defaultRealtimeDir,
		},
		Rasterize: Rasterize{
			SofficeBinary:  defaultSofficeBinary,
			PdftoppmBinary: defaultPdftoppmBinary,
			PdfinfoBinary:  defaultPdfinfoBinary,
			DPI:            defaultRasterDPI,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
