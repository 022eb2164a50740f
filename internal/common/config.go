package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Processor   ProcessorConfig `toml:"processor"`
	Polling     PollingConfig   `toml:"polling"`
	Retention   RetentionConfig `toml:"retention"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Defaults    DefaultsConfig  `toml:"defaults"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// ProcessorConfig configures the remote document-processing backend.
type ProcessorConfig struct {
	BaseURL string `toml:"base_url"` // Remote processor base URL
	APIKey  string `toml:"api_key"`  // Bearer token for the remote API
	// SubmitTimeout bounds the artifact upload call. Large documents can
	// take minutes to transfer, so this is generous but finite.
	SubmitTimeout time.Duration `toml:"submit_timeout"`
	// RequestTimeout bounds a single status query.
	RequestTimeout time.Duration `toml:"request_timeout"`
	// MaxUploadSize caps accepted artifact size in bytes.
	MaxUploadSize int64 `toml:"max_upload_size"`
}

// PollingConfig configures the status-poll loop for in-flight jobs.
type PollingConfig struct {
	Interval time.Duration `toml:"interval"` // Delay between status queries
	Jitter   time.Duration `toml:"jitter"`   // Random jitter added to each delay
	// MaxAttempts is the attempt budget: the hard ceiling of status
	// queries before a job is forced to a failed/timeout state.
	MaxAttempts int `toml:"max_attempts"`
}

// RetentionConfig controls cleanup of finished jobs.
type RetentionConfig struct {
	Schedule string `toml:"schedule"` // Cron schedule for the cleanup pass
	// MaxJobs is the maximum number of terminal jobs kept in memory;
	// older ones are purged first (0 = unlimited).
	MaxJobs int `toml:"max_jobs"`
	// MaxAge is how long terminal jobs stay in memory after finishing.
	MaxAge time.Duration `toml:"max_age"`
	// ArchiveMaxAge is how long archived jobs stay in the database.
	ArchiveMaxAge time.Duration `toml:"archive_max_age"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// WebSocketConfig contains configuration for the realtime job relay.
type WebSocketConfig struct {
	// ProgressThrottle limits how often job_progress events are pushed
	// per second across all clients (0 = no throttling).
	ProgressThrottle time.Duration `toml:"progress_throttle"`
}

// DefaultsConfig holds default processing options applied when an upload
// does not specify its own.
type DefaultsConfig struct {
	ChunkSize     int    `toml:"chunk_size"`
	ChunkOverlap  int    `toml:"chunk_overlap"`
	IncludeImages bool   `toml:"include_images"`
	Language      string `toml:"language"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings should be exposed in vellum.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Processor: ProcessorConfig{
			BaseURL:        "http://localhost:9090",
			SubmitTimeout:  10 * time.Minute, // Large uploads are slow but must terminate
			RequestTimeout: 30 * time.Second,
			MaxUploadSize:  50 * 1024 * 1024, // 50MB
		},
		Polling: PollingConfig{
			Interval:    5 * time.Second,
			Jitter:      500 * time.Millisecond,
			MaxAttempts: 120, // 120 attempts at 5s = roughly 10 minutes
		},
		Retention: RetentionConfig{
			Schedule:      "@every 10m",
			MaxJobs:       200,
			MaxAge:        1 * time.Hour,
			ArchiveMaxAge: 7 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		WebSocket: WebSocketConfig{
			ProgressThrottle: 1 * time.Second,
		},
		Defaults: DefaultsConfig{
			ChunkSize:     1000,
			ChunkOverlap:  200,
			IncludeImages: true,
			Language:      "en",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VELLUM_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("VELLUM_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("VELLUM_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if baseURL := os.Getenv("VELLUM_PROCESSOR_BASE_URL"); baseURL != "" {
		config.Processor.BaseURL = baseURL
	}
	if apiKey := os.Getenv("VELLUM_PROCESSOR_API_KEY"); apiKey != "" {
		config.Processor.APIKey = apiKey
	}

	if interval := os.Getenv("VELLUM_POLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Polling.Interval = d
		}
	}
	if attempts := os.Getenv("VELLUM_POLL_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			config.Polling.MaxAttempts = n
		}
	}

	if badgerPath := os.Getenv("VELLUM_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("VELLUM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}
