package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the follow-back bot
type Config struct {
	// GitHub identity and API access
	GitHub GitHubConfig `yaml:"github" json:"github"`

	// Incremental sync pipeline settings
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// State file storage
	State StateConfig `yaml:"state" json:"state"`

	// Listing endpoint server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// GitHubConfig holds GitHub-specific configuration
type GitHubConfig struct {
	Username       string        `yaml:"username" json:"username"`
	Token          string        `yaml:"token" json:"token"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// SyncConfig holds settings for the incremental sync pipeline
type SyncConfig struct {
	BatchSize         int           `yaml:"batch_size" json:"batch_size"`
	PerPage           int           `yaml:"per_page" json:"per_page"`
	InterBatchDelay   time.Duration `yaml:"inter_batch_delay" json:"inter_batch_delay"`
	ConcurrentFollows int           `yaml:"concurrent_follows" json:"concurrent_follows"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	// OnCursorMiss selects the behavior when the persisted cursor is never
	// found in the fetched pages: "process-all" treats every fetched follower
	// as new, "skip" follows no one and leaves the cursor untouched.
	OnCursorMiss string `yaml:"on_cursor_miss" json:"on_cursor_miss"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	LowWaterMark      int           `yaml:"low_water_mark" json:"low_water_mark"`
	FallbackCooldown  time.Duration `yaml:"fallback_cooldown" json:"fallback_cooldown"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// StateConfig holds state file storage configuration
type StateConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// ServerConfig holds settings for the read-only listing endpoint
type ServerConfig struct {
	Addr           string        `yaml:"addr" json:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" json:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Cursor miss policies
const (
	CursorMissProcessAll = "process-all"
	CursorMissSkip       = "skip"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			BaseURL:        "https://api.github.com",
			UserAgent:      "followback-bot",
			RequestTimeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			BatchSize:         30,
			PerPage:           100,
			InterBatchDelay:   30 * time.Second,
			ConcurrentFollows: 5,
			MaxRetries:        3,
			OnCursorMiss:      CursorMissProcessAll,
		},
		RateLimit: RateLimitConfig{
			LowWaterMark:      100,
			FallbackCooldown:  60 * time.Second,
			RequestsPerMinute: 60,
		},
		State: StateConfig{
			Directory: ".",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    5,
			MaxBackups: 2,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// The legacy GITHUB_USER and PERSONAL_GITHUB_TOKEN names are honored so that
// deployments of the original scripts keep working without changes.
func (c *Config) LoadFromEnv() error {
	if user := os.Getenv("GITHUB_USER"); user != "" {
		c.GitHub.Username = user
	}
	if token := os.Getenv("PERSONAL_GITHUB_TOKEN"); token != "" {
		c.GitHub.Token = token
	}
	if user := os.Getenv("FOLLOWBACK_USERNAME"); user != "" {
		c.GitHub.Username = user
	}
	if token := os.Getenv("FOLLOWBACK_TOKEN"); token != "" {
		c.GitHub.Token = token
	}
	if baseURL := os.Getenv("FOLLOWBACK_API_BASE_URL"); baseURL != "" {
		c.GitHub.BaseURL = baseURL
	}

	if batch := os.Getenv("FOLLOWBACK_BATCH_SIZE"); batch != "" {
		var val int
		fmt.Sscanf(batch, "%d", &val)
		if val > 0 {
			c.Sync.BatchSize = val
		}
	}
	if concurrent := os.Getenv("FOLLOWBACK_CONCURRENT_FOLLOWS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Sync.ConcurrentFollows = val
		}
	}
	if delay := os.Getenv("FOLLOWBACK_INTER_BATCH_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d >= 0 {
			c.Sync.InterBatchDelay = d
		}
	}
	if mark := os.Getenv("FOLLOWBACK_RATE_LIMIT_THRESHOLD"); mark != "" {
		var val int
		fmt.Sscanf(mark, "%d", &val)
		if val >= 0 {
			c.RateLimit.LowWaterMark = val
		}
	}

	if stateDir := os.Getenv("FOLLOWBACK_STATE_DIR"); stateDir != "" {
		c.State.Directory = stateDir
	}
	if addr := os.Getenv("FOLLOWBACK_SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if logLevel := os.Getenv("FOLLOWBACK_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".followback.yaml",
		".followback.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "followback", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "followback", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".followback.yaml"),
		filepath.Join(os.Getenv("HOME"), ".followback.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Identity and credentials are fatal at startup when absent
	if c.GitHub.Username == "" {
		errs = append(errs, errors.New("GitHub username is required"))
	}
	if c.GitHub.Token == "" {
		errs = append(errs, errors.New("GitHub token is required"))
	}
	if c.GitHub.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.GitHub.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	// Validate sync settings
	if c.Sync.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Sync.PerPage <= 0 || c.Sync.PerPage > 100 {
		errs = append(errs, errors.New("per page must be between 1 and 100"))
	}
	if c.Sync.ConcurrentFollows <= 0 {
		errs = append(errs, errors.New("concurrent follows must be positive"))
	}
	if c.Sync.ConcurrentFollows > 10 {
		errs = append(errs, errors.New("concurrent follows should not exceed 10"))
	}
	if c.Sync.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Sync.InterBatchDelay < 0 {
		errs = append(errs, errors.New("inter-batch delay cannot be negative"))
	}
	switch c.Sync.OnCursorMiss {
	case CursorMissProcessAll, CursorMissSkip:
	default:
		errs = append(errs, errors.New("invalid cursor miss policy"))
	}

	// Validate rate limiting
	if c.RateLimit.LowWaterMark < 0 {
		errs = append(errs, errors.New("low water mark cannot be negative"))
	}
	if c.RateLimit.FallbackCooldown <= 0 {
		errs = append(errs, errors.New("fallback cooldown must be positive"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	// Validate state storage
	if c.State.Directory == "" {
		errs = append(errs, errors.New("state directory is required"))
	}

	// Validate server settings
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}

	// Validate logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if username, ok := flags["username"].(string); ok && username != "" {
		c.GitHub.Username = username
	}
	if token, ok := flags["token"].(string); ok && token != "" {
		c.GitHub.Token = token
	}
	if stateDir, ok := flags["state-dir"].(string); ok && stateDir != "" {
		c.State.Directory = stateDir
	}
	if batchSize, ok := flags["batch-size"].(int); ok && batchSize > 0 {
		c.Sync.BatchSize = batchSize
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Sync.ConcurrentFollows = concurrent
	}
	if maxRetries, ok := flags["max-retries"].(int); ok && maxRetries >= 0 {
		c.Sync.MaxRetries = maxRetries
	}
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Addr = addr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".followback.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
