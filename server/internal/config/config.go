package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the configuration.
const (
	DefaultHTTPPort         = 8080
	DefaultStatusInterval   = 5 * time.Second
	DefaultDataRoot         = "data"
	DefaultRetryAttempts    = 3
	DefaultRetryDelay       = 100 * time.Millisecond
	DefaultTargetCollection = "reports"
	DefaultRescanInterval   = 30 * time.Second
	DefaultEmptyGrace       = time.Minute
	DefaultCacheTTL         = 5 * time.Minute
	DefaultSettingsTTL      = 10 * time.Minute
)

// Config is the parsed config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Queue  QueueConfig  `yaml:"queue"`
	Cache  CacheConfig  `yaml:"cache"`
	Ledger LedgerConfig `yaml:"ledger"`
}

// ServerConfig holds the daemon's HTTP settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the API authenticates clients.
	Auth AuthConfig `yaml:"auth"`

	// StatusInterval is how often the WebSocket hub pushes queue status (default 5s).
	StatusInterval time.Duration `yaml:"status_interval"`
}

// AuthConfig controls client authentication on the API.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// StoreConfig configures the document store.
type StoreConfig struct {
	// DataRoot holds one <collection>.json file per collection (default "data").
	DataRoot string `yaml:"data_root"`

	// Strict turns a corrupt collection file into a read error instead of an
	// empty collection.
	Strict bool `yaml:"strict"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig bounds retries of a single file read or rename.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// QueueConfig configures the ingestion queue.
type QueueConfig struct {
	// Dir is the watched directory (default <data_root>/queue).
	Dir string `yaml:"dir"`

	// TargetCollection receives every ingested item (default "reports").
	TargetCollection string `yaml:"target_collection"`

	// RescanInterval re-processes retained items (default 30s, negative disables).
	RescanInterval time.Duration `yaml:"rescan_interval"`

	// EmptyGrace is how long an empty item may wait for its body before it
	// is treated as poison (default 1m).
	EmptyGrace time.Duration `yaml:"empty_grace"`

	// DeadLetterDir, when set, receives poison items instead of deleting them.
	DeadLetterDir string `yaml:"dead_letter_dir"`

	// Exclusive takes an advisory lock so a second daemon on the same
	// directory refuses to start.
	Exclusive bool `yaml:"exclusive"`
}

// CacheConfig configures the read-through collection cache.
type CacheConfig struct {
	// TTL applies to every collection without an override (default 5m).
	TTL time.Duration `yaml:"ttl"`

	// Collections maps collection names to their own TTL
	// (default settings: 10m).
	Collections map[string]time.Duration `yaml:"collections"`
}

// LedgerConfig configures the outcome journal.
type LedgerConfig struct {
	// Path is the SQLite database file. Empty disables the ledger.
	Path string `yaml:"path"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config data. Empty input yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if cfg.Queue.Dir == "" {
		cfg.Queue.Dir = filepath.Join(cfg.Store.DataRoot, "queue")
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, _ := Parse(nil)
	return cfg
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       DefaultHTTPPort,
			StatusInterval: DefaultStatusInterval,
		},
		Store: StoreConfig{
			DataRoot: DefaultDataRoot,
			Retry: RetryConfig{
				Attempts: DefaultRetryAttempts,
				Delay:    DefaultRetryDelay,
			},
		},
		Queue: QueueConfig{
			TargetCollection: DefaultTargetCollection,
			RescanInterval:   DefaultRescanInterval,
			EmptyGrace:       DefaultEmptyGrace,
		},
		Cache: CacheConfig{
			TTL:         DefaultCacheTTL,
			Collections: map[string]time.Duration{"settings": DefaultSettingsTTL},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Auth.Mode == "apikey" && cfg.Server.Auth.KeyEnv == "" {
		return fmt.Errorf("server.auth.key_env is required when mode is apikey")
	}
	if cfg.Server.StatusInterval <= 0 {
		return fmt.Errorf("server.status_interval must be positive")
	}
	if cfg.Store.DataRoot == "" {
		return fmt.Errorf("store.data_root must not be empty")
	}
	if cfg.Store.Retry.Attempts < 1 {
		return fmt.Errorf("store.retry.attempts must be at least 1")
	}
	if cfg.Store.Retry.Delay < 0 {
		return fmt.Errorf("store.retry.delay must not be negative")
	}
	if cfg.Queue.TargetCollection == "" {
		return fmt.Errorf("queue.target_collection must not be empty")
	}
	if cfg.Queue.EmptyGrace <= 0 {
		return fmt.Errorf("queue.empty_grace must be positive")
	}
	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	for name, ttl := range cfg.Cache.Collections {
		if ttl <= 0 {
			return fmt.Errorf("cache.collections.%s must be positive", name)
		}
	}
	return nil
}
