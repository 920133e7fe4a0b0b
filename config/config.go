// Package config loads the reviewpipe configuration from YAML with
// REVIEWPIPE_* environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REVIEWPIPE_"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the top-level configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Secrets    SecretsConfig    `yaml:"secrets"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Search     SearchConfig     `yaml:"search"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Notify     NotifyConfig     `yaml:"notify"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StorageConfig selects the blob store.
type StorageConfig struct {
	// Backend is "badger" or "s3".
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
	Region   string `yaml:"region"`
}

// SecretsConfig selects where search credentials come from.
type SecretsConfig struct {
	// Backend is "env" or "secretsmanager".
	Backend        string `yaml:"backend"`
	Region         string `yaml:"region"`
	EnvPrefix      string `yaml:"env_prefix"`
	UsernameSecret string `yaml:"username_secret"`
	PasswordSecret string `yaml:"password_secret"`
}

// ClassifierConfig selects the sentiment classifier.
type ClassifierConfig struct {
	// Backend is "openai", "comprehend" or "none".
	Backend       string      `yaml:"backend"`
	Host          string      `yaml:"host"`
	Model         string      `yaml:"model"`
	Token         string      `yaml:"token"`
	Region        string      `yaml:"region"`
	Language      string      `yaml:"language"`
	Workers       int         `yaml:"workers"`
	ParseAttempts int         `yaml:"parse_attempts"`
	Cache         CacheConfig `yaml:"cache"`
}

// CacheConfig controls classification caching.
type CacheConfig struct {
	// Backend is "none", "memory" or "redis".
	Backend  string        `yaml:"backend"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	TTL      time.Duration `yaml:"ttl"`
}

// SearchConfig controls the search cluster connection.
type SearchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Port    int           `yaml:"port"`
}

// PipelineConfig controls artifacts and the run journal.
type PipelineConfig struct {
	// Format is "json" or "ndjson".
	Format string `yaml:"format"`
	// JournalPath holds the run journal. When empty, a badger blob store
	// keeps the journal alongside the objects.
	JournalPath string `yaml:"journal_path"`
}

// NotifyConfig controls run event publishing. Publishing is disabled when
// no brokers are set.
type NotifyConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// Textfile is written after each run when set.
	Textfile string `yaml:"textfile"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "badger",
			Path:    "./reviewpipe-data",
		},
		Secrets: SecretsConfig{
			Backend:        "env",
			EnvPrefix:      "REVIEWPIPE_SECRET_",
			UsernameSecret: "os-username",
			PasswordSecret: "os-password",
		},
		Classifier: ClassifierConfig{
			Backend:       "openai",
			Host:          "http://localhost:11434/v1",
			Model:         "qwen2.5:3b",
			Language:      "es",
			ParseAttempts: 3,
			Cache: CacheConfig{
				Backend:  "none",
				Addr:     "localhost:6379",
				PoolSize: 10,
				TTL:      24 * time.Hour,
			},
		},
		Search: SearchConfig{
			Timeout: 60 * time.Second,
			Port:    443,
		},
		Pipeline: PipelineConfig{
			Format: "json",
		},
		Notify: NotifyConfig{
			Topic: "reviewpipe.runs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file (if provided) over Default and applies
// environment overrides.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides reads REVIEWPIPE_* variables into cfg.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("STORAGE_PATH", &cfg.Storage.Path)
	str("STORAGE_REGION", &cfg.Storage.Region)
	str("SECRETS_BACKEND", &cfg.Secrets.Backend)
	str("SECRETS_REGION", &cfg.Secrets.Region)
	str("CLASSIFIER_BACKEND", &cfg.Classifier.Backend)
	str("CLASSIFIER_HOST", &cfg.Classifier.Host)
	str("CLASSIFIER_MODEL", &cfg.Classifier.Model)
	str("CLASSIFIER_TOKEN", &cfg.Classifier.Token)
	str("CLASSIFIER_REGION", &cfg.Classifier.Region)
	str("CLASSIFIER_LANGUAGE", &cfg.Classifier.Language)
	num("CLASSIFIER_WORKERS", &cfg.Classifier.Workers)
	str("CACHE_BACKEND", &cfg.Classifier.Cache.Backend)
	str("CACHE_ADDR", &cfg.Classifier.Cache.Addr)
	str("CACHE_PASSWORD", &cfg.Classifier.Cache.Password)
	dur("CACHE_TTL", &cfg.Classifier.Cache.TTL)
	dur("SEARCH_TIMEOUT", &cfg.Search.Timeout)
	num("SEARCH_PORT", &cfg.Search.Port)
	str("PIPELINE_FORMAT", &cfg.Pipeline.Format)
	str("PIPELINE_JOURNAL_PATH", &cfg.Pipeline.JournalPath)
	if v, ok := lookup(EnvPrefix + "NOTIFY_BROKERS"); ok && v != "" {
		cfg.Notify.Brokers = splitList(v)
	}
	str("NOTIFY_TOPIC", &cfg.Notify.Topic)
	str("METRICS_TEXTFILE", &cfg.Metrics.Textfile)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, "|"), value)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(oneOf("storage.backend", c.Storage.Backend, "badger", "s3"))
	if c.Storage.Backend == "badger" && c.Storage.Path == "" && !c.Storage.InMemory {
		add(errors.New("storage.path is required for the badger backend"))
	}
	add(oneOf("secrets.backend", c.Secrets.Backend, "env", "secretsmanager"))
	if c.Secrets.UsernameSecret == "" || c.Secrets.PasswordSecret == "" {
		add(errors.New("secrets.username_secret and secrets.password_secret are required"))
	}

	add(oneOf("classifier.backend", c.Classifier.Backend, "openai", "comprehend", "none"))
	if c.Classifier.Backend == "openai" && (c.Classifier.Host == "" || c.Classifier.Model == "") {
		add(errors.New("classifier.host and classifier.model are required for the openai backend"))
	}
	if c.Classifier.Workers < 0 {
		add(errors.New("classifier.workers must not be negative"))
	}
	add(oneOf("classifier.cache.backend", c.Classifier.Cache.Backend, "none", "memory", "redis"))
	if c.Classifier.Cache.Backend == "redis" && c.Classifier.Cache.Addr == "" {
		add(errors.New("classifier.cache.addr is required for the redis cache"))
	}
	if c.Classifier.Cache.TTL < 0 {
		add(errors.New("classifier.cache.ttl must not be negative"))
	}

	if c.Search.Timeout <= 0 {
		add(errors.New("search.timeout must be positive"))
	}
	if c.Search.Port <= 0 || c.Search.Port > 65535 {
		add(fmt.Errorf("search.port %d out of range", c.Search.Port))
	}
	add(oneOf("pipeline.format", c.Pipeline.Format, "json", "ndjson"))
	if len(c.Notify.Brokers) > 0 && c.Notify.Topic == "" {
		add(errors.New("notify.topic is required when brokers are set"))
	}
	add(oneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "error"))
	add(oneOf("logging.format", c.Logging.Format, "text", "json"))

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
