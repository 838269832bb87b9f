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

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Cache      CacheConfig      `yaml:"cache"`
	QA         QAConfig         `yaml:"qa"`
	Backup     BackupConfig     `yaml:"backup"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig throttles per-client request rates at the edge.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// EmbeddingConfig describes the provider, its credentials and quotas.
type EmbeddingConfig struct {
	APIKeys           []string `yaml:"apiKeys"`
	Model             string   `yaml:"model"`
	Dimensions        int      `yaml:"dimensions"`
	BaseURL           string   `yaml:"baseUrl"`
	RequestsPerMinute int      `yaml:"requestsPerMinute"`
	RequestsPerDay    int      `yaml:"requestsPerDay"`
	Offline           bool     `yaml:"offline"`
}

// SimilarityConfig holds the acceptance threshold for answers.
type SimilarityConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// CacheConfig locates the embedding cache and optional remote backends.
type CacheConfig struct {
	Dir           string         `yaml:"dir"`
	MemoryEntries int            `yaml:"memoryEntries"`
	Valkey        ValkeyConfig   `yaml:"valkey"`
	Postgres      PostgresConfig `yaml:"postgres"`
}

// ValkeyConfig contains connection information for the Valkey cache.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// QAConfig locates the durable QA store.
type QAConfig struct {
	StorePath string         `yaml:"storePath"`
	Postgres  PostgresConfig `yaml:"postgres"`
}

// BackupConfig drives the optional snapshot upload to object storage.
type BackupConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"accessKey"`
	SecretKey string        `yaml:"secretKey"`
	Bucket    string        `yaml:"bucket"`
	Region    string        `yaml:"region"`
	Interval  time.Duration `yaml:"interval"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("EMBEDDING_API_KEYS"); v != "" {
		keys := strings.Split(v, ",")
		cfg.Embedding.APIKeys = cfg.Embedding.APIKeys[:0]
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Embedding.APIKeys = append(cfg.Embedding.APIKeys, k)
			}
		}
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimensions = parsed
		}
	}
	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("EMBEDDING_RPD"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.RequestsPerDay = parsed
		}
	}
	if v := os.Getenv("EMBEDDING_OFFLINE"); v != "" {
		cfg.Embedding.Offline = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Similarity.Threshold = parsed
		}
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("CACHE_MEMORY_ENTRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MemoryEntries = parsed
		}
	}
	if v := os.Getenv("CACHE_VALKEY_ENABLED"); v != "" {
		cfg.Cache.Valkey.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CACHE_VALKEY_ADDR"); v != "" {
		cfg.Cache.Valkey.Addr = v
	}
	if v := os.Getenv("CACHE_POSTGRES_DSN"); v != "" {
		cfg.Cache.Postgres.DSN = v
	}
	if v := os.Getenv("QA_STORE_PATH"); v != "" {
		cfg.QA.StorePath = v
	}
	if v := os.Getenv("QA_POSTGRES_DSN"); v != "" {
		cfg.QA.Postgres.DSN = v
	}
	if v := os.Getenv("BACKUP_ENABLED"); v != "" {
		cfg.Backup.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("BACKUP_ENDPOINT"); v != "" {
		cfg.Backup.Endpoint = v
	}
	if v := os.Getenv("BACKUP_ACCESS_KEY"); v != "" {
		cfg.Backup.AccessKey = v
	}
	if v := os.Getenv("BACKUP_SECRET_KEY"); v != "" {
		cfg.Backup.SecretKey = v
	}
	if v := os.Getenv("BACKUP_BUCKET"); v != "" {
		cfg.Backup.Bucket = v
	}
	if v := os.Getenv("BACKUP_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Backup.Interval = parsed
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		Embedding: EmbeddingConfig{
			Model:             "gemini-embedding-exp-03-07",
			Dimensions:        3072,
			BaseURL:           "https://generativelanguage.googleapis.com",
			RequestsPerMinute: 5,
			RequestsPerDay:    100,
		},
		Similarity: SimilarityConfig{
			Threshold: 0.95,
		},
		Cache: CacheConfig{
			Dir:           "cache",
			MemoryEntries: 1024,
		},
		QA: QAConfig{
			StorePath: "docs/QA.json",
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Backup: BackupConfig{
			Interval: 24 * time.Hour,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		return errors.New("embedding.model cannot be empty")
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding.dimensions must be positive")
	}
	if !c.Embedding.Offline && len(c.Embedding.APIKeys) == 0 {
		return errors.New("embedding.apiKeys cannot be empty unless offline mode is enabled")
	}
	if c.Embedding.RequestsPerMinute < 0 || c.Embedding.RequestsPerDay < 0 {
		return errors.New("embedding request caps cannot be negative")
	}
	if c.Similarity.Threshold < -1 || c.Similarity.Threshold > 1 {
		return errors.New("similarity.threshold must be within [-1, 1]")
	}
	if c.Cache.Dir == "" {
		return errors.New("cache.dir cannot be empty")
	}
	if c.Cache.Valkey.Enabled && strings.TrimSpace(c.Cache.Valkey.Addr) == "" {
		return errors.New("cache.valkey.addr cannot be empty when the valkey cache is enabled")
	}
	if c.QA.StorePath == "" && strings.TrimSpace(c.QA.Postgres.DSN) == "" {
		return errors.New("qa.storePath cannot be empty")
	}
	if c.Backup.Enabled {
		if c.Backup.Endpoint == "" || c.Backup.Bucket == "" {
			return errors.New("backup.endpoint and backup.bucket are required when backup is enabled")
		}
		if c.Backup.Interval <= 0 {
			return errors.New("backup.interval must be positive")
		}
	}
	return nil
}

// RebuildPause derives the spacing between consecutive generator calls
// from the combined per-minute budget of all credentials.
func (c *Config) RebuildPause() time.Duration {
	totalRPM := c.Embedding.RequestsPerMinute * len(c.Embedding.APIKeys)
	if totalRPM <= 0 {
		return 0
	}
	return time.Minute / time.Duration(totalRPM)
}
