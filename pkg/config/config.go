// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Docs, Search, Redis, Kafka, Postgres, etc.).
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

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Docs      DocsConfig      `yaml:"docs"`
	Search    SearchConfig    `yaml:"search"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxPayloadBytes int64         `yaml:"maxPayloadBytes"`
}

// DocsConfig lists the documentation versions served and where each
// version's payload is read from.
type DocsConfig struct {
	Versions        []VersionSource `yaml:"versions"`
	DefaultVersion  string          `yaml:"defaultVersion"`
	RefreshInterval time.Duration   `yaml:"refreshInterval"`
}

// VersionSource names a version and its payload path or URL. An empty
// Source starts the version empty until a reload arrives.
type VersionSource struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
}

// SearchConfig controls result limits and the scoring policy.
type SearchConfig struct {
	DefaultLimit int           `yaml:"defaultLimit"`
	MaxLimit     int           `yaml:"maxLimit"`
	PrefixMatch  bool          `yaml:"prefixMatch"`
	Timeout      time.Duration `yaml:"timeout"`
	Weights      WeightsConfig `yaml:"weights"`
}

// WeightsConfig is the scoring policy. Title must outweigh Text.
type WeightsConfig struct {
	Title            float64            `yaml:"title"`
	Text             float64            `yaml:"text"`
	TextFrequencyCap int                `yaml:"textFrequencyCap"`
	PrefixDiscount   float64            `yaml:"prefixDiscount"`
	Categories       map[string]float64 `yaml:"categories"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	// SnapshotInterval is how often analytics stats are persisted.
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexReload     string `yaml:"indexReload"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// RateLimitConfig bounds requests per client per window. X-Forwarded-For is
// only read when the peer address falls inside TrustedProxies (CIDRs or
// bare IPs).
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Requests       int           `yaml:"requests"`
	Window         time.Duration `yaml:"window"`
	TrustedProxies []string      `yaml:"trustedProxies"`
}

// AuthConfig guards the mutating admin endpoints with API keys. Keys come
// from Keys and, when postgres is enabled, the api_keys table. With auth
// enabled and no keys at all, every admin request is refused.
type AuthConfig struct {
	Enabled bool        `yaml:"enabled"`
	Keys    []StaticKey `yaml:"keys"`
	// KeyRateLimit is the per-key budget per rateLimit.window for keys
	// without their own limit.
	KeyRateLimit int `yaml:"keyRateLimit"`
}

// StaticKey is an API key supplied through configuration.
type StaticKey struct {
	Name      string `yaml:"name"`
	Key       string `yaml:"key"`
	RateLimit int    `yaml:"rateLimit"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls request tracing (sample rate).
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	var errs []error
	if c.Search.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit))
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		errs = append(errs, fmt.Errorf("search.maxLimit %d is below search.defaultLimit %d", c.Search.MaxLimit, c.Search.DefaultLimit))
	}
	if c.Search.Weights.Title <= c.Search.Weights.Text {
		errs = append(errs, fmt.Errorf("search.weights.title %v must exceed search.weights.text %v", c.Search.Weights.Title, c.Search.Weights.Text))
	}
	if len(c.Docs.Versions) == 0 {
		errs = append(errs, errors.New("docs.versions must list at least one version"))
	}
	seen := make(map[string]struct{})
	found := false
	for _, v := range c.Docs.Versions {
		if v.Name == "" {
			errs = append(errs, errors.New("docs.versions entries need a name"))
			continue
		}
		if _, dup := seen[v.Name]; dup {
			errs = append(errs, fmt.Errorf("docs.versions: duplicate version %q", v.Name))
		}
		seen[v.Name] = struct{}{}
		if v.Name == c.Docs.DefaultVersion {
			found = true
		}
	}
	if (c.RateLimit.Enabled || c.Auth.Enabled) && c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("rateLimit.window must be positive, got %s", c.RateLimit.Window))
	}
	for i, k := range c.Auth.Keys {
		if len(k.Key) < 16 {
			errs = append(errs, fmt.Errorf("auth.keys[%d] (%q): key must be at least 16 characters", i, k.Name))
		}
	}
	if len(c.Docs.Versions) > 0 && !found {
		errs = append(errs, fmt.Errorf("docs.defaultVersion %q is not in docs.versions", c.Docs.DefaultVersion))
	}
	return errors.Join(errs...)
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxPayloadBytes: 64 << 20,
		},
		Docs: DocsConfig{
			Versions:       []VersionSource{{Name: "dev"}},
			DefaultVersion: "dev",
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxLimit:     200,
			Timeout:      2 * time.Second,
			Weights: WeightsConfig{
				Title:            5.0,
				Text:             1.0,
				TextFrequencyCap: 2,
				PrefixDiscount:   0.4,
			},
		},
		Postgres: PostgresConfig{
			Host:             "localhost",
			Port:             5432,
			Database:         "docsearch",
			User:             "docsearch",
			Password:         "localdev",
			SSLMode:          "disable",
			MaxOpenConns:     10,
			MaxIdleConns:     2,
			ConnMaxLifetime:  5 * time.Minute,
			SnapshotInterval: time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docsearch-group",
			Topics: KafkaTopics{
				IndexReload:     "docsearch.index-reload",
				AnalyticsEvents: "docsearch.analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests: 120,
			Window:   time.Minute,
		},
		Auth: AuthConfig{
			Enabled:      true,
			KeyRateLimit: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads DS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DS_DOCS_DEFAULT_VERSION"); v != "" {
		cfg.Docs.DefaultVersion = v
	}
	// DS_DOCS_SOURCE points the default version at a payload.
	if v := os.Getenv("DS_DOCS_SOURCE"); v != "" {
		for i := range cfg.Docs.Versions {
			if cfg.Docs.Versions[i].Name == cfg.Docs.DefaultVersion {
				cfg.Docs.Versions[i].Source = v
			}
		}
	}
	if v := os.Getenv("DS_DOCS_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Docs.RefreshInterval = d
		}
	}
	if v := os.Getenv("DS_SEARCH_PREFIX_MATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.PrefixMatch = b
		}
	}
	if v := os.Getenv("DS_SEARCH_MAX_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxLimit = n
		}
	}
	if v := os.Getenv("DS_AUTH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Enabled = b
		}
	}
	// DS_AUTH_ADMIN_KEY adds a key without writing it into the YAML file.
	if v := os.Getenv("DS_AUTH_ADMIN_KEY"); v != "" {
		cfg.Auth.Keys = append(cfg.Auth.Keys, StaticKey{Name: "env-admin", Key: v})
	}
	if v := os.Getenv("DS_RATE_LIMIT_TRUSTED_PROXIES"); v != "" {
		cfg.RateLimit.TrustedProxies = strings.Split(v, ",")
	}
	if v := os.Getenv("DS_POSTGRES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("DS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("DS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("DS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("DS_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("DS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("DS_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("DS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
