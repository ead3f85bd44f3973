// Package config loads the service configuration from config.toml and
// FINHR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sequence store backends
const (
	SequenceStoreDatabase = "database"
	SequenceStoreRedis    = "redis"
	SequenceStoreMemory   = "memory"
)

const envProduction = "production"

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Document  DocumentConfig  `mapstructure:"document"`
	Sequence  SequenceConfig  `mapstructure:"sequence"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// IsProduction reports whether the stricter production rules apply
func (a AppConfig) IsProduction() bool {
	return a.Env == envProduction
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
	// RateLimit is "<limit>-<S|M|H|D>"; empty disables throttling
	RateLimit      string `mapstructure:"rate_limit"`
	RateLimitStore string `mapstructure:"rate_limit_store"`
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	ProfilingEnabled  bool          `mapstructure:"profiling_enabled"`
	ProfilerAddress   string        `mapstructure:"profiler_address"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

type DocumentConfig struct {
	// Tolerance is the largest accepted |header total - line total|
	Tolerance float64       `mapstructure:"tolerance"`
	DraftTTL  time.Duration `mapstructure:"draft_ttl"`
}

type SequenceConfig struct {
	Store        string `mapstructure:"store"`
	MaxRetries   int    `mapstructure:"max_retries"`
	DefaultWidth int    `mapstructure:"default_width"`
}

type CatalogConfig struct {
	// CacheTTL of zero disables the catalog fetch cache
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// defaults registers every key, which also makes each one reachable
// through its FINHR_ environment variable.
var defaults = map[string]any{
	"app.name": "finhr-backend",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "finhr",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":       "15s",
	"http.write_timeout":      "15s",
	"http.idle_timeout":       "60s",
	"http.max_header_bytes":   1 << 20,
	"http.max_body_size":      2 << 20,
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "X-Request-ID", "X-Tenant-ID"},
	"http.trusted_proxies":    []string{},
	"http.rate_limit":         "",
	"http.rate_limit_store":   "memory",

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "finhr-backend",
	"telemetry.insecure":                false,
	"telemetry.metrics_interval":        "60s",
	"telemetry.logs_enabled":            false,
	"telemetry.profiling_enabled":       false,
	"telemetry.profiler_address":        "",
	"telemetry.db_trace_enabled":        true,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": "200ms",

	"document.tolerance": 0.01,
	"document.draft_ttl": "2h",

	"sequence.store":         SequenceStoreDatabase,
	"sequence.max_retries":   3,
	"sequence.default_width": 4,

	"catalog.cache_ttl":   "30s",
	"catalog.session_ttl": "30m",
}

// Load reads config.toml from ".", "./backend" or "/app" when present,
// then lets FINHR_<SECTION>_<KEY> environment variables override it,
// e.g. FINHR_DATABASE_PASSWORD.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, dir := range []string{".", "./backend", "/app"} {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("FINHR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate reports every problem at once
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", c.Telemetry.SamplingRatio)
	check(!c.Telemetry.ProfilingEnabled || c.Telemetry.ProfilerAddress != "",
		"telemetry.profiler_address is required when profiling is enabled")

	check(c.HTTP.RateLimitStore == "memory" || c.HTTP.RateLimitStore == "redis",
		"http.rate_limit_store must be memory or redis, got %q", c.HTTP.RateLimitStore)

	check(c.Document.Tolerance > 0, "document.tolerance must be positive, got %g", c.Document.Tolerance)
	check(slices.Contains([]string{SequenceStoreDatabase, SequenceStoreRedis, SequenceStoreMemory}, c.Sequence.Store),
		"sequence.store must be one of database, redis, memory, got %q", c.Sequence.Store)
	check(c.Sequence.MaxRetries >= 0, "sequence.max_retries cannot be negative")
	check(c.Sequence.DefaultWidth >= 0 && c.Sequence.DefaultWidth <= 18,
		"sequence.default_width must be between 0 and 18, got %d", c.Sequence.DefaultWidth)
	check(c.Catalog.CacheTTL >= 0, "catalog.cache_ttl cannot be negative")

	if c.App.IsProduction() {
		check(db.Password != "", "database.password is required in production")
		check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		check(!slices.Contains(c.HTTP.CORSAllowOrigins, "*"),
			"http.cors_allow_origins cannot be '*' in production")
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
		check(c.Sequence.Store != SequenceStoreMemory,
			"sequence.store=memory loses counters on restart and is not allowed in production")
	}
	return errors.Join(errs...)
}

// DSN is the postgres URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}
