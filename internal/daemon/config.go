// SPDX-License-Identifier: MIT

package daemon

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/jmoldow/lazykit/internal/log"
	"github.com/jmoldow/lazykit/lazyconf"
)

// Config is the lazykitd runtime configuration, loaded lazily through a
// lazyconf.Holder with precedence ENV > file > defaults. Duration fields
// are strings in Go duration syntax ("500ms", "1m").
type Config struct {
	Listen        string `yaml:"listen"`
	MetricsListen string `yaml:"metricsListen,omitempty"`
	LogLevel      string `yaml:"logLevel"`

	DefaultLanguage string            `yaml:"defaultLanguage"`
	Greetings       map[string]string `yaml:"greetings,omitempty"`

	SQLitePath string `yaml:"sqlitePath"`

	Memo      MemoConfig      `yaml:"memo"`
	Limits    LimitsConfig    `yaml:"limits"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// MemoConfig selects and tunes the memoization backend.
type MemoConfig struct {
	// Backend is one of "memory", "redis", "badger" or "off".
	Backend         string `yaml:"backend"`
	TTL             string `yaml:"ttl,omitempty"`
	CleanupInterval string `yaml:"cleanupInterval,omitempty"`
	RedisAddr       string `yaml:"redisAddr,omitempty"`
	RedisPassword   string `yaml:"redisPassword,omitempty"`
	RedisDB         int    `yaml:"redisDB,omitempty"`
	BadgerPath      string `yaml:"badgerPath,omitempty"`
}

// LimitsConfig caps inbound load.
type LimitsConfig struct {
	// MaxConns caps concurrently accepted connections. 0 means unlimited.
	MaxConns int `yaml:"maxConns,omitempty"`
	// RequestsPerMinute enables per-IP rate limiting. 0 disables it.
	RequestsPerMinute int `yaml:"requestsPerMinute,omitempty"`
	// GlobalRPS enables a server-wide token bucket. 0 disables it.
	GlobalRPS float64 `yaml:"globalRPS,omitempty"`
	// GlobalBurst is the bucket size. 0 defaults to GlobalRPS.
	GlobalBurst int `yaml:"globalBurst,omitempty"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporterType,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Listen:          ":8484",
		LogLevel:        "info",
		DefaultLanguage: "en",
		SQLitePath:      "lazykit.db",
		Memo: MemoConfig{
			Backend:         "memory",
			TTL:             "1m",
			CleanupInterval: "1m",
			RedisAddr:       "localhost:6379",
			BadgerPath:      "memo-cache",
		},
		Telemetry: TelemetryConfig{
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "development",
			SamplingRate: 1.0,
		},
	}
}

// applyEnv overlays LAZYKITD_* environment variables over the current
// values. Highest precedence layer.
func applyEnv(cfg *Config) error {
	cfg.Listen = lazyconf.ParseString("LAZYKITD_LISTEN", cfg.Listen)
	cfg.MetricsListen = lazyconf.ParseString("LAZYKITD_METRICS_LISTEN", cfg.MetricsListen)
	cfg.LogLevel = lazyconf.ParseString("LAZYKITD_LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLanguage = lazyconf.ParseString("LAZYKITD_LANGUAGE", cfg.DefaultLanguage)
	cfg.SQLitePath = lazyconf.ParseString("LAZYKITD_SQLITE_PATH", cfg.SQLitePath)

	cfg.Memo.Backend = lazyconf.ParseString("LAZYKITD_MEMO_BACKEND", cfg.Memo.Backend)
	cfg.Memo.TTL = lazyconf.ParseString("LAZYKITD_MEMO_TTL", cfg.Memo.TTL)
	cfg.Memo.RedisAddr = lazyconf.ParseString("LAZYKITD_REDIS_ADDR", cfg.Memo.RedisAddr)
	cfg.Memo.RedisPassword = lazyconf.ParseString("LAZYKITD_REDIS_PASSWORD", cfg.Memo.RedisPassword)
	cfg.Memo.RedisDB = lazyconf.ParseInt("LAZYKITD_REDIS_DB", cfg.Memo.RedisDB)
	cfg.Memo.BadgerPath = lazyconf.ParseString("LAZYKITD_BADGER_PATH", cfg.Memo.BadgerPath)

	cfg.Limits.MaxConns = lazyconf.ParseInt("LAZYKITD_MAX_CONNS", cfg.Limits.MaxConns)
	cfg.Limits.RequestsPerMinute = lazyconf.ParseInt("LAZYKITD_RATE_LIMIT_RPM", cfg.Limits.RequestsPerMinute)
	cfg.Limits.GlobalRPS = lazyconf.ParseFloat("LAZYKITD_GLOBAL_RPS", cfg.Limits.GlobalRPS)
	cfg.Limits.GlobalBurst = lazyconf.ParseInt("LAZYKITD_GLOBAL_BURST", cfg.Limits.GlobalBurst)

	cfg.Telemetry.Enabled = lazyconf.ParseBool("LAZYKITD_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = lazyconf.ParseString("LAZYKITD_OTLP_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = lazyconf.ParseString("LAZYKITD_OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = lazyconf.ParseString("LAZYKITD_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = lazyconf.ParseFloat("LAZYKITD_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	return nil
}

// NewConfigLoader builds the layered loader: defaults, then the YAML file
// (if path is non-empty), then environment variables.
func NewConfigLoader(path string) lazyconf.Loader[Config] {
	return lazyconf.Compose(
		lazyconf.Static(DefaultConfig()),
		lazyconf.FileOverlay[Config](path),
		applyEnv,
	)
}

// NewConfigHolder wraps the loader in a validating, hot-reloadable holder.
// Nothing is read from disk until the first Get.
func NewConfigHolder(path string) *lazyconf.Holder[Config] {
	return lazyconf.NewHolder(NewConfigLoader(path),
		lazyconf.WithValidator(Config.Validate),
		lazyconf.WithPath[Config](path),
		lazyconf.WithLogger[Config](log.WithComponent("config")),
	)
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
		}
	}
	if _, err := language.Parse(c.DefaultLanguage); err != nil {
		return fmt.Errorf("invalid default language %q: %w", c.DefaultLanguage, err)
	}
	for tag := range c.Greetings {
		if _, err := language.Parse(tag); err != nil {
			return fmt.Errorf("invalid greeting language %q: %w", tag, err)
		}
	}

	switch c.Memo.Backend {
	case "memory", "redis", "badger", "off":
	default:
		return fmt.Errorf("invalid memo backend %q (supported: memory, redis, badger, off)", c.Memo.Backend)
	}
	for _, d := range []struct{ name, value string }{
		{"memo.ttl", c.Memo.TTL},
		{"memo.cleanupInterval", c.Memo.CleanupInterval},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
	}

	if c.Limits.MaxConns < 0 {
		return fmt.Errorf("limits.maxConns must not be negative")
	}
	if c.Limits.RequestsPerMinute < 0 {
		return fmt.Errorf("limits.requestsPerMinute must not be negative")
	}
	if c.Limits.GlobalRPS < 0 {
		return fmt.Errorf("limits.globalRPS must not be negative")
	}
	if c.Limits.GlobalBurst < 0 {
		return fmt.Errorf("limits.globalBurst must not be negative")
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.ExporterType {
		case "grpc", "http":
		default:
			return fmt.Errorf("invalid telemetry exporter %q (supported: grpc, http)", c.Telemetry.ExporterType)
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			return fmt.Errorf("telemetry sampling rate must be within [0, 1]")
		}
	}

	return nil
}

// durationOr parses a config duration string, falling back to def when the
// field is empty. Validate has already rejected malformed values.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
