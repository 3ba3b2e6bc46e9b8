// Package config loads service configuration from an optional config file
// and TYPSTAPI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. TYPSTAPI_HTTP_PORT.
const EnvPrefix = "TYPSTAPI"

// Config holds all application configuration.
type Config struct {
	HTTP      HTTPConfig
	Compiler  CompilerConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Shutdown  ShutdownConfig
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// MaxBodyBytes caps request bodies; 0 means unlimited.
	MaxBodyBytes       int64
	CORSAllowedOrigins []string
	// TrustProxy honors X-Forwarded-For when resolving client addresses.
	TrustProxy bool
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// CompilerConfig holds settings for the external typst process.
type CompilerConfig struct {
	Binary           string
	Timeout          time.Duration
	DiagnosticFormat string
	// Env entries (KEY=VALUE) added to every compiler process.
	Env []string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Source bool
}

// RateLimitConfig holds per-client admission limits.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	// Window is the fixed window used by the redis backend.
	Window time.Duration
}

// RedisConfig holds the optional shared rate-limit store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ShutdownConfig holds graceful shutdown settings.
type ShutdownConfig struct {
	Timeout time.Duration
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with TYPSTAPI_ prefix (e.g., TYPSTAPI_COMPILER_BINARY)
// 2. config.{toml,yaml,json} in the working directory or /etc/typstapi
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/typstapi")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		HTTP: HTTPConfig{
			Host:               v.GetString("http.host"),
			Port:               v.GetInt("http.port"),
			ReadTimeout:        v.GetDuration("http.read_timeout"),
			WriteTimeout:       v.GetDuration("http.write_timeout"),
			IdleTimeout:        v.GetDuration("http.idle_timeout"),
			MaxBodyBytes:       v.GetInt64("http.max_body_bytes"),
			CORSAllowedOrigins: splitList(v.GetStringSlice("http.cors_allowed_origins")),
			TrustProxy:         v.GetBool("http.trust_proxy"),
		},
		Compiler: CompilerConfig{
			Binary:           strings.TrimSpace(v.GetString("compiler.binary")),
			Timeout:          v.GetDuration("compiler.timeout"),
			DiagnosticFormat: strings.TrimSpace(v.GetString("compiler.diagnostic_format")),
			Env:              splitList(v.GetStringSlice("compiler.env")),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Source: v.GetBool("log.source"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           v.GetBool("rate_limit.enabled"),
			RequestsPerSecond: v.GetFloat64("rate_limit.requests_per_second"),
			Burst:             v.GetInt("rate_limit.burst"),
			Window:            v.GetDuration("rate_limit.window"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis.addr")),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Shutdown: ShutdownConfig{
			Timeout: v.GetDuration("shutdown.timeout"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 3030)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 120*time.Second)
	v.SetDefault("http.idle_timeout", 120*time.Second)
	v.SetDefault("http.max_body_bytes", 0)
	v.SetDefault("http.cors_allowed_origins", []string{"http://localhost:3030"})
	v.SetDefault("http.trust_proxy", false)

	v.SetDefault("compiler.binary", "typst")
	v.SetDefault("compiler.timeout", 60*time.Second)
	v.SetDefault("compiler.diagnostic_format", "")
	v.SetDefault("compiler.env", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.source", false)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("shutdown.timeout", 30*time.Second)
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must not be negative")
	}
	if c.Compiler.Binary == "" {
		return fmt.Errorf("compiler.binary must not be empty")
	}
	if c.Compiler.Timeout < 0 {
		return fmt.Errorf("compiler.timeout must not be negative")
	}
	switch c.Compiler.DiagnosticFormat {
	case "", "human", "short":
	default:
		return fmt.Errorf("compiler.diagnostic_format must be human or short, got %q", c.Compiler.DiagnosticFormat)
	}
	for _, kv := range c.Compiler.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("compiler.env entry %q is not KEY=VALUE", kv)
		}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit.requests_per_second must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit.burst must be positive")
		}
		if c.Redis.Enabled() && c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.window must be positive when redis is configured")
		}
	}
	return nil
}

// splitList accepts both real lists and a single comma-separated env value.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
