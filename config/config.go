package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/maildispatch/observe"
)

// Provider types.
const (
	ProviderSimulated = "simulated"
	ProviderSMTP      = "smtp"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Dispatch  DispatchConfig   `koanf:"dispatch"`
	Providers []ProviderConfig `koanf:"providers"`
	Observe   ObserveConfig    `koanf:"observe"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	SendPath        string        `koanf:"sendPath"`
	ReadTimeout     time.Duration `koanf:"readTimeout"`
	WriteTimeout    time.Duration `koanf:"writeTimeout"`
	ShutdownTimeout time.Duration `koanf:"shutdownTimeout"`

	// Ingress throttles requests per client IP. A zero Rate disables it.
	Ingress IngressConfig `koanf:"ingress"`
}

// IngressConfig is a per-client token bucket.
type IngressConfig struct {
	Rate  float64 `koanf:"rate"`
	Burst int     `koanf:"burst"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DispatchConfig configures the dispatch core. Durations are milliseconds.
type DispatchConfig struct {
	FailureThreshold   int `koanf:"failureThreshold"`
	ResetTimeoutMs     int `koanf:"resetTimeoutMs"`
	MonitoringPeriodMs int `koanf:"monitoringPeriodMs"`
	HalfOpenMaxTrials  int `koanf:"halfOpenMaxTrials"`
	AttemptTimeoutMs   int `koanf:"attemptTimeoutMs"` // zero disables
	PollIntervalMs     int `koanf:"pollIntervalMs"`

	RateLimit   RateLimitConfig   `koanf:"rateLimit"`
	Retry       RetryConfig       `koanf:"retry"`
	Queue       QueueConfig       `koanf:"queue"`
	Idempotency IdempotencyConfig `koanf:"idempotency"`
}

// RateLimitConfig is the per-recipient sliding window.
type RateLimitConfig struct {
	MaxRequests int `koanf:"maxRequests"`
	WindowMs    int `koanf:"windowMs"`
}

// RetryConfig configures per-provider retries before failover.
type RetryConfig struct {
	MaxAttempts    int     `koanf:"maxAttempts"`
	InitialDelayMs int     `koanf:"initialDelayMs"`
	MaxDelayMs     int     `koanf:"maxDelayMs"`
	Multiplier     float64 `koanf:"multiplier"`
}

// QueueConfig bounds the work queue. Zero MaxDepth is unbounded.
type QueueConfig struct {
	MaxDepth int `koanf:"maxDepth"`
}

// IdempotencyConfig bounds the idempotency cache. Zero disables each bound.
type IdempotencyConfig struct {
	TTLMs      int `koanf:"ttlMs"`
	MaxEntries int `koanf:"maxEntries"`
}

// ProviderConfig defines one delivery provider. Providers are tried in the
// order listed.
type ProviderConfig struct {
	Name string `koanf:"name"`
	Type string `koanf:"type"`

	// Simulated providers.
	FailureRate float64 `koanf:"failureRate"`
	LatencyMs   int     `koanf:"latencyMs"`

	// SMTP providers. Username and Password may be secretref: values.
	SMTP SMTPConfig `koanf:"smtp"`
}

// SMTPConfig configures an SMTP relay.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	TLS      string `koanf:"tls"`
}

// ObserveConfig configures logging, metrics and tracing.
type ObserveConfig struct {
	ServiceName string `koanf:"serviceName"`
	Version     string `koanf:"version"`

	Tracing struct {
		Enabled   bool    `koanf:"enabled"`
		Exporter  string  `koanf:"exporter"`
		SamplePct float64 `koanf:"samplePct"`
	} `koanf:"tracing"`

	Metrics struct {
		Enabled  bool   `koanf:"enabled"`
		Exporter string `koanf:"exporter"`
	} `koanf:"metrics"`

	Logging struct {
		Enabled bool   `koanf:"enabled"`
		Level   string `koanf:"level"`
		File    struct {
			Path       string `koanf:"path"`
			MaxSizeMB  int    `koanf:"maxSizeMB"`
			MaxBackups int    `koanf:"maxBackups"`
			MaxAgeDays int    `koanf:"maxAgeDays"`
			Compress   bool   `koanf:"compress"`
		} `koanf:"file"`
	} `koanf:"logging"`
}

// ToObserve converts to the observe package configuration.
func (o ObserveConfig) ToObserve() observe.Config {
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     o.Version,
		Tracing: observe.TracingConfig{
			Enabled:   o.Tracing.Enabled,
			Exporter:  o.Tracing.Exporter,
			SamplePct: o.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.Metrics.Enabled,
			Exporter: o.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: o.Logging.Enabled,
			Level:   o.Logging.Level,
			File: observe.FileConfig{
				Path:       o.Logging.File.Path,
				MaxSizeMB:  o.Logging.File.MaxSizeMB,
				MaxBackups: o.Logging.File.MaxBackups,
				MaxAgeDays: o.Logging.File.MaxAgeDays,
				Compress:   o.Logging.File.Compress,
			},
		},
	}
}

// Default returns the built-in configuration: two simulated providers,
// ProviderA then ProviderB, behind a 100 requests per minute recipient limit.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            3001,
			SendPath:        "/api/email/send",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Dispatch: DispatchConfig{
			FailureThreshold:   5,
			ResetTimeoutMs:     60_000,
			MonitoringPeriodMs: 300_000,
			HalfOpenMaxTrials:  1,
			AttemptTimeoutMs:   30_000,
			PollIntervalMs:     100,
			RateLimit:          RateLimitConfig{MaxRequests: 100, WindowMs: 60_000},
			Retry:              RetryConfig{MaxAttempts: 1, InitialDelayMs: 1000, MaxDelayMs: 30_000, Multiplier: 2},
			Queue:              QueueConfig{MaxDepth: 10_000},
			Idempotency:        IdempotencyConfig{TTLMs: 86_400_000, MaxEntries: 100_000},
		},
		Providers: DefaultProviders(),
	}
	cfg.Observe.ServiceName = "maildispatch"
	cfg.Observe.Version = "dev"
	cfg.Observe.Tracing.Exporter = "none"
	cfg.Observe.Tracing.SamplePct = 1
	cfg.Observe.Metrics.Enabled = true
	cfg.Observe.Metrics.Exporter = "prometheus"
	cfg.Observe.Logging.Enabled = true
	cfg.Observe.Logging.Level = "info"
	return cfg
}

// DefaultProviders returns the simulated ProviderA and ProviderB.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: "ProviderA", Type: ProviderSimulated, FailureRate: 0.25, LatencyMs: 100},
		{Name: "ProviderB", Type: ProviderSimulated, FailureRate: 0.15, LatencyMs: 100},
	}
}

// Validate reports every invalid value, joined.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		fail("server.port %d out of range", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.SendPath, "/") {
		fail("server.sendPath %q must start with /", c.Server.SendPath)
	}
	if c.Server.Ingress.Rate < 0 || c.Server.Ingress.Burst < 0 {
		fail("server.ingress rate and burst must not be negative")
	}
	if c.Server.Ingress.Rate > 0 && c.Server.Ingress.Burst == 0 {
		fail("server.ingress.burst must be positive when rate is set")
	}

	d := c.Dispatch
	if d.FailureThreshold < 1 {
		fail("dispatch.failureThreshold must be at least 1")
	}
	if d.ResetTimeoutMs < 1 || d.MonitoringPeriodMs < 1 || d.PollIntervalMs < 1 {
		fail("dispatch resetTimeoutMs, monitoringPeriodMs and pollIntervalMs must be positive")
	}
	if d.HalfOpenMaxTrials < 1 {
		fail("dispatch.halfOpenMaxTrials must be at least 1")
	}
	if d.AttemptTimeoutMs < 0 {
		fail("dispatch.attemptTimeoutMs must not be negative")
	}
	if d.RateLimit.MaxRequests < 1 || d.RateLimit.WindowMs < 1 {
		fail("dispatch.rateLimit maxRequests and windowMs must be positive")
	}
	if d.Retry.MaxAttempts < 1 {
		fail("dispatch.retry.maxAttempts must be at least 1")
	}
	if d.Retry.Multiplier < 0 || d.Retry.InitialDelayMs < 0 || d.Retry.MaxDelayMs < 0 {
		fail("dispatch.retry values must not be negative")
	}
	if d.Queue.MaxDepth < 0 || d.Idempotency.TTLMs < 0 || d.Idempotency.MaxEntries < 0 {
		fail("dispatch queue and idempotency bounds must not be negative")
	}

	if len(c.Providers) == 0 {
		fail("at least one provider is required")
	}
	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			fail("providers[%d].name is required", i)
		}
		if _, dup := seen[p.Name]; dup {
			fail("providers[%d].name %q is duplicated", i, p.Name)
		}
		seen[p.Name] = struct{}{}

		switch p.Type {
		case ProviderSimulated:
			if p.FailureRate < 0 || p.FailureRate > 1 {
				fail("providers[%d].failureRate %v outside [0, 1]", i, p.FailureRate)
			}
			if p.LatencyMs < 0 {
				fail("providers[%d].latencyMs must not be negative", i)
			}
		case ProviderSMTP:
			if p.SMTP.Host == "" || p.SMTP.From == "" {
				fail("providers[%d].smtp host and from are required", i)
			}
		default:
			errs = append(errs, fmt.Errorf("%w: providers[%d].type %q", ErrUnknownProviderType, i, p.Type))
		}
	}

	observeConfig := c.Observe.ToObserve()
	if err := observeConfig.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err))
	}

	return errors.Join(errs...)
}

// Millis converts a millisecond count to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
