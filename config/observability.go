package config

import (
	"fmt"
	"strings"
)

const defaultObservabilityName = "onehub"

// ObservabilityConfig groups configuration that controls metrics and logging.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig
	Logging LoggingConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Logging.Sanitize()
}

// MetricsDriver selects the metrics sink implementation.
type MetricsDriver string

const (
	MetricsDriverStatsd     MetricsDriver = "statsd"
	MetricsDriverPrometheus MetricsDriver = "prometheus"
)

// UnmarshalText implements encoding.TextUnmarshaler for MetricsDriver.
func (d *MetricsDriver) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "statsd", "prometheus":
		*d = MetricsDriver(v)
		return nil
	default:
		return fmt.Errorf("invalid MetricsDriver: %q (valid options: statsd, prometheus)", v)
	}
}

// ObservabilityMetricsConfig controls emission of metrics to StatsD or Prometheus.
type ObservabilityMetricsConfig struct {
	Enabled       bool          `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	Driver        MetricsDriver `env:"OBSERVABILITY_METRICS_DRIVER"         envDefault:"statsd"`
	StatsdAddress string        `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	// Namespace prefixes metric names.
	Namespace string `env:"OBSERVABILITY_METRICS_NAMESPACE" envDefault:"onehub"`
	// PrometheusPath is where the dev server exposes the registry.
	PrometheusPath string `env:"OBSERVABILITY_METRICS_PROMETHEUS_PATH" envDefault:"/metrics"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.Driver == "" {
		c.Driver = MetricsDriverStatsd
	}
	if c.Driver == MetricsDriverStatsd && c.StatsdAddress == "" {
		c.Enabled = false
	}
	if c.Namespace = strings.TrimSpace(c.Namespace); c.Namespace == "" {
		c.Namespace = defaultObservabilityName
	}
	if c.PrometheusPath == "" {
		c.PrometheusPath = "/metrics"
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && (c.Driver == MetricsDriverPrometheus || c.StatsdAddress != "")
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// File, when set, receives logs through a rotating writer instead of stderr.
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB"  envDefault:"10"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS"  envDefault:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`
	Compress   bool   `env:"LOG_COMPRESS"     envDefault:"true"`
}

// Sanitize normalises logging values.
func (c *LoggingConfig) Sanitize() {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		c.Level = "info"
	}
	c.File = strings.TrimSpace(c.File)
	if c.MaxSizeMB < 1 {
		c.MaxSizeMB = 1
	}
	if c.MaxBackups < 0 {
		c.MaxBackups = 0
	}
	if c.MaxAgeDays < 0 {
		c.MaxAgeDays = 0
	}
}
