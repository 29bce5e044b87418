// Package config loads and validates the exchange's YAML configuration
// via spf13/viper, with environment variable overrides under the
// EXCHANGE_ prefix.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lightsgoout/exchange-engine/internal/stp"
)

var instrumentPattern = regexp.MustCompile(`^[a-zA-Z0-9.]{1,5}$`)

// Config is the fully parsed, validated process configuration.
type Config struct {
	STP      STPConfig      `mapstructure:"stp"`
	Latency  LatencyConfig  `mapstructure:"latency"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Products []string       `mapstructure:"products"`
	Server   ServerConfig   `mapstructure:"server"`
}

// STPConfig selects the default self-trade prevention mode.
type STPConfig struct {
	Mode string `mapstructure:"mode"`
}

// LatencyConfig holds the per-phase violation thresholds, expressed in
// nanoseconds in the file, and a reservoir size. ReservoirSize is
// validated but not applied: cmd/exchange builds its monitor with the
// default reservoir of 10,000 samples.
type LatencyConfig struct {
	ThresholdE2ENs      int64 `mapstructure:"threshold_e2e_ns"`
	ThresholdMatchingNs int64 `mapstructure:"threshold_matching_ns"`
	ThresholdAuditNs    int64 `mapstructure:"threshold_audit_ns"`
	ReservoirSize       int   `mapstructure:"reservoir_size"`
}

// ThresholdE2E returns the configured end-to-end threshold as a Duration.
func (l LatencyConfig) ThresholdE2E() time.Duration { return time.Duration(l.ThresholdE2ENs) }

// ThresholdMatching returns the configured matching-phase threshold.
func (l LatencyConfig) ThresholdMatching() time.Duration { return time.Duration(l.ThresholdMatchingNs) }

// ThresholdAudit returns the configured audit-phase threshold.
func (l LatencyConfig) ThresholdAudit() time.Duration { return time.Duration(l.ThresholdAuditNs) }

// AuditConfig selects which audit sinks are wired up and where they write.
type AuditConfig struct {
	Sinks       []string `mapstructure:"sinks"`
	FilePath    string   `mapstructure:"file_path"`
	DatabaseDSN string   `mapstructure:"database_dsn"`
}

// HasSink reports whether name ("file" or "database") is enabled.
func (a AuditConfig) HasSink(name string) bool {
	for _, s := range a.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// ServerConfig addresses the ambient HTTP endpoints.
type ServerConfig struct {
	MetricsAddr     string `mapstructure:"metrics_addr"`
	TopOfBookWSAddr string `mapstructure:"topofbook_ws_addr"`
}

// Load reads and validates configuration from path, applying EXCHANGE_
// prefixed environment overrides (e.g. EXCHANGE_STP_MODE).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("EXCHANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stp.mode", stp.Default.String())
	v.SetDefault("latency.reservoir_size", 10000)
	v.SetDefault("audit.sinks", []string{"file"})
	v.SetDefault("audit.file_path", "./audit.log")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.topofbook_ws_addr", ":8090")
}

// Validate checks the structural and domain constraints SPEC_FULL §4.8
// requires: a recognized STP mode, well-formed and unique instrument
// identifiers, and a non-negative reservoir size. Validation failures are
// InvalidInput-class errors raised before the matching core is
// constructed, never surfaced as a matching-engine error.
func (c *Config) Validate() error {
	if _, ok := stp.ParseMode(c.STP.Mode); !ok {
		return fmt.Errorf("config: stp.mode %q is not one of ALLOW, CANCEL_INCOMING, CANCEL_RESTING, CANCEL_BOTH", c.STP.Mode)
	}

	seen := make(map[string]bool, len(c.Products))
	for _, p := range c.Products {
		if !instrumentPattern.MatchString(p) {
			return fmt.Errorf("config: product %q does not match instrument identifier pattern %s", p, instrumentPattern.String())
		}
		if seen[p] {
			return fmt.Errorf("config: product %q is listed more than once", p)
		}
		seen[p] = true
	}

	if c.Latency.ReservoirSize < 0 {
		return fmt.Errorf("config: latency.reservoir_size must be >= 0, got %d", c.Latency.ReservoirSize)
	}

	for _, s := range c.Audit.Sinks {
		if s != "file" && s != "database" {
			return fmt.Errorf("config: audit.sinks entry %q must be \"file\" or \"database\"", s)
		}
	}
	if c.Audit.HasSink("database") && c.Audit.DatabaseDSN == "" {
		return fmt.Errorf("config: audit.sinks includes \"database\" but audit.database_dsn is empty")
	}

	return nil
}
