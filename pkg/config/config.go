package config

import (
	"time"

	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/logger"
)

// Config is the root configuration structure.
type Config struct {
	// Name identifies the collector instance in logs and metrics
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`

	Collector CollectorConfig `yaml:"collector" json:"collector"`
	Feed      FeedConfig      `yaml:"feed" json:"feed"`
	Tape      TapeConfig      `yaml:"tape" json:"tape"`

	Logging logger.Config `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// CollectorConfig describes the collector and how it is striped.
type CollectorConfig struct {
	// Contract is one of ticker, stream or history
	Contract string `yaml:"contract" json:"contract"`
	// Striper is a striper specification such as "by1", "byhash4" or
	// "byrange-G-N-". It takes precedence over Stripes.
	Striper string `yaml:"striper" json:"striper"`
	// Stripes holds legacy stripe counts per contract, e.g. {ticker: 4}.
	// Counts are exposed as the "stripe.<contract>" properties.
	Stripes map[string]int `yaml:"stripes" json:"stripes"`

	StoreEverything bool `yaml:"store_everything" json:"store_everything"`
	EnableWildcards bool `yaml:"enable_wildcards" json:"enable_wildcards"`

	// MaxBufferSize bounds each agent's data buffer
	MaxBufferSize int `yaml:"max_buffer_size" json:"max_buffer_size"`
	// OverflowStrategy is drop_oldest or drop_newest
	OverflowStrategy string `yaml:"overflow_strategy" json:"overflow_strategy"`
}

// FeedConfig drives the synthetic feed harness.
type FeedConfig struct {
	Symbols   []string      `yaml:"symbols" json:"symbols"`
	Agents    int           `yaml:"agents" json:"agents"`
	Producers int           `yaml:"producers" json:"producers"`
	BatchSize int           `yaml:"batch_size" json:"batch_size"`
	Duration  time.Duration `yaml:"duration" json:"duration"`
	// Record, when set, is a tape path that receives every produced batch
	Record string `yaml:"record" json:"record"`
}

// TapeConfig controls tape replay.
type TapeConfig struct {
	Path      string `yaml:"path" json:"path"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	Path       string `yaml:"path" json:"path"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Name:    "quasar",
		Version: "1.0.0",
		Collector: CollectorConfig{
			Contract:         "ticker",
			Stripes:          map[string]int{},
			MaxBufferSize:    100000,
			OverflowStrategy: "drop_oldest",
		},
		Feed: FeedConfig{
			Symbols:   []string{"IBM", "MSFT", "AAPL", "GOOG", "AMZN", "ORCL", "INTC", "CSCO"},
			Agents:    4,
			Producers: 2,
			BatchSize: 100,
			Duration:  5 * time.Second,
		},
		Tape: TapeConfig{
			BatchSize: 1000,
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
			Path:       "/metrics",
		},
		Tracing: TracingConfig{
			ServiceName: "quasar",
			SampleRate:  1.0,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeValidation, "name is required")
	}
	switch c.Collector.Contract {
	case "ticker", "stream", "history":
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown contract %q", c.Collector.Contract)
	}
	for contract, n := range c.Collector.Stripes {
		if n < 0 {
			return errors.Newf(errors.ErrorTypeValidation, "stripe count for %s must not be negative", contract)
		}
	}
	if c.Collector.MaxBufferSize <= 0 {
		return errors.New(errors.ErrorTypeValidation, "max_buffer_size must be positive")
	}
	switch c.Collector.OverflowStrategy {
	case "", "drop_oldest", "drop_newest":
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unknown overflow strategy %q", c.Collector.OverflowStrategy)
	}
	if c.Feed.Agents < 0 || c.Feed.Producers < 0 {
		return errors.New(errors.ErrorTypeValidation, "feed agents and producers must not be negative")
	}
	if c.Feed.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeValidation, "feed batch_size must be positive")
	}
	if c.Tape.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeValidation, "tape batch_size must be positive")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.New(errors.ErrorTypeValidation, "tracing sample_rate must be between 0 and 1")
	}
	return nil
}
