package feed

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/collector/memory"
	"github.com/ajitpratap0/quasar/pkg/config"
	"github.com/ajitpratap0/quasar/pkg/stats"
	"github.com/ajitpratap0/quasar/pkg/stripe"
	"github.com/ajitpratap0/quasar/pkg/striper"
)

// NewCollector builds the collector described by cfg over memory shards.
// An explicit striper spec wins over the legacy per-contract stripe counts.
func NewCollector(cfg *config.Config, log *zap.Logger) (collector.Collector, error) {
	contract, err := collector.ParseContract(cfg.Collector.Contract)
	if err != nil {
		return nil, err
	}
	scheme := Scheme()
	opts := collector.Options{
		Name:            cfg.Name,
		Scheme:          scheme,
		Stats:           stats.New(cfg.Name),
		StoreEverything: cfg.Collector.StoreEverything,
		EnableWildcards: cfg.Collector.EnableWildcards,
		Logger:          log,
	}
	if cfg.Collector.Striper != "" {
		s, err := striper.ValueOf(scheme.Codec(), cfg.Collector.Striper)
		if err != nil {
			return nil, err
		}
		opts.Striper = s
	}
	f := stripe.NewFactory(memory.Factory{},
		stripe.WithLogger(log),
		stripe.WithProperties(cfg.Properties()))
	return f.NewCollector(contract, opts)
}

// ConfigFrom maps the feed section of cfg onto a harness configuration.
func ConfigFrom(cfg *config.Config) (Config, error) {
	overflow, err := collector.ParseOverflowStrategy(cfg.Collector.OverflowStrategy)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Symbols:       cfg.Feed.Symbols,
		Agents:        cfg.Feed.Agents,
		Producers:     cfg.Feed.Producers,
		BatchSize:     cfg.Feed.BatchSize,
		Duration:      cfg.Feed.Duration,
		MaxBufferSize: cfg.Collector.MaxBufferSize,
		Overflow:      overflow,
	}, nil
}
