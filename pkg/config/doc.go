// Package config provides the configuration system for Quasar.
// A single Config structure describes the collector, the synthetic feed,
// tape replay and the ambient logging, metrics and tracing settings.
//
// The configuration is organized into sections:
//   - Collector: contract, striping and agent buffering
//   - Feed: synthetic producers and consumers used by "quasar run"
//   - Tape: record tape input and output
//   - Logging, Metrics, Tracing: observability
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Collector.Striper = "byhash4"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Usage
//
// ## Loading a configuration file
//
//	cfg, err := config.LoadFile("quasar.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// ## Environment variable substitution
//
//	# quasar.yaml
//	name: quotes
//	collector:
//	  contract: ticker
//	  striper: ${QUASAR_STRIPER}
//
// ## Legacy stripe counts
//
// Older deployments configure the stripe count per contract instead of a
// striper specification:
//
//	collector:
//	  stripes:
//	    ticker: 4
//
// These counts are resolved through Properties, where the environment
// variable QUASAR_STRIPE_TICKER overrides the configured value:
//
//	props := cfg.Properties()
//	n, err := props.GetInt(config.StripeProperty("ticker"))
package config
