// Package quasar provides striped market data collectors.
//
// A collector stores and delivers records (quotes, trades, time series)
// between distributors, which publish data and observe subscription, and
// agents, which subscribe and retrieve data. A striped collector partitions
// the symbol space into stripes, runs one independent shard collector per
// stripe and presents the shards as a single collector, so producers and
// consumers of unrelated symbols never contend on the same lock.
//
// # Architecture
//
// Four pieces make striping transparent to callers:
//
// 1. Stripers map a symbol to a stripe. "by1" is a single stripe, "byhashN"
// hashes symbols into N stripes and "byrange-G-N-" splits the alphabet at
// the given bounds.
//
// 2. The buffer partitioner splits every batch of records or subscription
// changes into per-stripe buffers, keeping the order of records within a
// stripe.
//
// 3. The notification coalescer turns per-shard "records available"
// signals into a single edge for the consumer, and hands ready shards out
// round-robin so no stripe starves.
//
// 4. Striped agents and distributors fan out to the shards their filter
// intersects. A filter that covers exactly one stripe gets the shard's own
// agent or distributor with no striping overhead.
//
// # Quick Start
//
//	import (
//	    "github.com/ajitpratap0/quasar/pkg/collector"
//	    "github.com/ajitpratap0/quasar/pkg/collector/memory"
//	    "github.com/ajitpratap0/quasar/pkg/record"
//	    "github.com/ajitpratap0/quasar/pkg/stripe"
//	    "github.com/ajitpratap0/quasar/pkg/striper"
//	)
//
//	quote := record.NewType("Quote", false, []string{"Bid", "Ask"}, nil)
//	scheme := record.NewScheme(nil, quote)
//
//	f := stripe.NewFactory(memory.Factory{})
//	ticker, err := f.NewTicker(collector.Options{
//	    Name:    "quotes",
//	    Scheme:  scheme,
//	    Striper: striper.New(scheme.Codec(), 4),
//	})
//
//	agent := ticker.BuildAgent(collector.AgentOptions{})
//	agent.SetRecordListener(collector.ListenerFunc(func(p collector.RecordProvider) {
//	    // wake a consumer that calls p.Retrieve(sink)
//	}))
//	ticker.BuildDistributor(collector.DistributorOptions{}).Process(batch)
//
// # Key Packages
//
//	pkg/stripe        - Striped collector, agent, distributor and factory
//	pkg/striper       - Symbol to stripe mapping
//	pkg/collector     - Collector contracts and the in-memory shard engine
//	pkg/record        - Records, schemes and buffers
//	pkg/tape          - Recording and replaying record streams
//	pkg/config        - YAML configuration and legacy stripe properties
//	pkg/stats         - Prometheus statistics per collector and shard
//	pkg/observability - OpenTelemetry tracing
//	internal/feed     - Synthetic feed harness behind "quasar run"
//
// # Configuration
//
// The legacy "stripe.<contract>" properties (QUASAR_STRIPE_TICKER and so on
// in the environment) select a hash striper for collectors built without an
// explicit striper. Environment variables are supported in YAML files with
// ${VAR_NAME} syntax.
package quasar
