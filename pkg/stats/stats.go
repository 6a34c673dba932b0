// Package stats tracks collector activity. Every Stats value feeds a set of
// Prometheus vectors labelled by collector name and shard, and keeps local
// atomic totals that can be read back without a registry.
//
// # Basic Usage
//
//	s := stats.New("ticker")
//	shard := s.Child("hash0of4")
//	shard.AddProcessed(len(batch))
//	snap := s.Snapshot() // totals include every child
//
// A nil *Stats is valid and records nothing.
package stats

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RootShard labels statistics that are not tied to one shard.
const RootShard = "all"

var (
	// RecordsProcessed counts records handed to distributors.
	// Labels: collector, shard
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quasar_records_processed_total",
			Help: "Total number of records processed by distributors",
		},
		[]string{"collector", "shard"},
	)

	// RecordsRetrieved counts records delivered to agent sinks.
	RecordsRetrieved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quasar_records_retrieved_total",
			Help: "Total number of records retrieved by agents",
		},
		[]string{"collector", "shard"},
	)

	// RecordsDropped counts records discarded by agent buffer overflow.
	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quasar_records_dropped_total",
			Help: "Total number of records dropped on agent buffer overflow",
		},
		[]string{"collector", "shard"},
	)

	// Subscriptions tracks the number of active agent subscriptions.
	Subscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quasar_subscriptions",
			Help: "Number of active agent subscriptions",
		},
		[]string{"collector", "shard"},
	)

	// Notifications counts edge-triggered "records available" up-calls.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quasar_notifications_total",
			Help: "Number of records-available notifications fired",
		},
		[]string{"collector", "shard"},
	)
)

// Snapshot is a point-in-time copy of the totals.
type Snapshot struct {
	Processed     int64
	Retrieved     int64
	Dropped       int64
	Subscriptions int64
	Notifications int64
}

// Stats records activity for one collector or one of its shards.
type Stats struct {
	collector string
	shard     string
	parent    *Stats

	processed     prometheus.Counter
	retrieved     prometheus.Counter
	dropped       prometheus.Counter
	subscriptions prometheus.Gauge
	notifications prometheus.Counter

	totals struct {
		processed     atomic.Int64
		retrieved     atomic.Int64
		dropped       atomic.Int64
		subscriptions atomic.Int64
		notifications atomic.Int64
	}

	mu       sync.Mutex
	children map[string]*Stats
}

// New creates root statistics for a collector.
func New(collector string) *Stats {
	return newStats(collector, RootShard, nil)
}

func newStats(collector, shard string, parent *Stats) *Stats {
	return &Stats{
		collector:     collector,
		shard:         shard,
		parent:        parent,
		processed:     RecordsProcessed.WithLabelValues(collector, shard),
		retrieved:     RecordsRetrieved.WithLabelValues(collector, shard),
		dropped:       RecordsDropped.WithLabelValues(collector, shard),
		subscriptions: Subscriptions.WithLabelValues(collector, shard),
		notifications: Notifications.WithLabelValues(collector, shard),
	}
}

// Child returns the statistics of a shard. Totals recorded on a child are
// also added to its parent. Asking twice for the same shard returns the same
// child.
func (s *Stats) Child(shard string) *Stats {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.children[shard]; ok {
		return c
	}
	if s.children == nil {
		s.children = make(map[string]*Stats)
	}
	c := newStats(s.collector, shard, s)
	s.children[shard] = c
	return c
}

// Collector returns the collector name
func (s *Stats) Collector() string {
	if s == nil {
		return ""
	}
	return s.collector
}

// Shard returns the shard label
func (s *Stats) Shard() string {
	if s == nil {
		return ""
	}
	return s.shard
}

// AddProcessed records n records handed to a distributor.
func (s *Stats) AddProcessed(n int) {
	for ; s != nil; s = s.parent {
		s.processed.Add(float64(n))
		s.totals.processed.Add(int64(n))
	}
}

// AddRetrieved records n records delivered to a sink.
func (s *Stats) AddRetrieved(n int) {
	for ; s != nil; s = s.parent {
		s.retrieved.Add(float64(n))
		s.totals.retrieved.Add(int64(n))
	}
}

// AddDropped records n records dropped on overflow.
func (s *Stats) AddDropped(n int) {
	for ; s != nil; s = s.parent {
		s.dropped.Add(float64(n))
		s.totals.dropped.Add(int64(n))
	}
}

// AddSubscriptions moves the subscription gauge by delta.
func (s *Stats) AddSubscriptions(delta int) {
	for ; s != nil; s = s.parent {
		s.subscriptions.Add(float64(delta))
		s.totals.subscriptions.Add(int64(delta))
	}
}

// IncNotifications records one fired notification.
func (s *Stats) IncNotifications() {
	for ; s != nil; s = s.parent {
		s.notifications.Inc()
		s.totals.notifications.Add(1)
	}
}

// Snapshot returns the current totals
func (s *Stats) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot{
		Processed:     s.totals.processed.Load(),
		Retrieved:     s.totals.retrieved.Load(),
		Dropped:       s.totals.dropped.Load(),
		Subscriptions: s.totals.subscriptions.Load(),
		Notifications: s.totals.notifications.Load(),
	}
}
