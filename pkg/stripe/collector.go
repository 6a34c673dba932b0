// Package stripe partitions one logical collector into N shard collectors
// by symbol while keeping the single-collector contract. Callers get the
// same collector.Ticker, collector.Stream and collector.History interfaces,
// agents and distributors as from an unsharded collector.
//
// Records are routed by a striper.Striper. Bulk inputs are split with a
// Partitioner; per-shard "records available" signals are merged by a
// Notification so each exposed provider fires one listener.
package stripe

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/stats"
	"github.com/ajitpratap0/quasar/pkg/striper"
)

// Collector owns N shard collectors of one contract and routes every
// operation to the shards that own the symbols involved.
type Collector[C collector.Collector] struct {
	contract collector.Contract
	scheme   *record.Scheme
	striper  striper.Striper
	shards   []C
	filters  []filter.Filter
	part     *Partitioner
	stats    *stats.Stats
	log      *zap.Logger
}

func newCollector[C collector.Collector](contract collector.Contract, scheme *record.Scheme, s striper.Striper,
	shards []C, filters []filter.Filter, part *Partitioner, st *stats.Stats, log *zap.Logger) *Collector[C] {
	return &Collector[C]{
		contract: contract,
		scheme:   scheme,
		striper:  s,
		shards:   shards,
		filters:  filters,
		part:     part,
		stats:    st,
		log:      log,
	}
}

func (c *Collector[C]) Contract() collector.Contract { return c.contract }
func (c *Collector[C]) Scheme() *record.Scheme       { return c.scheme }
func (c *Collector[C]) Striper() striper.Striper     { return c.striper }
func (c *Collector[C]) Stats() *stats.Stats          { return c.stats }

// N returns the number of shards
func (c *Collector[C]) N() int { return len(c.shards) }

// Shards returns the shard collectors
func (c *Collector[C]) Shards() []C { return c.shards }

// Index returns the shard owning a symbol
func (c *Collector[C]) Index(cipher int, sym string) int {
	return c.part.Index(cipher, sym)
}

func (c *Collector[C]) shard(cipher int, sym string) C {
	return c.shards[c.part.Index(cipher, sym)]
}

func (c *Collector[C]) untyped() []collector.Collector {
	out := make([]collector.Collector, len(c.shards))
	for i, s := range c.shards {
		out[i] = s
	}
	return out
}

// BuildAgent implements collector.Collector. An agent whose filter
// intersects a single shard is that shard's own agent.
func (c *Collector[C]) BuildAgent(opts collector.AgentOptions) collector.Agent {
	return buildAgent(c.untyped(), c.striper, c.part, opts, c.stats)
}

// BuildDistributor implements collector.Collector
func (c *Collector[C]) BuildDistributor(opts collector.DistributorOptions) collector.Distributor {
	return buildDistributor(c.untyped(), c.striper, c.part, opts, c.stats)
}

// SetErrorHandler implements collector.Collector
func (c *Collector[C]) SetErrorHandler(h collector.ErrorHandler) {
	for _, s := range c.shards {
		s.SetErrorHandler(h)
	}
}

// SetDroppedLog implements collector.Collector
func (c *Collector[C]) SetDroppedLog(f collector.DroppedLogFunc) {
	for _, s := range c.shards {
		s.SetDroppedLog(f)
	}
}

func (c *Collector[C]) IsStoreEverything() bool {
	return c.shards[0].IsStoreEverything()
}

func (c *Collector[C]) SetStoreEverything(enabled bool) {
	for _, s := range c.shards {
		s.SetStoreEverything(enabled)
	}
}

// SetStoreEverythingFilter implements collector.Collector. Each shard gets
// the filter restricted to its own stripe.
func (c *Collector[C]) SetStoreEverythingFilter(f filter.Filter) {
	for i, s := range c.shards {
		s.SetStoreEverythingFilter(filter.And(f, c.filters[i]))
	}
}

// Symbol implements collector.Collector. The owning shard is found from the
// raw characters and interns the symbol.
func (c *Collector[C]) Symbol(chars []byte) string {
	return c.shards[c.part.IndexBytes(chars)].Symbol(chars)
}

// IsSubscribed implements collector.Collector
func (c *Collector[C]) IsSubscribed(t *record.Type, cipher int, sym string) bool {
	return c.shard(cipher, sym).IsSubscribed(t, cipher, sym)
}

// ExamineSubscription implements collector.Collector. Shards are visited
// in order; a shard that fills the sink ends the walk.
func (c *Collector[C]) ExamineSubscription(sink record.Sink) bool {
	for _, s := range c.shards {
		if s.ExamineSubscription(sink) {
			return true
		}
	}
	return false
}

// ExamineData implements collector.Collector
func (c *Collector[C]) ExamineData(sink record.Sink) bool {
	for _, s := range c.shards {
		if s.ExamineData(sink) {
			return true
		}
	}
	return false
}

// ExamineDataBySubscription implements collector.Collector. Every shard
// reads sub from the position it had on entry.
func (c *Collector[C]) ExamineDataBySubscription(sink record.Sink, sub record.Source) bool {
	pos := sub.Position()
	for _, s := range c.shards {
		sub.SetPosition(pos)
		if s.ExamineDataBySubscription(sink, sub) {
			return true
		}
	}
	return false
}

// Remove implements collector.Collector
func (c *Collector[C]) Remove(src record.Source) {
	b := c.part.Partition(src)
	defer c.part.Release(b)
	for i, s := range c.shards {
		if buf := b.Shard(i); buf != nil {
			s.Remove(buf)
		}
	}
}

// Close implements collector.Collector
func (c *Collector[C]) Close() {
	for _, s := range c.shards {
		s.Close()
	}
	c.log.Info("striped collector closed", zap.Int("shards", len(c.shards)))
}
