package stripe

import (
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/stats"
	"github.com/ajitpratap0/quasar/pkg/striper"
)

// Agent is an agent over the shards its filter intersects. Entries of
// shards outside the filter are nil and skipped everywhere.
type Agent struct {
	part   *Partitioner
	agents []collector.Agent
	first  collector.Agent
	stats  *stats.Stats

	provider *provider

	snapshotOnce sync.Once
	snapshot     *provider

	closed atomic.Bool
}

var _ collector.Agent = (*Agent)(nil)

// buildAgent returns the single shard agent when the filter intersects at
// most one shard, and a striped Agent otherwise.
func buildAgent(shards []collector.Collector, s striper.Striper, part *Partitioner, opts collector.AgentOptions, st *stats.Stats) collector.Agent {
	n := len(shards)
	stripes := s.IntersectingStripes(opts.Filter)
	if striper.CountStripes(stripes, n) <= 1 {
		return shards[firstStripe(stripes)].BuildAgent(opts)
	}
	a := &Agent{
		part:   part,
		agents: make([]collector.Agent, n),
		stats:  st,
	}
	for i, shard := range shards {
		if stripes != nil && !stripes[i] {
			continue
		}
		a.agents[i] = shard.BuildAgent(opts)
		if a.first == nil {
			a.first = a.agents[i]
		}
	}
	providers := make([]collector.RecordProvider, n)
	for i, ag := range a.agents {
		if ag != nil {
			providers[i] = ag
		}
	}
	a.provider = newProvider(a.first.Mode(), a, providers, st)
	return a
}

func firstStripe(stripes []bool) int {
	for i, ok := range stripes {
		if ok {
			return i
		}
	}
	return 0
}

// Mode implements collector.RecordProvider
func (a *Agent) Mode() record.Mode {
	return a.first.Mode()
}

// Retrieve implements collector.RecordProvider
func (a *Agent) Retrieve(sink record.Sink) bool {
	return a.provider.Retrieve(sink)
}

// SetRecordListener implements collector.RecordProvider
func (a *Agent) SetRecordListener(l collector.RecordListener) {
	a.provider.SetRecordListener(l)
}

// SnapshotProvider implements collector.Agent. The provider is created on
// first use.
func (a *Agent) SnapshotProvider() collector.RecordProvider {
	a.snapshotOnce.Do(func() {
		providers := make([]collector.RecordProvider, len(a.agents))
		for i, ag := range a.agents {
			if ag != nil {
				providers[i] = ag.SnapshotProvider()
			}
		}
		a.snapshot = newProvider(a.first.Mode(), nil, providers, a.stats)
	})
	return a.snapshot
}

// AddSubscription implements collector.Agent
func (a *Agent) AddSubscription(src record.Source) {
	b := a.part.Partition(src)
	defer a.part.Release(b)
	for i, ag := range a.agents {
		if ag == nil {
			continue
		}
		if buf := b.Shard(i); buf != nil {
			ag.AddSubscription(buf)
		}
	}
}

// RemoveSubscription implements collector.Agent
func (a *Agent) RemoveSubscription(src record.Source) {
	b := a.part.Partition(src)
	defer a.part.Release(b)
	for i, ag := range a.agents {
		if ag == nil {
			continue
		}
		if buf := b.Shard(i); buf != nil {
			ag.RemoveSubscription(buf)
		}
	}
}

// SetSubscription implements collector.Agent. Every present shard agent
// gets its part, possibly empty.
func (a *Agent) SetSubscription(src record.Source) {
	mode := src.Mode()
	b := a.part.Partition(src)
	defer a.part.Release(b)
	for i, ag := range a.agents {
		if ag != nil {
			ag.SetSubscription(b.Get(i, mode))
		}
	}
}

// IsSubscribed implements collector.Agent
func (a *Agent) IsSubscribed(t *record.Type, cipher int, sym string, time int64) bool {
	ag := a.agents[a.part.Index(cipher, sym)]
	return ag != nil && ag.IsSubscribed(t, cipher, sym, time)
}

// SubscriptionSize implements collector.Agent
func (a *Agent) SubscriptionSize() int {
	sum := 0
	for _, ag := range a.agents {
		if ag != nil {
			sum += ag.SubscriptionSize()
		}
	}
	return sum
}

// ExamineSubscription implements collector.Agent
func (a *Agent) ExamineSubscription(sink record.Sink) bool {
	for _, ag := range a.agents {
		if ag != nil && ag.ExamineSubscription(sink) {
			return true
		}
	}
	return false
}

func (a *Agent) SetMaxBufferSize(n int) {
	for _, ag := range a.agents {
		if ag != nil {
			ag.SetMaxBufferSize(n)
		}
	}
}

func (a *Agent) SetBufferOverflowStrategy(s collector.OverflowStrategy) {
	for _, ag := range a.agents {
		if ag != nil {
			ag.SetBufferOverflowStrategy(s)
		}
	}
}

// CloseAndExamineDataBySubscription implements collector.Agent
func (a *Agent) CloseAndExamineDataBySubscription(sink record.Sink) {
	if !a.closed.CompareAndSwap(false, true) {
		return
	}
	for _, ag := range a.agents {
		if ag != nil {
			ag.CloseAndExamineDataBySubscription(sink)
		}
	}
}

// Stats implements collector.Agent. It reports the first shard agent's stats.
func (a *Agent) Stats() *stats.Stats {
	return a.first.Stats()
}

// Close implements collector.Agent. Closing twice is a no-op.
func (a *Agent) Close() {
	if !a.closed.CompareAndSwap(false, true) {
		return
	}
	for _, ag := range a.agents {
		if ag != nil {
			ag.Close()
		}
	}
}

// Agents returns the shard agents; entries outside the agent's filter are nil.
func (a *Agent) Agents() []collector.Agent {
	return a.agents
}
