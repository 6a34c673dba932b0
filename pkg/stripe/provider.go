package stripe

import (
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/stats"
)

type listenerBox struct {
	l collector.RecordListener
}

// provider fans the per-shard providers of one logical provider into a
// single RecordProvider. Shard listeners only mark their shard ready; the
// external listener fires once per transition to "something ready".
type provider struct {
	mode      record.Mode
	self      collector.RecordProvider
	notify    *Notification
	providers []collector.RecordProvider
	stats     *stats.Stats

	listener atomic.Pointer[listenerBox]
	// edges counts 0->1 transitions raised by shard listeners
	edges atomic.Int64
	mu    sync.Mutex // serializes SetRecordListener
}

// newProvider registers a shard listener on every non-nil provider. self is
// the provider reported to the external listener; nil means the fan-in
// provider itself.
func newProvider(mode record.Mode, self collector.RecordProvider, providers []collector.RecordProvider, st *stats.Stats) *provider {
	p := &provider{
		mode:      mode,
		self:      self,
		notify:    NewNotification(len(providers)),
		providers: providers,
		stats:     st,
	}
	if p.self == nil {
		p.self = p
	}
	p.listener.Store(&listenerBox{})
	for i, sp := range providers {
		if sp != nil {
			sp.SetRecordListener(shardListener{p: p, i: i})
		}
	}
	return p
}

type shardListener struct {
	p *provider
	i int
}

func (l shardListener) RecordsAvailable(collector.RecordProvider) {
	if l.p.notify.Notify(l.i) {
		l.p.edges.Add(1)
		l.p.fire()
	}
}

func (p *provider) fire() {
	l := p.listener.Load().l
	if l == nil {
		return
	}
	p.stats.IncNotifications()
	l.RecordsAvailable(p.self)
}

func (p *provider) Mode() record.Mode {
	return p.mode
}

// Retrieve drains ready shards in round-robin order. A shard that reports
// more records is re-armed before returning true; a shard found empty stays
// idle until its own listener fires again.
func (p *provider) Retrieve(sink record.Sink) bool {
	for i := p.notify.Next(); i >= 0; i = p.notify.Next() {
		sp := p.providers[i]
		if sp != nil && sp.Retrieve(sink) {
			p.notify.Notify(i)
			return true
		}
	}
	return false
}

// SetRecordListener installs the external listener. Moving between the void
// listener and a real one swaps the shard listeners too, so no coalescing
// work happens while nobody listens. A listener installed while shards are
// ready fires at once, unless a reinstalled shard listener already raised
// the edge.
func (p *provider) SetRecordListener(l collector.RecordListener) {
	if l == nil {
		l = collector.VoidListener
	}
	p.mu.Lock()
	edges := p.edges.Load()
	old := p.listener.Swap(&listenerBox{l: l})
	wasVoid := old.l == collector.VoidListener
	nowVoid := l == collector.VoidListener
	if wasVoid != nowVoid {
		for i, sp := range p.providers {
			if sp == nil {
				continue
			}
			if nowVoid {
				sp.SetRecordListener(collector.VoidListener)
			} else {
				sp.SetRecordListener(shardListener{p: p, i: i})
			}
		}
	}
	p.mu.Unlock()
	if p.notify.HasNext() && p.edges.Load() == edges {
		p.fire()
	}
}
