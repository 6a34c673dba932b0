package memory

import (
	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/stats"
)

// Agent is a memory collector agent. Ticker agents coalesce queued records
// per symbol; stream and history agents queue every delivered record.
type Agent struct {
	c               *Collector
	name            string
	filter          filter.Filter
	historySnapshot bool

	// guarded by c.mu
	subs             map[key]int64
	data             recordQueue
	snapshot         recordQueue
	listener         collector.RecordListener
	snapshotListener collector.RecordListener
	maxBufferSize    int
	strategy         collector.OverflowStrategy
	closed           bool

	snapshotProvider *snapshotProvider
}

var _ collector.Agent = (*Agent)(nil)

func newAgent(c *Collector, opts collector.AgentOptions) *Agent {
	coalesce := c.contract == collector.TickerContract
	a := &Agent{
		c:                c,
		name:             opts.Name,
		filter:           opts.Filter,
		historySnapshot:  opts.HistorySnapshot && c.contract == collector.HistoryContract,
		subs:             make(map[key]int64),
		data:             newRecordQueue(coalesce),
		snapshot:         newRecordQueue(false),
		listener:         collector.VoidListener,
		snapshotListener: collector.VoidListener,
	}
	a.snapshotProvider = &snapshotProvider{a: a}
	return a
}

// Mode implements collector.RecordProvider
func (a *Agent) Mode() record.Mode { return record.ModeData }

// Retrieve implements collector.RecordProvider
func (a *Agent) Retrieve(sink record.Sink) bool {
	a.c.mu.Lock()
	n, more := a.data.drain(sink)
	a.c.mu.Unlock()
	a.c.stats.AddRetrieved(n)
	return more
}

// SetRecordListener implements collector.RecordProvider. A listener
// installed while data is pending is notified right away.
func (a *Agent) SetRecordListener(l collector.RecordListener) {
	if l == nil {
		l = collector.VoidListener
	}
	a.c.mu.Lock()
	a.listener = l
	pending := a.data.len() > 0
	a.c.mu.Unlock()
	if pending && !collector.IsVoid(l) {
		a.c.fire([]notification{{l: l, p: a}})
	}
}

// SnapshotProvider implements collector.Agent
func (a *Agent) SnapshotProvider() collector.RecordProvider {
	return a.snapshotProvider
}

// AddSubscription implements collector.Agent
func (a *Agent) AddSubscription(src record.Source) {
	a.updateSubscription(src, false, false)
}

// RemoveSubscription implements collector.Agent
func (a *Agent) RemoveSubscription(src record.Source) {
	a.updateSubscription(src, true, false)
}

// SetSubscription implements collector.Agent
func (a *Agent) SetSubscription(src record.Source) {
	a.updateSubscription(src, false, true)
}

func (a *Agent) updateSubscription(src record.Source, remove, replace bool) {
	c := a.c
	var notes []notification
	delta := 0
	c.mu.Lock()
	if a.closed {
		c.mu.Unlock()
		return
	}
	var keep map[key]struct{}
	if replace {
		keep = make(map[key]struct{})
	}
	for r := src.Next(); r != nil; r = src.Next() {
		if !filter.IsAny(a.filter) && !a.filter.Accept(r.Type, r.Cipher, r.Symbol) {
			continue
		}
		k := c.key(r.Type, r.Cipher, r.Symbol)
		if remove {
			if _, ok := a.subs[k]; ok {
				delete(a.subs, k)
				delta--
				notes = c.unsubscribe(a, k, notes)
			}
			continue
		}
		if keep != nil {
			keep[k] = struct{}{}
		}
		var time int64
		if src.Mode() == record.ModeHistorySubscription {
			time = r.Time
		}
		old, ok := a.subs[k]
		if ok && old == time {
			continue
		}
		if !ok {
			delta++
		}
		a.subs[k] = time
		notes = c.subscribe(a, k, r.Type, time, notes)
		if !ok || time < old {
			notes = a.sendSnapshot(k, time, notes)
		}
	}
	if keep != nil {
		for _, k := range sortedKeys(a.subs) {
			if _, ok := keep[k]; !ok {
				delete(a.subs, k)
				delta--
				notes = c.unsubscribe(a, k, notes)
			}
		}
	}
	c.mu.Unlock()
	c.stats.AddSubscriptions(delta)
	c.fire(notes)
}

// sendSnapshot queues the stored data of a freshly subscribed key. The
// caller holds c.mu.
func (a *Agent) sendSnapshot(k key, from int64, notes []notification) []notification {
	c := a.c
	switch c.contract {
	case collector.TickerContract:
		if r, ok := c.ticker[k]; ok {
			notes = a.deliver(k, r, notes)
		}
	case collector.HistoryContract:
		recs := c.history[k]
		for i := range recs {
			if recs[i].Time < from {
				continue
			}
			if a.historySnapshot {
				notes = a.enqueue(&a.snapshot, k, recs[i], a.snapshotListener, a.snapshotProvider, notes)
			} else {
				notes = a.deliver(k, recs[i], notes)
			}
		}
	}
	return notes
}

// deliver queues a live record. The caller holds c.mu.
func (a *Agent) deliver(k key, r record.Record, notes []notification) []notification {
	return a.enqueue(&a.data, k, r, a.listener, a, notes)
}

func (a *Agent) enqueue(q *recordQueue, k key, r record.Record, l collector.RecordListener, p collector.RecordProvider, notes []notification) []notification {
	wasEmpty := q.len() == 0
	if dropped := q.push(k, r, a.maxBufferSize, a.strategy); dropped != nil {
		a.c.stats.AddDropped(1)
		if a.c.droppedLog != nil {
			a.c.droppedLog(dropped)
		}
	}
	if wasEmpty && q.len() > 0 && !collector.IsVoid(l) {
		notes = append(notes, notification{l: l, p: p})
	}
	return notes
}

// IsSubscribed implements collector.Agent
func (a *Agent) IsSubscribed(t *record.Type, cipher int, sym string, time int64) bool {
	c := a.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if from, ok := a.subs[c.key(t, cipher, sym)]; ok {
		return c.contract != collector.HistoryContract || time >= from
	}
	if c.wildcards {
		_, ok := a.subs[c.wildcardKey(t.ID())]
		return ok
	}
	return false
}

// SubscriptionSize implements collector.Agent
func (a *Agent) SubscriptionSize() int {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	return len(a.subs)
}

// ExamineSubscription implements collector.Agent
func (a *Agent) ExamineSubscription(sink record.Sink) bool {
	c := a.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range sortedKeys(a.subs) {
		if !sink.HasCapacity() {
			return true
		}
		r := c.record(k)
		r.Time = a.subs[k]
		sink.Append(&r)
	}
	return false
}

// SetMaxBufferSize implements collector.Agent. Zero means unbounded.
func (a *Agent) SetMaxBufferSize(n int) {
	a.c.mu.Lock()
	a.maxBufferSize = n
	a.c.mu.Unlock()
}

// SetBufferOverflowStrategy implements collector.Agent
func (a *Agent) SetBufferOverflowStrategy(s collector.OverflowStrategy) {
	a.c.mu.Lock()
	a.strategy = s
	a.c.mu.Unlock()
}

// CloseAndExamineDataBySubscription implements collector.Agent
func (a *Agent) CloseAndExamineDataBySubscription(sink record.Sink) {
	c := a.c
	c.mu.Lock()
	for _, k := range sortedKeys(a.subs) {
		c.appendData(sink, k, a.subs[k], false)
	}
	c.mu.Unlock()
	a.Close()
}

// Stats implements collector.Agent
func (a *Agent) Stats() *stats.Stats {
	return a.c.stats
}

// Close implements collector.Agent. Closing twice is a no-op.
func (a *Agent) Close() {
	c := a.c
	c.mu.Lock()
	if a.closed {
		c.mu.Unlock()
		return
	}
	n := len(a.subs)
	notes := a.closeLocked()
	delete(c.agents, a)
	c.mu.Unlock()
	c.stats.AddSubscriptions(-n)
	c.fire(notes)
}

func (a *Agent) closeLocked() []notification {
	var notes []notification
	for _, k := range sortedKeys(a.subs) {
		notes = a.c.unsubscribe(a, k, notes)
	}
	a.subs = make(map[key]int64)
	a.data.clear()
	a.snapshot.clear()
	a.listener = collector.VoidListener
	a.snapshotListener = collector.VoidListener
	a.closed = true
	return notes
}

// snapshotProvider yields history snapshots of agents built with
// HistorySnapshot.
type snapshotProvider struct {
	a *Agent
}

func (p *snapshotProvider) Mode() record.Mode { return record.ModeData }

func (p *snapshotProvider) Retrieve(sink record.Sink) bool {
	c := p.a.c
	c.mu.Lock()
	n, more := p.a.snapshot.drain(sink)
	c.mu.Unlock()
	c.stats.AddRetrieved(n)
	return more
}

func (p *snapshotProvider) SetRecordListener(l collector.RecordListener) {
	if l == nil {
		l = collector.VoidListener
	}
	c := p.a.c
	c.mu.Lock()
	p.a.snapshotListener = l
	pending := p.a.snapshot.len() > 0
	c.mu.Unlock()
	if pending && !collector.IsVoid(l) {
		c.fire([]notification{{l: l, p: p}})
	}
}
