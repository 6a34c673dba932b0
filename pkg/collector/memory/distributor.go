package memory

import (
	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/record"
)

// Distributor is a memory collector distributor.
type Distributor struct {
	c       *Collector
	name    string
	filter  filter.Filter
	added   *subscriptionProvider
	removed *subscriptionProvider

	closed bool // guarded by c.mu
}

var _ collector.Distributor = (*Distributor)(nil)

func newDistributor(c *Collector, opts collector.DistributorOptions) *Distributor {
	d := &Distributor{c: c, name: opts.Name, filter: opts.Filter}
	mode := c.contract.SubscriptionMode()
	d.added = &subscriptionProvider{c: c, mode: mode, queue: newRecordQueue(false), listener: collector.VoidListener}
	d.removed = &subscriptionProvider{c: c, mode: mode, queue: newRecordQueue(false), listener: collector.VoidListener}
	return d
}

func (d *Distributor) accepts(r *record.Record) bool {
	return filter.IsAny(d.filter) || d.filter.Accept(r.Type, r.Cipher, r.Symbol)
}

// Process implements collector.Distributor. Records are copied before they
// are stored, so src may be reused as soon as Process returns.
func (d *Distributor) Process(src record.Source) {
	c := d.c
	var notes []notification
	n := 0
	c.mu.Lock()
	if d.closed {
		c.mu.Unlock()
		return
	}
	for r := src.Next(); r != nil; r = src.Next() {
		if !d.accepts(r) {
			continue
		}
		notes = c.process(r.Clone(), notes)
		n++
	}
	c.mu.Unlock()
	c.stats.AddProcessed(n)
	c.fire(notes)
}

// AddedRecordProvider implements collector.Distributor
func (d *Distributor) AddedRecordProvider() collector.RecordProvider { return d.added }

// RemovedRecordProvider implements collector.Distributor
func (d *Distributor) RemovedRecordProvider() collector.RecordProvider { return d.removed }

// Close implements collector.Distributor
func (d *Distributor) Close() {
	c := d.c
	c.mu.Lock()
	d.closed = true
	delete(c.distributors, d)
	d.added.queue.clear()
	d.removed.queue.clear()
	c.mu.Unlock()
}

// subscriptionChanged queues a subscription record. The caller holds c.mu.
func (d *Distributor) subscriptionChanged(k key, s *subscription, added bool, notes []notification) []notification {
	r := d.c.record(k)
	if added {
		r.Time = s.minTime
	}
	if !d.accepts(&r) {
		return notes
	}
	p := d.removed
	if added {
		p = d.added
	}
	return p.push(k, r, notes)
}

// subscriptionProvider yields added or removed subscription records.
type subscriptionProvider struct {
	c        *Collector
	mode     record.Mode
	queue    recordQueue
	listener collector.RecordListener // guarded by c.mu
}

func (p *subscriptionProvider) push(k key, r record.Record, notes []notification) []notification {
	wasEmpty := p.queue.len() == 0
	p.queue.push(k, r, 0, collector.DropOldest)
	if wasEmpty && !collector.IsVoid(p.listener) {
		notes = append(notes, notification{l: p.listener, p: p})
	}
	return notes
}

func (p *subscriptionProvider) Mode() record.Mode { return p.mode }

func (p *subscriptionProvider) Retrieve(sink record.Sink) bool {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	_, more := p.queue.drain(sink)
	return more
}

func (p *subscriptionProvider) SetRecordListener(l collector.RecordListener) {
	if l == nil {
		l = collector.VoidListener
	}
	p.c.mu.Lock()
	p.listener = l
	pending := p.queue.len() > 0
	p.c.mu.Unlock()
	if pending && !collector.IsVoid(l) {
		p.c.fire([]notification{{l: l, p: p}})
	}
}
