// Package memory is an in-process, single-shard collector engine. One mutex
// guards each collector; listeners are always invoked after it is released.
//
// Ticker collectors keep the latest record of every subscribed (or
// store-everything) symbol, stream collectors keep nothing and only deliver,
// and history collectors keep a time-sorted series per symbol.
package memory

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/stats"
	"github.com/ajitpratap0/quasar/pkg/striper"
	"github.com/ajitpratap0/quasar/pkg/symbol"
)

// subscription is the total subscription of one key.
type subscription struct {
	t       *record.Type
	agents  map[*Agent]int64
	minTime int64
}

type notification struct {
	l collector.RecordListener
	p collector.RecordProvider
}

// Collector is the engine behind every contract. Use NewTicker, NewStream
// or NewHistory, or the Factory.
type Collector struct {
	contract  collector.Contract
	name      string
	scheme    *record.Scheme
	codec     symbol.Codec
	striper   striper.Striper
	stats     *stats.Stats
	log       *zap.Logger
	wildcards bool

	mu              sync.Mutex
	closed          bool
	subs            map[key]*subscription
	ticker          map[key]record.Record
	history         map[key][]record.Record
	symbols         map[string]string
	agents          map[*Agent]struct{}
	distributors    map[*Distributor]struct{}
	storeEverything bool
	storeFilter     filter.Filter
	errorHandler    collector.ErrorHandler
	droppedLog      collector.DroppedLogFunc
}

// New creates a collector of the given contract.
func New(contract collector.Contract, opts collector.Options) (*Collector, error) {
	if opts.Scheme == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "collector scheme is required")
	}
	if contract < collector.TickerContract || contract > collector.HistoryContract {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown contract %d", int(contract))
	}
	name := opts.Name
	if name == "" {
		name = contract.String()
	}
	st := opts.Stats
	if st == nil {
		st = stats.New(name)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	str := opts.Striper
	if str == nil {
		str = striper.NewMono(opts.Scheme.Codec())
	}
	c := &Collector{
		contract:        contract,
		name:            name,
		scheme:          opts.Scheme,
		codec:           opts.Scheme.Codec(),
		striper:         str,
		stats:           st,
		wildcards:       contract == collector.StreamContract && opts.EnableWildcards,
		subs:            make(map[key]*subscription),
		symbols:         make(map[string]string),
		agents:          make(map[*Agent]struct{}),
		distributors:    make(map[*Distributor]struct{}),
		storeEverything: opts.StoreEverything,
		storeFilter:     opts.StoreEverythingFilter,
	}
	switch contract {
	case collector.TickerContract:
		c.ticker = make(map[key]record.Record)
	case collector.HistoryContract:
		c.history = make(map[key][]record.Record)
	}
	fields := []zap.Field{zap.String("collector", name), zap.String("contract", contract.String())}
	if opts.ShardFilter != nil {
		fields = append(fields, zap.String("shard", opts.ShardFilter.String()))
	}
	c.log = log.With(fields...)
	c.log.Debug("collector created", zap.Bool("store_everything", opts.StoreEverything), zap.Bool("wildcards", c.wildcards))
	return c, nil
}

// NewTicker creates a ticker collector
func NewTicker(opts collector.Options) (collector.Ticker, error) {
	c, err := New(collector.TickerContract, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewStream creates a stream collector
func NewStream(opts collector.Options) (collector.Stream, error) {
	c, err := New(collector.StreamContract, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewHistory creates a history collector
func NewHistory(opts collector.Options) (collector.History, error) {
	c, err := New(collector.HistoryContract, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Factory builds memory collectors.
type Factory struct{}

func (Factory) NewTicker(opts collector.Options) (collector.Ticker, error)   { return NewTicker(opts) }
func (Factory) NewStream(opts collector.Options) (collector.Stream, error)   { return NewStream(opts) }
func (Factory) NewHistory(opts collector.Options) (collector.History, error) { return NewHistory(opts) }

func (c *Collector) Contract() collector.Contract { return c.contract }
func (c *Collector) Scheme() *record.Scheme       { return c.scheme }
func (c *Collector) Striper() striper.Striper     { return c.striper }
func (c *Collector) Stats() *stats.Stats          { return c.stats }

// WildcardsEnabled implements collector.Stream
func (c *Collector) WildcardsEnabled() bool { return c.wildcards }

func (c *Collector) key(t *record.Type, cipher int, sym string) key {
	if cipher == 0 {
		cipher = c.codec.Encode(sym)
	}
	if cipher != 0 {
		sym = ""
	}
	return key{t: t.ID(), cipher: cipher, sym: sym}
}

func (c *Collector) wildcardKey(t int) key {
	if w := c.codec.WildcardCipher(); w != 0 {
		return key{t: t, cipher: w}
	}
	return key{t: t, sym: symbol.Wildcard}
}

func (c *Collector) record(k key) record.Record {
	return record.Record{Type: c.scheme.Types()[k.t], Cipher: k.cipher, Symbol: k.sym}
}

func (c *Collector) storesEverything(r *record.Record) bool {
	return c.storeEverything && (filter.IsAny(c.storeFilter) || c.storeFilter.Accept(r.Type, r.Cipher, r.Symbol))
}

// BuildAgent implements collector.Collector
func (c *Collector) BuildAgent(opts collector.AgentOptions) collector.Agent {
	a := newAgent(c, opts)
	c.mu.Lock()
	if !c.closed {
		c.agents[a] = struct{}{}
	} else {
		a.closed = true
	}
	c.mu.Unlock()
	return a
}

// BuildDistributor implements collector.Collector. The added provider of a
// new distributor starts with the current total subscription.
func (c *Collector) BuildDistributor(opts collector.DistributorOptions) collector.Distributor {
	d := newDistributor(c, opts)
	c.mu.Lock()
	if c.closed {
		d.closed = true
	} else {
		c.distributors[d] = struct{}{}
		for _, k := range sortedKeys(c.subs) {
			d.subscriptionChanged(k, c.subs[k], true, nil)
		}
	}
	c.mu.Unlock()
	return d
}

// SetErrorHandler implements collector.Collector. With a handler installed,
// panics raised by listeners are recovered and reported to it.
func (c *Collector) SetErrorHandler(h collector.ErrorHandler) {
	c.mu.Lock()
	c.errorHandler = h
	c.mu.Unlock()
}

// SetDroppedLog implements collector.Collector
func (c *Collector) SetDroppedLog(f collector.DroppedLogFunc) {
	c.mu.Lock()
	c.droppedLog = f
	c.mu.Unlock()
}

func (c *Collector) IsStoreEverything() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeEverything
}

func (c *Collector) SetStoreEverything(enabled bool) {
	c.mu.Lock()
	c.storeEverything = enabled
	c.mu.Unlock()
}

// SetStoreEverythingFilter implements collector.Collector
func (c *Collector) SetStoreEverythingFilter(f filter.Filter) {
	c.mu.Lock()
	c.storeFilter = f
	c.mu.Unlock()
}

// Symbol implements collector.Collector
func (c *Collector) Symbol(chars []byte) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.symbols[string(chars)]; ok {
		return s
	}
	s := string(chars)
	c.symbols[s] = s
	return s
}

// IsSubscribed implements collector.Collector
func (c *Collector) IsSubscribed(t *record.Type, cipher int, sym string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[c.key(t, cipher, sym)]; ok {
		return true
	}
	if c.wildcards {
		_, ok := c.subs[c.wildcardKey(t.ID())]
		return ok
	}
	return false
}

// ExamineSubscription implements collector.Collector
func (c *Collector) ExamineSubscription(sink record.Sink) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range sortedKeys(c.subs) {
		if !sink.HasCapacity() {
			return true
		}
		r := c.record(k)
		r.Time = c.subs[k].minTime
		sink.Append(&r)
	}
	return false
}

// ExamineData implements collector.Collector. Streams keep no data.
func (c *Collector) ExamineData(sink record.Sink) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.contract {
	case collector.TickerContract:
		for _, k := range sortedKeys(c.ticker) {
			if !sink.HasCapacity() {
				return true
			}
			r := c.ticker[k]
			sink.Append(&r)
		}
	case collector.HistoryContract:
		for _, k := range sortedKeys(c.history) {
			if c.appendHistory(sink, c.history[k], 0, true) {
				return true
			}
		}
	}
	return false
}

// ExamineDataBySubscription implements collector.Collector
func (c *Collector) ExamineDataBySubscription(sink record.Sink, sub record.Source) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for r := sub.Next(); r != nil; r = sub.Next() {
		var from int64
		if sub.Mode() == record.ModeHistorySubscription {
			from = r.Time
		}
		if c.appendData(sink, c.key(r.Type, r.Cipher, r.Symbol), from, true) {
			return true
		}
	}
	return false
}

// appendData appends stored data of k with time >= from, reporting whether
// the sink ran out of capacity. Capacity is ignored when bounded is false.
func (c *Collector) appendData(sink record.Sink, k key, from int64, bounded bool) bool {
	switch c.contract {
	case collector.TickerContract:
		r, ok := c.ticker[k]
		if !ok {
			return false
		}
		if bounded && !sink.HasCapacity() {
			return true
		}
		sink.Append(&r)
	case collector.HistoryContract:
		return c.appendHistory(sink, c.history[k], from, bounded)
	}
	return false
}

func (c *Collector) appendHistory(sink record.Sink, recs []record.Record, from int64, bounded bool) bool {
	for i := sort.Search(len(recs), func(i int) bool { return recs[i].Time >= from }); i < len(recs); i++ {
		if bounded && !sink.HasCapacity() {
			return true
		}
		sink.Append(&recs[i])
	}
	return false
}

// Remove implements collector.Collector
func (c *Collector) Remove(src record.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for r := src.Next(); r != nil; r = src.Next() {
		k := c.key(r.Type, r.Cipher, r.Symbol)
		delete(c.ticker, k)
		delete(c.history, k)
	}
}

// Close implements collector.Collector. It closes every agent and
// distributor and discards stored data.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	agents, subs := len(c.agents), 0
	for a := range c.agents {
		subs += len(a.subs)
		a.closeLocked()
	}
	for d := range c.distributors {
		d.closed = true
	}
	c.agents = make(map[*Agent]struct{})
	c.distributors = make(map[*Distributor]struct{})
	c.subs = make(map[key]*subscription)
	for k := range c.ticker {
		delete(c.ticker, k)
	}
	for k := range c.history {
		delete(c.history, k)
	}
	c.mu.Unlock()
	c.stats.AddSubscriptions(-subs)
	c.log.Debug("collector closed", zap.Int("agents", agents))
}

// process stores and delivers one data record. The caller holds c.mu.
func (c *Collector) process(r record.Record, notes []notification) []notification {
	k := c.key(r.Type, r.Cipher, r.Symbol)
	sub := c.subs[k]
	switch c.contract {
	case collector.TickerContract:
		if sub != nil || c.storesEverything(&r) {
			c.ticker[k] = r
		}
	case collector.HistoryContract:
		if sub != nil || c.storesEverything(&r) {
			c.history[k] = insertByTime(c.history[k], r)
		}
	}
	if sub != nil {
		for a, from := range sub.agents {
			if c.contract == collector.HistoryContract && r.Time < from {
				continue
			}
			notes = a.deliver(k, r, notes)
		}
	}
	if c.wildcards {
		if w := c.subs[c.wildcardKey(k.t)]; w != nil && w != sub {
			for a := range w.agents {
				if sub != nil {
					if _, ok := sub.agents[a]; ok {
						continue
					}
				}
				notes = a.deliver(k, r, notes)
			}
		}
	}
	return notes
}

// subscribe adds a to the total subscription of k. The caller holds c.mu.
func (c *Collector) subscribe(a *Agent, k key, t *record.Type, time int64, notes []notification) []notification {
	s := c.subs[k]
	if s == nil {
		s = &subscription{t: t, agents: make(map[*Agent]int64), minTime: time}
		c.subs[k] = s
		s.agents[a] = time
		return c.subscriptionChanged(k, s, true, notes)
	}
	s.agents[a] = time
	if time < s.minTime {
		s.minTime = time
		return c.subscriptionChanged(k, s, true, notes)
	}
	return notes
}

// unsubscribe removes a from the total subscription of k. The caller holds c.mu.
func (c *Collector) unsubscribe(a *Agent, k key, notes []notification) []notification {
	s := c.subs[k]
	if s == nil {
		return notes
	}
	delete(s.agents, a)
	if len(s.agents) > 0 {
		return notes
	}
	delete(c.subs, k)
	r := c.record(k)
	if !c.storesEverything(&r) {
		delete(c.ticker, k)
		delete(c.history, k)
	}
	return c.subscriptionChanged(k, s, false, notes)
}

func (c *Collector) subscriptionChanged(k key, s *subscription, added bool, notes []notification) []notification {
	for d := range c.distributors {
		notes = d.subscriptionChanged(k, s, added, notes)
	}
	return notes
}

// fire invokes listeners outside of c.mu.
func (c *Collector) fire(notes []notification) {
	if len(notes) == 0 {
		return
	}
	c.mu.Lock()
	h := c.errorHandler
	c.mu.Unlock()
	for _, n := range notes {
		if h == nil {
			n.l.RecordsAvailable(n.p)
			continue
		}
		c.safeFire(n, h)
	}
}

func (c *Collector) safeFire(n notification, h collector.ErrorHandler) {
	defer func() {
		if p := recover(); p != nil {
			err := errors.Newf(errors.ErrorTypeInternal, "record listener panicked: %v", p)
			c.log.Error("record listener failed", zap.Error(err))
			h(err)
		}
	}()
	n.l.RecordsAvailable(n.p)
}

func insertByTime(recs []record.Record, r record.Record) []record.Record {
	i := sort.Search(len(recs), func(i int) bool { return recs[i].Time >= r.Time })
	if i < len(recs) && recs[i].Time == r.Time {
		recs[i] = r
		return recs
	}
	recs = append(recs, record.Record{})
	copy(recs[i+1:], recs[i:])
	recs[i] = r
	return recs
}

func sortedKeys[V any](m map[key]V) []key {
	keys := make([]key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}
