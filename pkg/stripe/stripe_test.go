package stripe

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/collector/memory"
	"github.com/ajitpratap0/quasar/pkg/config"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/stats"
	"github.com/ajitpratap0/quasar/pkg/striper"
	"github.com/ajitpratap0/quasar/pkg/symbol"
)

type fixture struct {
	scheme *record.Scheme
	quote  *record.Type
	trade  *record.Type
}

func newFixture() fixture {
	quote := record.NewType("Quote", false, []string{"Bid", "Ask"}, nil)
	trade := record.NewType("Trade", true, []string{"Price"}, nil)
	return fixture{scheme: record.NewScheme(nil, quote, trade), quote: quote, trade: trade}
}

func (f fixture) factory(t *testing.T, opts ...Option) *Factory {
	return NewFactory(memory.Factory{}, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

func (f fixture) options(t *testing.T, name string, n int) collector.Options {
	return collector.Options{
		Name:    name,
		Scheme:  f.scheme,
		Stats:   stats.New(name),
		Striper: striper.New(f.scheme.Codec(), n),
		Logger:  zaptest.NewLogger(t),
	}
}

// perShard returns one symbol owned by each stripe of s.
func perShard(s striper.Striper) []string {
	out := make([]string, s.StripeCount())
	found := 0
	for i := 0; found < len(out); i++ {
		sym := fmt.Sprintf("S%d", i)
		if k := s.Index(0, sym); out[k] == "" {
			out[k] = sym
			found++
		}
	}
	return out
}

func subs(mode record.Mode, typ *record.Type, time int64, syms ...string) *record.Buffer {
	b := record.NewBuffer(mode)
	for _, s := range syms {
		b.Add(record.Record{Type: typ, Symbol: s, Time: time})
	}
	return b
}

func quotes(typ *record.Type, syms ...string) *record.Buffer {
	b := record.NewBuffer(record.ModeData)
	for i, s := range syms {
		b.Add(record.Record{Type: typ, Symbol: s, Ints: []int64{int64(100 + i), int64(101 + i)}})
	}
	return b
}

func sortedSymbols(codec symbol.Codec, b *record.Buffer) []string {
	var out []string
	for _, r := range b.Records() {
		out = append(out, r.DecodedSymbol(codec))
	}
	sort.Strings(out)
	return out
}

func sorted(syms []string) []string {
	out := append([]string(nil), syms...)
	sort.Strings(out)
	return out
}

type countingListener struct {
	mu       sync.Mutex
	calls    int
	provider collector.RecordProvider
}

func (l *countingListener) RecordsAvailable(p collector.RecordProvider) {
	l.mu.Lock()
	l.calls++
	l.provider = p
	l.mu.Unlock()
}

func (l *countingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// unstableStriper hands out a stripe filter whose answers may change.
type unstableStriper struct {
	striper.Striper
}

func (unstableStriper) StripeFilter(i int) filter.Filter {
	return filter.Func(fmt.Sprintf("unstable%d", i), false, func(*record.Type, int, string) bool { return true })
}

// countingFactory counts the shard collectors it builds.
type countingFactory struct {
	memory.Factory
	built int
}

func (f *countingFactory) NewTicker(opts collector.Options) (collector.Ticker, error) {
	f.built++
	return f.Factory.NewTicker(opts)
}

func TestFactory_SingleStripeIsUnsharded(t *testing.T) {
	f := newFixture()
	factory := f.factory(t)

	c, err := factory.NewTicker(f.options(t, "stripe_single", 1))
	require.NoError(t, err)
	assert.IsType(t, &memory.Collector{}, c)

	opts := f.options(t, "stripe_no_striper", 0)
	opts.Striper = nil
	s, err := factory.NewStream(opts)
	require.NoError(t, err)
	assert.IsType(t, &memory.Collector{}, s)
}

func TestFactory_BuildsEveryContract(t *testing.T) {
	f := newFixture()
	factory := f.factory(t)
	for _, contract := range collector.Contracts {
		t.Run(contract.String(), func(t *testing.T) {
			c, err := factory.NewCollector(contract, f.options(t, "stripe_contract_"+contract.String(), 3))
			require.NoError(t, err)
			assert.Equal(t, contract, c.Contract())
			assert.Equal(t, "byhash3", c.Striper().Name())
			c.Close()
		})
	}
}

func TestFactory_LegacyStripeProperty(t *testing.T) {
	f := newFixture()
	props := config.NewProperties()
	props.Set(config.StripeProperty("ticker"), 4)
	factory := f.factory(t, WithProperties(props))

	opts := f.options(t, "stripe_legacy", 0)
	opts.Striper = nil
	c, err := factory.NewTicker(opts)
	require.NoError(t, err)
	require.IsType(t, &Ticker{}, c)
	assert.Equal(t, 4, c.(*Ticker).N())
	assert.Equal(t, "byhash4", c.Striper().Name())

	h, err := factory.NewHistory(opts)
	require.NoError(t, err)
	assert.IsType(t, &memory.Collector{}, h, "no stripe count for history")
}

func TestFactory_MalformedStripePropertyFails(t *testing.T) {
	f := newFixture()
	base := &countingFactory{}
	props := config.NewProperties()
	props.Set(config.StripeProperty("ticker"), "four")
	factory := NewFactory(base, WithLogger(zaptest.NewLogger(t)), WithProperties(props))

	opts := f.options(t, "stripe_malformed", 0)
	opts.Striper = nil
	_, err := factory.NewTicker(opts)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Equal(t, 0, base.built)
}

func TestFactory_UnstableFilterFailsBeforeBuilding(t *testing.T) {
	f := newFixture()
	base := &countingFactory{}
	factory := NewFactory(base, WithLogger(zaptest.NewLogger(t)))

	opts := f.options(t, "stripe_unstable", 0)
	opts.Striper = unstableStriper{striper.New(f.scheme.Codec(), 3)}
	_, err := factory.NewTicker(opts)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Equal(t, 0, base.built)
}

func TestFactory_RequiresScheme(t *testing.T) {
	f := newFixture()
	_, err := f.factory(t).NewTicker(collector.Options{Striper: striper.New(nil, 2)})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestFactory_SharedBufferPool(t *testing.T) {
	f := newFixture()
	pool := NewBufferPool(3)
	factory := f.factory(t, WithBufferPool(pool))

	a, err := factory.NewTicker(f.options(t, "stripe_pool_a", 3))
	require.NoError(t, err)
	b, err := factory.NewStream(f.options(t, "stripe_pool_b", 3))
	require.NoError(t, err)
	assert.Same(t, pool, a.(*Ticker).part.pool)
	assert.Same(t, pool, b.(*Stream).part.pool)

	c, err := factory.NewHistory(f.options(t, "stripe_pool_c", 5))
	require.NoError(t, err)
	assert.NotSame(t, pool, c.(*History).part.pool, "stripe count differs")
}

func TestStriped_TickerDelivery(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewTicker(f.options(t, "stripe_ticker_delivery", 4))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	agent := c.BuildAgent(collector.AgentOptions{})
	require.IsType(t, &Agent{}, agent)
	l := &countingListener{}
	agent.SetRecordListener(l)
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms...))
	assert.Equal(t, 4, agent.SubscriptionSize())

	dist := c.BuildDistributor(collector.DistributorOptions{})
	require.IsType(t, &Distributor{}, dist)
	dist.Process(quotes(f.quote, syms...))
	assert.Equal(t, 1, l.count(), "one notification for four ready shards")
	assert.Same(t, agent, l.provider)

	sink := record.NewBuffer(record.ModeData)
	assert.False(t, agent.Retrieve(sink))
	assert.Equal(t, sorted(syms), sortedSymbols(f.scheme.Codec(), sink))

	for i, sym := range syms {
		assert.True(t, c.IsAvailable(f.quote, 0, sym))
		assert.Equal(t, int64(100+i), c.Int(f.quote, 0, 0, sym))
		assert.True(t, c.IsSubscribed(f.quote, 0, sym))
		assert.True(t, agent.IsSubscribed(f.quote, 0, sym, 0))
	}

	dist.Process(quotes(f.quote, syms[2]))
	assert.Equal(t, 2, l.count(), "drained agent notifies again")

	root := c.Stats().Snapshot()
	assert.Equal(t, int64(5), root.Processed)
	assert.Equal(t, int64(4), root.Subscriptions)
}

func TestStriped_RetrieveRespectsCapacity(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewTicker(f.options(t, "stripe_capacity", 3))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms...))
	c.BuildDistributor(collector.DistributorOptions{}).Process(quotes(f.quote, syms...))

	var got []string
	sink := record.NewBuffer(record.ModeData)
	for rounds := 0; rounds < 10; rounds++ {
		sink.Clear()
		sink.SetCapacityLimit(1)
		more := agent.Retrieve(sink)
		got = append(got, sortedSymbols(f.scheme.Codec(), sink)...)
		if !more {
			break
		}
	}
	assert.Equal(t, sorted(syms), sorted(got))
}

func TestStriped_LateListenerFiresOnce(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewTicker(f.options(t, "stripe_late_listener", 4))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms...))
	c.BuildDistributor(collector.DistributorOptions{}).Process(quotes(f.quote, syms...))

	l := &countingListener{}
	agent.SetRecordListener(l)
	assert.Equal(t, 1, l.count())

	sink := record.NewBuffer(record.ModeData)
	assert.False(t, agent.Retrieve(sink))
	assert.Equal(t, 4, sink.Len())
}

func TestStriped_VoidListenerSilences(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewStream(f.options(t, "stripe_void_listener", 2))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms...))
	l := &countingListener{}
	agent.SetRecordListener(l)
	agent.SetRecordListener(collector.VoidListener)

	dist := c.BuildDistributor(collector.DistributorOptions{})
	dist.Process(quotes(f.quote, syms...))
	assert.Equal(t, 0, l.count())

	agent.SetRecordListener(l)
	assert.Equal(t, 1, l.count(), "pending data is announced to the new listener once")

	sink := record.NewBuffer(record.ModeData)
	assert.False(t, agent.Retrieve(sink))
	assert.Equal(t, 2, sink.Len())
}

func TestStriped_ListenerSwapWithReadyShards(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewStream(f.options(t, "stripe_swap_ready", 3))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms...))
	first := &countingListener{}
	agent.SetRecordListener(first)
	c.BuildDistributor(collector.DistributorOptions{}).Process(quotes(f.quote, syms...))
	assert.Equal(t, 1, first.count())

	// shards stay ready across void and back, so only the ready check fires
	agent.SetRecordListener(collector.VoidListener)
	second := &countingListener{}
	agent.SetRecordListener(second)
	assert.Equal(t, 1, second.count())
	assert.Equal(t, 1, first.count())

	sink := record.NewBuffer(record.ModeData)
	assert.False(t, agent.Retrieve(sink))
	assert.Equal(t, 3, sink.Len())
}

func TestStriped_SingleStripeAgentIsNative(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewTicker(f.options(t, "stripe_native_agent", 4))
	require.NoError(t, err)
	syms := perShard(c.Striper())
	shards := c.(*Ticker).Shards()

	one := c.BuildAgent(collector.AgentOptions{Filter: filter.Symbols(f.scheme.Codec(), syms[2])})
	assert.IsType(t, &memory.Agent{}, one)
	one.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms[2]))
	assert.True(t, shards[2].IsSubscribed(f.quote, 0, syms[2]))

	byStripe := c.BuildAgent(collector.AgentOptions{Filter: c.Striper().StripeFilter(1)})
	assert.IsType(t, &memory.Agent{}, byStripe)

	two := c.BuildAgent(collector.AgentOptions{Filter: filter.Symbols(f.scheme.Codec(), syms[0], syms[3])})
	require.IsType(t, &Agent{}, two)
	agents := two.(*Agent).Agents()
	assert.NotNil(t, agents[0])
	assert.Nil(t, agents[1])
	assert.Nil(t, agents[2])
	assert.NotNil(t, agents[3])

	two.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms...))
	assert.Equal(t, 2, two.SubscriptionSize(), "filter keeps two symbols")
	assert.False(t, two.IsSubscribed(f.quote, 0, syms[1], 0))
}

func TestStriped_SingleStripeDistributorIsNative(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewStream(f.options(t, "stripe_native_distributor", 4))
	require.NoError(t, err)

	d := c.BuildDistributor(collector.DistributorOptions{Filter: c.Striper().StripeFilter(3)})
	assert.IsType(t, &memory.Distributor{}, d)

	full := c.BuildDistributor(collector.DistributorOptions{})
	require.IsType(t, &Distributor{}, full)
	assert.Len(t, full.(*Distributor).Distributors(), 4)
}

func TestStriped_SetSubscription(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewTicker(f.options(t, "stripe_set_subscription", 3))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms[0], syms[1]))
	agent.SetSubscription(subs(record.ModeSubscription, f.quote, 0, syms[2]))

	sink := record.NewBuffer(record.ModeSubscription)
	assert.False(t, agent.ExamineSubscription(sink))
	assert.Equal(t, []string{syms[2]}, sortedSymbols(f.scheme.Codec(), sink))

	agent.RemoveSubscription(subs(record.ModeSubscription, f.quote, 0, syms[2]))
	assert.Equal(t, 0, agent.SubscriptionSize())
}

func TestStriped_ExamineDataBySubscription(t *testing.T) {
	f := newFixture()
	opts := f.options(t, "stripe_examine", 4)
	opts.StoreEverything = true
	c, err := f.factory(t).NewTicker(opts)
	require.NoError(t, err)
	assert.True(t, c.IsStoreEverything())
	syms := perShard(c.Striper())

	c.BuildDistributor(collector.DistributorOptions{}).Process(quotes(f.quote, syms...))

	sink := record.NewBuffer(record.ModeData)
	assert.False(t, c.ExamineData(sink))
	assert.Equal(t, 4, sink.Len())

	sink.Clear()
	sub := subs(record.ModeSubscription, f.quote, 0, syms...)
	assert.False(t, c.ExamineDataBySubscription(sink, sub))
	assert.Equal(t, sorted(syms), sortedSymbols(f.scheme.Codec(), sink), "every shard reads the whole subscription")

	sink.Clear()
	sink.SetCapacityLimit(2)
	assert.True(t, c.ExamineData(sink))

	c.Remove(subs(record.ModeSubscription, f.quote, 0, syms[1]))
	assert.False(t, c.IsAvailable(f.quote, 0, syms[1]))
	assert.True(t, c.IsAvailable(f.quote, 0, syms[0]))
}

func TestStriped_StoreEverythingFilter(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewTicker(f.options(t, "stripe_store_filter", 2))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	c.SetStoreEverything(true)
	c.SetStoreEverythingFilter(filter.Symbols(f.scheme.Codec(), syms[1]))
	c.BuildDistributor(collector.DistributorOptions{}).Process(quotes(f.quote, syms...))

	assert.False(t, c.IsAvailable(f.quote, 0, syms[0]))
	assert.True(t, c.IsAvailable(f.quote, 0, syms[1]))
}

func TestStriped_StreamWildcards(t *testing.T) {
	f := newFixture()
	opts := f.options(t, "stripe_stream_wildcards", 4)
	opts.EnableWildcards = true
	c, err := f.factory(t).NewStream(opts)
	require.NoError(t, err)
	assert.True(t, c.WildcardsEnabled())
	syms := perShard(c.Striper())

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, symbol.Wildcard))
	for _, sym := range syms {
		assert.True(t, c.IsSubscribed(f.quote, 0, sym))
	}

	c.BuildDistributor(collector.DistributorOptions{}).Process(quotes(f.quote, syms...))
	sink := record.NewBuffer(record.ModeData)
	assert.False(t, agent.Retrieve(sink))
	assert.Equal(t, sorted(syms), sortedSymbols(f.scheme.Codec(), sink), "each record delivered once")
}

func TestStriped_History(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewHistory(f.options(t, "stripe_history", 3))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.AddSubscription(subs(record.ModeHistorySubscription, f.trade, 20, syms[0], syms[2]))
	assert.True(t, agent.IsSubscribed(f.trade, 0, syms[2], 25))
	assert.False(t, agent.IsSubscribed(f.trade, 0, syms[2], 15))

	data := record.NewBuffer(record.ModeData)
	for _, sym := range syms {
		for _, tm := range []int64{10, 20, 30} {
			data.Add(record.Record{Type: f.trade, Symbol: sym, Time: tm, Ints: []int64{tm}})
		}
	}
	c.BuildDistributor(collector.DistributorOptions{}).Process(data)

	sink := record.NewBuffer(record.ModeData)
	assert.False(t, agent.Retrieve(sink))
	assert.Equal(t, 4, sink.Len())

	assert.Equal(t, 3, c.AvailableCount(f.trade, 0, syms[2], 0, 100))
	assert.Equal(t, int64(10), c.MinAvailableTime(f.trade, 0, syms[0]))
	assert.Equal(t, int64(30), c.MaxAvailableTime(f.trade, 0, syms[0]))
	assert.Equal(t, 0, c.AvailableCount(f.trade, 0, syms[1], 0, 100), "not subscribed")

	sink.Clear()
	assert.False(t, c.ExamineRange(f.trade, 0, syms[2], 30, 20, sink))
	assert.Equal(t, 2, sink.Len())
	assert.Equal(t, int64(30), sink.At(0).Time)
}

func TestStriped_SnapshotProvider(t *testing.T) {
	f := newFixture()
	opts := f.options(t, "stripe_snapshot", 2)
	opts.StoreEverything = true
	c, err := f.factory(t).NewHistory(opts)
	require.NoError(t, err)
	syms := perShard(c.Striper())

	data := record.NewBuffer(record.ModeData)
	for _, sym := range syms {
		data.Add(record.Record{Type: f.trade, Symbol: sym, Time: 10})
		data.Add(record.Record{Type: f.trade, Symbol: sym, Time: 20})
	}
	c.BuildDistributor(collector.DistributorOptions{}).Process(data)

	agent := c.BuildAgent(collector.AgentOptions{HistorySnapshot: true})
	snapshot := agent.SnapshotProvider()
	assert.Same(t, snapshot, agent.SnapshotProvider())
	l := &countingListener{}
	snapshot.SetRecordListener(l)
	agent.AddSubscription(subs(record.ModeHistorySubscription, f.trade, 15, syms...))
	assert.Equal(t, 1, l.count())

	sink := record.NewBuffer(record.ModeData)
	assert.False(t, snapshot.Retrieve(sink))
	assert.Equal(t, sorted(syms), sortedSymbols(f.scheme.Codec(), sink))
}

func TestStriped_DistributorProviders(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewTicker(f.options(t, "stripe_distributor_providers", 4))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	dist := c.BuildDistributor(collector.DistributorOptions{})
	added := dist.AddedRecordProvider()
	assert.Same(t, added, dist.AddedRecordProvider(), "created once")
	assert.Equal(t, record.ModeSubscription, added.Mode())
	l := &countingListener{}
	added.SetRecordListener(l)

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms...))
	assert.Equal(t, 1, l.count())

	sink := record.NewBuffer(record.ModeSubscription)
	assert.False(t, added.Retrieve(sink))
	assert.Equal(t, sorted(syms), sortedSymbols(f.scheme.Codec(), sink))

	removed := dist.RemovedRecordProvider()
	rl := &countingListener{}
	removed.SetRecordListener(rl)
	agent.Close()
	agent.Close()
	assert.Equal(t, 1, rl.count())

	sink.Clear()
	assert.False(t, removed.Retrieve(sink))
	assert.Equal(t, 4, sink.Len())
	dist.Close()
	dist.Close()
}

func TestStriped_CloseAndExamineDataBySubscription(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewTicker(f.options(t, "stripe_close_examine", 2))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.SetMaxBufferSize(10)
	agent.SetBufferOverflowStrategy(collector.DropNewest)
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms...))
	c.BuildDistributor(collector.DistributorOptions{}).Process(quotes(f.quote, syms...))
	assert.NotNil(t, agent.Stats())

	sink := record.NewBuffer(record.ModeData)
	agent.CloseAndExamineDataBySubscription(sink)
	assert.Equal(t, 2, sink.Len())
	for _, sym := range syms {
		assert.False(t, c.IsSubscribed(f.quote, 0, sym))
	}

	sink.Clear()
	agent.CloseAndExamineDataBySubscription(sink)
	assert.Equal(t, 0, sink.Len(), "second call is a no-op")
}

func TestStriped_ForwardsHandlers(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewStream(f.options(t, "stripe_handlers", 2))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	var handled []error
	c.SetErrorHandler(func(err error) { handled = append(handled, err) })
	var dropped []*record.Record
	c.SetDroppedLog(func(r *record.Record) { dropped = append(dropped, r) })

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.SetMaxBufferSize(1)
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms[1]))
	agent.SetRecordListener(collector.ListenerFunc(func(collector.RecordProvider) { panic("boom") }))

	assert.NotPanics(t, func() {
		c.BuildDistributor(collector.DistributorOptions{}).Process(quotes(f.quote, syms[1], syms[1]))
	})
	assert.Len(t, handled, 1)
	assert.Len(t, dropped, 1)
}

func TestStriped_SymbolInterning(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewTicker(f.options(t, "stripe_symbols", 4))
	require.NoError(t, err)

	a := c.Symbol([]byte("EUR/USD"))
	assert.Equal(t, "EUR/USD", a)
	assert.Equal(t, a, c.Symbol([]byte("EUR/USD")))
}

func TestStriped_SameResultsAsUnsharded(t *testing.T) {
	f := newFixture()
	factory := f.factory(t)
	plain, err := factory.NewTicker(f.options(t, "stripe_equiv_plain", 1))
	require.NoError(t, err)
	striped, err := factory.NewTicker(f.options(t, "stripe_equiv_striped", 5))
	require.NoError(t, err)

	var syms []string
	for i := 0; i < 40; i++ {
		syms = append(syms, fmt.Sprintf("E%d", i))
	}
	results := make([][]string, 0, 2)
	for _, c := range []collector.Ticker{plain, striped} {
		agent := c.BuildAgent(collector.AgentOptions{})
		agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms[:30]...))
		c.BuildDistributor(collector.DistributorOptions{}).Process(quotes(f.quote, syms...))
		sink := record.NewBuffer(record.ModeData)
		for agent.Retrieve(sink) {
		}
		results = append(results, sortedSymbols(f.scheme.Codec(), sink))
	}
	assert.Equal(t, results[0], results[1])
	assert.Len(t, results[1], 30)
}

func TestStriped_ConcurrentProducers(t *testing.T) {
	f := newFixture()
	c, err := f.factory(t).NewStream(f.options(t, "stripe_concurrent", 4))
	require.NoError(t, err)
	syms := perShard(c.Striper())

	agent := c.BuildAgent(collector.AgentOptions{})
	agent.SetMaxBufferSize(1 << 20)
	agent.AddSubscription(subs(record.ModeSubscription, f.quote, 0, syms...))
	wake := make(chan struct{}, 1)
	agent.SetRecordListener(collector.ListenerFunc(func(collector.RecordProvider) {
		select {
		case wake <- struct{}{}:
		default:
		}
	}))

	const producers, batches = 4, 200
	total := producers * batches * len(syms)
	received := make(chan int)
	go func() {
		n := 0
		sink := record.NewBuffer(record.ModeData)
		for n < total {
			<-wake
			for {
				sink.Clear()
				more := agent.Retrieve(sink)
				n += sink.Len()
				if !more {
					break
				}
			}
		}
		received <- n
	}()

	var wg sync.WaitGroup
	dist := c.BuildDistributor(collector.DistributorOptions{})
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := 0; b < batches; b++ {
				dist.Process(quotes(f.quote, syms...))
			}
		}()
	}
	wg.Wait()
	select {
	case n := <-received:
		assert.Equal(t, total, n)
	case <-time.After(10 * time.Second):
		t.Fatal("consumer was not woken for every batch")
	}
}
