// Package feed drives a collector with synthetic market data.
//
// Producers publish random quotes for a fixed symbol universe through their
// own distributors while consumer agents, each subscribed to a slice of the
// universe, drain whatever their listener announces. The harness is what the
// run command uses to exercise a striped collector end to end.
//
// # Basic Usage
//
//	h, err := feed.New(c, feed.Config{
//	    Symbols:   []string{"IBM", "MSFT"},
//	    Agents:    2,
//	    Producers: 1,
//	    BatchSize: 100,
//	    Duration:  5 * time.Second,
//	}, logger)
//	result, err := h.Run(ctx)
//
// Consumers are woken through a one-slot channel per agent, so a listener
// never blocks a producer and a burst of notifications costs one drain.
package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/observability"
	"github.com/ajitpratap0/quasar/pkg/performance"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/stats"
	"github.com/ajitpratap0/quasar/pkg/tape"
)

// Quote is the record type produced by the harness.
var Quote = record.NewType("Quote", true,
	[]string{"BidPrice", "BidSize", "AskPrice", "AskSize"},
	[]string{"Exchange"})

// Scheme returns the scheme of harness records.
func Scheme() *record.Scheme {
	return record.NewScheme(nil, Quote)
}

var exchanges = []string{"NYSE", "NASDAQ", "ARCA", "BATS"}

// Config controls a run.
type Config struct {
	Symbols   []string
	Agents    int
	Producers int
	BatchSize int
	// Duration bounds the run. Zero runs until the context is done or
	// every producer has published Batches batches.
	Duration time.Duration
	// Batches, when positive, is the number of batches each producer
	// publishes.
	Batches int
	// Seed makes the generated quotes reproducible. Zero seeds from the
	// clock.
	Seed int64
	// MaxBufferSize bounds each agent's buffer. Zero is unbounded.
	MaxBufferSize int
	Overflow      collector.OverflowStrategy
	// Tape, when set, receives every produced batch.
	Tape *tape.Writer
}

// Result summarises a run.
type Result struct {
	Produced  int64
	Delivered int64
	Stats     stats.Snapshot
	Metrics   *performance.Metrics
	Report    string
}

// Harness runs producers and consumers against one collector.
type Harness struct {
	c        collector.Collector
	cfg      Config
	log      *zap.Logger
	profiler *performance.Profiler

	tapeMu sync.Mutex
}

// New validates cfg and creates a harness over c. The collector's scheme
// must contain Quote.
func New(c collector.Collector, cfg Config, log *zap.Logger) (*Harness, error) {
	if len(cfg.Symbols) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "feed needs at least one symbol")
	}
	if cfg.Agents <= 0 || cfg.Producers <= 0 || cfg.BatchSize <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "feed agents, producers and batch size must be positive").
			WithDetail("agents", cfg.Agents).
			WithDetail("producers", cfg.Producers).
			WithDetail("batch_size", cfg.BatchSize)
	}
	if cfg.Duration <= 0 && cfg.Batches <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "feed needs a duration or a batch count")
	}
	if c.Scheme().FindType(Quote.Name) != Quote {
		return nil, errors.New(errors.ErrorTypeValidation, "collector scheme does not carry the feed quote type")
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Harness{
		c:        c,
		cfg:      cfg,
		log:      log.With(zap.String("component", "feed")),
		profiler: performance.NewProfiler(performance.DefaultProfilerConfig("feed")),
	}, nil
}

// Run publishes quotes until the configured duration or batch count is
// reached, then drains every agent and reports what was delivered.
func (h *Harness) Run(ctx context.Context) (*Result, error) {
	if h.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Duration)
		defer cancel()
	}

	consumers := h.subscribe()
	h.profiler.Start()

	stop := make(chan struct{})
	var cwg sync.WaitGroup
	for _, cons := range consumers {
		cwg.Add(1)
		go func(cons *consumer) {
			defer cwg.Done()
			cons.loop(ctx, stop)
		}(cons)
	}

	errs := make(chan error, h.cfg.Producers)
	var pwg sync.WaitGroup
	for i := 0; i < h.cfg.Producers; i++ {
		pwg.Add(1)
		go func(id int) {
			defer pwg.Done()
			if err := h.produce(ctx, id); err != nil {
				errs <- err
			}
		}(i)
	}
	pwg.Wait()
	close(stop)
	cwg.Wait()
	close(errs)

	// Listeners may still be pending after the consumers stopped.
	for _, cons := range consumers {
		cons.drain(context.Background())
		cons.agent.Close()
	}

	metrics := h.profiler.Stop()
	res := &Result{
		Produced:  metrics.RecordsProduced,
		Delivered: metrics.RecordsDelivered,
		Stats:     h.c.Stats().Snapshot(),
		Metrics:   metrics,
		Report:    h.profiler.Report(),
	}
	h.log.Info("feed finished",
		zap.Int64("produced", res.Produced),
		zap.Int64("delivered", res.Delivered),
		zap.Int64("dropped", res.Stats.Dropped),
		zap.Float64("records_per_second", metrics.RecordsPerSecond))

	if err := <-errs; err != nil {
		return res, err
	}
	return res, nil
}

// subscribe builds one agent per consumer. Symbols are dealt round-robin, so
// with more agents than symbols some agents share a symbol.
func (h *Harness) subscribe() []*consumer {
	consumers := make([]*consumer, h.cfg.Agents)
	for i := range consumers {
		var syms []string
		for j := i % len(h.cfg.Symbols); j < len(h.cfg.Symbols); j += h.cfg.Agents {
			syms = append(syms, h.cfg.Symbols[j])
		}
		if len(syms) == 0 {
			syms = append(syms, h.cfg.Symbols[i%len(h.cfg.Symbols)])
		}
		cons := &consumer{
			h:     h,
			id:    i,
			agent: h.c.BuildAgent(collector.AgentOptions{Filter: filter.Symbols(h.c.Scheme().Codec(), syms...)}),
			wake:  make(chan struct{}, 1),
			buf:   record.NewBuffer(record.ModeData),
		}
		cons.buf.SetCapacityLimit(h.cfg.BatchSize)
		cons.agent.SetMaxBufferSize(h.cfg.MaxBufferSize)
		cons.agent.SetBufferOverflowStrategy(h.cfg.Overflow)
		cons.agent.SetRecordListener(collector.ListenerFunc(func(collector.RecordProvider) {
			select {
			case cons.wake <- struct{}{}:
			default:
			}
		}))

		sub := record.NewBuffer(h.c.Contract().SubscriptionMode())
		for _, s := range syms {
			cipher, sym := h.c.Scheme().Cipher(s)
			sub.Add(record.Record{Type: Quote, Cipher: cipher, Symbol: sym})
		}
		cons.agent.AddSubscription(sub)
		consumers[i] = cons
		h.log.Debug("agent subscribed", zap.Int("agent", i), zap.Strings("symbols", syms))
	}
	return consumers
}

func (h *Harness) produce(ctx context.Context, id int) error {
	dist := h.c.BuildDistributor(collector.DistributorOptions{})
	defer dist.Close()

	rnd := rand.New(rand.NewSource(h.cfg.Seed + int64(id))) //nolint:gosec // synthetic prices
	buf := record.NewBuffer(record.ModeData)
	for batch := 0; h.cfg.Batches <= 0 || batch < h.cfg.Batches; batch++ {
		if ctx.Err() != nil {
			return nil
		}
		_, span := observability.StartSpan(ctx, "feed.batch",
			attribute.Int("producer", id),
			attribute.Int("batch", batch))
		buf.Clear()
		h.fill(rnd, buf)
		if err := h.record(buf); err != nil {
			observability.EndSpan(span, err)
			return err
		}
		dist.Process(buf)
		h.profiler.AddProduced(buf.Len())
		span.SetAttributes(attribute.Int("records", buf.Len()))
		observability.EndSpan(span, nil)
	}
	return nil
}

func (h *Harness) fill(rnd *rand.Rand, buf *record.Buffer) {
	scheme := h.c.Scheme()
	for i := 0; i < h.cfg.BatchSize; i++ {
		s := h.cfg.Symbols[rnd.Intn(len(h.cfg.Symbols))]
		cipher, sym := scheme.Cipher(s)
		bid := int64(10000 + rnd.Intn(1000))
		buf.Add(record.Record{
			Type:   Quote,
			Cipher: cipher,
			Symbol: sym,
			Time:   time.Now().UnixNano(),
			Ints:   []int64{bid, int64(1 + rnd.Intn(100)), bid + int64(1+rnd.Intn(5)), int64(1 + rnd.Intn(100))},
			Objs:   []interface{}{exchanges[rnd.Intn(len(exchanges))]},
		})
	}
}

// record writes buf to the tape, if any, and rewinds it for processing.
func (h *Harness) record(buf *record.Buffer) error {
	if h.cfg.Tape == nil {
		return nil
	}
	h.tapeMu.Lock()
	err := h.cfg.Tape.WriteSource(buf)
	h.tapeMu.Unlock()
	buf.Rewind()
	return err
}

type consumer struct {
	h     *Harness
	id    int
	agent collector.Agent
	wake  chan struct{}
	buf   *record.Buffer
}

func (c *consumer) loop(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-c.wake:
		}
		c.drain(ctx)
	}
}

// drain retrieves until the agent reports nothing more.
func (c *consumer) drain(ctx context.Context) {
	_, span := observability.StartSpan(ctx, "feed.drain", attribute.Int("agent", c.id))
	total := 0
	for more := true; more; {
		c.buf.Clear()
		more = c.agent.Retrieve(c.buf)
		now := time.Now().UnixNano()
		for _, r := range c.buf.Records() {
			c.h.profiler.RecordLatency(time.Duration(now - r.Time))
		}
		c.h.profiler.AddDelivered(c.buf.Len())
		total += c.buf.Len()
	}
	span.SetAttributes(attribute.Int("records", total))
	observability.EndSpan(span, nil)
}
