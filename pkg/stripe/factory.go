package stripe

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/config"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/stats"
	"github.com/ajitpratap0/quasar/pkg/striper"
)

// PropertySource resolves integer properties. *config.Properties
// implements it.
type PropertySource interface {
	GetInt(key string) (int, error)
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger of the factory and of the collectors it builds.
func WithLogger(l *zap.Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.log = l
		}
	}
}

// WithProperties enables the legacy stripe count lookup: when no striper is
// given in the options, the property "stripe.<contract>" selects a hash
// striper with that many stripes.
func WithProperties(p PropertySource) Option {
	return func(f *Factory) {
		f.props = p
	}
}

// WithBufferPool shares one buffer pool between the collectors the factory
// builds. A pool whose size differs from a collector's stripe count is
// replaced by a private one.
func WithBufferPool(p *BufferPool) Option {
	return func(f *Factory) {
		f.pool = p
	}
}

// Factory builds striped collectors on top of a shard collector factory.
// It implements collector.Factory itself, so striping is transparent to
// callers.
type Factory struct {
	base  collector.Factory
	props PropertySource
	pool  *BufferPool
	log   *zap.Logger
}

var _ collector.Factory = (*Factory)(nil)

// NewFactory creates a factory whose shards are built by base.
func NewFactory(base collector.Factory, opts ...Option) *Factory {
	f := &Factory{
		base: base,
		log:  logger.Get(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewTicker implements collector.Factory
func (f *Factory) NewTicker(opts collector.Options) (collector.Ticker, error) {
	s, err := f.striperFor(collector.TickerContract, opts)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return f.base.NewTicker(opts)
	}
	c, err := newStriped(f, collector.TickerContract, s, opts, f.base.NewTicker)
	if err != nil {
		return nil, err
	}
	return &Ticker{c}, nil
}

// NewStream implements collector.Factory
func (f *Factory) NewStream(opts collector.Options) (collector.Stream, error) {
	s, err := f.striperFor(collector.StreamContract, opts)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return f.base.NewStream(opts)
	}
	c, err := newStriped(f, collector.StreamContract, s, opts, f.base.NewStream)
	if err != nil {
		return nil, err
	}
	return &Stream{c}, nil
}

// NewHistory implements collector.Factory
func (f *Factory) NewHistory(opts collector.Options) (collector.History, error) {
	s, err := f.striperFor(collector.HistoryContract, opts)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return f.base.NewHistory(opts)
	}
	c, err := newStriped(f, collector.HistoryContract, s, opts, f.base.NewHistory)
	if err != nil {
		return nil, err
	}
	return &History{c}, nil
}

// NewCollector builds a collector of the given contract.
func (f *Factory) NewCollector(contract collector.Contract, opts collector.Options) (collector.Collector, error) {
	return collector.Build(f, contract, opts)
}

// striperFor resolves the striper of a new collector. A nil striper means
// the collector is not striped.
func (f *Factory) striperFor(contract collector.Contract, opts collector.Options) (striper.Striper, error) {
	if opts.Scheme == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "collector scheme is required")
	}
	s := opts.Striper
	if s == nil {
		if f.props == nil {
			return nil, nil
		}
		n, err := f.props.GetInt(config.StripeProperty(contract.String()))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid stripe count").
				WithDetail("contract", contract.String())
		}
		if n <= 1 {
			return nil, nil
		}
		s = striper.New(opts.Scheme.Codec(), n)
	}
	if s.StripeCount() <= 1 {
		f.log.Debug("single stripe, building unsharded collector",
			zap.String("contract", contract.String()),
			zap.String("striper", s.Name()))
		return nil, nil
	}
	return s, nil
}

// newStriped builds the shards of a striped collector. Every stripe filter
// is checked before the first shard is created.
func newStriped[C collector.Collector](f *Factory, contract collector.Contract, s striper.Striper,
	opts collector.Options, build func(collector.Options) (C, error)) (*Collector[C], error) {
	n := s.StripeCount()
	filters := make([]filter.Filter, n)
	for i := range filters {
		sf := s.StripeFilter(i)
		if sf == nil || !sf.IsStable() {
			return nil, errors.Newf(errors.ErrorTypeConfig, "stripe filter %d of striper %s is not stable", i, s.Name()).
				WithDetail("striper", s.Name())
		}
		filters[i] = sf
	}

	name := opts.Name
	if name == "" {
		name = contract.String()
	}
	st := opts.Stats
	if st == nil {
		st = stats.New(name)
	}

	shards := make([]C, 0, n)
	for i, sf := range filters {
		so := opts
		so.Name = name
		so.Striper = s
		so.ShardFilter = sf
		so.Stats = st.Child(sf.String())
		so.StoreEverythingFilter = filter.And(opts.StoreEverythingFilter, sf)
		if so.Logger == nil {
			so.Logger = f.log
		}
		shard, err := build(so)
		if err != nil {
			for _, built := range shards {
				built.Close()
			}
			f.log.Error("failed to build shard collector",
				zap.String("collector", name),
				zap.Int("shard", i),
				zap.Error(err))
			return nil, err
		}
		shards = append(shards, shard)
	}

	log := f.log.With(
		zap.String("collector", name),
		zap.String("contract", contract.String()),
		zap.String("striper", s.Name()))
	part := NewPartitioner(s, contract == collector.StreamContract && opts.EnableWildcards, f.pool)
	log.Info("striped collector created", zap.Int("shards", n))
	return newCollector(contract, opts.Scheme, s, shards, filters, part, st, log), nil
}
