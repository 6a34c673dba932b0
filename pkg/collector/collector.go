// Package collector defines the contract shared by every collector
// implementation: the single-shard engine in package memory and the striped
// composition in package stripe expose the same interfaces, so callers cannot
// tell them apart.
//
// A collector keeps per-symbol subscription state and data under one of three
// contracts. Producers inject records through a Distributor and observe
// subscription changes through its added/removed providers. Consumers
// subscribe through an Agent and drain delivered records with Retrieve.
package collector

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/stats"
	"github.com/ajitpratap0/quasar/pkg/striper"
)

// Contract is the storage semantics of a collector.
type Contract int

const (
	// TickerContract keeps one current record per symbol.
	TickerContract Contract = iota
	// StreamContract delivers every record, keeping none.
	StreamContract
	// HistoryContract keeps a time-indexed window per symbol.
	HistoryContract
)

// String returns the contract name
func (c Contract) String() string {
	switch c {
	case TickerContract:
		return "ticker"
	case StreamContract:
		return "stream"
	case HistoryContract:
		return "history"
	default:
		return "unknown"
	}
}

// SubscriptionMode returns the record mode used for this contract's
// subscription records.
func (c Contract) SubscriptionMode() record.Mode {
	if c == HistoryContract {
		return record.ModeHistorySubscription
	}
	return record.ModeSubscription
}

// ParseContract parses a contract name.
func ParseContract(s string) (Contract, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ticker":
		return TickerContract, nil
	case "stream":
		return StreamContract, nil
	case "history":
		return HistoryContract, nil
	}
	return 0, errors.Newf(errors.ErrorTypeValidation, "unknown contract %q", s)
}

// Contracts lists every contract.
var Contracts = []Contract{TickerContract, StreamContract, HistoryContract}

// RecordListener is told when a provider has records to retrieve.
type RecordListener interface {
	RecordsAvailable(p RecordProvider)
}

// ListenerFunc adapts a function to RecordListener.
type ListenerFunc func(p RecordProvider)

// RecordsAvailable implements RecordListener
func (f ListenerFunc) RecordsAvailable(p RecordProvider) { f(p) }

type voidListener struct{}

func (voidListener) RecordsAvailable(RecordProvider) {}

// VoidListener ignores notifications. Installing it tells a provider that
// nobody is listening.
var VoidListener RecordListener = voidListener{}

// IsVoid reports whether l is nil or VoidListener.
func IsVoid(l RecordListener) bool {
	return l == nil || l == VoidListener
}

// RecordProvider is a source of records drained by Retrieve.
type RecordProvider interface {
	// Mode returns the mode of retrieved records.
	Mode() record.Mode
	// Retrieve moves available records into sink until it runs out of
	// records or the sink runs out of capacity. It reports whether more
	// records may remain.
	Retrieve(sink record.Sink) bool
	// SetRecordListener installs the listener notified when records become
	// available. The listener fires once per transition to "available".
	SetRecordListener(l RecordListener)
}

// OverflowStrategy decides which record an agent drops when its buffer is full.
type OverflowStrategy int

const (
	// DropOldest discards the record at the head of the buffer.
	DropOldest OverflowStrategy = iota
	// DropNewest discards the incoming record.
	DropNewest
)

// String returns the strategy name
func (s OverflowStrategy) String() string {
	if s == DropNewest {
		return "drop_newest"
	}
	return "drop_oldest"
}

// ParseOverflowStrategy parses a strategy name.
func ParseOverflowStrategy(s string) (OverflowStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop_oldest":
		return DropOldest, nil
	case "drop_newest":
		return DropNewest, nil
	}
	return 0, errors.Newf(errors.ErrorTypeValidation, "unknown overflow strategy %q", s)
}

// ErrorHandler receives errors raised by listeners.
type ErrorHandler func(err error)

// DroppedLogFunc observes records dropped on agent buffer overflow.
type DroppedLogFunc func(r *record.Record)

// Agent is the consumer-side handle.
type Agent interface {
	RecordProvider

	// SnapshotProvider returns the provider of one-shot snapshot data,
	// separate from the live data retrieved from the agent itself.
	SnapshotProvider() RecordProvider
	AddSubscription(src record.Source)
	RemoveSubscription(src record.Source)
	// SetSubscription replaces the whole subscription with src.
	SetSubscription(src record.Source)
	IsSubscribed(t *record.Type, cipher int, sym string, time int64) bool
	SubscriptionSize() int
	// ExamineSubscription visits the agent's subscription and reports
	// whether the sink ran out of capacity before the end.
	ExamineSubscription(sink record.Sink) bool
	SetMaxBufferSize(n int)
	SetBufferOverflowStrategy(s OverflowStrategy)
	// CloseAndExamineDataBySubscription closes the agent and appends the
	// stored data of its former subscription to sink.
	CloseAndExamineDataBySubscription(sink record.Sink)
	Stats() *stats.Stats
	Close()
}

// Distributor is the producer-side handle.
type Distributor interface {
	// Process injects data records.
	Process(src record.Source)
	// AddedRecordProvider yields subscriptions that appeared.
	AddedRecordProvider() RecordProvider
	// RemovedRecordProvider yields subscriptions that disappeared.
	RemovedRecordProvider() RecordProvider
	Close()
}

// AgentOptions configure BuildAgent.
type AgentOptions struct {
	// Filter scopes the subscription. Nil accepts everything.
	Filter filter.Filter
	// HistorySnapshot routes initial history data to SnapshotProvider.
	HistorySnapshot bool
	// Name labels the agent in logs.
	Name string
}

// DistributorOptions configure BuildDistributor.
type DistributorOptions struct {
	// Filter scopes processed data and observed subscription. Nil accepts
	// everything.
	Filter filter.Filter
	// Name labels the distributor in logs.
	Name string
}

// Collector is the contract-independent part of every collector.
type Collector interface {
	Contract() Contract
	Scheme() *record.Scheme
	Striper() striper.Striper
	BuildAgent(opts AgentOptions) Agent
	BuildDistributor(opts DistributorOptions) Distributor

	SetErrorHandler(h ErrorHandler)
	SetDroppedLog(f DroppedLogFunc)
	IsStoreEverything() bool
	SetStoreEverything(enabled bool)
	// SetStoreEverythingFilter scopes store-everything mode. Nil accepts
	// everything.
	SetStoreEverythingFilter(f filter.Filter)

	// Symbol interns a symbol given as raw characters.
	Symbol(chars []byte) string
	IsSubscribed(t *record.Type, cipher int, sym string) bool

	// ExamineSubscription visits the total subscription. The Examine
	// methods report whether the sink ran out of capacity before the end.
	ExamineSubscription(sink record.Sink) bool
	// ExamineData visits stored data.
	ExamineData(sink record.Sink) bool
	// ExamineDataBySubscription visits stored data of the symbols listed
	// in sub, which is read from its current position.
	ExamineDataBySubscription(sink record.Sink, sub record.Source) bool
	// Remove drops stored data of the symbols listed in src.
	Remove(src record.Source)

	Stats() *stats.Stats
	Close()
}

// Ticker keeps the latest record per symbol.
type Ticker interface {
	Collector
	IsAvailable(t *record.Type, cipher int, sym string) bool
	Int(t *record.Type, field int, cipher int, sym string) int64
	Obj(t *record.Type, field int, cipher int, sym string) interface{}
	// Data appends the current record to sink and reports whether one exists.
	Data(sink record.Sink, t *record.Type, cipher int, sym string) bool
}

// Stream delivers records without keeping them.
type Stream interface {
	Collector
	// WildcardsEnabled reports whether wildcard subscriptions receive every
	// symbol of their record type.
	WildcardsEnabled() bool
}

// History keeps a time-indexed window per symbol.
type History interface {
	Collector
	AvailableCount(t *record.Type, cipher int, sym string, startTime, endTime int64) int
	MinAvailableTime(t *record.Type, cipher int, sym string) int64
	MaxAvailableTime(t *record.Type, cipher int, sym string) int64
	// ExamineRange visits the records with time in [startTime, endTime],
	// descending when startTime > endTime.
	ExamineRange(t *record.Type, cipher int, sym string, startTime, endTime int64, sink record.Sink) bool
}

// Options configure a collector.
type Options struct {
	// Name labels statistics and logs.
	Name            string
	Scheme          *record.Scheme
	Stats           *stats.Stats
	Striper         striper.Striper
	StoreEverything bool
	// StoreEverythingFilter scopes store-everything mode. Nil accepts everything.
	StoreEverythingFilter filter.Filter
	// EnableWildcards makes wildcard subscriptions receive every symbol.
	// Only streams honour it.
	EnableWildcards bool
	// ShardFilter is the partition filter of a shard collector. Nil for an
	// unsharded collector.
	ShardFilter filter.Filter
	Logger      *zap.Logger
}

// Factory builds collectors of each contract.
type Factory interface {
	NewTicker(opts Options) (Ticker, error)
	NewStream(opts Options) (Stream, error)
	NewHistory(opts Options) (History, error)
}

// Build builds a collector of the given contract with f.
func Build(f Factory, c Contract, opts Options) (Collector, error) {
	switch c {
	case TickerContract:
		return f.NewTicker(opts)
	case StreamContract:
		return f.NewStream(opts)
	case HistoryContract:
		return f.NewHistory(opts)
	}
	return nil, errors.Newf(errors.ErrorTypeValidation, "unknown contract %d", int(c))
}
