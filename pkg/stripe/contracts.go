package stripe

import (
	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/record"
)

// Ticker is a striped ticker.
type Ticker struct {
	*Collector[collector.Ticker]
}

var _ collector.Ticker = (*Ticker)(nil)

func (t *Ticker) IsAvailable(typ *record.Type, cipher int, sym string) bool {
	return t.shard(cipher, sym).IsAvailable(typ, cipher, sym)
}

func (t *Ticker) Int(typ *record.Type, field int, cipher int, sym string) int64 {
	return t.shard(cipher, sym).Int(typ, field, cipher, sym)
}

func (t *Ticker) Obj(typ *record.Type, field int, cipher int, sym string) interface{} {
	return t.shard(cipher, sym).Obj(typ, field, cipher, sym)
}

func (t *Ticker) Data(sink record.Sink, typ *record.Type, cipher int, sym string) bool {
	return t.shard(cipher, sym).Data(sink, typ, cipher, sym)
}

// Stream is a striped stream.
type Stream struct {
	*Collector[collector.Stream]
}

var _ collector.Stream = (*Stream)(nil)

func (s *Stream) WildcardsEnabled() bool {
	return s.shards[0].WildcardsEnabled()
}

// History is a striped history.
type History struct {
	*Collector[collector.History]
}

var _ collector.History = (*History)(nil)

func (h *History) AvailableCount(typ *record.Type, cipher int, sym string, startTime, endTime int64) int {
	return h.shard(cipher, sym).AvailableCount(typ, cipher, sym, startTime, endTime)
}

func (h *History) MinAvailableTime(typ *record.Type, cipher int, sym string) int64 {
	return h.shard(cipher, sym).MinAvailableTime(typ, cipher, sym)
}

func (h *History) MaxAvailableTime(typ *record.Type, cipher int, sym string) int64 {
	return h.shard(cipher, sym).MaxAvailableTime(typ, cipher, sym)
}

func (h *History) ExamineRange(typ *record.Type, cipher int, sym string, startTime, endTime int64, sink record.Sink) bool {
	return h.shard(cipher, sym).ExamineRange(typ, cipher, sym, startTime, endTime, sink)
}
