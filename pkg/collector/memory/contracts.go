package memory

import (
	"sort"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/record"
)

var (
	_ collector.Ticker  = (*Collector)(nil)
	_ collector.Stream  = (*Collector)(nil)
	_ collector.History = (*Collector)(nil)
)

// IsAvailable implements collector.Ticker
func (c *Collector) IsAvailable(t *record.Type, cipher int, sym string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ticker[c.key(t, cipher, sym)]
	return ok
}

// Int implements collector.Ticker. Missing records and fields read as zero.
func (c *Collector) Int(t *record.Type, field int, cipher int, sym string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.ticker[c.key(t, cipher, sym)]
	if !ok || field < 0 || field >= len(r.Ints) {
		return 0
	}
	return r.Ints[field]
}

// Obj implements collector.Ticker
func (c *Collector) Obj(t *record.Type, field int, cipher int, sym string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.ticker[c.key(t, cipher, sym)]
	if !ok || field < 0 || field >= len(r.Objs) {
		return nil
	}
	return r.Objs[field]
}

// Data implements collector.Ticker
func (c *Collector) Data(sink record.Sink, t *record.Type, cipher int, sym string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.ticker[c.key(t, cipher, sym)]
	if !ok {
		return false
	}
	sink.Append(&r)
	return true
}

func timeBounds(start, end int64) (int64, int64) {
	if start > end {
		return end, start
	}
	return start, end
}

// window returns the index range of records with time in [lo, hi].
func window(recs []record.Record, lo, hi int64) (int, int) {
	from := sort.Search(len(recs), func(i int) bool { return recs[i].Time >= lo })
	to := sort.Search(len(recs), func(i int) bool { return recs[i].Time > hi })
	return from, to
}

// AvailableCount implements collector.History
func (c *Collector) AvailableCount(t *record.Type, cipher int, sym string, startTime, endTime int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	lo, hi := timeBounds(startTime, endTime)
	from, to := window(c.history[c.key(t, cipher, sym)], lo, hi)
	return to - from
}

// MinAvailableTime implements collector.History. It is zero when nothing is
// available.
func (c *Collector) MinAvailableTime(t *record.Type, cipher int, sym string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := c.history[c.key(t, cipher, sym)]
	if len(recs) == 0 {
		return 0
	}
	return recs[0].Time
}

// MaxAvailableTime implements collector.History
func (c *Collector) MaxAvailableTime(t *record.Type, cipher int, sym string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := c.history[c.key(t, cipher, sym)]
	if len(recs) == 0 {
		return 0
	}
	return recs[len(recs)-1].Time
}

// ExamineRange implements collector.History
func (c *Collector) ExamineRange(t *record.Type, cipher int, sym string, startTime, endTime int64, sink record.Sink) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := c.history[c.key(t, cipher, sym)]
	lo, hi := timeBounds(startTime, endTime)
	from, to := window(recs, lo, hi)
	if startTime <= endTime {
		for i := from; i < to; i++ {
			if !sink.HasCapacity() {
				return true
			}
			sink.Append(&recs[i])
		}
		return false
	}
	for i := to - 1; i >= from; i-- {
		if !sink.HasCapacity() {
			return true
		}
		sink.Append(&recs[i])
	}
	return false
}
