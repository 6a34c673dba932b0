package memory

import (
	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/record"
)

// key addresses a (type, symbol) pair. Encodable symbols are always keyed by
// cipher with an empty sym.
type key struct {
	t      int
	cipher int
	sym    string
}

func (k key) less(o key) bool {
	if k.t != o.t {
		return k.t < o.t
	}
	if k.cipher != o.cipher {
		return k.cipher < o.cipher
	}
	return k.sym < o.sym
}

type entry struct {
	k   key
	rec record.Record
}

// recordQueue is a FIFO of records. A coalescing queue holds at most one
// record per key: a newer record replaces the queued one in place.
type recordQueue struct {
	entries  []entry
	head     int
	coalesce bool
	index    map[key]int
}

func newRecordQueue(coalesce bool) recordQueue {
	q := recordQueue{coalesce: coalesce}
	if coalesce {
		q.index = make(map[key]int)
	}
	return q
}

func (q *recordQueue) len() int {
	return len(q.entries) - q.head
}

// push appends rec, returning the record dropped to respect limit, if any.
func (q *recordQueue) push(k key, rec record.Record, limit int, strategy collector.OverflowStrategy) *record.Record {
	if q.coalesce {
		if i, ok := q.index[k]; ok {
			q.entries[i].rec = rec
			return nil
		}
	}
	var dropped *record.Record
	if limit > 0 && q.len() >= limit {
		if strategy == collector.DropNewest {
			return &rec
		}
		e := q.pop()
		dropped = &e.rec
	}
	q.compact()
	q.entries = append(q.entries, entry{k: k, rec: rec})
	if q.coalesce {
		q.index[k] = len(q.entries) - 1
	}
	return dropped
}

func (q *recordQueue) pop() entry {
	e := q.entries[q.head]
	q.entries[q.head] = entry{}
	q.head++
	if q.coalesce {
		delete(q.index, e.k)
	}
	if q.head == len(q.entries) {
		q.entries = q.entries[:0]
		q.head = 0
	}
	return e
}

// compact reclaims the drained prefix once it dominates the slice.
func (q *recordQueue) compact() {
	if q.head < 64 || q.head < len(q.entries)/2 {
		return
	}
	n := copy(q.entries, q.entries[q.head:])
	for i := n; i < len(q.entries); i++ {
		q.entries[i] = entry{}
	}
	q.entries = q.entries[:n]
	q.head = 0
	if q.coalesce {
		for i, e := range q.entries {
			q.index[e.k] = i
		}
	}
}

// drain moves queued records into sink while it has capacity and reports
// how many moved and whether records remain.
func (q *recordQueue) drain(sink record.Sink) (int, bool) {
	n := 0
	for q.len() > 0 {
		if !sink.HasCapacity() {
			return n, true
		}
		e := q.pop()
		sink.Append(&e.rec)
		n++
	}
	return n, false
}

func (q *recordQueue) clear() {
	for q.len() > 0 {
		q.pop()
	}
}
