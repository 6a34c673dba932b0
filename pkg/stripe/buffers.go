package stripe

import (
	"fmt"
	"sync/atomic"

	"github.com/ajitpratap0/quasar/pkg/pool"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/striper"
	"github.com/ajitpratap0/quasar/pkg/symbol"
)

// MaxPooledBufferSize is the largest buffer capacity, in records, kept by a
// BufferPool. Larger buffers are dropped on release so one burst does not pin
// memory.
const MaxPooledBufferSize = 10000

// Buffers holds one lazily created buffer per shard for a single
// partitioning call.
type Buffers struct {
	bufs []*record.Buffer
}

// Get returns the buffer of shard i in the given mode, creating it if needed.
func (b *Buffers) Get(i int, mode record.Mode) *record.Buffer {
	buf := b.bufs[i]
	if buf == nil {
		buf = record.NewBuffer(mode)
		b.bufs[i] = buf
	}
	buf.SetMode(mode)
	return buf
}

// Shard returns the buffer of shard i, or nil when nothing went to shard i.
func (b *Buffers) Shard(i int) *record.Buffer {
	if buf := b.bufs[i]; buf != nil && !buf.IsEmpty() {
		return buf
	}
	return nil
}

// Len returns the number of shards.
func (b *Buffers) Len() int {
	return len(b.bufs)
}

// BufferPool recycles per-shard buffer arrays between partitioning calls.
// It is safe for concurrent use; a Buffers value taken from it belongs to
// the caller until released.
type BufferPool struct {
	n         int
	pool      *pool.Pool[*Buffers]
	discarded atomic.Int64
}

// NewBufferPool creates a pool of arrays of n buffers.
func NewBufferPool(n int) *BufferPool {
	p := &BufferPool{n: n}
	p.pool = pool.New(
		func() *Buffers { return &Buffers{bufs: make([]*record.Buffer, n)} },
		p.reset,
	).WithAdmit(func(b *Buffers) bool { return len(b.bufs) == n })
	return p
}

func (p *BufferPool) reset(b *Buffers) {
	for i, buf := range b.bufs {
		if buf == nil {
			continue
		}
		if cap(buf.Records()) > MaxPooledBufferSize {
			b.bufs[i] = nil
			p.discarded.Add(1)
			continue
		}
		buf.Clear()
	}
}

// Get takes a cleared array of buffers.
func (p *BufferPool) Get() *Buffers {
	return p.pool.Get()
}

// Put clears b and returns it to the pool. b must not be used afterwards.
func (p *BufferPool) Put(b *Buffers) {
	p.pool.Put(b)
}

// Size returns the number of buffers per array.
func (p *BufferPool) Size() int {
	return p.n
}

// Discarded returns how many oversized buffers were dropped on release.
func (p *BufferPool) Discarded() int64 {
	return p.discarded.Load()
}

// Partitioner splits record sources by shard.
type Partitioner struct {
	striper   striper.Striper
	n         int
	wildcard  int
	wildcards bool
	pool      *BufferPool
}

// NewPartitioner creates a partitioner. With wildcards enabled, records of
// the wildcard symbol are copied into every shard.
func NewPartitioner(s striper.Striper, wildcards bool, p *BufferPool) *Partitioner {
	n := s.StripeCount()
	if p == nil || p.Size() != n {
		p = NewBufferPool(n)
	}
	return &Partitioner{
		striper:   s,
		n:         n,
		wildcard:  s.Codec().WildcardCipher(),
		wildcards: wildcards,
		pool:      p,
	}
}

func (p *Partitioner) isWildcard(r *record.Record) bool {
	if r.Cipher != 0 {
		return r.Cipher == p.wildcard
	}
	return r.Symbol == symbol.Wildcard
}

// Index returns the shard of a symbol. It panics when the striper returns
// an index out of range.
func (p *Partitioner) Index(cipher int, sym string) int {
	i := p.striper.Index(cipher, sym)
	if i < 0 || i >= p.n {
		panic(fmt.Sprintf("stripe: striper %s routed (%d, %q) to %d, outside [0, %d)", p.striper.Name(), cipher, sym, i, p.n))
	}
	return i
}

// IndexBytes is Index for a symbol given as raw characters.
func (p *Partitioner) IndexBytes(chars []byte) int {
	i := p.striper.IndexBytes(chars)
	if i < 0 || i >= p.n {
		panic(fmt.Sprintf("stripe: striper %s routed %q to %d, outside [0, %d)", p.striper.Name(), chars, i, p.n))
	}
	return i
}

// Partition reads src from its current position to the end and splits the
// records by shard, keeping their relative order. Buffers are tagged with the
// mode of src. The result must be given back with Release.
func (p *Partitioner) Partition(src record.Source) *Buffers {
	b := p.pool.Get()
	mode := src.Mode()
	for r := src.Next(); r != nil; r = src.Next() {
		if p.wildcards && p.isWildcard(r) {
			for i := 0; i < p.n; i++ {
				b.Get(i, mode).Append(r)
			}
			continue
		}
		b.Get(p.Index(r.Cipher, r.Symbol), mode).Append(r)
	}
	return b
}

// Release returns buffers to the pool.
func (p *Partitioner) Release(b *Buffers) {
	p.pool.Put(b)
}
