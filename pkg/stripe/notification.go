package stripe

import (
	"runtime"
	"sync/atomic"
)

const (
	flagIdle int32 = iota
	flagSet
	flagArming
)

// Notification coalesces "ready" signals from n shards into one edge and
// hands ready shards out round robin. It takes no locks.
//
// A shard flag moves idle -> arming -> set in Notify and set -> idle in Next.
// The ready counter is raised before a flag becomes claimable, so it never
// drops below the number of set flags and never goes negative.
type Notification struct {
	flags  []atomic.Int32
	ready  atomic.Int64
	cursor atomic.Uint64
}

// NewNotification creates a coalescer for n shards.
func NewNotification(n int) *Notification {
	return &Notification{flags: make([]atomic.Int32, n)}
}

// Notify marks shard i ready. It returns true only when this call moved the
// aggregate from "nothing ready" to "something ready"; callers fire their
// listener on that edge alone. Notifying a shard that is already ready is a
// no-op returning false.
func (n *Notification) Notify(i int) bool {
	f := &n.flags[i]
	if !f.CompareAndSwap(flagIdle, flagArming) {
		return false
	}
	first := n.ready.Add(1) == 1
	f.Store(flagSet)
	return first
}

// HasNext reports whether any shard is ready.
func (n *Notification) HasNext() bool {
	return n.ready.Load() > 0
}

// Next claims a ready shard, scanning round robin from the last position.
// It returns -1 once no shard is ready. Each ready shard is claimed by
// exactly one caller.
func (n *Notification) Next() int {
	size := uint64(len(n.flags))
	for n.ready.Load() > 0 {
		for k := uint64(0); k < size; k++ {
			i := int(n.cursor.Add(1) % size)
			if n.flags[i].CompareAndSwap(flagSet, flagIdle) {
				n.ready.Add(-1)
				return i
			}
		}
		// a notifier is between raising the counter and setting its flag
		runtime.Gosched()
	}
	return -1
}

// Size returns the number of shards.
func (n *Notification) Size() int {
	return len(n.flags)
}
