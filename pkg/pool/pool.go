package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with automatic reset and an optional admission
// check. The pool is safe for concurrent use.
//
// Type parameter T can be any type, but pointer types are recommended
// for efficiency.
type Pool[T any] struct {
	pool     sync.Pool
	new      func() T
	reset    func(T)
	admit    func(T) bool
	rejected atomic.Int64
}

// New creates a new typed pool with custom allocation and reset functions.
// The new function is called when the pool is empty and a new object is needed.
// The reset function is called before returning an object to the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		return new()
	}
	return p
}

// WithAdmit installs a check consulted by Put. Objects for which admit
// returns false are dropped instead of being retained by the pool.
func (p *Pool[T]) WithAdmit(admit func(T) bool) *Pool[T] {
	p.admit = admit
	return p
}

// Get retrieves an object from the pool, creating one if the pool is empty.
// The returned object should be given back with Put when no longer needed.
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put returns an object to the pool for reuse. The reset function, if any,
// runs first; then the admit check decides whether the object is retained.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	if p.admit != nil && !p.admit(obj) {
		p.rejected.Add(1)
		return
	}
	p.pool.Put(obj)
}

// Rejected returns how many objects Put dropped because of the admit check.
func (p *Pool[T]) Rejected() int64 {
	return p.rejected.Load()
}
