// Package pool implements a type-safe object pooling system used by Quasar's
// hot paths to amortize allocations of transient containers.
//
// # Architecture
//
// The pool package uses Go generics to provide type-safe pooling for any object
// type. It builds on sync.Pool, which keeps per-P caches, so Get and Put on the
// same goroutine rarely contend. On top of sync.Pool it adds a rejection count and
// an optional admission check that rejects objects which grew too large to be worth
// retaining.
//
// # Usage Patterns
//
// Creating a custom pool:
//
//	bufPool := pool.New(
//		func() *bytes.Buffer { return new(bytes.Buffer) },
//		func(b *bytes.Buffer) { b.Reset() },
//	)
//	buf := bufPool.Get()
//	defer bufPool.Put(buf)
//
// Rejecting oversized objects:
//
//	bufPool := pool.New(newBuf, resetBuf).WithAdmit(func(b *bytes.Buffer) bool {
//		return b.Cap() <= 1<<20
//	})
//
// # Thread Safety
//
// All pool operations are safe for concurrent use. Objects taken from a pool
// are owned by the caller until they are put back and must not be used after.
package pool
