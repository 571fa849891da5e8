// Package internal contains internal implementation details shared by
// the homa package: the atomic bounded-retry helper the link-idle clock
// is built on.
package internal

import "sync/atomic"

// CASUpdate atomically replaces *addr with f(current value), retrying
// on conflict. It implements the lock-free "read, compute,
// compare-and-swap, retry" pattern §4.A of the link-idle clock
// requires: under contention this is a bounded retry loop, since each
// failed CAS means a concurrent writer already changed *addr and f must
// be recomputed against the new value. f must be a pure function of its
// input; it may be called more than once.
func CASUpdate(addr *atomic.Uint64, f func(cur uint64) uint64) uint64 {
	for {
		cur := addr.Load()
		next := f(cur)
		if addr.CompareAndSwap(cur, next) {
			return next
		}
	}
}
