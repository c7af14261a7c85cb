package indexer

import "sync/atomic"

// IndexLock is a non-blocking mutual exclusion flag. A caller that cannot
// acquire it should report "busy" instead of waiting.
type IndexLock struct {
	state atomic.Int32 // 0 = free, 1 = held
}

// TryAcquire reports whether the lock was free and is now held by the caller
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}
