package homa

//
// Throttled List (§4.G): RPCs awaiting pacing, ordered by ascending
// remaining bytes (SRPT-like). The pacer is the sole remover; producers
// only insert.
//

import (
	"container/list"
	"sync"
)

// ThrottledList is the ordered set of messages with unsent granted
// bytes, shortest-remaining-bytes first. The zero value is invalid; use
// [NewThrottledList].
type ThrottledList struct {
	mu       sync.Mutex
	entries  *list.List
	doorbell chan struct{}
	metrics  *Metrics
}

// NewThrottledList creates an empty [ThrottledList]. metrics may be nil
// in tests that do not care about observability.
func NewThrottledList(metrics *Metrics) *ThrottledList {
	return &ThrottledList{
		entries:  list.New(),
		doorbell: make(chan struct{}, 1),
		metrics:  metrics,
	}
}

// Doorbell returns the channel the pacer waits on when the list is
// empty. A successful receive means the list became non-empty, or that
// [Pacer.Shutdown] posted a wakeup.
func (tl *ThrottledList) Doorbell() <-chan struct{} {
	return tl.doorbell
}

// wake posts a non-blocking notification to the doorbell.
func (tl *ThrottledList) wake() {
	select {
	case tl.doorbell <- struct{}{}:
	default:
	}
}

// Add inserts msg into the list at the position that keeps it sorted by
// ascending remaining bytes, unless msg is already linked (idempotent).
// Ties insert after existing equal-remaining entries (FIFO among ties).
func (tl *ThrottledList) Add(msg *Message) {
	tl.mu.Lock()
	if msg.listElem != nil {
		tl.mu.Unlock()
		return
	}

	remaining := msg.RemainingBytes()
	var elem *list.Element
	for e := tl.entries.Front(); e != nil; e = e.Next() {
		if e.Value.(*Message).RemainingBytes() > remaining {
			elem = tl.entries.InsertBefore(msg, e)
			break
		}
	}
	if elem == nil {
		elem = tl.entries.PushBack(msg)
	}
	msg.listElem = elem
	tl.mu.Unlock()

	if tl.metrics != nil {
		tl.metrics.ThrottledRemainingBytes.Observe(float64(remaining))
	}
	tl.wake()
}

// Remove unlinks msg from the list. Only the pacer, holding the
// determination that msg is fully drained, should call this.
func (tl *ThrottledList) Remove(msg *Message) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if msg.listElem == nil {
		return
	}
	tl.entries.Remove(msg.listElem)
	msg.listElem = nil
}

// Head returns the message at the front of the list (shortest remaining
// bytes), or nil if the list is empty. This is the RCU-style read the
// pacer uses: a short critical section over the same lock writers use,
// acceptable for a single reader per the Design Notes.
func (tl *ThrottledList) Head() *Message {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	front := tl.entries.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*Message)
}

// Empty reports whether the list currently has no entries.
func (tl *ThrottledList) Empty() bool {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.entries.Len() == 0
}

// Len returns the number of linked entries, for tests and diagnostics.
func (tl *ThrottledList) Len() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.entries.Len()
}

// Snapshot returns the messages currently linked, head first. It is a
// diagnostic/testing helper; production code should only need Head.
func (tl *ThrottledList) Snapshot() []*Message {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]*Message, 0, tl.entries.Len())
	for e := tl.entries.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Message))
	}
	return out
}
