package homa

//
// Pacer (§4.H): a dedicated long-running task that drains the head of
// the throttled list, respecting the link-idle clock. The pacer is the
// sole remover of throttled entries; producers only insert.
//

import (
	"context"
	"sync"
	"sync/atomic"
)

// SocketLocker is the per-RPC "socket lock" the pacer must acquire
// before touching a throttled message, so a concurrent user-context
// sender is never raced. TryLock mirrors the spec's requirement that
// the pacer back off rather than block when the lock is contended.
// *sync.Mutex satisfies this interface as of Go 1.18.
type SocketLocker interface {
	sync.Locker
	TryLock() bool
}

// PeerResolver looks up the [Peer] collaborator for a message, since
// the throttled list stores only messages, not full RPC objects.
type PeerResolver func(msg *Message) Peer

// LockResolver looks up the socket lock guarding a message's owning
// RPC.
type LockResolver func(msg *Message) SocketLocker

// Pacer drains [ThrottledList] entries in SRPT order whenever the
// [IdleClock] indicates the NIC queue has room.
type Pacer struct {
	Clock     *IdleClock
	Throttled *ThrottledList
	Sender    *DataSender
	Metrics   *Metrics
	Logger    Logger

	PeerOf PeerResolver
	LockOf LockResolver

	exit atomic.Bool
	done chan struct{}
}

// NewPacer creates a [Pacer]. PeerOf and LockOf let the pacer recover,
// for a throttled [Message], the collaborators [DataSender.Send]
// requires but the throttled list itself does not store.
func NewPacer(clock *IdleClock, throttled *ThrottledList, sender *DataSender, metrics *Metrics, logger Logger, peerOf PeerResolver, lockOf LockResolver) *Pacer {
	return &Pacer{
		Clock:     clock,
		Throttled: throttled,
		Sender:    sender,
		Metrics:   metrics,
		Logger:    logger,
		PeerOf:    peerOf,
		LockOf:    lockOf,
		done:      make(chan struct{}),
	}
}

// Run is the pacer's main loop. It returns when Shutdown is called.
// Callers spawn it in its own goroutine.
func (p *Pacer) Run(ctx context.Context) {
	defer close(p.done)
	for !p.exit.Load() {
		if p.Throttled.Empty() {
			before, _ := p.Clock.Peek()
			select {
			case <-p.Throttled.Doorbell():
			case <-ctx.Done():
				return
			}
			after, _ := p.Clock.Peek()
			if after > before {
				p.Metrics.PacerCycles.Add(float64(after - before))
			}
			continue
		}
		p.pacerXmit(ctx)
	}
}

// pacerXmit implements PacerXmit: spin until the NIC queue has room,
// take the head RPC, and drain it via the Data Sender, removing it from
// the throttled list once fully drained.
func (p *Pacer) pacerXmit(ctx context.Context) {
	for !p.exit.Load() {
		if !p.Clock.Backlogged() {
			break
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}

	msg := p.Throttled.Head()
	if msg == nil {
		return
	}

	lock := p.LockOf(msg)
	if !lock.TryLock() {
		// Owned by user context; release and make no progress this
		// iteration.
		return
	}
	defer lock.Unlock()

	peer := p.PeerOf(msg)
	p.Sender.Send(ctx, peer, msg)

	if msg.Drained() {
		p.Throttled.Remove(msg)
	}
}

// Shutdown sets pacer_exit and wakes the pacer, blocking until the
// pacer goroutine has actually exited or ctx expires.
func (p *Pacer) Shutdown(ctx context.Context) error {
	p.exit.Store(true)
	p.Throttled.wake()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
