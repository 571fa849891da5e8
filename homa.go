package homa

//
// Homa Context (§3, §4.M): the process-wide state container that owns
// the clock, the throttled list, the pacer goroutine, and the
// configuration knobs, and wires components A-H together for callers.
//

import (
	"context"
	"sync"
)

// Config collects the process-wide configuration knobs named in §6.
type Config struct {
	// LinkMbps is the link speed used to derive cycles_per_kbyte.
	LinkMbps int

	// MaxNicQueueNs is the NIC queue tolerance, in nanoseconds, used to
	// derive max_nic_queue_cycles.
	MaxNicQueueNs int64

	// RTTBytes is the unscheduled-byte budget: min(length, RTTBytes).
	RTTBytes uint32

	// ThrottleMinBytes is the remaining-byte floor below which messages
	// bypass pacing.
	ThrottleMinBytes uint32

	// MaxPrio is the highest priority value in use (0..7).
	MaxPrio uint8

	// DontThrottle disables pacing entirely (HOMA_FLAG_DONT_THROTTLE).
	DontThrottle bool
}

// DefaultConfig returns the reference constants used throughout §8's
// worked examples.
func DefaultConfig() Config {
	return Config{
		LinkMbps:         10000,
		MaxNicQueueNs:    2_000_000,
		RTTBytes:         10000,
		ThrottleMinBytes: 1000,
		MaxPrio:          MaxPriority,
		DontThrottle:     false,
	}
}

// Context is the process-wide Homa sender state: the clock, the
// throttled list, the pacer, and every component constructed from them.
// The zero value is invalid; use [NewContext].
type Context struct {
	Config Config

	Clock     *IdleClock
	Throttled *ThrottledList
	Metrics   *Metrics
	Alloc     BufferAllocator

	Data    *DataSender
	Control *ControlSender
	Resend  *Retransmitter
	Pacer   *Pacer

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// NewContext allocates a [Context] wired per cfg. tx is the
// [IPTransmitter] every sender submits finished frames to; alloc is the
// [BufferAllocator]; peerOf/lockOf let the pacer recover per-message
// collaborators it cannot store on the throttled list itself. logger,
// metrics and alloc may be nil, in which case a [NullLogger], metrics
// from NewMetrics(nil) (registered with no registry) and a
// [HeapAllocator] are used.
func NewContext(cfg Config, clock Clock, tx IPTransmitter, alloc BufferAllocator, logger Logger, peerOf PeerResolver, lockOf LockResolver, metrics *Metrics) *Context {
	if logger == nil {
		logger = &NullLogger{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if alloc == nil {
		alloc = HeapAllocator{}
	}

	idle := NewIdleClock(clock, cfg.LinkMbps, cfg.MaxNicQueueNs)
	throttled := NewThrottledList(metrics)
	data := NewDataSender(idle, throttled, tx, metrics, logger, cfg.ThrottleMinBytes)
	data.DontThrottle = cfg.DontThrottle
	control := NewControlSender(alloc, tx, metrics, logger, cfg.MaxPrio)
	resend := NewRetransmitter(tx, metrics, logger, idle)
	pacer := NewPacer(idle, throttled, data, metrics, logger, peerOf, lockOf)

	return &Context{
		Config:    cfg,
		Clock:     idle,
		Throttled: throttled,
		Metrics:   metrics,
		Alloc:     alloc,
		Data:      data,
		Control:   control,
		Resend:    resend,
		Pacer:     pacer,
	}
}

// Start spawns the pacer goroutine. Calling Start more than once is a
// no-op.
func (c *Context) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true
	go c.Pacer.Run(ctx)
}

// Shutdown stops the pacer and does not return until it has actually
// exited, per §5's cancellation requirement.
func (c *Context) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	cancel := c.cancel
	c.mu.Unlock()
	if !started {
		return nil
	}
	defer cancel()
	return c.Pacer.Shutdown(ctx)
}

// NewOutboundMessage initializes a new [Message] using cfg's RTTBytes
// as the unscheduled-byte budget, per §3: unscheduled = min(length,
// RTTBytes).
func (c *Context) NewOutboundMessage(peer Peer, src interface {
	Read(p []byte) (n int, err error)
}, length uint32, dest Route, dport, sport uint16, id uint64) (*Message, error) {
	msg := NewMessage()
	unscheduled := length
	if unscheduled > c.Config.RTTBytes {
		unscheduled = c.Config.RTTBytes
	}
	if err := msg.Init(c.Alloc, peer, src, length, dest, dport, sport, id, unscheduled); err != nil {
		return nil, err
	}
	return msg, nil
}
