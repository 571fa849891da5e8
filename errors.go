package homa

//
// Error kinds (§7). Per-packet send errors are reported through metrics
// only (see [Metrics]); these sentinels are only ever returned from
// initialization and allocation paths.
//

import "errors"

// ErrInvalid is returned by [Message.Init] when the requested length
// exceeds [MaxMessageLength].
var ErrInvalid = errors.New("homa: message length exceeds MaxMessageLength")

// ErrNoMemory is returned by [Message.Init], wrapping the allocator's
// own error, when its [BufferAllocator] fails a data-path allocation.
var ErrNoMemory = errors.New("homa: no memory for packet buffer")

// ErrNoBuffers is returned by [ControlSender] when its
// [BufferAllocator] fails a control-path allocation.
var ErrNoBuffers = errors.New("homa: no buffers for control packet")

// ErrFault is returned by [Message.Init] when copying payload bytes out
// of the caller-supplied reader fails.
var ErrFault = errors.New("homa: fault copying message payload")
