package homa

import (
	"bytes"
	"errors"
	"testing"
)

type fakePeer struct {
	cutoff  uint16
	unsched uint8
	route   Route
}

func (p *fakePeer) CutoffVersion() uint16        { return p.cutoff }
func (p *fakePeer) UnschedPriority(uint32) uint8 { return p.unsched }
func (p *fakePeer) Route() Route                 { return p.route }

var _ Peer = &fakePeer{}

func TestMessageInitBoundaries(t *testing.T) {
	peer := &fakePeer{cutoff: 3, route: Route{Dest: "10.0.0.1:1"}}

	cases := []struct {
		name        string
		length      uint32
		wantPackets int
		wantErr     error
	}{
		{"empty message still gets one buffer", 0, 1, nil},
		{"single byte", 1, 1, nil},
		{"exactly one full packet", MaxDataPerPacket, 1, nil},
		{"one byte over a full packet needs a second buffer", MaxDataPerPacket + 1, 2, nil},
		{"largest allowed message", MaxMessageLength, int((MaxMessageLength + MaxDataPerPacket - 1) / MaxDataPerPacket), nil},
		{"one byte over the limit is rejected", MaxMessageLength + 1, 0, ErrInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewMessage()
			src := bytes.NewReader(make([]byte, tc.length))
			err := msg.Init(HeapAllocator{}, peer, src, tc.length, peer.Route(), 80, 90, 42, tc.length)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := msg.NumPackets(); got != tc.wantPackets {
				t.Fatalf("NumPackets() = %d, want %d", got, tc.wantPackets)
			}
			if msg.NextOffset != 0 {
				t.Fatalf("NextOffset should start at 0, got %d", msg.NextOffset)
			}
			if msg.Granted != tc.length {
				t.Fatalf("Granted should equal length when unscheduled == length, got %d want %d", msg.Granted, tc.length)
			}
		})
	}
}

func TestMessageAdvanceNextOvershoots(t *testing.T) {
	// Open Question 1: NextOffset intentionally overshoots Length on the
	// last short packet; NextPacket becomes nil and that is the drained
	// signal, not an error.
	peer := &fakePeer{route: Route{Dest: "x"}}
	msg := NewMessage()
	length := uint32(MaxDataPerPacket + 200)
	if err := msg.Init(HeapAllocator{}, peer, bytes.NewReader(make([]byte, length)), length, peer.Route(), 1, 2, 9, length); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	msg.AdvanceNext()
	if msg.NextOffset != MaxDataPerPacket {
		t.Fatalf("after first advance NextOffset = %d, want %d", msg.NextOffset, MaxDataPerPacket)
	}
	if msg.NextPacket() == nil {
		t.Fatal("second packet should still be available")
	}

	msg.AdvanceNext()
	if msg.NextOffset <= length {
		t.Fatalf("NextOffset should overshoot length=%d, got %d", length, msg.NextOffset)
	}
	if msg.NextPacket() != nil {
		t.Fatal("NextPacket should be nil once drained, even though NextOffset overshot")
	}
	if !msg.Drained() {
		t.Fatal("message should report drained once NextPacket is nil")
	}
	if got := msg.RemainingBytes(); got != 0 {
		t.Fatalf("RemainingBytes should saturate at 0 despite the overshoot, got %d", got)
	}
}

// failingAllocator always fails, simulating buffer-pool exhaustion.
type failingAllocator struct{}

func (failingAllocator) Alloc(size int) (*Packet, error) {
	return nil, errors.New("simulated allocator exhaustion")
}

var _ BufferAllocator = failingAllocator{}

func TestMessageInitAllocFailureReturnsErrNoMemory(t *testing.T) {
	peer := &fakePeer{route: Route{Dest: "x"}}
	msg := NewMessage()
	length := uint32(1000)

	err := msg.Init(failingAllocator{}, peer, bytes.NewReader(make([]byte, length)), length, peer.Route(), 1, 2, 9, length)
	if !errors.Is(err, ErrNoMemory) {
		t.Fatalf("expected ErrNoMemory, got %v", err)
	}
}

// shortReader always reports an error without returning any bytes,
// simulating a fault copying payload out of the caller-supplied source.
type shortReader struct{}

func (shortReader) Read(p []byte) (int, error) {
	return 0, errors.New("simulated read fault")
}

func TestMessageInitReadFailureReturnsErrFault(t *testing.T) {
	peer := &fakePeer{route: Route{Dest: "x"}}
	msg := NewMessage()
	length := uint32(1000)

	err := msg.Init(HeapAllocator{}, peer, shortReader{}, length, peer.Route(), 1, 2, 9, length)
	if !errors.Is(err, ErrFault) {
		t.Fatalf("expected ErrFault, got %v", err)
	}
}

func TestMessageReset(t *testing.T) {
	peer := &fakePeer{route: Route{Dest: "x"}}
	msg := NewMessage()
	length := uint32(5000)
	if err := msg.Init(HeapAllocator{}, peer, bytes.NewReader(make([]byte, length)), length, peer.Route(), 1, 2, 9, 1500); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	msg.AdvanceNext()
	msg.AdvanceNext()
	msg.Reset()

	if msg.NextOffset != 0 || msg.NextIndex() != 0 {
		t.Fatalf("Reset should rewind the send cursor, got offset=%d index=%d", msg.NextOffset, msg.NextIndex())
	}
	if msg.Granted != 1500 {
		t.Fatalf("Reset should recompute Granted = min(length, unscheduled), got %d", msg.Granted)
	}
	if msg.NumPackets() == 0 {
		t.Fatal("Reset must preserve packet buffers")
	}
}
