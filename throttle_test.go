package homa

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// msgWithRemaining builds a Message whose RemainingBytes() reports the
// given value, without going through Init: Length is set directly and
// NextOffset left at 0, which is enough for ThrottledList's ordering.
func msgWithRemaining(remaining uint32) *Message {
	return &Message{Length: remaining}
}

func TestThrottledListOrdersByAscendingRemainingBytes(t *testing.T) {
	tl := NewThrottledList(nil)

	order := []uint32{10000, 5000, 15000, 12000, 10000}
	msgs := make([]*Message, len(order))
	for i, remaining := range order {
		msgs[i] = msgWithRemaining(remaining)
		tl.Add(msgs[i])
	}

	got := make([]uint32, 0, len(order))
	for _, m := range tl.Snapshot() {
		got = append(got, m.RemainingBytes())
	}

	want := []uint32{5000, 10000, 10000, 12000, 15000}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestThrottledListAddIsIdempotent(t *testing.T) {
	tl := NewThrottledList(nil)
	msg := msgWithRemaining(1000)

	tl.Add(msg)
	tl.Add(msg)

	if got := tl.Len(); got != 1 {
		t.Fatalf("Add should be idempotent for an already-linked message, got len=%d", got)
	}
}

func TestThrottledListHeadAndRemove(t *testing.T) {
	tl := NewThrottledList(nil)
	if tl.Head() != nil {
		t.Fatal("Head of an empty list should be nil")
	}

	a := msgWithRemaining(2000)
	b := msgWithRemaining(1000)
	tl.Add(a)
	tl.Add(b)

	head := tl.Head()
	if head != b {
		t.Fatal("Head should return the shortest-remaining-bytes entry")
	}

	tl.Remove(b)
	if tl.Len() != 1 {
		t.Fatalf("Remove should unlink the entry, len=%d", tl.Len())
	}
	if tl.Head() != a {
		t.Fatal("Head should now return the remaining entry")
	}

	// Removing an already-unlinked message is a no-op.
	tl.Remove(b)
	if tl.Len() != 1 {
		t.Fatal("Remove of an unlinked message must not affect the list")
	}
}

func TestThrottledListDoorbellWakesOnAdd(t *testing.T) {
	tl := NewThrottledList(nil)
	select {
	case <-tl.Doorbell():
		t.Fatal("doorbell should not be ready before any Add")
	default:
	}

	tl.Add(msgWithRemaining(500))

	select {
	case <-tl.Doorbell():
	default:
		t.Fatal("doorbell should be ready after Add")
	}
}
