package homa

import "testing"

func TestPriorityTag(t *testing.T) {
	cases := []struct {
		priority uint8
		want     uint8
	}{
		{0, 1},
		{1, 0},
		{2, 2},
		{7, 7},
		{8, 7},  // out of range clamps to MaxPriority
		{255, 7}, // far out of range still clamps
	}

	for _, tc := range cases {
		if got := PriorityTag(tc.priority); got != tc.want {
			t.Errorf("PriorityTag(%d) = %d, want %d", tc.priority, got, tc.want)
		}
	}
}

func TestTagPacket(t *testing.T) {
	pkt := NewPacket(0)
	TagPacket(pkt, 1)
	if pkt.Priority != 0 {
		t.Fatalf("TagPacket(1) should write the swapped tag 0, got %d", pkt.Priority)
	}
	TagPacket(pkt, 3)
	if pkt.Priority != 3 {
		t.Fatalf("TagPacket(3) should write 3 unchanged, got %d", pkt.Priority)
	}
}
