package homa

import "testing"

func TestIdleClock(t *testing.T) {
	t.Run("RecomputeParams derives cycles_per_kbyte and max_nic_queue_cycles", func(t *testing.T) {
		clock := NewFakeClock(1_000_000) // 1GHz-equivalent
		ic := NewIdleClock(clock, 10000, 2_000_000)

		// 8 * 1_000_000 / 10000 = 800
		if got := ic.cyclesPerKByte.Load(); got != 800 {
			t.Fatalf("unexpected cyclesPerKByte: %d", got)
		}
		// 2_000_000 * 1_000_000 / 1_000_000 = 2_000_000
		if got := ic.MaxNicQueueCycles(); got != 2_000_000 {
			t.Fatalf("unexpected maxNicQueueCycles: %d", got)
		}
	})

	t.Run("Advance sets link_idle to max(now, link_idle) + cycles", func(t *testing.T) {
		clock := NewFakeClock(1_000_000)
		ic := NewIdleClock(clock, 8000, 1_000_000) // cyclesPerKByte = 1000

		ic.Advance(1000) // (1000+48)*1000/1000 = 1048 cycles
		_, linkIdle := ic.Peek()
		if linkIdle != 1048 {
			t.Fatalf("unexpected link_idle after first advance: %d", linkIdle)
		}

		clock.Advance(500) // now=500, still behind link_idle=1048
		ic.Advance(1000)
		_, linkIdle = ic.Peek()
		// now (500) < link_idle (1048), so base = link_idle: 1048+1048 = 2096
		if linkIdle != 2096 {
			t.Fatalf("unexpected link_idle after second advance: %d", linkIdle)
		}
	})

	t.Run("Advance jumps link_idle forward to now when the NIC has drained", func(t *testing.T) {
		clock := NewFakeClock(1_000_000)
		ic := NewIdleClock(clock, 8000, 1_000_000)

		ic.Advance(1000)
		clock.Advance(1_000_000) // far in the future, NIC definitely idle
		ic.Advance(1000)

		now, linkIdle := ic.Peek()
		if linkIdle != now+1048 {
			t.Fatalf("expected link_idle = now + cycles, got now=%d link_idle=%d", now, linkIdle)
		}
	})

	t.Run("Backlogged reports true only beyond tolerance", func(t *testing.T) {
		clock := NewFakeClock(1_000_000)
		ic := NewIdleClock(clock, 8000, 100) // max_nic_queue_cycles small

		ic.Advance(100000) // push link_idle far ahead
		if !ic.Backlogged() {
			t.Fatal("expected backlogged after a large advance with a tiny tolerance")
		}

		clock.Advance(10_000_000)
		if ic.Backlogged() {
			t.Fatal("expected not backlogged once now has caught up")
		}
	})
}
