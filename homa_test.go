package homa

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestContextSendsAMessageEndToEnd(t *testing.T) {
	peer := &fakePeer{route: Route{Dest: "x"}, unsched: 4}
	tx := &fakeTransmitter{}

	cfg := DefaultConfig()
	cfg.LinkMbps = 10000
	cfg.RTTBytes = 10000

	var locks sync.Map
	lockOf := func(msg *Message) SocketLocker {
		v, _ := locks.LoadOrStore(msg, &sync.Mutex{})
		return v.(*sync.Mutex)
	}
	peerOf := func(*Message) Peer { return peer }

	hctx := NewContext(cfg, NewFakeClock(1_000_000), tx, HeapAllocator{}, &NullLogger{}, peerOf, lockOf, NewMetrics(prometheus.NewRegistry()))
	hctx.Start()
	defer hctx.Shutdown(context.Background())

	msg, err := hctx.NewOutboundMessage(peer, bytes.NewReader(make([]byte, 3000)), 3000, peer.Route(), 1, 2, 1)
	if err != nil {
		t.Fatalf("NewOutboundMessage failed: %v", err)
	}

	lock := lockOf(msg)
	lock.Lock()
	hctx.Data.Send(context.Background(), peer, msg)
	lock.Unlock()

	if len(tx.sent) != 3 {
		t.Fatalf("expected 3 packets sent for a 3000-byte message, got %d", len(tx.sent))
	}
}

func TestContextStartIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	hctx := NewContext(cfg, NewFakeClock(1_000_000), &fakeTransmitter{}, HeapAllocator{}, &NullLogger{},
		func(*Message) Peer { return nil },
		func(*Message) SocketLocker { return &sync.Mutex{} },
		NewMetrics(prometheus.NewRegistry()))

	hctx.Start()
	hctx.Start() // must not spawn a second pacer goroutine or panic

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hctx.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestContextShutdownBeforeStartIsANoop(t *testing.T) {
	cfg := DefaultConfig()
	hctx := NewContext(cfg, NewFakeClock(1_000_000), &fakeTransmitter{}, HeapAllocator{}, &NullLogger{},
		func(*Message) Peer { return nil },
		func(*Message) SocketLocker { return &sync.Mutex{} },
		NewMetrics(prometheus.NewRegistry()))

	if err := hctx.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown before Start should be a no-op, got %v", err)
	}
}
