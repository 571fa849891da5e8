// Command homasim drives a handful of outbound messages across a
// [homa.LoopbackTransport] pair and reports pacing statistics.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/montanaflynn/stats"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/homa-transport/homacore"
)

// simPeer is the minimal [homa.Peer] this simulation needs: a single
// remote endpoint with a fixed cutoff version and unscheduled priority.
type simPeer struct {
	dest string
}

func (p *simPeer) CutoffVersion() uint16        { return 1 }
func (p *simPeer) UnschedPriority(uint32) uint8 { return homa.MaxPriority - 1 }
func (p *simPeer) Route() homa.Route            { return homa.Route{Dest: p.dest} }

var _ homa.Peer = &simPeer{}

func main() {
	messageCount := flag.Int("messages", 20, "number of messages to simulate")
	minSize := flag.Int("min-size", 200, "minimum message size in bytes")
	maxSize := flag.Int("max-size", 30000, "maximum message size in bytes")
	linkMbps := flag.Int("link-mbps", 10000, "simulated link speed in Mbps")
	duration := flag.Duration("duration", 5*time.Second, "how long to let the pacer drain the queue")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	a, b, err := homa.NewLoopbackPair(log.Log)
	homa.Must0(err)
	defer a.Close()
	defer b.Close()

	var framesReceived int64
	go func() {
		for {
			frame, err := b.Recv(ctx)
			if err != nil {
				return
			}
			atomic.AddInt64(&framesReceived, 1)
			_ = frame
		}
	}()

	reg := prometheus.NewRegistry()
	cfg := homa.DefaultConfig()
	cfg.LinkMbps = *linkMbps

	var locks sync.Map // *homa.Message -> *sync.Mutex
	lockOf := func(msg *homa.Message) homa.SocketLocker {
		v, _ := locks.LoadOrStore(msg, &sync.Mutex{})
		return v.(*sync.Mutex)
	}
	peer := &simPeer{dest: "10.90.0.2:54321"}
	peerOf := func(msg *homa.Message) homa.Peer { return peer }

	hctx := homa.NewContext(cfg, homa.NewSystemClock(), a, homa.HeapAllocator{}, log.Log, peerOf, lockOf, homa.NewMetrics(reg))
	hctx.Start()
	defer hctx.Shutdown(context.Background())

	sizes := deterministicSizes(*messageCount, *minSize, *maxSize)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var remainingAtSubmit []float64

	for i, size := range sizes {
		msg, err := hctx.NewOutboundMessage(peer, bytes.NewReader(make([]byte, size)), uint32(size), peer.Route(), 54321, uint16(40000+i), uint64(i))
		homa.Must0(err)

		mu.Lock()
		remainingAtSubmit = append(remainingAtSubmit, float64(msg.RemainingBytes()))
		mu.Unlock()

		wg.Add(1)
		go func(msg *homa.Message) {
			defer wg.Done()
			lock := lockOf(msg)
			lock.Lock()
			hctx.Data.Send(ctx, peer, msg)
			lock.Unlock()
		}(msg)
	}
	wg.Wait()

	<-ctx.Done()

	mean, _ := stats.Mean(remainingAtSubmit)
	median, _ := stats.Median(remainingAtSubmit)
	p90, _ := stats.Percentile(remainingAtSubmit, 90)
	fmt.Printf("messages=%d mean_bytes=%.1f median_bytes=%.1f p90_bytes=%.1f throttled_len=%d frames_received=%d\n",
		len(sizes), mean, median, p90, hctx.Throttled.Len(), atomic.LoadInt64(&framesReceived))
}

// deterministicSizes returns n message sizes spread linearly between
// min and max, avoiding the forbidden Math.random()-style nondeterminism.
func deterministicSizes(n, min, max int) []int {
	out := make([]int, n)
	if n == 1 {
		out[0] = min
		return out
	}
	step := float64(max-min) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = min + int(float64(i)*step)
	}
	return out
}
