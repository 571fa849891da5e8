package homa

//
// Loopback Transport (§4.K): a gvisor userspace UDP stack pair wired
// directly to each other, so the Data Sender, Control Sender and
// Retransmitter can be exercised end to end without a real raw/UDP
// socket. Adapted from the teacher's gvisor.go; the link-emulation
// machinery that surrounded it (NIC, Frame, link delay/loss) has no
// equivalent here since a direct back-to-back wire is all an
// IPTransmitter needs.
//
// Adapted from https://github.com/WireGuard/wireguard-go
//
// SPDX-License-Identifier: MIT
//

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"time"

	"gvisor.dev/gvisor/pkg/bufferv2"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/adapters/gonet"
	"gvisor.dev/gvisor/pkg/tcpip/header"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv6"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/tcp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"
)

// loopbackMTU is generous enough for a full Homa data packet
// (MaxHeader + MaxDataPerPacket) plus the UDP/IP encapsulation.
const loopbackMTU = 2048

// tunnelPort is the fixed UDP port the two loopback stacks exchange
// whole Homa wire frames on. It is internal to the tunnel, unrelated
// to the homa-level SourcePort/DestPort carried inside the frame.
const tunnelPort = 54321

// gvisorStack is a TCP/IP stack in userspace. Seen from above, it lets
// one open TCP/UDP sockets; seen from below, it exchanges raw IP
// packets via its channel.Endpoint. The zero value is invalid; use
// [newGVisorStack].
type gvisorStack struct {
	closeOnce sync.Once
	closed    chan any

	endpoint  *channel.Endpoint
	ipAddress netip.Addr
	logger    Logger
	stack     *stack.Stack

	// forward, when set, is called with every raw IP packet read off
	// endpoint. It implements the point-to-point bridge to the other
	// side of a [LoopbackTransport] pair.
	forward func(payload []byte)
}

// bridgeNotify adapts a gvisorStack's outbound packets into repeated
// non-blocking drains, mirroring how the teacher's NIC plumbing used
// channel.Endpoint's WriteNotify callback to learn about new outbound
// packets without polling.
type bridgeNotify struct {
	gvs *gvisorStack
}

// WriteNotify implements channel.Notification.
func (n *bridgeNotify) WriteNotify() {
	gvs := n.gvs
	for {
		pktbuf := gvs.endpoint.Read()
		if pktbuf.IsNil() {
			return
		}
		view := pktbuf.ToView()
		pktbuf.DecRef()

		buffer := make([]byte, gvs.endpoint.MTU())
		count, err := view.Read(buffer)
		if err != nil {
			continue
		}
		if gvs.forward != nil {
			gvs.forward(buffer[:count])
		}
	}
}

func newGVisorStack(logger Logger, addr netip.Addr, mtu uint32) (*gvisorStack, error) {
	stackOptions := stack.Options{
		NetworkProtocols: []stack.NetworkProtocolFactory{
			ipv4.NewProtocol,
			ipv6.NewProtocol,
		},
		TransportProtocols: []stack.TransportProtocolFactory{
			tcp.NewProtocol,
			udp.NewProtocol,
		},
		HandleLocal: true,
	}

	gvs := &gvisorStack{
		closed:    make(chan any),
		endpoint:  channel.New(1024, mtu, ""),
		ipAddress: addr,
		logger:    logger,
		stack:     stack.New(stackOptions),
	}

	gvs.endpoint.AddNotify(&bridgeNotify{gvs: gvs})

	if err := gvs.stack.CreateNIC(1, gvs.endpoint); err != nil {
		return nil, errors.New(err.String())
	}

	protoAddr := tcpip.ProtocolAddress{
		Protocol:          ipv4.ProtocolNumber,
		AddressWithPrefix: tcpip.Address(addr.AsSlice()).WithPrefix(),
	}
	if err := gvs.stack.AddProtocolAddress(1, protoAddr, stack.AddressProperties{}); err != nil {
		return nil, errors.New(err.String())
	}
	gvs.stack.AddRoute(tcpip.Route{Destination: header.IPv4EmptySubnet, NIC: 1})

	logger.Infof("homa: loopback: ifconfig %s mtu %d", addr, mtu)
	return gvs, nil
}

// wireBridge makes every packet gvs writes appear as an inbound packet
// on peer, and vice versa, simulating a direct point-to-point cable
// between the two userspace stacks.
func wireBridge(gvs, peer *gvisorStack) {
	gvs.forward = func(payload []byte) {
		select {
		case <-peer.closed:
			return
		default:
		}
		pkb := stack.NewPacketBuffer(stack.PacketBufferOptions{Payload: bufferv2.MakeWithData(payload)})
		switch payload[0] >> 4 {
		case 4:
			peer.endpoint.InjectInbound(header.IPv4ProtocolNumber, pkb)
		case 6:
			peer.endpoint.InjectInbound(header.IPv6ProtocolNumber, pkb)
		}
	}
}

func (gvs *gvisorStack) close() error {
	gvs.closeOnce.Do(func() {
		close(gvs.closed)
		gvs.logger.Infof("homa: loopback: ifconfig %s down", gvs.ipAddress)
	})
	return nil
}

func gvisorFullAddr(addr netip.AddrPort) (tcpip.FullAddress, tcpip.NetworkProtocolNumber) {
	protoNumber := tcpip.NetworkProtocolNumber(ipv4.ProtocolNumber)
	if !addr.Addr().Is4() {
		protoNumber = ipv6.ProtocolNumber
	}
	return tcpip.FullAddress{
		NIC:  1,
		Addr: tcpip.Address(addr.Addr().AsSlice()),
		Port: addr.Port(),
	}, protoNumber
}

// LoopbackTransport implements [IPTransmitter] over a private userspace
// UDP tunnel between two [gvisorStack] instances. It is meant for tests
// and cmd/homasim, never for production traffic.
type LoopbackTransport struct {
	stack  *gvisorStack
	conn   *gonet.UDPConn
	remote netip.AddrPort
}

// NewLoopbackPair builds two userspace stacks wired directly to each
// other and returns one [LoopbackTransport] per side. Closing either
// side's Context should be followed by calling Close on both
// transports.
func NewLoopbackPair(logger Logger) (a, b *LoopbackTransport, err error) {
	if logger == nil {
		logger = &NullLogger{}
	}

	addrA := netip.MustParseAddr("10.90.0.1")
	addrB := netip.MustParseAddr("10.90.0.2")

	stackA, err := newGVisorStack(logger, addrA, loopbackMTU)
	if err != nil {
		return nil, nil, err
	}
	stackB, err := newGVisorStack(logger, addrB, loopbackMTU)
	if err != nil {
		stackA.close()
		return nil, nil, err
	}

	wireBridge(stackA, stackB)
	wireBridge(stackB, stackA)

	remoteA := netip.AddrPortFrom(addrB, tunnelPort)
	remoteB := netip.AddrPortFrom(addrA, tunnelPort)

	connA, err := gvisorListenUDP(stackA, addrA)
	if err != nil {
		stackA.close()
		stackB.close()
		return nil, nil, err
	}
	connB, err := gvisorListenUDP(stackB, addrB)
	if err != nil {
		stackA.close()
		stackB.close()
		return nil, nil, err
	}

	return &LoopbackTransport{stack: stackA, conn: connA, remote: remoteA},
		&LoopbackTransport{stack: stackB, conn: connB, remote: remoteB},
		nil
}

func gvisorListenUDP(gvs *gvisorStack, addr netip.Addr) (*gonet.UDPConn, error) {
	laddr, pn := gvisorFullAddr(netip.AddrPortFrom(addr, tunnelPort))
	return gonet.DialUDP(gvs.stack, &laddr, nil, pn)
}

// TransmitPacket implements [IPTransmitter]: it writes wire verbatim to
// the other side of the loopback pair. peer and pkt are accepted to
// satisfy the interface but otherwise unused: a point-to-point tunnel
// has exactly one possible destination.
func (lt *LoopbackTransport) TransmitPacket(ctx context.Context, peer Peer, pkt *Packet, wire []byte) error {
	select {
	case <-lt.stack.closed:
		return net.ErrClosed
	default:
	}
	udpAddr := net.UDPAddrFromAddrPort(lt.remote)
	_, err := lt.conn.WriteTo(wire, udpAddr)
	return err
}

// Recv blocks until the next whole Homa wire frame arrives from the
// remote side, or ctx is cancelled.
func (lt *LoopbackTransport) Recv(ctx context.Context) ([]byte, error) {
	type result struct {
		n   int
		err error
	}
	buf := make([]byte, loopbackMTU)
	ch := make(chan result, 1)
	go func() {
		n, _, err := lt.conn.ReadFrom(buf)
		ch <- result{n, err}
	}()
	select {
	case <-ctx.Done():
		lt.conn.SetReadDeadline(time.Now())
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		out := make([]byte, r.n)
		copy(out, buf[:r.n])
		return out, nil
	}
}

// Close tears down this side of the loopback pair.
func (lt *LoopbackTransport) Close() error {
	lt.conn.Close()
	return lt.stack.close()
}

var _ IPTransmitter = &LoopbackTransport{}
