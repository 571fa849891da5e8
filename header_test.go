package homa

import (
	"testing"

	"github.com/google/gopacket"
)

func TestDataHeaderRoundTrip(t *testing.T) {
	h := &DataHeader{
		SourcePort:    40001,
		DestPort:      54321,
		ID:            0xdeadbeefcafebabe,
		Type:          PacketTypeData,
		MessageLength: 123456,
		Offset:        2800,
		Unscheduled:   10000,
		CutoffVersion: 7,
		Retransmit:    true,
	}

	buf := gopacket.NewSerializeBuffer()
	if _, err := buf.AppendBytes(5); err != nil {
		t.Fatalf("AppendBytes failed: %v", err)
	}
	if err := h.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		t.Fatalf("SerializeTo failed: %v", err)
	}

	var parsed DataHeader
	if err := parsed.DecodeFromBytes(buf.Bytes()); err != nil {
		t.Fatalf("DecodeFromBytes failed: %v", err)
	}

	if parsed.SourcePort != h.SourcePort ||
		parsed.DestPort != h.DestPort ||
		parsed.ID != h.ID ||
		parsed.MessageLength != h.MessageLength ||
		parsed.Offset != h.Offset ||
		parsed.Unscheduled != h.Unscheduled ||
		parsed.CutoffVersion != h.CutoffVersion ||
		parsed.Retransmit != h.Retransmit {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, *h)
	}
	if len(parsed.Payload) != 5 {
		t.Fatalf("expected 5 payload bytes to survive decoding, got %d", len(parsed.Payload))
	}
}

func TestDataHeaderDecodeShort(t *testing.T) {
	var h DataHeader
	if err := h.DecodeFromBytes(make([]byte, dataHeaderLen-1)); err == nil {
		t.Fatal("expected ErrShortHeader on a truncated buffer")
	}
}

func TestControlHeaderRoundTripAndPadding(t *testing.T) {
	h := &ControlHeader{
		SourcePort: 1,
		DestPort:   2,
		ID:         99,
		Type:       PacketTypeGrant,
	}
	grant := &GrantPayload{Offset: 20000, Priority: 5}

	buf := gopacket.NewSerializeBuffer()
	if err := grant.SerializeTo(buf); err != nil {
		t.Fatalf("grant SerializeTo failed: %v", err)
	}
	if err := h.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		t.Fatalf("header SerializeTo failed: %v", err)
	}

	wire := buf.Bytes()
	if len(wire) != MaxHeader {
		t.Fatalf("control packets must be zero-padded to MaxHeader=%d, got %d", MaxHeader, len(wire))
	}

	var parsed ControlHeader
	if err := parsed.DecodeFromBytes(wire); err != nil {
		t.Fatalf("DecodeFromBytes failed: %v", err)
	}
	if parsed.SourcePort != h.SourcePort || parsed.DestPort != h.DestPort || parsed.ID != h.ID || parsed.Type != h.Type {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, *h)
	}

	parsedGrant, err := DecodeGrantPayload(parsed.Payload)
	if err != nil {
		t.Fatalf("DecodeGrantPayload failed: %v", err)
	}
	if parsedGrant.Offset != grant.Offset || parsedGrant.Priority != grant.Priority {
		t.Fatalf("grant payload mismatch: got %+v, want %+v", parsedGrant, grant)
	}

	for i := controlHeaderCommonLen + 5; i < len(wire); i++ {
		if wire[i] != 0 {
			t.Fatalf("expected zero padding at byte %d, got %d", i, wire[i])
		}
	}
}
