package mctpwire

import "testing"

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Header{
		{Version: 1, Dst: 0x02, Src: 0x01, SOM: true, EOM: true, Tag: 0, TagOwner: true, Seq: 0},
		{Version: 1, Dst: 0xFF, Src: 0x01, SOM: false, EOM: false, Tag: 7, TagOwner: false, Seq: 3},
		{Version: 1, Dst: 0x08, Src: 0x09, SOM: true, EOM: false, Tag: 5, TagOwner: true, Seq: 2},
	}

	for _, h := range cases {
		var p Packet
		p.Encode(h)
		got := p.Decode()
		if got != h {
			t.Errorf("round-trip mismatch: encoded %+v, decoded %+v", h, got)
		}
	}
}

func TestDecodeIgnoresReservedBits(t *testing.T) {
	var p Packet
	p[0] = 0xF1 // reserved nibble set, version nibble = 1
	h := p.Decode()
	if h.Version != 1 {
		t.Errorf("expected version 1, got %d", h.Version)
	}
}

func TestPayloadIsSixtyFourBytes(t *testing.T) {
	var p Packet
	if len(p.Payload()) != 64 {
		t.Errorf("expected 64-byte payload, got %d", len(p.Payload()))
	}
}

func TestResetClearsPacket(t *testing.T) {
	var p Packet
	p.Encode(Header{Version: 1, Dst: 9, Src: 8, SOM: true, EOM: true, Tag: 3, TagOwner: true, Seq: 1})
	copy(p.Payload(), []byte{1, 2, 3})

	p.Reset()

	for i, b := range p {
		if b != 0 {
			t.Fatalf("expected packet to be all zero after Reset, byte %d = %d", i, b)
		}
	}
}
