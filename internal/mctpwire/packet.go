// Package mctpwire implements the DSP0236 base-transport wire format: the
// 4-byte packet header, the 64-byte baseline transmission unit, and the
// in-memory Message a run of packets reassembles into. Header encode/decode
// here hand-packs fields into a byte slice rather than reaching for
// encoding/binary struct tags, the same technique go-ublk's
// internal/uapi/marshal.go uses for its own kernel-ABI structs — bit
// fields smaller than a byte have no struct-tag representation in Go, so
// explicit shifting is the idiomatic choice either way.
package mctpwire

import "github.com/mctp-go/mctp-core/internal/constants"

// Packet is the fixed 68-byte wire record: a 4-byte header followed by a
// 64-byte baseline transmission unit.
type Packet [constants.PacketSize]byte

// Header carries the decoded fields of a packet's 4-byte header.
type Header struct {
	Version  uint8
	Dst      uint8
	Src      uint8
	SOM      bool
	EOM      bool
	Tag      uint8 // 0..7
	TagOwner bool
	Seq      uint8 // 0..3
}

// Decode extracts the header fields from the packet.
func (p *Packet) Decode() Header {
	b3 := p[3]
	return Header{
		Version:  p[0] & 0x0F,
		Dst:      p[1],
		Src:      p[2],
		SOM:      b3&0x80 != 0,
		EOM:      b3&0x40 != 0,
		Tag:      (b3 >> 3) & 0x07,
		TagOwner: b3&0x04 != 0,
		Seq:      b3 & 0x03,
	}
}

// Encode writes h into the packet's header bytes, leaving the payload
// untouched.
func (p *Packet) Encode(h Header) {
	p[0] = h.Version & 0x0F
	p[1] = h.Dst
	p[2] = h.Src

	var b3 uint8
	if h.SOM {
		b3 |= 0x80
	}
	if h.EOM {
		b3 |= 0x40
	}
	b3 |= (h.Tag & 0x07) << 3
	if h.TagOwner {
		b3 |= 0x04
	}
	b3 |= h.Seq & 0x03
	p[3] = b3
}

// Payload returns the 64-byte baseline transmission unit.
func (p *Packet) Payload() []byte {
	return p[constants.HeaderSize:]
}

// Reset zeroes the packet so a released slot never leaks stale bytes into
// its next use.
func (p *Packet) Reset() {
	*p = Packet{}
}
