package mctpwire

import (
	"time"

	"github.com/mctp-go/mctp-core/internal/constants"
)

// Message is a fully reassembled (or pre-fragmentation) MCTP message:
// source and destination endpoints, the tag that correlates it to a
// request/response pair, its 7-bit message type, and up to 8192 bytes of
// payload. The type byte is never present in Buf — the reassembler strips
// it from the SOM packet's payload, and the fragmenter re-adds it when
// producing that same SOM packet on send.
type Message struct {
	Dst      uint8
	Src      uint8
	TagOwner bool
	Tag      uint8
	Type     uint8
	Created  time.Time

	Buf [constants.MaxMessageSize]byte
	Len int
}

// Payload returns the meaningful prefix of Buf.
func (m *Message) Payload() []byte {
	return m.Buf[:m.Len]
}

// Append copies p onto the end of the message buffer, growing Len. It is
// the reassembler's per-packet append step; callers are responsible for
// bounds checking since a conforming sender never exceeds MaxMessageSize
// by more than one BTU of slack the reassembler discards.
func (m *Message) Append(p []byte) {
	n := copy(m.Buf[m.Len:], p)
	m.Len += n
}

// Reset clears a message before it is returned to its pool, so a later
// Get never observes a stale Len or type from a previous tenant.
func (m *Message) Reset() {
	m.Dst = 0
	m.Src = 0
	m.TagOwner = false
	m.Tag = 0
	m.Type = 0
	m.Created = time.Time{}
	m.Len = 0
}
