package mctppipeline

import (
	"time"

	"github.com/mctp-go/mctp-core/internal/mctpwire"
)

// packetSlot is one link in an action's outbound packet chain, or a
// freestanding in-flight packet moving through the reader/reassembler
// stages. Chains are built by the fragmenter and walked by the socket
// writer; every slot returns to its pool as soon as the writer has
// written it, for request and response chains alike (a retry
// refragments the request into a fresh chain).
type packetSlot struct {
	packet  mctpwire.Packet
	arrived time.Time
	next    *packetSlot

	// owner links an outbound chain slot back to the action it belongs
	// to, so the socket writer can retire the action once the chain's
	// EOM packet has been written.
	owner *Action
}

func newPacketSlot() *packetSlot {
	return &packetSlot{}
}

func (s *packetSlot) reset() {
	s.packet.Reset()
	s.arrived = time.Time{}
	s.next = nil
	s.owner = nil
}

// DebugBytes exposes the slot's wire bytes for mctpqueue's -tags
// mctpdebug pool-integrity check: a packet slot's bytes must not change
// while it sits idle in the pool between release and reacquisition.
func (s *packetSlot) DebugBytes() []byte {
	return s.packet[:]
}
