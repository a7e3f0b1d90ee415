package mctppipeline

import (
	"context"

	"github.com/mctp-go/mctp-core/internal/constants"
	"github.com/mctp-go/mctp-core/internal/mctpmetrics"
	"github.com/mctp-go/mctp-core/internal/mctpwire"
)

// fragmenterLoop splits each action's message into a chain of BTU-sized
// packets and hands the chain to the socket writer. It consumes actions
// the scheduler has promoted (fresh sends and retries) as well as
// responses the dispatcher builds directly, so both paths share one
// fragmentation implementation.
func (p *Pipeline) fragmenterLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		action, ok := p.queues.tmq.Pop(ctx)
		if !ok {
			return
		}
		p.fragmentOne(action)
	}
}

func (p *Pipeline) fragmentOne(action *Action) {
	msg := action.Request
	if action.isResponse {
		msg = action.Response
	}
	if msg == nil {
		p.cfg.Logger.Warnf("fragmenter: action %d has no message to send", action.Tag)
		p.completeAction(action, CompletionTransportError)
		return
	}

	// DSP0236 embeds the message type as the first byte of the SOM
	// packet's payload, so the wire stream is one byte longer than the
	// application payload: [type][payload...].
	payload := msg.Payload()
	wireLen := 1 + len(payload)
	numPackets := ceilDiv(wireLen, constants.BTUSize)
	if numPackets == 0 {
		numPackets = 1
	}

	for i := 0; i < numPackets; i++ {
		slot, ok := p.pools.packets.Get(context.Background())
		if !ok {
			p.cfg.Logger.Errorf("fragmenter: packet pool exhausted/shutdown")
			return
		}
		slot.reset()
		slot.owner = action

		dst := slot.packet.Payload()
		if i == 0 {
			dst[0] = msg.Type
			end := constants.BTUSize - 1
			if end > len(payload) {
				end = len(payload)
			}
			copy(dst[1:], payload[:end])
		} else {
			start := (i * constants.BTUSize) - 1
			end := start + constants.BTUSize
			if end > len(payload) {
				end = len(payload)
			}
			copy(dst, payload[start:end])
		}

		seq := p.nextPktSeq()
		slot.packet.Encode(mctpwire.Header{
			Version:  constants.HeaderVersion,
			Dst:      msg.Dst,
			Src:      msg.Src,
			SOM:      i == 0,
			EOM:      i == numPackets-1,
			Tag:      uint8(action.Tag),
			TagOwner: msg.TagOwner,
			Seq:      seq,
		})

		action.appendPacket(slot)
	}

	if !p.queues.tpq.TryPush(action.head) {
		p.cfg.Observer.ObserveDrop(mctpmetrics.DropBackpressure)
		p.completeAction(action, CompletionTransportError)
		return
	}
}

// nextPktSeq returns the next 2-bit rolling sequence number. It is a
// single counter shared across every action on the connection rather
// than reset per-message or per-tag.
func (p *Pipeline) nextPktSeq() uint8 {
	v := p.pktSeqCounter.Add(1)
	return uint8(v & 0x03)
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
