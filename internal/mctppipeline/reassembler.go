package mctppipeline

import (
	"context"

	"github.com/mctp-go/mctp-core/internal/constants"
	"github.com/mctp-go/mctp-core/internal/mctpmetrics"
	"github.com/mctp-go/mctp-core/internal/mctpwire"
)

// reassemblySlot is one of the 8 tag-indexed in-process reassembly
// entries. expected persists independently of msg so a run of non-SOM
// drops on an otherwise idle tag stays dropped until the next SOM
// resynchronizes it, matching "dropped until a fresh SOM arrives."
type reassemblySlot struct {
	msg      *mctpwire.Message
	expected uint8
}

// reassemblerLoop rebuilds inbound messages from the packet stream and
// hands completed ones to the dispatcher via RMQ. It implements the ten
// numbered steps of the packet-reader specification verbatim, over a
// single 8-entry table (one per tag value) shared by both tag-owner
// directions — a request stream and a response stream can legitimately
// share a tag value, which is exactly what step 5's tag-owner check
// below exists to police.
//
// Open question resolution: the resync branch of step 2 sets `expected`
// to the arriving SOM's own sequence number and then unconditionally
// advances it by one at step 9, so the next expected sequence after a
// resync is observed+1, not observed. See TestReassemblerResync* in
// reassembler_test.go.
func (p *Pipeline) reassemblerLoop(ctx context.Context) {
	defer p.wg.Done()
	var table [constants.NumTags]reassemblySlot

	for {
		pkt, ok := p.queues.rpq.Pop(ctx)
		if !ok {
			for i := range table {
				if table[i].msg != nil {
					p.pools.messages.Put(table[i].msg)
					table[i].msg = nil
				}
			}
			return
		}
		p.reassembleOne(ctx, &table, pkt)
	}
}

func (p *Pipeline) reassembleOne(ctx context.Context, table *[constants.NumTags]reassemblySlot, pkt *packetSlot) {
	defer func() {
		pkt.reset()
		p.pools.packets.Put(pkt)
	}()

	h := pkt.packet.Decode()

	// Step 1: reject anything but the one version this core speaks.
	if h.Version != constants.HeaderVersion {
		p.cfg.Observer.ObserveDrop(mctpmetrics.DropVersion)
		return
	}

	entry := &table[h.Tag]

	// Step 2: a sequence mismatch evicts whatever partial message is in
	// flight for this tag. A non-SOM packet is then dropped outright,
	// leaving `expected` untouched so every following non-SOM packet on
	// this tag keeps missing until a fresh SOM resyncs it. A SOM packet
	// is kept and resyncs `expected` to its own sequence number, then
	// falls through to the duplicate-SOM and reassembly steps below.
	if h.Seq != entry.expected {
		p.cfg.Observer.ObserveDrop(mctpmetrics.DropSeqnum)
		if entry.msg != nil {
			p.pools.messages.Put(entry.msg)
			entry.msg = nil
		}
		if !h.SOM {
			return
		}
		entry.expected = h.Seq
	}

	// Step 3: a second SOM before the first message's EOM abandons it.
	if h.SOM && entry.msg != nil {
		p.cfg.Observer.ObserveDrop(mctpmetrics.DropNoEOM)
		p.pools.messages.Put(entry.msg)
		entry.msg = nil
	}

	// Step 4: a continuation packet with nothing in flight to continue.
	if !h.SOM && entry.msg == nil {
		p.cfg.Observer.ObserveDrop(mctpmetrics.DropNoSOM)
		return
	}

	// Step 5: a continuation packet must carry the same tag-owner as the
	// message it is extending.
	if !h.SOM && entry.msg.TagOwner != h.TagOwner {
		p.cfg.Observer.ObserveDrop(mctpmetrics.DropWrongTO)
		p.pools.messages.Put(entry.msg)
		entry.msg = nil
		return
	}

	payload := pkt.packet.Payload()

	if h.SOM {
		// Step 6: the SOM packet's first payload byte is the message
		// type; the remaining 63 bytes start the body.
		msg, ok := p.pools.messages.Get(ctx)
		if !ok {
			return
		}
		msg.Reset()
		msg.Dst = h.Dst
		msg.Src = h.Src
		msg.TagOwner = h.TagOwner
		msg.Tag = h.Tag
		msg.Type = payload[0]
		msg.Append(payload[1:])
		entry.msg = msg
	} else {
		// Step 7: every other packet contributes its full BTU.
		entry.msg.Append(payload)
	}

	// Step 8: EOM completes and clears the slot.
	if h.EOM {
		p.finishMessage(entry.msg)
		entry.msg = nil
	}

	// Step 9: always advance past the sequence number just consumed.
	entry.expected = (h.Seq + 1) & 0x03
}

func (p *Pipeline) finishMessage(msg *mctpwire.Message) {
	p.cfg.Observer.ObserveMessage()
	if !p.queues.rmq.TryPush(msg) {
		p.cfg.Observer.ObserveDrop(mctpmetrics.DropBackpressure)
		p.pools.messages.Put(msg)
	}
}
