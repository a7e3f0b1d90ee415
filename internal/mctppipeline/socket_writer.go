package mctppipeline

import (
	"context"
)

// socketWriterLoop walks each outbound packet chain the fragmenter built
// and writes it to the connection in order. A response chain completes
// its action once written; a request chain leaves its action parked in
// the tag table awaiting a response or retry timeout, and only frees its
// packet slots back to the pool.
func (p *Pipeline) socketWriterLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		head, ok := p.queues.tpq.Pop(ctx)
		if !ok {
			return
		}
		p.writeChain(head)
	}
}

func (p *Pipeline) writeChain(head *packetSlot) {
	var action *Action
	for slot := head; slot != nil; {
		if err := p.writeFull(slot.packet[:]); err != nil {
			p.cfg.Logger.Warnf("socket writer: write failed: %v", err)
			p.stopWith(stopAbnormal)
			return
		}
		action = slot.owner
		next := slot.next
		slot.reset()
		p.pools.packets.Put(slot)
		slot = next
	}

	if action == nil {
		return
	}
	// The chain just walked off to the free pool was action.head..tail;
	// clear both so a parked request action doesn't carry a dangling
	// pointer into the pool across its next retry.
	action.head, action.tail = nil, nil
	if action.isResponse {
		p.completeAction(action, CompletionOK)
	}
	// Request actions remain parked in the tag table; the scheduler
	// retires them when a response arrives via the dispatcher or when
	// retries are exhausted.
}

func (p *Pipeline) writeFull(buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := p.conn.Write(buf[total:])
		if err != nil {
			return err
		}
		total += n
	}
	return nil
}
