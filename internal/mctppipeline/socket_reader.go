package mctppipeline

import (
	"context"
	"io"
	"time"

	"github.com/mctp-go/mctp-core/internal/mctpmetrics"
)

// socketReaderLoop reads fixed-size packets off the connection and hands
// them to the reassembler via RPQ. A read error or EOF stops the
// pipeline abnormally; a full RPQ drops the packet rather than blocking
// the only goroutine that can notice the connection has died.
func (p *Pipeline) socketReaderLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		slot, ok := p.pools.packets.Get(ctx)
		if !ok {
			return
		}
		slot.reset()

		if _, err := io.ReadFull(p.conn, slot.packet[:]); err != nil {
			p.pools.packets.Put(slot)
			if err != io.EOF && ctx.Err() == nil {
				p.cfg.Logger.Warnf("socket reader: read failed: %v", err)
			}
			p.stopWith(stopAbnormal)
			return
		}
		slot.arrived = time.Now()

		if !p.queues.rpq.TryPush(slot) {
			p.cfg.Observer.ObserveDrop(mctpmetrics.DropBackpressure)
			p.pools.packets.Put(slot)
		}
	}
}
