package mctppipeline

import (
	"github.com/mctp-go/mctp-core/internal/mctpqueue"
	"github.com/mctp-go/mctp-core/internal/mctpwire"
)

type pipelinePools struct {
	packets  *mctpqueue.Pool[*packetSlot]
	messages *mctpqueue.Pool[*mctpwire.Message]
	actions  *mctpqueue.Pool[*Action]
}

func newPipelinePools(cfg Config) *pipelinePools {
	return &pipelinePools{
		packets:  mctpqueue.NewPool[*packetSlot](cfg.PacketPoolCap, func() *packetSlot { return newPacketSlot() }),
		messages: mctpqueue.NewPool[*mctpwire.Message](cfg.MessagePoolCap, func() *mctpwire.Message { return &mctpwire.Message{} }),
		actions:  mctpqueue.NewPool[*Action](cfg.ActionPoolCap, func() *Action { return newAction() }),
	}
}

// pipelineQueues holds the bounded FIFOs connecting the seven stages:
//
//	rpq  reader      -> reassembler   (*packetSlot, raw inbound packets)
//	rmq  reassembler -> dispatcher    (*mctpwire.Message, reassembled inbound messages)
//	taq  Submit      -> scheduler     (*Action, actions awaiting a tag)
//	tmq  dispatcher/scheduler -> fragmenter (*Action, actions ready to fragment)
//	tpq  fragmenter   -> writer       (*packetSlot, chains ready to send)
//	acq  any stage via completeAction -> completer (*Action, actions to retire)
type pipelineQueues struct {
	rpq *mctpqueue.Queue[*packetSlot]
	rmq *mctpqueue.Queue[*mctpwire.Message]
	taq *mctpqueue.Queue[*Action]
	tmq *mctpqueue.Queue[*Action]
	tpq *mctpqueue.Queue[*packetSlot]
	acq *mctpqueue.Queue[*Action]
}

func newPipelineQueues(cfg Config) *pipelineQueues {
	return &pipelineQueues{
		rpq: mctpqueue.New[*packetSlot](cfg.RPQCap),
		rmq: mctpqueue.New[*mctpwire.Message](cfg.RMQCap),
		taq: mctpqueue.New[*Action](cfg.TAQCap),
		tmq: mctpqueue.New[*Action](cfg.TMQCap),
		tpq: mctpqueue.New[*packetSlot](cfg.TPQCap),
		acq: mctpqueue.New[*Action](cfg.ACQCap),
	}
}

func (q *pipelineQueues) shutdownAll() {
	q.rpq.Shutdown()
	q.rmq.Shutdown()
	q.taq.Shutdown()
	q.tmq.Shutdown()
	q.tpq.Shutdown()
	q.acq.Shutdown()
}
