package mctppipeline

import (
	"context"
	"sync"

	"github.com/mctp-go/mctp-core/internal/mctpmetrics"
	"github.com/mctp-go/mctp-core/internal/mctpwire"
)

// Handler processes an inbound request message and produces a response
// body. A nil response suppresses a reply (valid for fire-and-forget
// message types).
type Handler func(ctx context.Context, req *mctpwire.Message) ([]byte, error)

type handlerTable struct {
	mu       sync.RWMutex
	handlers [256]Handler
}

func (t *handlerTable) set(msgType uint8, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[msgType] = h
}

func (t *handlerTable) get(msgType uint8) Handler {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handlers[msgType]
}

// dispatcherLoop routes reassembled messages: inbound requests go to the
// registered Handler and the reply is fragmented straight back out;
// inbound responses are matched against the tag table and retire the
// waiting action.
func (p *Pipeline) dispatcherLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		msg, ok := p.queues.rmq.Pop(ctx)
		if !ok {
			return
		}
		if msg.TagOwner {
			p.dispatchRequest(ctx, msg)
		} else {
			p.dispatchResponse(msg)
		}
	}
}

func (p *Pipeline) dispatchRequest(ctx context.Context, msg *mctpwire.Message) {
	h := p.handlers.get(msg.Type)
	if h == nil {
		p.cfg.Logger.Debugf("dispatcher: no handler for message type %d", msg.Type)
		p.pools.messages.Put(msg)
		return
	}

	body, err := h(ctx, msg)
	if err != nil {
		p.cfg.Logger.Warnf("dispatcher: handler for type %d returned error: %v", msg.Type, err)
	}
	dst, src, tag, msgType := msg.Src, msg.Dst, msg.Tag, msg.Type
	p.pools.messages.Put(msg)

	if body == nil {
		return
	}

	resp, ok := p.pools.messages.Get(ctx)
	if !ok {
		return
	}
	resp.Reset()
	resp.Dst = dst
	resp.Src = src
	resp.TagOwner = false
	resp.Tag = tag
	resp.Type = msgType
	resp.Append(body)

	action, ok := p.pools.actions.Get(ctx)
	if !ok {
		return
	}
	action.reset()
	action.Response = resp
	action.isResponse = true
	action.Tag = int(tag)

	if !p.queues.tmq.TryPush(action) {
		p.cfg.Observer.ObserveDrop(mctpmetrics.DropBackpressure)
		p.pools.messages.Put(resp)
		p.pools.actions.Put(action)
	}
}

func (p *Pipeline) dispatchResponse(msg *mctpwire.Message) {
	p.tags.mu.Lock()
	action := p.tags.getLocked(int(msg.Tag))
	if action != nil {
		p.tags.clearLocked(int(msg.Tag))
	}
	p.tags.mu.Unlock()

	if action == nil {
		p.cfg.Logger.Debugf("dispatcher: response for unowned tag %d discarded", msg.Tag)
		p.pools.messages.Put(msg)
		return
	}

	action.Response = msg
	p.completeAction(action, CompletionOK)
	p.wakeScheduler()
}
