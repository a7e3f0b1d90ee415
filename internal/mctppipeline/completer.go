package mctppipeline

import (
	"context"
	"time"
)

// completerLoop drains ACQ, retiring each action: recording its outcome,
// invoking the caller's completion callback, writing a best-effort audit
// record, and returning its messages and itself to their pools.
func (p *Pipeline) completerLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		action, ok := p.queues.acq.Pop(ctx)
		if !ok {
			return
		}
		p.retireAction(action)
	}
}

// completeAction marks action finished with code and routes it to the
// completer. Called from any stage that determines an action's outcome
// (dispatcher on response match, writer on response sent, scheduler on
// retry exhaustion). Falls back to retiring inline if ACQ is full so a
// waiting caller is never left hanging on a backpressured queue.
func (p *Pipeline) completeAction(action *Action, code int) {
	action.CompletionCode = code
	action.Completed = time.Now()
	if !p.queues.acq.TryPush(action) {
		p.cfg.Logger.Warnf("completer: ACQ full, retiring action inline")
		p.retireAction(action)
	}
}

func (p *Pipeline) retireAction(action *Action) {
	success := action.CompletionCode == CompletionOK

	latencyNs := uint64(0)
	if l := action.Latency(); l > 0 {
		latencyNs = uint64(l)
	}
	p.cfg.Observer.ObserveActionCompleted(latencyNs, success)

	if p.cfg.AuditSink != nil {
		p.cfg.AuditSink.Record(auditRecordFor(action))
	}

	if success && action.OnCompleted != nil {
		action.OnCompleted(action)
	} else if !success && action.OnFailed != nil {
		action.OnFailed(action)
	}

	action.markDone()

	// External actions (created via Submit) are read by their caller
	// after Done() fires; returning them to the pool here would race
	// with that read. The caller must call Pipeline.Release once it has
	// copied out what it needs. Internally generated response actions
	// have no external reader and free themselves immediately.
	if !action.external {
		p.releaseLocked(action)
	}
}

// releaseLocked returns an action's messages and itself to their pools.
// Safe to call once nothing outside the pipeline still references action.
func (p *Pipeline) releaseLocked(action *Action) {
	if action.Request != nil {
		p.pools.messages.Put(action.Request)
	}
	if action.Response != nil {
		p.pools.messages.Put(action.Response)
	}
	p.pools.actions.Put(action)
}

// Release returns an external action (one obtained from Submit) to its
// pool. Callers must not touch action after calling Release.
func (p *Pipeline) Release(action *Action) {
	action.Release()
}

func auditRecordFor(action *Action) AuditRecord {
	rec := AuditRecord{
		Tag:            action.Tag,
		TagOwner:       !action.isResponse,
		CompletionCode: action.CompletionCode,
		Submitted:      action.Submitted,
		Completed:      action.Completed,
	}
	if action.Request != nil {
		rec.Dst, rec.Src, rec.Type = action.Request.Dst, action.Request.Src, action.Request.Type
	} else if action.Response != nil {
		rec.Dst, rec.Src, rec.Type = action.Response.Dst, action.Response.Src, action.Response.Type
	}
	return rec
}
