package mctppipeline

import (
	"context"
	"time"
)

// schedulerLoop runs the submission/retry scheduler. Each tick it runs
// two phases under the tag table mutex:
//
//	Phase A (sweep):   scan the 8 tag slots for actions whose deadline has
//	                    passed; retry them (bump Num and push them back to
//	                    the fragmenter) or, once Num has reached Max, free
//	                    the tag and fail them with CompletionRetryExhausted.
//	Phase B (promote):  while a tag is free and TAQ has a waiting action,
//	                    assign the lowest free tag, stamp Submitted, and
//	                    push the action to the fragmenter.
//
// A buffered wake channel lets the dispatcher (on response arrival,
// freeing a tag) and Submit (on new work) short-circuit the ThreadDelta
// tick instead of waiting out the full interval.
func (p *Pipeline) schedulerLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.ThreadDelta)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.wake:
		}
		if ctx.Err() != nil {
			return
		}
		p.schedulerSweep()
		p.schedulerPromote(ctx)
	}
}

func (p *Pipeline) wakeScheduler() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pipeline) schedulerSweep() {
	now := time.Now()
	p.tags.mu.Lock()
	defer p.tags.mu.Unlock()

	for tag, action := range p.tags.slots {
		if action == nil {
			continue
		}
		if now.Before(action.deadline()) {
			continue
		}

		if action.Num >= action.Max {
			p.tags.clearLocked(tag)
			p.completeAction(action, CompletionRetryExhausted)
			continue
		}

		action.Num++
		action.Submitted = now
		if !p.queues.tmq.TryPush(action) {
			// Fragmenter backed up; try again next sweep instead of
			// losing the tag slot.
			action.Num--
		}
	}
}

func (p *Pipeline) schedulerPromote(ctx context.Context) {
	for {
		p.tags.mu.Lock()
		tag := p.tags.lowestFreeLocked()
		if tag < 0 {
			p.tags.mu.Unlock()
			return
		}

		action, ok := p.queues.taq.TryPop()
		if !ok {
			p.tags.mu.Unlock()
			return
		}

		action.Tag = tag
		action.Num = 1
		action.Submitted = time.Now()
		p.tags.setLocked(tag, action)
		p.tags.mu.Unlock()

		if action.OnSubmitted != nil {
			action.OnSubmitted(action)
		}
		if !p.queues.tmq.TryPush(action) {
			p.tags.mu.Lock()
			p.tags.clearLocked(tag)
			p.tags.mu.Unlock()
			p.completeAction(action, CompletionTransportError)
		}
	}
}

// deadline returns the point by which a response must arrive before the
// scheduler retries or fails the action, derived from ActionDelta.
func (a *Action) deadline() time.Time {
	if a.Submitted.IsZero() {
		return time.Time{}
	}
	return a.Submitted.Add(a.actionDelta)
}
