package mctppipeline

import (
	"testing"
	"time"
)

// armExpiredAction seats an action in tag slot 0 with a deadline already
// in the past, so the very next schedulerSweep treats it as due.
func armExpiredAction(p *Pipeline, num, max int) *Action {
	action, _ := p.pools.actions.TryGet()
	action.reset()
	action.owner = p
	action.Tag = 0
	action.Num = num
	action.Max = max
	action.actionDelta = time.Millisecond
	action.Submitted = time.Now().Add(-time.Hour)
	p.tags.setLocked(0, action)
	return action
}

func TestSchedulerSweepRetriesExactlyMaxTimes(t *testing.T) {
	p, _ := newTestPipeline(t)
	action := armExpiredAction(p, 1, 3)

	for attempt := 2; attempt <= 3; attempt++ {
		p.schedulerSweep()
		if action.Num != attempt {
			t.Fatalf("expected Num to reach %d after sweep, got %d", attempt, action.Num)
		}
		if p.tags.getLocked(0) != action {
			t.Fatalf("expected tag 0 to remain assigned to the in-flight action before exhaustion")
		}
		// schedulerSweep only bumps Num and resubmits to TMQ; pull the
		// resubmitted action back off so the next sweep observes an
		// already-due deadline again instead of TMQ backpressure.
		if _, ok := p.queues.tmq.TryPop(); !ok {
			t.Fatalf("expected attempt %d to be pushed to TMQ for refragmenting", attempt)
		}
		action.Submitted = time.Now().Add(-time.Hour)
	}

	// Num has now reached Max (3): the next sweep must retire the action
	// rather than attempt a fourth send.
	p.schedulerSweep()
	if p.tags.getLocked(0) != nil {
		t.Fatal("expected the tag to be freed once Num reached Max")
	}
	retired, ok := p.queues.acq.TryPop()
	if !ok {
		t.Fatal("expected the exhausted action to be routed to the completer")
	}
	if retired.CompletionCode != CompletionRetryExhausted {
		t.Fatalf("expected CompletionRetryExhausted, got %d", retired.CompletionCode)
	}
	if retired.Num != 3 {
		t.Fatalf("expected exactly 3 total attempts (Max), got %d", retired.Num)
	}
}

func TestSchedulerPromoteAssignsLowestFreeTagAndInitializesNum(t *testing.T) {
	p, _ := newTestPipeline(t)

	action, _ := p.pools.actions.TryGet()
	action.reset()
	action.owner = p
	action.Max = 5
	action.actionDelta = time.Second
	if !p.queues.taq.TryPush(action) {
		t.Fatal("expected TAQ push to succeed")
	}

	p.schedulerPromote(nil)

	if action.Tag != 0 {
		t.Fatalf("expected the first promoted action to take tag 0, got %d", action.Tag)
	}
	if action.Num != 1 {
		t.Fatalf("expected Num to be initialized to 1 on promotion, got %d", action.Num)
	}
	if p.tags.getLocked(0) != action {
		t.Fatal("expected tag table to reflect the promotion")
	}
	if _, ok := p.queues.tmq.TryPop(); !ok {
		t.Fatal("expected the promoted action to be pushed to TMQ")
	}
}
