package mctppipeline

import (
	"sync"
	"time"

	"github.com/mctp-go/mctp-core/internal/mctpwire"
)

// Action is the unit of work tracked end to end through the pipeline: an
// owned request, an optional response, the chain of outbound packets the
// fragmenter built for it, and the bookkeeping the scheduler needs to
// retry or retire it. It is pool-allocated and reset between uses, the
// same lifecycle go-ublk gives its in-flight I/O requests.
type Action struct {
	Request  *mctpwire.Message
	Response *mctpwire.Message

	head, tail *packetSlot

	Created   time.Time
	Submitted time.Time
	Completed time.Time

	Tag int

	// isResponse marks an action built by the dispatcher to carry a
	// locally generated response back to a remote requester. Response
	// actions fragment action.Response instead of action.Request and
	// never enter the tag table: the tag being echoed belongs to the
	// remote peer.
	isResponse bool

	// external marks an action handed out through Submit: the caller
	// owns it until it calls Pipeline.Release, so the completer must not
	// return it to the pool on retirement.
	external bool

	// owner is the pipeline that allocated this action from its pools,
	// recorded at Submit time so Release still returns it to the right
	// pools after a reconnect has moved the supervisor on to a new
	// pipeline and a new set of pools.
	owner *Pipeline

	actionDelta time.Duration

	// Num is the number of times this action has been submitted
	// (including the original send); Max is the submission budget
	// resolved from the caller's Retry sentinel at Submit time. The
	// scheduler retires the action once Num reaches Max without a
	// response, per spec.md invariant "action.num <= action.max".
	Num int
	Max int

	CompletionCode int

	UserData any

	OnSubmitted func(*Action)
	OnCompleted func(*Action)
	OnFailed    func(*Action)

	done     chan struct{}
	doneOnce sync.Once
}

// CompletionCode values. These are the only codes the pipeline assigns.
const (
	CompletionOK = 0

	CompletionRetryExhausted = -1
	CompletionShutdown       = -2
	CompletionTransportError = -3
)

func newAction() *Action {
	return &Action{done: make(chan struct{})}
}

// reset clears an action for reuse and hands it a fresh done channel so a
// previous waiter's closed channel can never be observed by the next
// caller to acquire this slot from the pool.
func (a *Action) reset() {
	a.Request = nil
	a.Response = nil
	a.head, a.tail = nil, nil
	a.Created = time.Time{}
	a.Submitted = time.Time{}
	a.Completed = time.Time{}
	a.Tag = -1
	a.isResponse = false
	a.external = false
	a.actionDelta = 0
	a.Num = 0
	a.Max = 0
	a.CompletionCode = 0
	a.UserData = nil
	a.OnSubmitted = nil
	a.OnCompleted = nil
	a.OnFailed = nil
	a.done = make(chan struct{})
	a.doneOnce = sync.Once{}
}

// appendPacket links slot onto the tail of the action's outbound chain.
func (a *Action) appendPacket(slot *packetSlot) {
	if a.head == nil {
		a.head = slot
		a.tail = slot
		return
	}
	a.tail.next = slot
	a.tail = slot
}

// markDone closes the completion channel exactly once. It is called by
// retireAction, which runs in the completer, inline when ACQ is full, and
// for the actions still pending when the pipeline shuts down.
func (a *Action) markDone() {
	a.doneOnce.Do(func() { close(a.done) })
}

// Release returns an external action to the pools of the pipeline that
// allocated it. Callers must not touch the action after calling Release.
func (a *Action) Release() {
	a.owner.releaseLocked(a)
}

// Done returns a channel closed when the action completes, fails, or the
// owning pipeline shuts down.
func (a *Action) Done() <-chan struct{} {
	return a.done
}

// Latency returns the round trip from Submitted to Completed. Zero if
// either timestamp is unset.
func (a *Action) Latency() time.Duration {
	if a.Submitted.IsZero() || a.Completed.IsZero() {
		return 0
	}
	return a.Completed.Sub(a.Submitted)
}
