// Package mctppipeline implements the seven-stage MCTP packet pipeline:
// socket reader, packet reassembler, message dispatcher, packet
// fragmenter, socket writer, submission/retry scheduler, and completer,
// connected by bounded queues from internal/mctpqueue. It is grounded on
// go-ublk's internal/queue/runner.go, which drives a comparable
// multi-goroutine per-tag state machine over io_uring instead of a byte
// stream.
package mctppipeline

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mctp-go/mctp-core/internal/constants"
	"github.com/mctp-go/mctp-core/internal/mctperr"
	"github.com/mctp-go/mctp-core/internal/mctptransport"
)

type stopReason int32

const (
	stopNone stopReason = iota
	stopExternal
	stopAbnormal
)

// Pipeline owns one connection's worth of queues, pools, and stage
// goroutines. A new Pipeline is created per accepted or dialed
// connection; the supervisor (internal/mctpconn) is responsible for
// reconnecting and constructing a fresh one.
type Pipeline struct {
	cfg  Config
	conn mctptransport.Conn

	pools  *pipelinePools
	queues *pipelineQueues
	tags   *tagTable

	handlers *handlerTable

	wake          chan struct{}
	pktSeqCounter atomic.Uint32

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopRsn  atomic.Int32
	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a Pipeline bound to conn. Call Start to launch its stages.
func New(cfg Config, conn mctptransport.Conn) *Pipeline {
	cfg = withDefaults(cfg)
	return &Pipeline{
		cfg:      cfg,
		conn:     conn,
		pools:    newPipelinePools(cfg),
		queues:   newPipelineQueues(cfg),
		tags:     newTagTable(),
		handlers: &handlerTable{},
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
}

// SetHandler registers the handler invoked for inbound requests of
// msgType. Safe to call before or after Start.
func (p *Pipeline) SetHandler(msgType uint8, h Handler) {
	p.handlers.set(msgType, h)
}

// Start launches the seven stage goroutines. ctx bounds the pipeline's
// lifetime; cancel it (or call Stop) to tear the connection down.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	stages := []func(context.Context){
		p.socketReaderLoop,
		p.reassemblerLoop,
		p.dispatcherLoop,
		p.fragmenterLoop,
		p.socketWriterLoop,
		p.schedulerLoop,
		p.completerLoop,
	}
	p.wg.Add(len(stages))
	for i, stage := range stages {
		cpu := stageCPU(p.cfg.CPUAffinity, i)
		go func(fn func(context.Context), cpu int) {
			pinToCPU(cpu)
			fn(ctx)
		}(stage, cpu)
	}

	go func() {
		p.wg.Wait()
		p.queues.shutdownAll()
		p.pools.packets.Shutdown()
		p.pools.messages.Shutdown()
		p.pools.actions.Shutdown()

		// No stage is left to answer or retry the actions still parked in
		// the tag table or waiting in TAQ: retire them with
		// CompletionShutdown so their Done channels close.
		p.tags.mu.Lock()
		orphans := make([]*Action, 0, len(p.tags.slots))
		for tag, action := range p.tags.slots {
			if action != nil {
				orphans = append(orphans, action)
				p.tags.clearLocked(tag)
			}
		}
		p.tags.mu.Unlock()
		for a, ok := p.queues.taq.TryPop(); ok; a, ok = p.queues.taq.TryPop() {
			orphans = append(orphans, a)
		}
		for _, a := range orphans {
			a.CompletionCode, a.Completed = CompletionShutdown, time.Now()
			p.retireAction(a)
		}
		close(p.stopped)
	}()
}

// Stop requests an orderly shutdown and waits for every stage to exit.
func (p *Pipeline) Stop() {
	p.stopWith(stopExternal)
	<-p.stopped
}

// Stopped returns a channel closed once every stage goroutine has exited.
func (p *Pipeline) Stopped() <-chan struct{} {
	return p.stopped
}

// StopReason reports why the pipeline stopped (meaningless before it has).
func (p *Pipeline) StopReason() string {
	switch stopReason(p.stopRsn.Load()) {
	case stopExternal:
		return "external"
	case stopAbnormal:
		return "abnormal"
	default:
		return "none"
	}
}

func (p *Pipeline) stopWith(reason stopReason) {
	p.stopOnce.Do(func() {
		p.stopRsn.Store(int32(reason))
		if p.cancel != nil {
			p.cancel()
		}
		p.queues.shutdownAll()
		p.pools.packets.Shutdown()
		p.pools.messages.Shutdown()
		p.pools.actions.Shutdown()
	})
}

// SubmitRequest describes a new owned request to send.
type SubmitRequest struct {
	Dst, Src uint8
	Type     uint8
	Body     []byte
	UserData any

	// Retry is the number of resubmissions allowed after the original
	// send (a positive Retry gives Retry+1 attempts in all),
	// constants.RetryForever (-1) for unbounded retry, or
	// constants.RetryUseDefault (-2) or the zero value for Config.RetryMax.
	Retry int

	OnSubmitted func(*Action)
	OnCompleted func(*Action)
	OnFailed    func(*Action)
}

// resolveMax turns a SubmitRequest's Retry sentinel into the action.Max
// budget the scheduler compares action.Num against. Retry counts
// resubmissions after the original send, so the total transmission
// budget is retry+1 (retry=2 yields three transmissions: the original
// plus two retries, per the retry-to-failure scenario).
func resolveMax(retry, configDefault int) int {
	switch {
	case retry == constants.RetryForever:
		return math.MaxInt32
	case retry == constants.RetryUseDefault || retry == 0:
		return configDefault + 1
	case retry > 0:
		return retry + 1
	default:
		return configDefault + 1
	}
}

// Submit acquires a message and action from their pools, queues the
// action for the scheduler to assign a tag, and returns it immediately;
// the caller waits on Action.Done() for completion and must call Release
// once it has read the result.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (*Action, error) {
	msg, ok := p.pools.messages.Get(ctx)
	if !ok {
		return nil, mctperr.New("Submit", mctperr.CodeShutdown, "message pool unavailable")
	}
	msg.Reset()
	msg.Dst = req.Dst
	msg.Src = req.Src
	msg.TagOwner = true
	msg.Type = req.Type
	msg.Append(req.Body)

	action, ok := p.pools.actions.Get(ctx)
	if !ok {
		p.pools.messages.Put(msg)
		return nil, mctperr.New("Submit", mctperr.CodeShutdown, "action pool unavailable")
	}
	action.reset()
	action.Request = msg
	action.Created = time.Now()
	action.external = true
	action.owner = p
	action.actionDelta = p.cfg.ActionDelta
	action.Max = resolveMax(req.Retry, p.cfg.RetryMax)
	action.UserData = req.UserData
	action.OnSubmitted = req.OnSubmitted
	action.OnCompleted = req.OnCompleted
	action.OnFailed = req.OnFailed

	if !p.queues.taq.TryPush(action) {
		p.pools.messages.Put(msg)
		p.pools.actions.Put(action)
		return nil, mctperr.New("Submit", mctperr.CodeBackpressure, "submission queue full")
	}
	p.wakeScheduler()
	return action, nil
}
