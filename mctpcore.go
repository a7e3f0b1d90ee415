// Package mctpcore is the public entry point to the MCTP/DSP0236
// transport-core library: a connection supervisor that drives the
// seven-stage packet pipeline (internal/mctppipeline) over a TCP
// transport (internal/mctptransport), exposing submission, handler
// registration, and lifecycle control.
//
// The shape of this file — a public Params/Config struct translated into
// an internal one, a single constructor that wires dependent internals
// together and hands back a live handle — is grounded on go-ublk's own
// backend.go: DeviceParams converted by convertToCtrlParams into
// ctrl.DeviceParams before CreateAndServe ever touches the kernel-facing
// layer. Here Config is converted by newPipelineConfig into
// mctppipeline.Config before the supervisor ever touches a socket.
package mctpcore

import (
	"context"
	"fmt"
	"time"

	"github.com/mctp-go/mctp-core/internal/mctpaudit"
	"github.com/mctp-go/mctp-core/internal/mctpconn"
	"github.com/mctp-go/mctp-core/internal/mctplog"
	"github.com/mctp-go/mctp-core/internal/mctpmetrics"
	"github.com/mctp-go/mctp-core/internal/mctppipeline"
	"github.com/mctp-go/mctp-core/internal/mctptransport"
)

// Re-exported types so callers never need to import the internal
// packages directly.
type (
	// Action is an in-flight submission: request, optional response,
	// retry state, and completion signaling.
	Action = mctppipeline.Action
	// SubmitRequest describes a new outbound request.
	SubmitRequest = mctppipeline.SubmitRequest
	// Handler processes an inbound request and produces a response body.
	Handler = mctppipeline.Handler
	// Metrics exposes the pipeline's running counters.
	Metrics = mctpmetrics.Metrics
	// MetricsSnapshot is a point-in-time copy of Metrics.
	MetricsSnapshot = mctpmetrics.Snapshot
	// Observer receives metrics events as they occur.
	Observer = mctpmetrics.Observer
)

// Retry sentinels for SubmitRequest.Retry, re-exported from constants.
const (
	RetryForever = -1
	RetryDefault = -2
	CompletionOK = mctppipeline.CompletionOK
)

// Mode selects whether an Instance accepts inbound connections or dials
// one outbound connection.
type Mode int

const (
	ModeServer Mode = iota
	ModeClient
)

// Config configures an Instance. Every field has a zero-value-means-
// "use the library default" fallback, applied the same way go-ublk's
// DefaultParams seeds zero fields of a caller-supplied DeviceParams.
type Config struct {
	Mode    Mode
	Address string // "host:port" to listen on (server) or dial (client)

	RetryMax    int
	ActionDelta time.Duration
	ThreadDelta time.Duration

	CPUAffinity []int

	PacketPoolCap, MessagePoolCap, ActionPoolCap int
	RPQCap, TPQCap, RMQCap, TMQCap, TAQCap, ACQCap int

	LocalEID uint8

	// Reconnect controls whether the supervisor re-accepts (server) or
	// re-dials (client) after a connection drops.
	Reconnect     bool
	ReconnectWait time.Duration

	// AuditLogPath, if set, enables the bbolt-backed best-effort action
	// audit log described in SPEC_FULL.md §4.8.
	AuditLogPath    string
	AuditBufferSize int

	Logger   *mctplog.Logger
	Observer mctpmetrics.Observer
}

// DefaultConfig returns a Config with every field at its library default.
func DefaultConfig() Config {
	pc := mctppipeline.DefaultConfig()
	return Config{
		RetryMax:        pc.RetryMax,
		ActionDelta:     pc.ActionDelta,
		ThreadDelta:     pc.ThreadDelta,
		PacketPoolCap:   pc.PacketPoolCap,
		MessagePoolCap:  pc.MessagePoolCap,
		ActionPoolCap:   pc.ActionPoolCap,
		RPQCap:          pc.RPQCap,
		TPQCap:          pc.TPQCap,
		RMQCap:          pc.RMQCap,
		TMQCap:          pc.TMQCap,
		TAQCap:          pc.TAQCap,
		ACQCap:          pc.ACQCap,
		LocalEID:        pc.LocalEID,
		ReconnectWait:   time.Second,
		AuditBufferSize: 256,
		Logger:          mctplog.Default(),
		Observer:        mctpmetrics.NoOpObserver{},
	}
}

func newPipelineConfig(cfg Config, audit mctppipeline.AuditSink) mctppipeline.Config {
	return mctppipeline.Config{
		Logger:         cfg.Logger,
		Observer:       cfg.Observer,
		RetryMax:       cfg.RetryMax,
		ActionDelta:    cfg.ActionDelta,
		ThreadDelta:    cfg.ThreadDelta,
		CPUAffinity:    cfg.CPUAffinity,
		PacketPoolCap:  cfg.PacketPoolCap,
		MessagePoolCap: cfg.MessagePoolCap,
		ActionPoolCap:  cfg.ActionPoolCap,
		RPQCap:         cfg.RPQCap,
		TPQCap:         cfg.TPQCap,
		RMQCap:         cfg.RMQCap,
		TMQCap:         cfg.TMQCap,
		TAQCap:         cfg.TAQCap,
		ACQCap:         cfg.ACQCap,
		LocalEID:       cfg.LocalEID,
		AuditSink:      audit,
	}
}

// pipelineAuditSink adapts a *mctpaudit.BoltSink (or nil) to
// mctppipeline.AuditSink, since a nil *BoltSink boxed into a non-nil
// interface would otherwise compare != nil inside the completer.
func pipelineAuditSink(sink *mctpaudit.BoltSink) mctppipeline.AuditSink {
	if sink == nil {
		return nil
	}
	return sink
}

// Instance is a running supervisor: either a server accepting connections
// on Config.Address, or a client that has dialed it once.
type Instance struct {
	cfg    Config
	sup    *mctpconn.Supervisor
	audit  *mctpaudit.BoltSink
	cancel context.CancelFunc
}

// NewServer binds Config.Address and returns an Instance that accepts
// and serves connections once Run is called.
func NewServer(cfg Config) (*Instance, error) {
	cfg = withConfigDefaults(cfg)
	ln, err := mctptransport.ListenTCP(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("mctpcore: listen %s: %w", cfg.Address, err)
	}

	inst, err := newInstance(cfg)
	if err != nil {
		ln.Close()
		return nil, err
	}
	inst.sup = mctpconn.NewServer(newPipelineConfig(cfg, pipelineAuditSink(inst.audit)), ln)
	inst.sup.Reconnect = cfg.Reconnect
	inst.sup.ReconnectWait = cfg.ReconnectWait
	return inst, nil
}

// NewClient returns an Instance that dials Config.Address once Run is
// called.
func NewClient(cfg Config) (*Instance, error) {
	cfg = withConfigDefaults(cfg)
	inst, err := newInstance(cfg)
	if err != nil {
		return nil, err
	}
	dialer := &mctptransport.TCPDialer{Addr: cfg.Address}
	inst.sup = mctpconn.NewClient(newPipelineConfig(cfg, pipelineAuditSink(inst.audit)), dialer)
	inst.sup.Reconnect = cfg.Reconnect
	inst.sup.ReconnectWait = cfg.ReconnectWait
	return inst, nil
}

func newInstance(cfg Config) (*Instance, error) {
	inst := &Instance{cfg: cfg}
	if cfg.AuditLogPath != "" {
		sink, err := mctpaudit.Open(cfg.AuditLogPath, cfg.AuditBufferSize, cfg.Observer)
		if err != nil {
			return nil, err
		}
		inst.audit = sink
	}
	return inst, nil
}

func withConfigDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.RetryMax == 0 {
		cfg.RetryMax = d.RetryMax
	}
	if cfg.ActionDelta == 0 {
		cfg.ActionDelta = d.ActionDelta
	}
	if cfg.ThreadDelta == 0 {
		cfg.ThreadDelta = d.ThreadDelta
	}
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}
	if cfg.Observer == nil {
		cfg.Observer = d.Observer
	}
	if cfg.AuditBufferSize == 0 {
		cfg.AuditBufferSize = d.AuditBufferSize
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = d.ReconnectWait
	}
	return cfg
}

// SetHandler registers the handler invoked for inbound requests of
// msgType on every connection this Instance serves, present and future.
func (inst *Instance) SetHandler(msgType uint8, h Handler) {
	inst.sup.SetHandler(msgType, h)
}

// Run drives the accept/dial and (optionally) reconnect loop until ctx
// is canceled or Stop is called.
func (inst *Instance) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	inst.cancel = cancel
	return inst.sup.Run(ctx)
}

// Stop requests an orderly shutdown of the active connection and the
// supervisor's accept/dial loop, and closes the audit sink if one is
// configured.
func (inst *Instance) Stop() {
	inst.sup.Stop()
	if inst.cancel != nil {
		inst.cancel()
	}
	if inst.audit != nil {
		inst.audit.Close()
	}
}

// Submit forwards to the currently active connection's pipeline, if any.
func (inst *Instance) Submit(ctx context.Context, req SubmitRequest) (*Action, error) {
	return inst.sup.Submit(ctx, req)
}

// ConnectionID returns the correlation ID of the active connection, or
// empty if none is active.
func (inst *Instance) ConnectionID() string {
	return inst.sup.ConnectionID()
}

// Release returns an Action obtained from Submit to its pools once the
// caller is done reading it. Callers must not touch action afterward.
func (inst *Instance) Release(action *Action) {
	inst.sup.Release(action)
}
