package mctppipeline

import (
	"time"

	"github.com/mctp-go/mctp-core/internal/constants"
	"github.com/mctp-go/mctp-core/internal/mctplog"
	"github.com/mctp-go/mctp-core/internal/mctpmetrics"
)

// AuditRecord describes one retired action for the optional audit sink.
type AuditRecord struct {
	Tag            int
	Dst, Src       uint8
	TagOwner       bool
	Type           uint8
	CompletionCode int
	Submitted      time.Time
	Completed      time.Time
}

// AuditSink receives a best-effort copy of every retired action. A slow
// or failing sink must never stall the completer: Record is called from
// the completer's hot path and implementations are expected to buffer or
// drop internally rather than block.
type AuditSink interface {
	Record(rec AuditRecord)
	Close() error
}

// Config configures one Pipeline instance. The public mctpcore.Config
// is translated into this shape by mctpcore's newPipelineConfig before
// it is handed to the supervisor, mirroring how
// go-ublk's backend.go turns its public DeviceParams into ctrl.Params
// before handing them to the kernel-facing layer.
type Config struct {
	Logger   *mctplog.Logger
	Observer mctpmetrics.Observer

	RetryMax    int
	ActionDelta time.Duration
	ThreadDelta time.Duration

	CPUAffinity []int

	PacketPoolCap int
	MessagePoolCap int
	ActionPoolCap  int

	RPQCap int
	TPQCap int
	RMQCap int
	TMQCap int
	TAQCap int
	ACQCap int

	AuditSink AuditSink

	LocalEID uint8
}

// DefaultConfig returns the constants-driven defaults a bare Config
// should fall back to for any zero-valued field.
func DefaultConfig() Config {
	return Config{
		Logger:         mctplog.Default(),
		Observer:       mctpmetrics.NoOpObserver{},
		RetryMax:       constants.DefaultRetryMax,
		ActionDelta:    constants.DefaultActionDelta,
		ThreadDelta:    constants.DefaultThreadDelta,
		PacketPoolCap:  constants.PacketPoolCapacity,
		MessagePoolCap: constants.MessagePoolCapacity,
		ActionPoolCap:  constants.ActionPoolCapacity,
		RPQCap:         constants.RPQCapacity,
		TPQCap:         constants.TPQCapacity,
		RMQCap:         constants.RMQCapacity,
		TMQCap:         constants.TMQCapacity,
		TAQCap:         constants.TAQCapacity,
		ACQCap:         constants.ACQCapacity,
		LocalEID:       constants.EndpointIDNull,
	}
}

// withDefaults fills any zero-valued field of cfg from DefaultConfig.
func withDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}
	if cfg.Observer == nil {
		cfg.Observer = d.Observer
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = d.RetryMax
	}
	if cfg.ActionDelta == 0 {
		cfg.ActionDelta = d.ActionDelta
	}
	if cfg.ThreadDelta == 0 {
		cfg.ThreadDelta = d.ThreadDelta
	}
	if cfg.PacketPoolCap == 0 {
		cfg.PacketPoolCap = d.PacketPoolCap
	}
	if cfg.MessagePoolCap == 0 {
		cfg.MessagePoolCap = d.MessagePoolCap
	}
	if cfg.ActionPoolCap == 0 {
		cfg.ActionPoolCap = d.ActionPoolCap
	}
	if cfg.RPQCap == 0 {
		cfg.RPQCap = d.RPQCap
	}
	if cfg.TPQCap == 0 {
		cfg.TPQCap = d.TPQCap
	}
	if cfg.RMQCap == 0 {
		cfg.RMQCap = d.RMQCap
	}
	if cfg.TMQCap == 0 {
		cfg.TMQCap = d.TMQCap
	}
	if cfg.TAQCap == 0 {
		cfg.TAQCap = d.TAQCap
	}
	if cfg.ACQCap == 0 {
		cfg.ACQCap = d.ACQCap
	}
	return cfg
}
