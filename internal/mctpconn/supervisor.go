// Package mctpconn owns the accept/connect loop and drives one
// mctppipeline.Pipeline per live connection. It is grounded on go-ublk's
// backend lifecycle (open/close around a device), generalized from a
// single persistent device handle to a supervisor that can re-accept or
// re-dial after a connection drops.
package mctpconn

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/mctp-go/mctp-core/internal/mctperr"
	"github.com/mctp-go/mctp-core/internal/mctplog"
	"github.com/mctp-go/mctp-core/internal/mctppipeline"
	"github.com/mctp-go/mctp-core/internal/mctptransport"
)

// Mode selects whether the supervisor accepts inbound connections or
// dials an outbound one.
type Mode int

const (
	ModeServer Mode = iota
	ModeClient
)

// Supervisor owns the pipeline configuration and the transport endpoint,
// and is responsible for keeping a Pipeline running across reconnects.
type Supervisor struct {
	mode   Mode
	cfg    mctppipeline.Config
	logger *mctplog.Logger

	listener mctptransport.Listener
	dialer   mctptransport.Dialer

	// Reconnect controls whether a dropped connection is re-accepted
	// (server) or re-dialed (client) automatically.
	Reconnect     bool
	ReconnectWait time.Duration

	handlers []handlerRegistration

	mu      sync.Mutex
	current *mctppipeline.Pipeline
	connID  string

	cancel context.CancelFunc
	done   chan struct{}
}

type handlerRegistration struct {
	msgType uint8
	handler mctppipeline.Handler
}

// NewServer builds a Supervisor that accepts connections from ln.
func NewServer(cfg mctppipeline.Config, ln mctptransport.Listener) *Supervisor {
	return &Supervisor{mode: ModeServer, cfg: cfg, logger: cfg.Logger, listener: ln, done: make(chan struct{})}
}

// NewClient builds a Supervisor that dials out via d.
func NewClient(cfg mctppipeline.Config, d mctptransport.Dialer) *Supervisor {
	return &Supervisor{mode: ModeClient, cfg: cfg, logger: cfg.Logger, dialer: d, done: make(chan struct{})}
}

// SetHandler registers a message-type handler applied to every pipeline
// this supervisor creates, present and future.
func (s *Supervisor) SetHandler(msgType uint8, h mctppipeline.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handlerRegistration{msgType, h})
	if s.current != nil {
		s.current.SetHandler(msgType, h)
	}
}

// Run drives the accept/dial and reconnect loop until ctx is canceled or
// Stop is called. It returns once no further connection will be served.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer close(s.done)

	for {
		conn, err := s.obtainConn(ctx)
		if err != nil {
			return err
		}
		if conn == nil {
			return nil
		}

		connID := uuid.Must(uuid.NewV4()).String()
		connLogger := s.logger.WithPrefix(connID[:8])

		pipelineCfg := s.cfg
		pipelineCfg.Logger = connLogger

		pl := mctppipeline.New(pipelineCfg, conn)
		for _, reg := range s.handlers {
			pl.SetHandler(reg.msgType, reg.handler)
		}

		s.mu.Lock()
		s.current = pl
		s.connID = connID
		s.mu.Unlock()

		connLogger.Infof("connection established (mode=%v)", s.mode)
		pl.Start(ctx)
		<-pl.Stopped()
		connLogger.Infof("connection closed (reason=%s)", pl.StopReason())

		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()

		if ctx.Err() != nil || !s.Reconnect {
			return ctx.Err()
		}
		if s.ReconnectWait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.ReconnectWait):
			}
		}
	}
}

func (s *Supervisor) obtainConn(ctx context.Context) (mctptransport.Conn, error) {
	switch s.mode {
	case ModeServer:
		type result struct {
			conn mctptransport.Conn
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			c, err := s.listener.Accept()
			ch <- result{c, err}
		}()
		select {
		case <-ctx.Done():
			return nil, nil
		case r := <-ch:
			return r.conn, r.err
		}
	default:
		return s.dialer.Dial()
	}
}

// Stop cancels the supervisor's context and waits for the current
// connection, if any, to finish shutting down.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	pl := s.current
	cancel := s.cancel
	s.mu.Unlock()

	if pl != nil {
		pl.Stop()
	}
	if cancel != nil {
		cancel()
	}
	<-s.done
}

// Submit forwards to the currently active pipeline, if any.
func (s *Supervisor) Submit(ctx context.Context, req mctppipeline.SubmitRequest) (*mctppipeline.Action, error) {
	s.mu.Lock()
	pl := s.current
	s.mu.Unlock()
	if pl == nil {
		return nil, mctperr.New("Submit", mctperr.CodeShutdown, "no active connection")
	}
	return pl.Submit(ctx, req)
}

// Release returns an action obtained from Submit to its owning pipeline's
// pools. The pipeline that allocated it, not whichever one is current
// after a reconnect, is the one that reclaims it.
func (s *Supervisor) Release(action *mctppipeline.Action) {
	action.Release()
}

// ConnectionID returns the correlation ID of the active connection, or
// empty if none is active.
func (s *Supervisor) ConnectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connID
}
