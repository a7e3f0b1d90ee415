package mctptest

import (
	"errors"
	"net"

	"github.com/mctp-go/mctp-core/internal/mctptransport"
)

// PipeListener and PipeDialer hand out connected PipeConn pairs so a
// Supervisor can be driven in tests without opening a real socket: each
// Dial call produces a new pair, one end delivered to Accept and the
// other returned to the dialer.
type PipeListener struct {
	ch     chan mctptransport.Conn
	closed chan struct{}
}

func NewPipeListener() *PipeListener {
	return &PipeListener{ch: make(chan mctptransport.Conn, 8), closed: make(chan struct{})}
}

func (l *PipeListener) Accept() (mctptransport.Conn, error) {
	select {
	case c := <-l.ch:
		return c, nil
	case <-l.closed:
		return nil, errors.New("mctptest: listener closed")
	}
}

func (l *PipeListener) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}

func (l *PipeListener) Addr() net.Addr { return pipeAddr{} }

// PipeDialer dials against a PipeListener by creating a fresh pair and
// handing one end to the listener's Accept queue.
type PipeDialer struct {
	listener *PipeListener
}

func NewPipeDialer(l *PipeListener) *PipeDialer {
	return &PipeDialer{listener: l}
}

func (d *PipeDialer) Dial() (mctptransport.Conn, error) {
	server, client := NewPipe()
	select {
	case d.listener.ch <- server:
		return client, nil
	case <-d.listener.closed:
		return nil, errors.New("mctptest: listener closed")
	}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }
