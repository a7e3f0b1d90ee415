// Package mctpcli holds the small pieces of presentation the cmd/
// entry points share: a colored summary printer for action lifecycle
// notices, grounded on phenix's cmd/experiment.go use of
// color.New(color.FgYellow) for status output.
package mctpcli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/mctp-go/mctp-core"
)

// Printer writes human-readable action notices to an output stream,
// colored when it's a terminal.
type Printer struct {
	out     io.Writer
	ok      *color.Color
	warn    *color.Color
	failure *color.Color
}

// NewPrinter returns a Printer writing to os.Stdout.
func NewPrinter() *Printer {
	return &Printer{
		out:     os.Stdout,
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		failure: color.New(color.FgRed),
	}
}

// Connected announces a newly established connection.
func (p *Printer) Connected(connID, addr string) {
	p.ok.Fprintf(p.out, "connected %s (%s)\n", addr, connID)
}

// Retry announces the scheduler's submission of an action. OnSubmitted
// fires once per action, when the scheduler first assigns it a tag, so
// this prints attempt=1; resubmissions after a timeout do not call it.
func (p *Printer) Retry(action *mctpcore.Action) {
	p.warn.Fprintf(p.out, "retry tag=%d attempt=%d/%d\n", action.Tag, action.Num, action.Max)
}

// Completed announces a retired action's outcome.
func (p *Printer) Completed(action *mctpcore.Action) {
	if action.CompletionCode == mctpcore.CompletionOK {
		p.ok.Fprintf(p.out, "completed tag=%d\n", action.Tag)
		return
	}
	p.failure.Fprintf(p.out, "failed tag=%d code=%d\n", action.Tag, action.CompletionCode)
}

// Errorf writes a plain error notice, uncolored so it's grep-friendly in
// redirected output.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}
