// Package integration drives the real seven-stage pipeline end to end
// over internal/mctptest's in-memory duplex connection, exercising the
// literal scenarios from the transport specification's scenario catalog
// rather than any single stage in isolation.
package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mctp-go/mctp-core/internal/mctpmetrics"
	"github.com/mctp-go/mctp-core/internal/mctppipeline"
	"github.com/mctp-go/mctp-core/internal/mctptest"
	"github.com/mctp-go/mctp-core/internal/mctptransport"
)

// fastConfig returns a pipeline config tuned for fast retry/backpressure
// assertions instead of the library's production defaults.
func fastConfig(m *mctpmetrics.Metrics) mctppipeline.Config {
	cfg := mctppipeline.DefaultConfig()
	cfg.Observer = mctpmetrics.NewMetricsObserver(m)
	cfg.ActionDelta = 20 * time.Millisecond
	cfg.ThreadDelta = 2 * time.Millisecond
	return cfg
}

// link is a pair of pipelines joined by an in-memory duplex connection,
// one playing requester and one playing responder.
type link struct {
	requester *mctppipeline.Pipeline
	responder *mctppipeline.Pipeline
	reqStats  *mctpmetrics.Metrics
	respStats *mctpmetrics.Metrics
}

func newLink(t *testing.T, configure func(reqCfg, respCfg *mctppipeline.Config)) *link {
	t.Helper()
	reqConn, respConn := mctptest.NewPipe()

	reqStats := mctpmetrics.New()
	respStats := mctpmetrics.New()
	reqCfg := fastConfig(reqStats)
	respCfg := fastConfig(respStats)
	if configure != nil {
		configure(&reqCfg, &respCfg)
	}

	l := &link{
		requester: mctppipeline.New(reqCfg, reqConn),
		responder: mctppipeline.New(respCfg, respConn),
		reqStats:  reqStats,
		respStats: respStats,
	}

	ctx := context.Background()
	l.requester.Start(ctx)
	l.responder.Start(ctx)

	t.Cleanup(func() {
		l.requester.Stop()
		l.responder.Stop()
	})
	return l
}

// countingConn wraps a mctptransport.Conn and counts full packet writes,
// letting a test assert the exact number of wire transmissions an action
// produced across its retries.
type countingConn struct {
	mctptransport.Conn
	mu    sync.Mutex
	sends int
}

func (c *countingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	c.mu.Lock()
	c.sends++
	c.mu.Unlock()
	return n, err
}

func (c *countingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

// submitAndWait submits req and blocks for the action to complete, the
// same pattern cmd/mctp-client uses against a real connection.
func submitAndWait(t *testing.T, p *mctppipeline.Pipeline, req mctppipeline.SubmitRequest) *mctppipeline.Action {
	t.Helper()
	action, err := p.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	select {
	case <-action.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("action did not complete in time")
	}
	return action
}
