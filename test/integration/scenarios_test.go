package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mctp-go/mctp-core/internal/constants"
	"github.com/mctp-go/mctp-core/internal/mctpmetrics"
	"github.com/mctp-go/mctp-core/internal/mctppipeline"
	"github.com/mctp-go/mctp-core/internal/mctptest"
	"github.com/mctp-go/mctp-core/internal/mctpwire"
	"github.com/mctp-go/mctp-core/test/integration/mctpctl"
)

// Scenario 1: Set Endpoint ID round trip.
func TestSetEndpointIDRoundTrip(t *testing.T) {
	l := newLink(t, nil)

	var gotEID uint8
	l.responder.SetHandler(mctpctl.MessageType, func(ctx context.Context, req *mctpwire.Message) ([]byte, error) {
		setReq, err := mctpctl.DecodeSetEndpointIDRequest(req.Payload())
		require.NoError(t, err)
		gotEID = setReq.EID
		resp := mctpctl.SetEndpointIDResponse{
			InstanceID:     setReq.InstanceID,
			CompletionCode: mctpctl.CompletionSuccess,
			AssignedEID:    setReq.EID,
			EIDPoolSize:    0,
		}
		return resp.Encode(), nil
	})

	req := mctpctl.SetEndpointIDRequest{Operation: mctpctl.SetEIDOperationSet, EID: 0x0A}
	action := submitAndWait(t, l.requester, mctppipeline.SubmitRequest{
		Dst: 0xFF, Src: 0x08, Type: mctpctl.MessageType, Body: req.Encode(), Retry: 1,
	})
	defer action.Release()

	require.Equal(t, mctppipeline.CompletionOK, action.CompletionCode)
	require.NotNil(t, action.Response)

	resp, err := mctpctl.DecodeSetEndpointIDResponse(action.Response.Payload())
	require.NoError(t, err)
	require.Equal(t, uint8(0x0A), gotEID)
	require.Equal(t, uint8(0x0A), resp.AssignedEID)
	require.Equal(t, uint8(mctpctl.CompletionSuccess), resp.CompletionCode)
}

// Scenario 2: Get Endpoint ID round trip.
func TestGetEndpointIDRoundTrip(t *testing.T) {
	l := newLink(t, nil)

	l.responder.SetHandler(mctpctl.MessageType, func(ctx context.Context, req *mctpwire.Message) ([]byte, error) {
		getReq, err := mctpctl.DecodeGetEndpointIDRequest(req.Payload())
		require.NoError(t, err)
		resp := mctpctl.GetEndpointIDResponse{
			InstanceID:     getReq.InstanceID,
			CompletionCode: mctpctl.CompletionSuccess,
			EID:            0x2A,
			EndpointType:   0,
		}
		return resp.Encode(), nil
	})

	req := mctpctl.GetEndpointIDRequest{}
	action := submitAndWait(t, l.requester, mctppipeline.SubmitRequest{
		Dst: 0xFF, Src: 0x08, Type: mctpctl.MessageType, Body: req.Encode(), Retry: 1,
	})
	defer action.Release()

	require.Equal(t, mctppipeline.CompletionOK, action.CompletionCode)
	resp, err := mctpctl.DecodeGetEndpointIDResponse(action.Response.Payload())
	require.NoError(t, err)
	require.Equal(t, uint8(0x2A), resp.EID)
}

// Scenario 3: retry-to-failure. Submitting with retry=2 against a peer
// that never responds must produce exactly three transmissions at
// roughly ActionDelta intervals before fn_failed fires. This is the
// regression test for the fragmenter's Max-clobbering bug and the
// stale-packet-chain double free: either bug collapses this to one
// transmission (the first) or corrupts the packet pool on the second.
func TestRetryToFailureTransmitsExactlyThreeTimes(t *testing.T) {
	reqConn, _ := mctptest.NewPipe()
	cc := &countingConn{Conn: reqConn}

	stats := mctpmetrics.New()
	cfg := fastConfig(stats)
	p := mctppipeline.New(cfg, cc)
	p.Start(context.Background())
	t.Cleanup(p.Stop)

	var failed bool
	done := make(chan struct{})
	action, err := p.Submit(context.Background(), mctppipeline.SubmitRequest{
		Dst: 0xFF, Src: 0x08, Type: 0x01, Body: []byte("ping"), Retry: 2,
		OnFailed: func(a *mctppipeline.Action) {
			failed = true
			close(done)
		},
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("action did not fail in time")
	}

	require.True(t, failed)
	require.Equal(t, mctppipeline.CompletionRetryExhausted, action.CompletionCode)
	require.Equal(t, 3, action.Num, "expected exactly 3 attempts for retry=2")
	require.Equal(t, 3, cc.count(), "expected exactly 3 packet transmissions on the wire")
	action.Release()
}

// Scenario 4: a duplicate SOM on the same tag abandons the first
// in-flight message (counted dropped_noeom) and starts reassembling the
// second from scratch.
func TestDuplicateSOMAbandonsFirstMessage(t *testing.T) {
	received := make(chan []byte, 1)

	// Drive a pipeline directly with raw packets: a SOM that never gets
	// an EOM, followed immediately by a second SOM on the same tag.
	raw, peer := mctptest.NewPipe()
	stats := mctpmetrics.New()
	cfg := fastConfig(stats)
	abandoned := mctppipeline.New(cfg, peer)
	abandoned.SetHandler(0x7E, func(ctx context.Context, req *mctpwire.Message) ([]byte, error) {
		body := make([]byte, len(req.Payload()))
		copy(body, req.Payload())
		received <- body
		return nil, nil
	})
	abandoned.Start(context.Background())
	t.Cleanup(abandoned.Stop)

	first := mctpwire.Packet{}
	first.Encode(mctpwire.Header{Version: constants.HeaderVersion, Dst: 0x08, Src: 0x09, SOM: true, Tag: 2, TagOwner: true, Seq: 0})
	first.Payload()[0] = 0x7E
	copy(first.Payload()[1:], []byte("abandoned"))

	// The first SOM (seq 0) advances `expected` to 1, so a second SOM
	// carrying seq 1 reaches the duplicate-SOM check rather than being
	// caught by the sequence-mismatch check first.
	second := mctpwire.Packet{}
	second.Encode(mctpwire.Header{Version: constants.HeaderVersion, Dst: 0x08, Src: 0x09, SOM: true, EOM: true, Tag: 2, TagOwner: true, Seq: 1})
	second.Payload()[0] = 0x7E
	copy(second.Payload()[1:], []byte("second"))

	_, err := raw.Write(first[:])
	require.NoError(t, err)
	_, err = raw.Write(second[:])
	require.NoError(t, err)

	select {
	case body := <-received:
		require.Equal(t, "second", string(body))
	case <-time.After(2 * time.Second):
		t.Fatal("expected the second message to reassemble and dispatch")
	}

	require.EqualValues(t, 1, stats.Dropped[mctpmetrics.DropNoEOM].Load(), "expected the abandoned first message to count as dropped_noeom")
}

// Scenario 5: an out-of-sequence continuation packet is dropped rather
// than appended, and the tag stays dropped until a fresh SOM resyncs it.
func TestOutOfSequenceContinuationIsDropped(t *testing.T) {
	raw, peer := mctptest.NewPipe()
	stats := mctpmetrics.New()
	cfg := fastConfig(stats)
	p := mctppipeline.New(cfg, peer)

	received := make(chan []byte, 1)
	p.SetHandler(0x7E, func(ctx context.Context, req *mctpwire.Message) ([]byte, error) {
		body := make([]byte, len(req.Payload()))
		copy(body, req.Payload())
		received <- body
		return nil, nil
	})
	p.Start(context.Background())
	t.Cleanup(p.Stop)

	som := mctpwire.Packet{}
	som.Encode(mctpwire.Header{Version: constants.HeaderVersion, Dst: 0x08, Src: 0x09, SOM: true, Tag: 4, TagOwner: true, Seq: 0})
	som.Payload()[0] = 0x7E
	copy(som.Payload()[1:], []byte("a"))

	wrong := mctpwire.Packet{}
	wrong.Encode(mctpwire.Header{Version: constants.HeaderVersion, Dst: 0x08, Src: 0x09, EOM: true, Tag: 4, TagOwner: true, Seq: 2})
	wrong.Payload()[0] = 'x'

	_, err := raw.Write(som[:])
	require.NoError(t, err)
	_, err = raw.Write(wrong[:])
	require.NoError(t, err)

	select {
	case <-received:
		t.Fatal("expected the out-of-sequence continuation to be dropped, not reassembled")
	case <-time.After(200 * time.Millisecond):
	}

	require.EqualValues(t, 1, stats.Dropped[mctpmetrics.DropSeqnum].Load())
}

// Scenario 6: submission backpressure. Once TAQ is saturated, Submit
// must fail rather than block, leaving the caller's context/done channel
// untouched (per the submit-side failure contract).
func TestSubmitBackpressureOnFullTAQ(t *testing.T) {
	conn, _ := mctptest.NewPipe()
	stats := mctpmetrics.New()
	cfg := fastConfig(stats)
	cfg.TAQCap = 2
	p := mctppipeline.New(cfg, conn)
	// Deliberately not Start()ed: nothing drains TAQ, so it saturates
	// after exactly TAQCap successful submissions.

	for i := 0; i < cfg.TAQCap; i++ {
		_, err := p.Submit(context.Background(), mctppipeline.SubmitRequest{
			Dst: 0xFF, Src: 0x08, Type: 0x01, Body: []byte("x"),
		})
		require.NoError(t, err, "expected submission %d to fit within TAQCap", i)
	}

	_, err := p.Submit(context.Background(), mctppipeline.SubmitRequest{
		Dst: 0xFF, Src: 0x08, Type: 0x01, Body: []byte("overflow"),
	})
	require.Error(t, err, "expected the submission beyond TAQCap to be rejected as backpressure")
}
