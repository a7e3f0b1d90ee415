package mctpconn

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mctp-go/mctp-core/internal/mctppipeline"
	"github.com/mctp-go/mctp-core/internal/mctpwire"
	"github.com/mctp-go/mctp-core/internal/mctptest"
)

func TestSupervisorClientServerRoundTrip(t *testing.T) {
	ln := mctptest.NewPipeListener()
	dialer := mctptest.NewPipeDialer(ln)

	serverCfg := mctppipeline.DefaultConfig()
	clientCfg := mctppipeline.DefaultConfig()

	server := NewServer(serverCfg, ln)
	client := NewClient(clientCfg, dialer)

	server.SetHandler(0x01, func(ctx context.Context, req *mctpwire.Message) ([]byte, error) {
		body := append([]byte(nil), req.Payload()...)
		body = append(body, '!')
		return body, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.Run(ctx)
	go client.Run(ctx)

	var action *mctppipeline.Action
	var err error
	deadline := time.After(2 * time.Second)
	for action == nil {
		select {
		case <-deadline:
			t.Fatal("client never established a connection to submit on")
		default:
		}
		action, err = client.Submit(ctx, mctppipeline.SubmitRequest{
			Dst:  0x08,
			Src:  0x09,
			Type: 0x01,
			Body: []byte("hi"),
		})
		if err != nil {
			time.Sleep(5 * time.Millisecond)
		}
	}

	select {
	case <-action.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("action never completed")
	}

	if action.CompletionCode != mctppipeline.CompletionOK {
		t.Fatalf("expected success, got completion code %d", action.CompletionCode)
	}
	// Reassembly keeps whole packets: the server sees "hi" padded to 63
	// bytes and appends '!', and that 64-byte reply goes out as two
	// packets, which the client reassembles into 63+64 bytes.
	want := make([]byte, 127)
	copy(want, "hi")
	want[63] = '!'
	if got := action.Response.Payload(); !bytes.Equal(got, want) {
		t.Fatalf("expected response %q, got %q", want, got)
	}

	client.Stop()
	server.Stop()
}
