// Command mctp-client dials an MCTP transport-core server, submits one
// request, and prints the outcome.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mctp-go/mctp-core"
	"github.com/mctp-go/mctp-core/internal/mctpcli"
)

var (
	flagAddress string
	flagDst     uint8
	flagSrc     uint8
	flagType    uint8
	flagBody    string
	flagRetry   int
	flagTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "mctp-client",
	Short: "Dial an MCTP transport-core server and submit one request",
	RunE:  runClient,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagAddress, "address", "127.0.0.1:6838", "address to dial")
	flags.Uint8Var(&flagDst, "dst", 0, "destination endpoint ID")
	flags.Uint8Var(&flagSrc, "src", 0, "source endpoint ID")
	flags.Uint8Var(&flagType, "type", 0, "message type byte")
	flags.StringVar(&flagBody, "body", "", "request body")
	flags.IntVar(&flagRetry, "retry", 0, "submission budget: positive count, -1 forever, -2/0 library default")
	flags.DurationVar(&flagTimeout, "timeout", 5*time.Second, "overall deadline for dial plus round trip")
	pflag.CommandLine.AddFlagSet(flags)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	printer := mctpcli.NewPrinter()

	cfg := mctpcore.DefaultConfig()
	cfg.Mode = mctpcore.ModeClient
	cfg.Address = flagAddress

	inst, err := mctpcore.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("mctp-client: %w", err)
	}
	defer inst.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- inst.Run(ctx) }()

	// Run's first connection attempt needs to land before Submit has
	// anything to submit to; poll ConnectionID the same way the
	// supervisor's own callers would after starting Run in the
	// background.
	for inst.ConnectionID() == "" {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-runErr:
			if err != nil {
				return err
			}
			return fmt.Errorf("mctp-client: connection closed before request was sent")
		case <-time.After(10 * time.Millisecond):
		}
	}
	printer.Connected(inst.ConnectionID(), flagAddress)

	action, err := inst.Submit(ctx, mctpcore.SubmitRequest{
		Dst:   flagDst,
		Src:   flagSrc,
		Type:  flagType,
		Body:  []byte(flagBody),
		Retry: flagRetry,
		OnSubmitted: printer.Retry,
		OnCompleted: printer.Completed,
		OnFailed:    printer.Completed,
	})
	if err != nil {
		return fmt.Errorf("mctp-client: submit: %w", err)
	}

	select {
	case <-action.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	if action.Response != nil {
		fmt.Printf("response: %q\n", action.Response.Payload())
	}
	inst.Release(action)
	return nil
}
