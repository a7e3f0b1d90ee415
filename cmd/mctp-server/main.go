// Command mctp-server runs an MCTP transport-core instance that listens
// for a single inbound connection and echoes request bodies back as
// responses, printing a colored summary of each action's lifecycle.
//
// The root command shape — a small cobra.Command with flags bound at
// init time — mirrors phenix's cmd/root.go, trimmed down since
// this program has no subcommands of its own.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mctp-go/mctp-core"
	"github.com/mctp-go/mctp-core/internal/mctpcli"
	"github.com/mctp-go/mctp-core/internal/mctpwire"
)

var (
	flagAddress      string
	flagRetryMax     int
	flagLocalEID     uint8
	flagReconnect    bool
	flagAuditLogPath string
)

var rootCmd = &cobra.Command{
	Use:   "mctp-server",
	Short: "Run an MCTP transport-core server over TCP",
	RunE:  runServer,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagAddress, "address", ":6838", "address to listen on")
	flags.IntVar(&flagRetryMax, "retry-max", 0, "default retry budget for inbound-initiated submissions (0 = library default)")
	flags.Uint8Var(&flagLocalEID, "local-eid", 0, "local MCTP endpoint ID")
	flags.BoolVar(&flagReconnect, "reconnect", true, "re-accept after a connection drops")
	flags.StringVar(&flagAuditLogPath, "audit-log", "", "path to a bbolt action-audit log (disabled if empty)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	printer := mctpcli.NewPrinter()

	cfg := mctpcore.DefaultConfig()
	cfg.Mode = mctpcore.ModeServer
	cfg.Address = flagAddress
	cfg.LocalEID = flagLocalEID
	cfg.Reconnect = flagReconnect
	cfg.ReconnectWait = time.Second
	cfg.AuditLogPath = flagAuditLogPath
	if flagRetryMax > 0 {
		cfg.RetryMax = flagRetryMax
	}

	inst, err := mctpcore.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("mctp-server: %w", err)
	}

	inst.SetHandler(0, func(ctx context.Context, req *mctpwire.Message) ([]byte, error) {
		body := make([]byte, len(req.Payload()))
		copy(body, req.Payload())
		return body, nil
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	printer.Errorf("listening on %s", flagAddress)
	err = inst.Run(ctx)
	inst.Stop()
	if err != nil && err != context.Canceled {
		printer.Errorf("exited: %v", err)
		return err
	}
	return nil
}
