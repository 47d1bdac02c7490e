// Command batch runs automatic decision runs and outbox maintenance outside
// the API server, typically from a nightly job.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vedtak/internal/bootstrap"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "vedtak-batch",
		Short:         "Batch operations for the decision service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(resumePausedCmd())
	rootCmd.AddCommand(drainOutboxCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// withApp loads configuration and builds the application for one command
func withApp(ctx context.Context, fn func(app *bootstrap.App) error) error {
	cfg, vaultClient, err := bootstrap.LoadConfig(ctx)
	if err != nil {
		return err
	}
	bootstrap.SetupLogger(cfg)

	app, err := bootstrap.New(ctx, cfg, vaultClient)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	return fn(app)
}
