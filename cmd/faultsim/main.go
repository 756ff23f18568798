// Package main is the entry point for faultsim.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"faultsim/internal/logger"
)

var (
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("", "%v", err)
		_ = logger.Default.Sync()
		os.Exit(1)
	}
}

// newRootCmd はサブコマンドを含むルートコマンドを作成する
func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "faultsim",
		Short: "Deterministic fault injection simulator",
		Long: `faultsim drives a simulated cluster through rounds of message loss,
duplication, node crashes and recoveries. Every decision comes from a seeded
random stream, so a run is reproducible from its seed and worker count.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "ログレベル (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(),
		newSweepCmd(),
		newPresetsCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "バージョンを表示",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "faultsim version %s\n", version)
		},
	}
}
