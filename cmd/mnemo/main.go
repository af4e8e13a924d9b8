// Package main provides the entry point for the mnemo CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version     = "0.1.0-dev"
	globalOwner string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:     "mnemo",
		Short:   "A personal temporal knowledge store with versioned facts and semantic recall",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&globalOwner, "owner", "o", "", "Owner to operate on (required for data commands)")

	rootCmd.AddCommand(
		newInitCmd(),
		newOwnersCmd(),
		newIngestCmd(),
		newQueryCmd(),
		newEntitiesCmd(),
		newRelateCmd(),
		newRelationsCmd(),
		newHistoryCmd(),
		newMaintainCmd(),
		newPredicatesCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
