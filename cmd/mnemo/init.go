package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/application/handlers"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new mnemo store",
		Long:  "Creates a .mnemo directory with default configuration and an empty owner registry.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	result, err := handlers.NewInitHandler().Handle(cmd.Context(), cwd)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", result.ConfigPath)
	fmt.Printf("Created %s\n", result.OwnersPath)
	fmt.Println("Mnemo initialized. Add an owner with: mnemo owners add <id>")
	return nil
}
