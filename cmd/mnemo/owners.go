package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/application/handlers"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/config"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/vectordb/qdrant"
)

func newOwnersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owners",
		Short: "Manage owners",
		Long:  "Each owner gets an isolated vector collection and relational database.",
	}
	cmd.AddCommand(newOwnersAddCmd(), newOwnersListCmd(), newOwnersRemoveCmd())
	return cmd
}

func newOwnersAddCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register a new owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			cfg, err := config.Load(cwd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			qdrantCfg := cfg.Qdrant
			qdrantCfg.Collection = config.GenerateCollectionName(config.SanitizeOwnerID(args[0]))
			repo, err := qdrant.NewRepository(qdrantCfg)
			if err != nil {
				return fmt.Errorf("connecting to qdrant: %w", err)
			}
			defer repo.Close()

			info, err := handlers.NewOwnerHandler(cwd).Add(cmd.Context(), args[0], description, repo)
			if err != nil {
				return err
			}

			fmt.Printf("Added owner %q (collection: %s)\n", info.ID, info.Collection)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Optional owner description")
	return cmd
}

func newOwnersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered owners",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			infos, err := handlers.NewOwnerHandler(cwd).List(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("No owners registered. Add one with: mnemo owners add <id>")
				return nil
			}
			for _, info := range infos {
				if info.Description != "" {
					fmt.Printf("%s\t%s\t%s\n", info.ID, info.Collection, info.Description)
				} else {
					fmt.Printf("%s\t%s\n", info.ID, info.Collection)
				}
			}
			return nil
		},
	}
}

func newOwnersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an owner, its vector collection, and its database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			cfg, err := config.Load(cwd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			qdrantCfg := cfg.Qdrant
			qdrantCfg.Collection = config.GenerateCollectionName(config.SanitizeOwnerID(args[0]))
			repo, err := qdrant.NewRepository(qdrantCfg)
			if err != nil {
				return fmt.Errorf("connecting to qdrant: %w", err)
			}
			defer repo.Close()

			if err := handlers.NewOwnerHandler(cwd).Remove(cmd.Context(), args[0], repo); err != nil {
				return err
			}
			fmt.Printf("Removed owner %q\n", args[0])
			return nil
		},
	}
}
