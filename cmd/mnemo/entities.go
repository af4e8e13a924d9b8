package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
)

func newEntitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Inspect and curate tracked entities",
	}

	cmd.AddCommand(newEntitiesListCmd())
	cmd.AddCommand(newEntitiesShowCmd())
	cmd.AddCommand(newEntitiesPromoteCmd())

	return cmd
}

func newEntitiesListCmd() *cobra.Command {
	var (
		limit    int
		archived bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities for an owner",
		Long: `Lists tracked entities, most important first.

Examples:
  mnemo -o alice entities list
  mnemo -o alice entities list --archived
  mnemo -o alice entities list --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntitiesList(cmd, limit, archived)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", DefaultListLimit, "Maximum number of entities to return")
	cmd.Flags().BoolVar(&archived, "archived", false, "List archived entities instead of active ones")

	return cmd
}

func runEntitiesList(cmd *cobra.Command, limit int, archived bool) error {
	ctx := cmd.Context()

	status := entities.StatusActive
	if archived {
		status = entities.StatusArchived
	}

	return withDeps(func(d *Deps) error {
		list, err := d.EntityHandler.List(ctx, d.OwnerID, status, limit, 0)
		if err != nil {
			return fmt.Errorf("listing entities: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No entities found.")
			return nil
		}

		fmt.Printf("Entities (%d):\n\n", len(list))
		for _, entity := range list {
			fmt.Printf("  %-30s %-12s %-8s %.2f  (%d mentions)\n",
				entity.Name, entity.Kind, entity.Tier, entity.ImportanceScore, entity.MentionCount)
		}
		return nil
	})
}

func newEntitiesShowCmd() *cobra.Command {
	var includeClosed bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show everything known about an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntitiesShow(cmd, args[0], includeClosed)
		},
	}

	cmd.Flags().BoolVar(&includeClosed, "all-facts", false, "Include superseded facts")

	return cmd
}

func runEntitiesShow(cmd *cobra.Command, name string, includeClosed bool) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		ec, err := d.EntityHandler.Show(ctx, d.OwnerID, name, includeClosed)
		if err != nil {
			return fmt.Errorf("showing entity: %w", err)
		}

		printEntityContext(ec)
		return nil
	})
}

func newEntitiesPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <name> <tier>",
		Short: "Pin an entity to an importance tier",
		Long: `Sets an explicit importance tier on an entity. Critical entities never
decay.

Valid tiers: critical, high, medium, low, trivial

Examples:
  mnemo -o alice entities promote "Sarah Chen" critical`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntitiesPromote(cmd, args[0], args[1])
		},
	}
}

func runEntitiesPromote(cmd *cobra.Command, name, tier string) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		entity, err := d.EntityHandler.Promote(ctx, d.OwnerID, name, entities.Tier(tier))
		if err != nil {
			return fmt.Errorf("promoting entity: %w", err)
		}

		fmt.Printf("Promoted %s to %s (score %.2f)\n", entity.Name, entity.Tier, entity.ImportanceScore)
		return nil
	})
}
