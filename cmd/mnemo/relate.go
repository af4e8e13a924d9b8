package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
)

func newRelateCmd() *cobra.Command {
	var strength float64

	cmd := &cobra.Command{
		Use:   "relate <source-entity> <type> <target-entity>",
		Short: "Create or strengthen a relationship between two entities",
		Long: `Creates a directed relationship edge between two known entities.
Relating the same pair again keeps the stronger edge.
Use quotes for entity names with spaces.

Valid relationship types:
  - family, partner, friend, colleague, manages
  - located_in, owns, member_of, works_on, related_to

Examples:
  mnemo -o alice relate "Sarah Chen" colleague "Maya Patel"
  mnemo -o alice relate Maya works_on "Atlas Project" --strength 0.9`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelate(cmd, args, strength)
		},
	}

	cmd.Flags().Float64Var(&strength, "strength", 0, "Edge strength in (0, 1]; defaults to 0.5")

	return cmd
}

func runRelate(cmd *cobra.Command, args []string, strength float64) error {
	ctx := cmd.Context()
	sourceName := args[0]
	relType := entities.RelationType(args[1])
	targetName := args[2]

	return withDeps(func(d *Deps) error {
		rel, err := d.EntityHandler.Relate(ctx, d.OwnerID, sourceName, targetName, relType, strength)
		if err != nil {
			return fmt.Errorf("creating relationship: %w", err)
		}

		fmt.Printf("Created relationship: %s\n", rel.ID)
		fmt.Printf("  %s -[%s %.2f]-> %s\n", sourceName, rel.Type, rel.Strength, targetName)
		return nil
	})
}
