package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/domain/services"
)

type relationsFlags struct {
	depth       int
	minStrength float64
	format      string
}

func newRelationsCmd() *cobra.Command {
	var flags relationsFlags

	cmd := &cobra.Command{
		Use:   "relations <entity-name>",
		Short: "Walk the relationship graph from an entity",
		Long: `Walks the relationship graph breadth-first from an entity and prints
every reachable entity with the edge it was reached through.

Examples:
  mnemo -o alice relations "Sarah Chen"
  mnemo -o alice relations Maya --depth 3 --min-strength 0.4
  mnemo -o alice relations Maya --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelations(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.depth, "depth", 2, "Traversal depth (1-4)")
	cmd.Flags().Float64Var(&flags.minStrength, "min-strength", 0, "Skip edges weaker than this")
	cmd.Flags().StringVar(&flags.format, "format", "tree", "Output format: tree, json")

	return cmd
}

func runRelations(cmd *cobra.Command, entityName string, flags relationsFlags) error {
	ctx := cmd.Context()

	if flags.depth < 1 || flags.depth > services.MaxTraversalDepth {
		return fmt.Errorf("depth must be between 1 and %d", services.MaxTraversalDepth)
	}
	if flags.format != "tree" && flags.format != "json" {
		return errors.New("invalid format (valid: tree, json)")
	}

	return withDeps(func(d *Deps) error {
		nodes, err := d.EntityHandler.Relations(ctx, d.OwnerID, entityName, flags.depth, flags.minStrength)
		if err != nil {
			return fmt.Errorf("walking relationships: %w", err)
		}

		if len(nodes) == 0 {
			fmt.Printf("No relationships found for entity: %s\n", entityName)
			return nil
		}

		if flags.format == "json" {
			data, err := json.MarshalIndent(nodes, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("%s\n", entityName)
		printNodes(nodes)
		return nil
	})
}
