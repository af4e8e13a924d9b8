package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/domain/services"
)

func newPredicatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predicates",
		Short: "Manage the predicate vocabulary",
	}

	cmd.AddCommand(newPredicatesListCmd())
	cmd.AddCommand(newPredicatesAddCmd())
	cmd.AddCommand(newPredicatesRemoveCmd())

	return cmd
}

func newPredicatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known predicates",
		RunE:  runPredicatesList,
	}
}

func runPredicatesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withPredicateService(func(predicates *services.PredicateService) error {
		list, err := predicates.List(ctx)
		if err != nil {
			return fmt.Errorf("listing predicates: %w", err)
		}

		fmt.Printf("Predicates (%d):\n\n", len(list))
		for _, p := range list {
			cardinality := "multi"
			if p.SingleValue {
				cardinality = "single"
			}
			fmt.Printf("  %-24s %-8s %s\n", p.Name, cardinality, p.Description)
		}
		return nil
	})
}

func newPredicatesAddCmd() *cobra.Command {
	var (
		description string
		singleValue bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a custom predicate",
		Long: `Adds a predicate to the vocabulary. Names must be lowercase
snake_case. Single-valued predicates supersede their previous value on
contradiction; multi-valued predicates accumulate.

Examples:
  mnemo -o alice predicates add allergic_to --description "Known allergies"
  mnemo -o alice predicates add favorite_food --single`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredicatesAdd(cmd, args[0], description, singleValue)
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "What the predicate records")
	cmd.Flags().BoolVar(&singleValue, "single", false, "Only one value may be open at a time")

	return cmd
}

func runPredicatesAdd(cmd *cobra.Command, name, description string, singleValue bool) error {
	ctx := cmd.Context()

	return withPredicateService(func(predicates *services.PredicateService) error {
		if err := predicates.Add(ctx, name, description, singleValue); err != nil {
			return fmt.Errorf("adding predicate: %w", err)
		}
		fmt.Printf("Added predicate: %s\n", name)
		return nil
	})
}

func newPredicatesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a custom predicate",
		Long:  "Removes a custom predicate. Built-in predicates cannot be removed.",
		Args:  cobra.ExactArgs(1),
		RunE:  runPredicatesRemove,
	}
}

func runPredicatesRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := args[0]

	return withPredicateService(func(predicates *services.PredicateService) error {
		if err := predicates.Remove(ctx, name); err != nil {
			return fmt.Errorf("removing predicate: %w", err)
		}
		fmt.Printf("Removed predicate: %s\n", name)
		return nil
	})
}
