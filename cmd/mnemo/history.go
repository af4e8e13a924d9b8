package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var predicate string

	cmd := &cobra.Command{
		Use:   "history <entity-name>",
		Short: "Show the version history of an entity's facts",
		Long: `Prints every recorded fact for an entity, including superseded
versions, so you can see how the truth changed over time.

Examples:
  mnemo -o alice history "Sarah Chen"
  mnemo -o alice history me --predicate works_at`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args[0], predicate)
		},
	}

	cmd.Flags().StringVarP(&predicate, "predicate", "p", "", "Only show facts with this predicate")

	return cmd
}

func runHistory(cmd *cobra.Command, name, predicate string) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		facts, err := d.EntityHandler.History(ctx, d.OwnerID, name, predicate)
		if err != nil {
			return fmt.Errorf("loading history: %w", err)
		}

		if len(facts) == 0 {
			fmt.Println("No facts recorded.")
			return nil
		}

		fmt.Printf("History for %s (%d facts):\n\n", name, len(facts))
		for _, fact := range facts {
			span := fact.ValidFrom.Format("2006-01-02")
			if fact.ValidTo != nil {
				span += " .. " + fact.ValidTo.Format("2006-01-02")
			} else {
				span += " .. now"
			}
			fmt.Printf("  v%d %s %s  [%s]  conf %.2f\n",
				fact.Version, fact.Predicate, fact.ObjectText, span, fact.Confidence)
		}
		return nil
	})
}
