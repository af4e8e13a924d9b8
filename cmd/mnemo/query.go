package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/services"
)

func newQueryCmd() *cobra.Command {
	var (
		limit           int
		sensitivity     string
		includeArchived bool
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question about what the store knows",
		Long: `Routes a natural language question to the right lookup strategy and
prints the answer.

Examples:
  mnemo -o alice query "what do you know about me?"
  mnemo -o alice query "where does Sarah work?"
  mnemo -o alice query "where did I use to work?" --include-archived
  mnemo -o alice query "how is Maya connected to Acme?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], limit, sensitivity, includeArchived)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultQueryLimit, "Maximum number of results")
	cmd.Flags().StringVar(&sensitivity, "sensitivity", string(entities.SensitivityNormal), "Sensitivity ceiling (public, normal, sensitive, private)")
	cmd.Flags().BoolVar(&includeArchived, "include-archived", false, "Search archived entities too")

	return cmd
}

func runQuery(cmd *cobra.Command, query string, limit int, sensitivity string, includeArchived bool) error {
	ctx := cmd.Context()

	ceiling := entities.Sensitivity(sensitivity)
	if !ceiling.Valid() {
		return fmt.Errorf("invalid sensitivity %q (valid: public, normal, sensitive, private)", sensitivity)
	}

	return withDeps(func(d *Deps) error {
		answer, err := d.QueryHandler.Handle(ctx, d.OwnerID, query, ceiling, includeArchived, limit)
		if err != nil {
			return fmt.Errorf("answering query: %w", err)
		}

		printAnswer(answer)
		return nil
	})
}

func printAnswer(answer *services.Answer) {
	fmt.Printf("Intent: %s\n", answer.Intent)
	if answer.Degraded {
		fmt.Println("(semantic search unavailable, ranked by importance and recency)")
	}
	fmt.Println()

	if answer.Context != nil {
		printEntityContext(answer.Context)
		return
	}

	if len(answer.Facts) > 0 {
		for _, fact := range answer.Facts {
			printFact(&fact)
		}
		return
	}

	if len(answer.Nodes) > 0 {
		printNodes(answer.Nodes)
		return
	}

	if len(answer.Results) == 0 {
		fmt.Println("Nothing found.")
		return
	}

	for i, result := range answer.Results {
		entity := result.Entity
		fmt.Printf("%d. %s (%s, %.2f)\n", i+1, entity.Name, entity.Kind, result.Score)
		if entity.Summary != "" {
			fmt.Printf("   %s\n", entity.Summary)
		}
	}
}

func printEntityContext(ec *services.EntityContext) {
	entity := ec.Entity
	fmt.Printf("%s (%s)\n", entity.Name, entity.Kind)
	if entity.Summary != "" {
		fmt.Printf("  %s\n", entity.Summary)
	}
	fmt.Printf("  tier: %s  score: %.2f  mentions: %d\n", entity.Tier, entity.ImportanceScore, entity.MentionCount)

	if len(ec.Facts) > 0 {
		fmt.Println("\nFacts:")
		for _, fact := range ec.Facts {
			printFact(&fact)
		}
	}

	if len(ec.Relationships) > 0 {
		fmt.Println("\nRelationships:")
		for _, rel := range ec.Relationships {
			otherID := rel.TargetEntityID
			if otherID == entity.ID {
				otherID = rel.SourceEntityID
			}
			otherName := otherID
			if neighbor, ok := ec.Neighbors[otherID]; ok && neighbor != nil {
				otherName = neighbor.Name
			}
			fmt.Printf("  -[%s %.2f]-> %s\n", rel.Type, rel.Strength, otherName)
		}
	}

	if len(ec.Inferences) > 0 {
		fmt.Println("\nInferences:")
		for _, inf := range ec.Inferences {
			fmt.Printf("  %s -> %s (%.2f)\n", inf.Relation, inf.TargetEntityID, inf.Confidence)
		}
	}
}

func printFact(fact *entities.Fact) {
	line := fmt.Sprintf("  %s %s", fact.Predicate, fact.ObjectText)
	if fact.ValidTo != nil {
		line += fmt.Sprintf(" (ended %s)", fact.ValidTo.Format("2006-01-02"))
	}
	fmt.Println(line)
}

func printNodes(nodes []services.GraphNode) {
	for _, node := range nodes {
		indent := ""
		for i := 0; i < node.Depth; i++ {
			indent += "  "
		}
		if node.Via == nil {
			fmt.Printf("%s%s\n", indent, node.Entity.Name)
			continue
		}
		fmt.Printf("%s-[%s %.2f]-> %s\n", indent, node.Via.Type, node.Strength, node.Entity.Name)
	}
}
