package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
)

func newIngestCmd() *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "ingest [text]",
		Short: "Extract and store facts from text",
		Long:  "Extracts candidate facts using the LLM, versions them against the store, and embeds new entities.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			origin := "cli"
			if len(args) > 0 {
				text = args[0]
			}
			if fromFile != "" {
				data, err := os.ReadFile(fromFile)
				if err != nil {
					return fmt.Errorf("reading %s: %w", fromFile, err)
				}
				text = string(data)
				origin = fromFile
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("provide text as an argument or use --file")
			}
			return withDeps(func(d *Deps) error {
				return runIngest(cmd, d, text, origin)
			})
		},
	}

	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read text from a file instead of the argument")
	return cmd
}

func runIngest(cmd *cobra.Command, d *Deps, text, origin string) error {
	result, err := d.IngestHandler.Handle(cmd.Context(), d.OwnerID, text, origin)
	if err != nil {
		return err
	}

	fmt.Printf("Stored %d new, %d updated, %d re-observed, %d appended, %d skipped\n",
		result.Inserted, result.Superseded, result.Reobserved, result.Appended, result.Skipped)

	for _, outcome := range result.Outcomes {
		if outcome.Fact == nil {
			continue
		}
		marker := "+"
		if outcome.Status == entities.IngestSuperseded {
			marker = "~"
		}
		fmt.Printf("  %s %s %s %s\n", marker, outcome.Entity.Name, outcome.Fact.Predicate, outcome.Fact.ObjectText)
	}
	for _, failure := range result.Failures {
		fmt.Fprintf(os.Stderr, "  ! %s: %s\n", failure.ID, failure.Err)
	}
	return nil
}
