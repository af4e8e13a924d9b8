package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/services"
)

type maintainFlags struct {
	force     bool
	preview   bool
	threshold float64
}

func newMaintainCmd() *cobra.Command {
	var flags maintainFlags

	cmd := &cobra.Command{
		Use:   "maintain [task]",
		Short: "Run store maintenance",
		Long: `Runs background maintenance for an owner's store. Without arguments,
runs every task whose interval has elapsed. Pass a task name to run
one task immediately regardless of its schedule.

Tasks: decay, consolidate, classify, reembed, cleanup_expired

The consolidate task takes an optional similarity threshold and a
preview mode that proposes merge pairs without applying them.

Examples:
  mnemo -o alice maintain
  mnemo -o alice maintain decay
  mnemo -o alice maintain consolidate --preview --threshold 0.85`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := ""
			if len(args) > 0 {
				task = args[0]
			}
			return runMaintain(cmd, task, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.force, "force", false, "Ignore schedules and run every task")
	cmd.Flags().BoolVar(&flags.preview, "preview", false, "Propose consolidation merges without applying them")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", 0, "Consolidation similarity threshold (default 0.92)")

	return cmd
}

func runMaintain(cmd *cobra.Command, task string, flags maintainFlags) error {
	ctx := cmd.Context()

	if (flags.preview || flags.threshold > 0) && task != services.TaskConsolidate {
		return fmt.Errorf("--preview and --threshold only apply to the %s task", services.TaskConsolidate)
	}

	return withDeps(func(d *Deps) error {
		if task == services.TaskConsolidate {
			if flags.preview {
				candidates, err := d.MaintenanceHandler.PreviewConsolidation(ctx, d.OwnerID, flags.threshold)
				if err != nil {
					return err
				}
				printMergeCandidates(candidates)
				return nil
			}
			report, err := d.MaintenanceHandler.Consolidate(ctx, d.OwnerID, flags.threshold)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		}

		if task != "" {
			report, err := d.MaintenanceHandler.RunTask(ctx, d.OwnerID, task)
			if err != nil {
				return fmt.Errorf("running %s: %w", task, err)
			}
			printReport(report)
			return nil
		}

		if flags.force {
			for _, name := range d.MaintenanceHandler.Tasks() {
				report, err := d.MaintenanceHandler.RunTask(ctx, d.OwnerID, name)
				if err != nil {
					return fmt.Errorf("running %s: %w", name, err)
				}
				printReport(report)
			}
			return nil
		}

		reports, err := d.MaintenanceHandler.RunDue(ctx, d.OwnerID)
		if err != nil {
			return fmt.Errorf("running maintenance: %w", err)
		}
		for _, report := range reports {
			printReport(report)
		}
		return nil
	})
}

func printMergeCandidates(candidates []entities.MergeCandidate) {
	if len(candidates) == 0 {
		fmt.Println("No merge candidates.")
		return
	}
	for _, c := range candidates {
		fmt.Printf("%s <- %s (similarity %.2f)\n", c.KeeperName, c.LoserName, c.Similarity)
	}
}

func printReport(report *services.Report) {
	if report.Skipped {
		fmt.Printf("%-16s skipped (not due)\n", report.Task)
		return
	}
	fmt.Printf("%-16s processed %d, affected %d\n", report.Task, report.Processed, report.Affected)
	for _, failure := range report.Failures {
		fmt.Fprintf(os.Stderr, "  ! %s: %s\n", failure.ID, strings.TrimSpace(failure.Err))
	}
}
