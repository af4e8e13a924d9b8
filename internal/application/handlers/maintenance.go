package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/services"
)

// MaintenanceHandler handles on-demand maintenance runs.
type MaintenanceHandler struct {
	maintenance   *services.MaintenanceService
	consolidation *services.ConsolidationService
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(maintenance *services.MaintenanceService, consolidation *services.ConsolidationService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance, consolidation: consolidation}
}

// RunDue executes every task whose interval has elapsed.
func (h *MaintenanceHandler) RunDue(ctx context.Context, ownerID string) ([]*services.Report, error) {
	reports, err := h.maintenance.RunDue(ctx, ownerID, time.Now())
	if err != nil {
		return reports, fmt.Errorf("running due maintenance: %w", err)
	}
	return reports, nil
}

// RunTask executes one named task immediately.
func (h *MaintenanceHandler) RunTask(ctx context.Context, ownerID, task string) (*services.Report, error) {
	report, err := h.maintenance.RunTask(ctx, ownerID, task, time.Now())
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Tasks lists the runnable task names.
func (h *MaintenanceHandler) Tasks() []string {
	return h.maintenance.TaskNames()
}

// PreviewConsolidation proposes merge pairs at the given similarity
// threshold without changing anything.
func (h *MaintenanceHandler) PreviewConsolidation(ctx context.Context, ownerID string, threshold float64) ([]entities.MergeCandidate, error) {
	candidates, err := h.consolidation.Preview(ctx, ownerID, threshold)
	if err != nil {
		return nil, fmt.Errorf("previewing consolidation: %w", err)
	}
	return candidates, nil
}

// Consolidate runs a merge sweep at the given similarity threshold.
func (h *MaintenanceHandler) Consolidate(ctx context.Context, ownerID string, threshold float64) (*services.Report, error) {
	records, failures, err := h.consolidation.Run(ctx, ownerID, threshold)
	if err != nil {
		return nil, fmt.Errorf("consolidating: %w", err)
	}
	return &services.Report{
		Task:      services.TaskConsolidate,
		Processed: len(records) + len(failures),
		Affected:  len(records),
		Failures:  failures,
	}, nil
}
