package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

// Task names, as recorded in the maintenance bookkeeping table and accepted
// on the command line.
const (
	TaskDecay       = "decay"
	TaskConsolidate = "consolidate"
	TaskClassify    = "classify"
	TaskReembed     = "reembed"
	TaskCleanup     = "cleanup_expired"
)

// batchLimit bounds how many entities one maintenance run processes.
const batchLimit = 500

// Report summarizes one maintenance task run.
type Report struct {
	Task      string      `json:"task"`
	Processed int         `json:"processed"`
	Affected  int         `json:"affected"`
	Failures  []ItemError `json:"failures,omitempty"`
	Skipped   bool        `json:"skipped,omitempty"`
}

type task struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context, ownerID string, now time.Time) (*Report, error)
}

// MaintenanceService runs the recurring background work: decay sweeps,
// consolidation, batch importance classification, vector repair, and expired
// inference cleanup. Tasks are idempotent; a single item failure is recorded
// in the report and never aborts the run.
type MaintenanceService struct {
	relationalDB  ports.RelationalDB
	vectorDB      ports.VectorDB
	embedder      ports.Embedder
	decay         *DecayService
	consolidation *ConsolidationService
	importance    *ImportanceService

	tasks []task
}

// NewMaintenanceService creates a new MaintenanceService.
func NewMaintenanceService(relationalDB ports.RelationalDB, vectorDB ports.VectorDB, embedder ports.Embedder, decay *DecayService, consolidation *ConsolidationService, importance *ImportanceService) *MaintenanceService {
	s := &MaintenanceService{
		relationalDB:  relationalDB,
		vectorDB:      vectorDB,
		embedder:      embedder,
		decay:         decay,
		consolidation: consolidation,
		importance:    importance,
	}
	s.tasks = []task{
		{TaskDecay, 24 * time.Hour, s.runDecay},
		{TaskConsolidate, 7 * 24 * time.Hour, s.runConsolidate},
		{TaskClassify, 7 * 24 * time.Hour, s.runClassify},
		{TaskReembed, 24 * time.Hour, s.runReembed},
		{TaskCleanup, 24 * time.Hour, s.runCleanup},
	}
	return s
}

// TaskNames lists the runnable tasks in execution order.
func (s *MaintenanceService) TaskNames() []string {
	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.name
	}
	return names
}

// RunDue executes every task whose interval has elapsed since its last
// recorded run.
func (s *MaintenanceService) RunDue(ctx context.Context, ownerID string, now time.Time) ([]*Report, error) {
	var reports []*Report
	for _, t := range s.tasks {
		last, err := s.relationalDB.LastTaskRun(ctx, ownerID, t.name)
		if err != nil {
			return reports, fmt.Errorf("checking last run of %s: %w", t.name, err)
		}
		if last != nil && now.Sub(*last) < t.interval {
			reports = append(reports, &Report{Task: t.name, Skipped: true})
			continue
		}
		report, err := s.runTask(ctx, ownerID, t, now)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// RunTask executes one named task immediately, ignoring its interval.
func (s *MaintenanceService) RunTask(ctx context.Context, ownerID, name string, now time.Time) (*Report, error) {
	for _, t := range s.tasks {
		if t.name == name {
			return s.runTask(ctx, ownerID, t, now)
		}
	}
	return nil, fmt.Errorf("unknown maintenance task %q", name)
}

func (s *MaintenanceService) runTask(ctx context.Context, ownerID string, t task, now time.Time) (*Report, error) {
	report, err := t.run(ctx, ownerID, now)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", t.name, err)
	}
	report.Task = t.name
	if err := s.relationalDB.RecordTaskRun(ctx, ownerID, t.name, now); err != nil {
		return report, fmt.Errorf("recording %s run: %w", t.name, err)
	}
	return report, nil
}

func (s *MaintenanceService) runDecay(ctx context.Context, ownerID string, now time.Time) (*Report, error) {
	active, err := s.relationalDB.ListEntities(ctx, ownerID, entities.StatusActive, batchLimit, 0)
	if err != nil {
		return nil, err
	}
	report := &Report{}
	for _, entity := range active {
		report.Processed++
		result, err := s.decay.Decay(ctx, entity, now)
		if err != nil {
			report.Failures = append(report.Failures, ItemError{ID: entity.ID, Err: err.Error()})
			continue
		}
		if result.Decayed {
			report.Affected++
		}
		if result.Archived {
			_ = s.relationalDB.LogAction(ctx, ownerID, "archive", entity.ID, map[string]any{
				"score": result.Score,
			})
		}
	}
	return report, nil
}

func (s *MaintenanceService) runConsolidate(ctx context.Context, ownerID string, now time.Time) (*Report, error) {
	records, failures, err := s.consolidation.Run(ctx, ownerID, DefaultMergeThreshold)
	if err != nil {
		return nil, err
	}
	return &Report{
		Processed: len(records) + len(failures),
		Affected:  len(records),
		Failures:  failures,
	}, nil
}

func (s *MaintenanceService) runClassify(ctx context.Context, ownerID string, now time.Time) (*Report, error) {
	active, err := s.relationalDB.ListEntities(ctx, ownerID, entities.StatusActive, batchLimit, 0)
	if err != nil {
		return nil, err
	}
	report := &Report{}
	for _, entity := range active {
		report.Processed++
		before := entity.Tier
		tier, err := s.importance.Classify(ctx, entity)
		if err != nil {
			report.Failures = append(report.Failures, ItemError{ID: entity.ID, Err: err.Error()})
			continue
		}
		if tier != before {
			report.Affected++
		}
	}
	return report, nil
}

// runReembed repairs entities whose vector write failed during ingest.
func (s *MaintenanceService) runReembed(ctx context.Context, ownerID string, now time.Time) (*Report, error) {
	report := &Report{}
	if s.embedder == nil || s.vectorDB == nil {
		return report, nil
	}
	active, err := s.relationalDB.ListEntities(ctx, ownerID, entities.StatusActive, batchLimit, 0)
	if err != nil {
		return nil, err
	}
	for _, entity := range active {
		report.Processed++
		vector, err := s.vectorDB.FindVector(ctx, ownerID, entity.ID)
		if err != nil {
			report.Failures = append(report.Failures, ItemError{ID: entity.ID, Err: err.Error()})
			continue
		}
		if vector != nil {
			continue
		}
		text := entity.Name
		if entity.Summary != "" {
			text += ": " + entity.Summary
		}
		embedded, err := s.embedder.Embed(ctx, text)
		if err != nil {
			report.Failures = append(report.Failures, ItemError{ID: entity.ID, Err: err.Error()})
			continue
		}
		if err := s.vectorDB.SaveVector(ctx, ownerID, entity.ID, embedded); err != nil {
			report.Failures = append(report.Failures, ItemError{ID: entity.ID, Err: err.Error()})
			continue
		}
		report.Affected++
	}
	return report, nil
}

func (s *MaintenanceService) runCleanup(ctx context.Context, ownerID string, now time.Time) (*Report, error) {
	deleted, err := s.relationalDB.DeleteExpiredInferences(ctx, ownerID, now)
	if err != nil {
		return nil, err
	}
	return &Report{Processed: deleted, Affected: deleted}, nil
}
