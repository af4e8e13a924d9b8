package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
)

// SaveSource records a fact source.
func (r *Repository) SaveSource(ctx context.Context, src *entities.Source) error {
	if src.ID == "" {
		src.ID = generateUUID()
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = timeNow()
	}

	query := `
		INSERT INTO sources (id, owner_id, kind, reference, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, src.ID, src.OwnerID, src.Kind, src.Reference, src.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving source: %w", err)
	}
	return nil
}

// DeleteSource removes a source and soft-deletes its facts in one
// transaction. This is the only cascade in the engine.
func (r *Repository) DeleteSource(ctx context.Context, ownerID, sourceID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx,
		`UPDATE facts SET deleted = 1 WHERE owner_id = ? AND source_id = ?`, ownerID, sourceID)
	if err != nil {
		return 0, fmt.Errorf("soft-deleting facts: %w", err)
	}
	rows, _ := result.RowsAffected()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sources WHERE owner_id = ? AND id = ?`, ownerID, sourceID); err != nil {
		return 0, fmt.Errorf("deleting source: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing source delete: %w", err)
	}
	return int(rows), nil
}

// SavePredicate saves or updates a predicate declaration.
func (r *Repository) SavePredicate(ctx context.Context, pred *entities.Predicate) error {
	if pred.CreatedAt.IsZero() {
		pred.CreatedAt = timeNow()
	}
	query := `
		INSERT INTO predicates (name, description, single_value, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			single_value = excluded.single_value
	`
	_, err := r.db.ExecContext(ctx, query, pred.Name, pred.Description, boolToInt(pred.SingleValue), pred.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving predicate: %w", err)
	}
	return nil
}

// FindPredicate finds a predicate by name.
func (r *Repository) FindPredicate(ctx context.Context, name string) (*entities.Predicate, error) {
	query := `SELECT name, description, single_value, created_at FROM predicates WHERE name = ?`
	row := r.db.QueryRowContext(ctx, query, name)

	var pred entities.Predicate
	var singleValue int
	err := row.Scan(&pred.Name, &pred.Description, &singleValue, &pred.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning predicate: %w", err)
	}
	pred.SingleValue = singleValue != 0
	return &pred, nil
}

// ListPredicates lists all predicate declarations.
func (r *Repository) ListPredicates(ctx context.Context) ([]entities.Predicate, error) {
	query := `SELECT name, description, single_value, created_at FROM predicates ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying predicates: %w", err)
	}
	defer rows.Close()

	predicates := make([]entities.Predicate, 0, 16)
	for rows.Next() {
		var pred entities.Predicate
		var singleValue int
		if err := rows.Scan(&pred.Name, &pred.Description, &singleValue, &pred.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning predicate: %w", err)
		}
		pred.SingleValue = singleValue != 0
		predicates = append(predicates, pred)
	}
	return predicates, rows.Err()
}

// DeletePredicate deletes a custom predicate by name.
func (r *Repository) DeletePredicate(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM predicates WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting predicate: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("predicate not found: %s", name)
	}
	return nil
}

// SaveMergeRecord logs a consolidation merge.
func (r *Repository) SaveMergeRecord(ctx context.Context, rec *entities.MergeRecord) error {
	if rec.ID == "" {
		rec.ID = generateUUID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = timeNow()
	}

	query := `
		INSERT INTO merge_log (id, owner_id, winner_id, loser_id, similarity,
			winner_before, loser_snapshot, winner_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.WinnerID,
		rec.LoserID,
		rec.Similarity,
		rec.WinnerBefore,
		rec.LoserSnapshot,
		rec.WinnerAfter,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving merge record: %w", err)
	}
	return nil
}

// ListMergeRecords returns merge records, newest first.
func (r *Repository) ListMergeRecords(ctx context.Context, ownerID string, limit int) ([]entities.MergeRecord, error) {
	query := `
		SELECT id, owner_id, winner_id, loser_id, similarity,
			winner_before, loser_snapshot, winner_after, created_at
		FROM merge_log
		WHERE owner_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying merge log: %w", err)
	}
	defer rows.Close()

	records := make([]entities.MergeRecord, 0, limit)
	for rows.Next() {
		var rec entities.MergeRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&rec.WinnerID,
			&rec.LoserID,
			&rec.Similarity,
			&rec.WinnerBefore,
			&rec.LoserSnapshot,
			&rec.WinnerAfter,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning merge record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastTaskRun returns when the named maintenance task last ran, or nil.
func (r *Repository) LastTaskRun(ctx context.Context, ownerID, task string) (*time.Time, error) {
	query := `SELECT last_run_at FROM maintenance_runs WHERE owner_id = ? AND task = ?`
	var at time.Time
	err := r.db.QueryRowContext(ctx, query, ownerID, task).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying task run: %w", err)
	}
	return &at, nil
}

// RecordTaskRun stores the completion time of a maintenance task.
func (r *Repository) RecordTaskRun(ctx context.Context, ownerID, task string, at time.Time) error {
	query := `
		INSERT INTO maintenance_runs (owner_id, task, last_run_at)
		VALUES (?, ?, ?)
		ON CONFLICT(owner_id, task) DO UPDATE SET last_run_at = excluded.last_run_at
	`
	if _, err := r.db.ExecContext(ctx, query, ownerID, task, at); err != nil {
		return fmt.Errorf("recording task run: %w", err)
	}
	return nil
}

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, ownerID, action, entityID string, details map[string]any) error {
	var detailsJSON []byte
	var err error

	if details != nil {
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_log (owner_id, action, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, ownerID, action, nullString(entityID), string(detailsJSON), timeNow())
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog finds audit log entries for a specific entity.
func (r *Repository) FindAuditLog(ctx context.Context, ownerID, entityID string) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, owner_id, action, entity_id, details, created_at
		FROM audit_log
		WHERE owner_id = ? AND entity_id = ?
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	result := make([]entities.AuditEntry, 0, 16)
	for rows.Next() {
		var entry entities.AuditEntry
		var entityIDCol, details sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.OwnerID,
			&entry.Action,
			&entityIDCol,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entry.EntityID = entityIDCol.String
		if details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("parsing audit details: %w", err)
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
