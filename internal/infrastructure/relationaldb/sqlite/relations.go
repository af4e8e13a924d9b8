package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
)

// SaveRelationship saves or updates a relationship edge. Re-observing an
// existing (source, target, type) edge keeps the stronger strength.
func (r *Repository) SaveRelationship(ctx context.Context, rel *entities.Relationship) error {
	if rel.ID == "" {
		rel.ID = generateUUID()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = timeNow()
	}
	if rel.StartedAt.IsZero() {
		rel.StartedAt = rel.CreatedAt
	}

	query := `
		INSERT INTO relationships (id, owner_id, source_entity_id, target_entity_id,
			type, strength, active, started_at, ended_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, source_entity_id, target_entity_id, type) DO UPDATE SET
			strength = MAX(strength, excluded.strength),
			active = excluded.active,
			ended_at = excluded.ended_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rel.ID,
		rel.OwnerID,
		rel.SourceEntityID,
		rel.TargetEntityID,
		string(rel.Type),
		rel.Strength,
		boolToInt(rel.Active),
		rel.StartedAt,
		nullTime(rel.EndedAt),
		rel.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving relationship: %w", err)
	}
	return nil
}

// FindRelationshipBetween finds a direct edge between two entities in either
// direction. Returns nil if no edge exists.
func (r *Repository) FindRelationshipBetween(ctx context.Context, ownerID, sourceEntityID, targetEntityID string) (*entities.Relationship, error) {
	query := `
		SELECT id, owner_id, source_entity_id, target_entity_id, type, strength,
			active, started_at, ended_at, created_at
		FROM relationships
		WHERE owner_id = ?
			AND ((source_entity_id = ? AND target_entity_id = ?)
			  OR (source_entity_id = ? AND target_entity_id = ?))
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, ownerID, sourceEntityID, targetEntityID, targetEntityID, sourceEntityID)

	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning relationship: %w", err)
	}
	return rel, nil
}

// FindRelationshipsByEntity finds active edges touching an entity with
// strength >= minStrength.
func (r *Repository) FindRelationshipsByEntity(ctx context.Context, ownerID, entityID string, minStrength float64) ([]entities.Relationship, error) {
	query := `
		SELECT id, owner_id, source_entity_id, target_entity_id, type, strength,
			active, started_at, ended_at, created_at
		FROM relationships
		WHERE owner_id = ? AND active = 1 AND strength >= ?
			AND (source_entity_id = ? OR target_entity_id = ?)
		ORDER BY strength DESC
	`
	return r.queryRelationships(ctx, query, ownerID, minStrength, entityID, entityID)
}

// ReassignRelationships re-points edges from one entity to another (merge).
// Edges that would duplicate an existing edge of the winner are dropped.
func (r *Repository) ReassignRelationships(ctx context.Context, ownerID, fromEntityID, toEntityID string) (int, error) {
	moved := 0

	result, err := r.db.ExecContext(ctx, `
		UPDATE OR IGNORE relationships SET source_entity_id = ?
		WHERE owner_id = ? AND source_entity_id = ?
	`, toEntityID, ownerID, fromEntityID)
	if err != nil {
		return 0, fmt.Errorf("reassigning outgoing edges: %w", err)
	}
	rows, _ := result.RowsAffected()
	moved += int(rows)

	result, err = r.db.ExecContext(ctx, `
		UPDATE OR IGNORE relationships SET target_entity_id = ?
		WHERE owner_id = ? AND target_entity_id = ?
	`, toEntityID, ownerID, fromEntityID)
	if err != nil {
		return 0, fmt.Errorf("reassigning incoming edges: %w", err)
	}
	rows, _ = result.RowsAffected()
	moved += int(rows)

	// Drop leftovers that collided with existing winner edges, and any
	// self-loops created by the merge.
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM relationships
		WHERE owner_id = ? AND (source_entity_id = ? OR target_entity_id = ?
			OR source_entity_id = target_entity_id)
	`, ownerID, fromEntityID, fromEntityID); err != nil {
		return 0, fmt.Errorf("cleaning merged edges: %w", err)
	}

	return moved, nil
}

// CountRelationships returns the number of active edges for an owner.
func (r *Repository) CountRelationships(ctx context.Context, ownerID string) (int, error) {
	query := `SELECT COUNT(*) FROM relationships WHERE owner_id = ? AND active = 1`
	var count int
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting relationships: %w", err)
	}
	return count, nil
}

// scanRelationship scans one relationship row.
func scanRelationship(row interface{ Scan(...any) error }) (*entities.Relationship, error) {
	var rel entities.Relationship
	var relType string
	var active int
	var endedAt sql.NullTime

	err := row.Scan(
		&rel.ID,
		&rel.OwnerID,
		&rel.SourceEntityID,
		&rel.TargetEntityID,
		&relType,
		&rel.Strength,
		&active,
		&rel.StartedAt,
		&endedAt,
		&rel.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rel.Type = entities.RelationType(relType)
	rel.Active = active != 0
	if endedAt.Valid {
		rel.EndedAt = &endedAt.Time
	}
	return &rel, nil
}

// queryRelationships is a helper to execute relationship queries.
func (r *Repository) queryRelationships(ctx context.Context, query string, args ...any) ([]entities.Relationship, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	relationships := make([]entities.Relationship, 0, 16)
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		relationships = append(relationships, *rel)
	}
	return relationships, rows.Err()
}

// SaveInference stores a derived connection.
func (r *Repository) SaveInference(ctx context.Context, inf *entities.Inference) error {
	if inf.ID == "" {
		inf.ID = generateUUID()
	}
	if inf.CreatedAt.IsZero() {
		inf.CreatedAt = timeNow()
	}

	evidence, err := json.Marshal(sliceOrEmpty(inf.Evidence))
	if err != nil {
		return fmt.Errorf("marshaling evidence: %w", err)
	}

	query := `
		INSERT INTO inferences (id, owner_id, source_entity_id, target_entity_id,
			relation, confidence, evidence, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		inf.ID,
		inf.OwnerID,
		inf.SourceEntityID,
		inf.TargetEntityID,
		inf.Relation,
		inf.Confidence,
		string(evidence),
		inf.ExpiresAt,
		inf.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving inference: %w", err)
	}
	return nil
}

// FindInferencesByEntity returns unexpired inferences touching an entity.
func (r *Repository) FindInferencesByEntity(ctx context.Context, ownerID, entityID string, now time.Time) ([]entities.Inference, error) {
	query := `
		SELECT id, owner_id, source_entity_id, target_entity_id, relation,
			confidence, evidence, expires_at, created_at
		FROM inferences
		WHERE owner_id = ? AND expires_at > ?
			AND (source_entity_id = ? OR target_entity_id = ?)
		ORDER BY confidence DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, now, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying inferences: %w", err)
	}
	defer rows.Close()

	inferences := make([]entities.Inference, 0, 8)
	for rows.Next() {
		var inf entities.Inference
		var evidence string
		if err := rows.Scan(
			&inf.ID,
			&inf.OwnerID,
			&inf.SourceEntityID,
			&inf.TargetEntityID,
			&inf.Relation,
			&inf.Confidence,
			&evidence,
			&inf.ExpiresAt,
			&inf.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning inference: %w", err)
		}
		if err := json.Unmarshal([]byte(evidence), &inf.Evidence); err != nil {
			return nil, fmt.Errorf("parsing evidence: %w", err)
		}
		inferences = append(inferences, inf)
	}
	return inferences, rows.Err()
}

// DeleteExpiredInferences removes inferences past their expiry.
func (r *Repository) DeleteExpiredInferences(ctx context.Context, ownerID string, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM inferences WHERE owner_id = ? AND expires_at <= ?`, ownerID, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired inferences: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
