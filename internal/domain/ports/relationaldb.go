package ports

import (
	"context"
	"errors"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
)

// ErrDuplicateActiveFact is returned when inserting a fact would violate the
// one-open-fact-per-single-valued-predicate constraint. Callers retry once
// with a fresh read.
var ErrDuplicateActiveFact = errors.New("duplicate active fact for single-valued predicate")

// RelationalDB defines the interface for relational database operations.
// Every method is scoped to one owner; implementations must never let data
// cross owner boundaries.
type RelationalDB interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Entity operations

	// SaveEntity inserts an entity, or updates its name if one with the same
	// normalized name already exists for the owner.
	SaveEntity(ctx context.Context, entity *entities.Entity) error

	// UpdateEntity rewrites all mutable fields of an entity.
	UpdateEntity(ctx context.Context, entity *entities.Entity) error

	// FindOrCreateEntity finds an entity by name or atomically creates it.
	FindOrCreateEntity(ctx context.Context, entity *entities.Entity) (*entities.Entity, error)

	// FindEntityByID finds an entity by its ID. Returns nil if not found.
	FindEntityByID(ctx context.Context, ownerID, entityID string) (*entities.Entity, error)

	// FindEntityByName finds an entity by its normalized name.
	FindEntityByName(ctx context.Context, ownerID, name string) (*entities.Entity, error)

	// FindEntitiesByIDs finds multiple entities in a single query.
	FindEntitiesByIDs(ctx context.Context, ownerID string, ids []string) ([]*entities.Entity, error)

	// ListEntities lists entities with the given status, paginated.
	ListEntities(ctx context.Context, ownerID string, status entities.Status, limit, offset int) ([]*entities.Entity, error)

	// SearchEntities searches entities by name pattern (active only).
	SearchEntities(ctx context.Context, ownerID, query string, limit int) ([]*entities.Entity, error)

	// CountEntities returns the number of entities with the given status.
	CountEntities(ctx context.Context, ownerID string, status entities.Status) (int, error)

	// ApplyDecay persists decay bookkeeping for an active entity. Only score
	// related fields are touched. Returns false if the row was not active.
	ApplyDecay(ctx context.Context, ownerID, entityID string, score float64, status entities.Status, decayedAt time.Time) (bool, error)

	// ArchiveEntity soft-archives an active entity, optionally recording the
	// winner that superseded it. Returns false if the entity was not active
	// (already merged or archived by a concurrent run).
	ArchiveEntity(ctx context.Context, ownerID, entityID, supersededBy string, at time.Time) (bool, error)

	// TouchEntities bumps access_count and last_accessed_at on the given
	// entities (retrieval feedback).
	TouchEntities(ctx context.Context, ownerID string, ids []string, at time.Time) error

	// Fact operations

	// InsertFact inserts a fact. Returns ErrDuplicateActiveFact when the
	// single-active constraint is violated by a concurrent writer.
	InsertFact(ctx context.Context, fact *entities.Fact) error

	// SupersedeFact atomically closes the old fact and inserts its successor
	// in one transaction.
	SupersedeFact(ctx context.Context, oldFactID string, closedAt time.Time, successor *entities.Fact) error

	// UpdateFactConfidence raises a fact's confidence (re-observation).
	UpdateFactConfidence(ctx context.Context, ownerID, factID string, confidence float64) error

	// FindFactByID finds a fact by ID. Returns nil if not found.
	FindFactByID(ctx context.Context, ownerID, factID string) (*entities.Fact, error)

	// FindOpenFacts returns non-deleted facts with valid_to unset for an
	// (entity, predicate) pair.
	FindOpenFacts(ctx context.Context, ownerID, entityID, predicate string) ([]entities.Fact, error)

	// FindFactsByEntity returns facts for an entity, newest first. When
	// includeClosed is false only open facts are returned.
	FindFactsByEntity(ctx context.Context, ownerID, entityID string, includeClosed bool) ([]entities.Fact, error)

	// FindFactsByPredicates returns open facts matching any of the given
	// predicates, newest first.
	FindFactsByPredicates(ctx context.Context, ownerID string, predicates []string, limit int) ([]entities.Fact, error)

	// FindFactsInWindow returns facts whose validity started in [from, to).
	FindFactsInWindow(ctx context.Context, ownerID string, from, to time.Time, limit int) ([]entities.Fact, error)

	// FindClosedFacts returns facts that are no longer true, newest first.
	FindClosedFacts(ctx context.Context, ownerID string, limit int) ([]entities.Fact, error)

	// FindVersionChain walks a fact's version history from the given fact
	// back to version 1, newest first.
	FindVersionChain(ctx context.Context, ownerID, factID string) ([]entities.Fact, error)

	// ReassignFacts moves all facts from one entity to another (merge).
	// Returns the number of facts moved.
	ReassignFacts(ctx context.Context, ownerID, fromEntityID, toEntityID string) (int, error)

	// Relationship operations

	// SaveRelationship saves or updates a relationship edge.
	SaveRelationship(ctx context.Context, rel *entities.Relationship) error

	// FindRelationshipBetween finds a direct edge between two entities.
	// Returns nil if no edge exists.
	FindRelationshipBetween(ctx context.Context, ownerID, sourceEntityID, targetEntityID string) (*entities.Relationship, error)

	// FindRelationshipsByEntity finds active edges touching an entity with
	// strength >= minStrength.
	FindRelationshipsByEntity(ctx context.Context, ownerID, entityID string, minStrength float64) ([]entities.Relationship, error)

	// ReassignRelationships re-points edges from one entity to another
	// (merge). Returns the number of edges moved.
	ReassignRelationships(ctx context.Context, ownerID, fromEntityID, toEntityID string) (int, error)

	// CountRelationships returns the number of active edges for an owner.
	CountRelationships(ctx context.Context, ownerID string) (int, error)

	// Inference operations

	// SaveInference stores a derived connection.
	SaveInference(ctx context.Context, inf *entities.Inference) error

	// FindInferencesByEntity returns unexpired inferences touching an entity.
	FindInferencesByEntity(ctx context.Context, ownerID, entityID string, now time.Time) ([]entities.Inference, error)

	// DeleteExpiredInferences removes inferences past their expiry. Returns
	// the number of rows deleted.
	DeleteExpiredInferences(ctx context.Context, ownerID string, now time.Time) (int, error)

	// Source operations

	// SaveSource records a fact source.
	SaveSource(ctx context.Context, src *entities.Source) error

	// DeleteSource removes a source and soft-deletes its facts (the only
	// cascade in the engine). Returns the number of facts soft-deleted.
	DeleteSource(ctx context.Context, ownerID, sourceID string) (int, error)

	// Predicate operations

	// SavePredicate saves or updates a predicate declaration.
	SavePredicate(ctx context.Context, pred *entities.Predicate) error

	// FindPredicate finds a predicate by name. Returns nil if not found.
	FindPredicate(ctx context.Context, name string) (*entities.Predicate, error)

	// ListPredicates lists all predicate declarations.
	ListPredicates(ctx context.Context) ([]entities.Predicate, error)

	// DeletePredicate deletes a custom predicate by name.
	DeletePredicate(ctx context.Context, name string) error

	// Merge log operations

	// SaveMergeRecord logs a consolidation merge.
	SaveMergeRecord(ctx context.Context, rec *entities.MergeRecord) error

	// ListMergeRecords returns merge records, newest first.
	ListMergeRecords(ctx context.Context, ownerID string, limit int) ([]entities.MergeRecord, error)

	// Maintenance bookkeeping

	// LastTaskRun returns when the named maintenance task last ran, or nil.
	LastTaskRun(ctx context.Context, ownerID, task string) (*time.Time, error)

	// RecordTaskRun stores the completion time of a maintenance task.
	RecordTaskRun(ctx context.Context, ownerID, task string, at time.Time) error

	// Audit log

	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, ownerID, action, entityID string, details map[string]any) error

	// FindAuditLog finds audit log entries for a specific entity.
	FindAuditLog(ctx context.Context, ownerID, entityID string) ([]entities.AuditEntry, error)
}
