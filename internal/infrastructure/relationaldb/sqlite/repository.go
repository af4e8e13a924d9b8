// Package sqlite provides a SQLite implementation of the RelationalDB interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/config"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.RelationalDB using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Entities (named subjects: people, places, projects, topics)
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		normalized_name TEXT NOT NULL,
		aliases TEXT NOT NULL DEFAULT '[]',
		kind TEXT NOT NULL DEFAULT 'other',
		summary TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT 'medium',
		importance_score REAL NOT NULL DEFAULT 0.5,
		sensitivity TEXT NOT NULL DEFAULT 'normal',
		status TEXT NOT NULL DEFAULT 'active',
		mention_count INTEGER NOT NULL DEFAULT 0,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_mentioned_at TIMESTAMP NOT NULL,
		last_decay_at TIMESTAMP,
		last_accessed_at TIMESTAMP,
		superseded_by TEXT,
		recent_context TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(owner_id, normalized_name)
	);
	CREATE INDEX IF NOT EXISTS idx_entities_owner ON entities(owner_id, status);
	CREATE INDEX IF NOT EXISTS idx_entities_normalized ON entities(owner_id, normalized_name);

	-- Facts (bi-temporal subject-predicate-object statements)
	CREATE TABLE IF NOT EXISTS facts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object_text TEXT NOT NULL,
		object_entity_id TEXT,
		confidence REAL NOT NULL,
		exclusive INTEGER NOT NULL DEFAULT 0,
		valid_from TIMESTAMP NOT NULL,
		valid_to TIMESTAMP,
		invalidated_at TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		previous_version_id TEXT,
		source_id TEXT,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_facts_entity ON facts(owner_id, entity_id, predicate);
	CREATE INDEX IF NOT EXISTS idx_facts_source ON facts(owner_id, source_id);
	-- At most one open fact per (entity, single-valued predicate).
	CREATE UNIQUE INDEX IF NOT EXISTS idx_facts_single_active
		ON facts(owner_id, entity_id, predicate)
		WHERE valid_to IS NULL AND exclusive = 1 AND deleted = 0;

	-- Relationship edges (directed, weighted)
	CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		source_entity_id TEXT NOT NULL,
		target_entity_id TEXT NOT NULL,
		type TEXT NOT NULL,
		strength REAL NOT NULL DEFAULT 0.5,
		active INTEGER NOT NULL DEFAULT 1,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(owner_id, source_entity_id, target_entity_id, type)
	);
	CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(owner_id, source_entity_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(owner_id, target_entity_id);

	-- Inferences (derived connections, auto-expiring)
	CREATE TABLE IF NOT EXISTS inferences (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		source_entity_id TEXT NOT NULL,
		target_entity_id TEXT NOT NULL,
		relation TEXT NOT NULL,
		confidence REAL NOT NULL,
		evidence TEXT NOT NULL DEFAULT '[]',
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_inferences_owner ON inferences(owner_id, expires_at);

	-- Fact sources (deleting one cascades a soft delete to its facts)
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		reference TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Predicate declarations (single-valued vs multi-valued)
	CREATE TABLE IF NOT EXISTS predicates (
		name TEXT PRIMARY KEY,
		description TEXT,
		single_value INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Merge log (reversible-reasoning records from consolidation)
	CREATE TABLE IF NOT EXISTS merge_log (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		winner_id TEXT NOT NULL,
		loser_id TEXT NOT NULL,
		similarity REAL NOT NULL,
		winner_before TEXT NOT NULL,
		loser_snapshot TEXT NOT NULL,
		winner_after TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_merge_log_owner ON merge_log(owner_id, created_at);

	-- Maintenance task bookkeeping
	CREATE TABLE IF NOT EXISTS maintenance_runs (
		owner_id TEXT NOT NULL,
		task TEXT NOT NULL,
		last_run_at TIMESTAMP NOT NULL,
		PRIMARY KEY (owner_id, task)
	);

	-- Audit log (tracks all actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(owner_id, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(owner_id, action);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const entityColumns = `id, owner_id, name, normalized_name, aliases, kind, summary, tier,
		importance_score, sensitivity, status, mention_count, access_count,
		last_mentioned_at, last_decay_at, last_accessed_at, superseded_by,
		recent_context, version, created_at, updated_at`

// scanEntity scans one entity row from a *sql.Row or *sql.Rows.
func scanEntity(row interface{ Scan(...any) error }) (*entities.Entity, error) {
	var e entities.Entity
	var aliases, recentContext string
	var lastDecayAt, lastAccessedAt sql.NullTime
	var supersededBy sql.NullString

	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.Name,
		&e.NormalizedName,
		&aliases,
		&e.Kind,
		&e.Summary,
		&e.Tier,
		&e.ImportanceScore,
		&e.Sensitivity,
		&e.Status,
		&e.MentionCount,
		&e.AccessCount,
		&e.LastMentionedAt,
		&lastDecayAt,
		&lastAccessedAt,
		&supersededBy,
		&recentContext,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(aliases), &e.Aliases); err != nil {
		return nil, fmt.Errorf("parsing aliases: %w", err)
	}
	if err := json.Unmarshal([]byte(recentContext), &e.RecentContext); err != nil {
		return nil, fmt.Errorf("parsing recent context: %w", err)
	}
	if lastDecayAt.Valid {
		e.LastDecayAt = &lastDecayAt.Time
	}
	if lastAccessedAt.Valid {
		e.LastAccessedAt = &lastAccessedAt.Time
	}
	e.SupersededBy = supersededBy.String
	return &e, nil
}

// entityArgs builds the insert/update argument list for an entity.
func entityArgs(e *entities.Entity) ([]any, error) {
	aliases, err := json.Marshal(sliceOrEmpty(e.Aliases))
	if err != nil {
		return nil, fmt.Errorf("marshaling aliases: %w", err)
	}
	recentContext, err := json.Marshal(sliceOrEmpty(e.RecentContext))
	if err != nil {
		return nil, fmt.Errorf("marshaling recent context: %w", err)
	}
	return []any{
		e.ID,
		e.OwnerID,
		e.Name,
		e.NormalizedName,
		string(aliases),
		string(e.Kind),
		e.Summary,
		string(e.Tier),
		e.ImportanceScore,
		string(e.Sensitivity),
		string(e.Status),
		e.MentionCount,
		e.AccessCount,
		e.LastMentionedAt,
		nullTime(e.LastDecayAt),
		nullTime(e.LastAccessedAt),
		nullString(e.SupersededBy),
		string(recentContext),
		e.Version,
		e.CreatedAt,
		e.UpdatedAt,
	}, nil
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// SaveEntity inserts an entity, or updates its display name if one with the
// same normalized name already exists for the owner.
func (r *Repository) SaveEntity(ctx context.Context, entity *entities.Entity) error {
	args, err := entityArgs(entity)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO entities (` + entityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, normalized_name) DO UPDATE SET
			name = excluded.name
	`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving entity: %w", err)
	}
	return nil
}

// UpdateEntity rewrites all mutable fields of an entity.
func (r *Repository) UpdateEntity(ctx context.Context, entity *entities.Entity) error {
	aliases, err := json.Marshal(sliceOrEmpty(entity.Aliases))
	if err != nil {
		return fmt.Errorf("marshaling aliases: %w", err)
	}
	recentContext, err := json.Marshal(sliceOrEmpty(entity.RecentContext))
	if err != nil {
		return fmt.Errorf("marshaling recent context: %w", err)
	}

	query := `
		UPDATE entities SET
			name = ?, normalized_name = ?, aliases = ?, kind = ?, summary = ?,
			tier = ?, importance_score = ?, sensitivity = ?, status = ?,
			mention_count = ?, access_count = ?, last_mentioned_at = ?,
			last_decay_at = ?, last_accessed_at = ?, superseded_by = ?,
			recent_context = ?, version = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		entity.Name,
		entity.NormalizedName,
		string(aliases),
		string(entity.Kind),
		entity.Summary,
		string(entity.Tier),
		entity.ImportanceScore,
		string(entity.Sensitivity),
		string(entity.Status),
		entity.MentionCount,
		entity.AccessCount,
		entity.LastMentionedAt,
		nullTime(entity.LastDecayAt),
		nullTime(entity.LastAccessedAt),
		nullString(entity.SupersededBy),
		string(recentContext),
		entity.Version,
		timeNow(),
		entity.OwnerID,
		entity.ID,
	)
	if err != nil {
		return fmt.Errorf("updating entity: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("entity not found: %s", entity.ID)
	}
	return nil
}

// FindOrCreateEntity finds an entity by normalized name or creates it.
// This method is atomic - it uses INSERT OR IGNORE followed by SELECT to
// avoid race conditions.
func (r *Repository) FindOrCreateEntity(ctx context.Context, entity *entities.Entity) (*entities.Entity, error) {
	if entity.ID == "" {
		entity.ID = generateUUID()
	}
	if entity.NormalizedName == "" {
		entity.NormalizedName = entities.NormalizeName(entity.Name)
	}
	now := timeNow()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	if entity.UpdatedAt.IsZero() {
		entity.UpdatedAt = now
	}
	if entity.LastMentionedAt.IsZero() {
		entity.LastMentionedAt = now
	}

	args, err := entityArgs(entity)
	if err != nil {
		return nil, err
	}
	insertQuery := `
		INSERT OR IGNORE INTO entities (` + entityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, insertQuery, args...); err != nil {
		return nil, fmt.Errorf("inserting entity: %w", err)
	}

	// Always fetch the entity (either newly inserted or pre-existing)
	return r.FindEntityByName(ctx, entity.OwnerID, entity.Name)
}

// FindEntityByID finds an entity by its ID.
func (r *Repository) FindEntityByID(ctx context.Context, ownerID, entityID string) (*entities.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE owner_id = ? AND id = ?`
	row := r.db.QueryRowContext(ctx, query, ownerID, entityID)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	return entity, nil
}

// FindEntityByName finds an entity by its normalized name (case-insensitive).
func (r *Repository) FindEntityByName(ctx context.Context, ownerID, name string) (*entities.Entity, error) {
	normalizedName := entities.NormalizeName(name)
	query := `SELECT ` + entityColumns + ` FROM entities WHERE owner_id = ? AND normalized_name = ?`
	row := r.db.QueryRowContext(ctx, query, ownerID, normalizedName)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	return entity, nil
}

// FindEntitiesByIDs finds multiple entities by their IDs in a single query.
func (r *Repository) FindEntitiesByIDs(ctx context.Context, ownerID string, ids []string) ([]*entities.Entity, error) {
	if len(ids) == 0 {
		return []*entities.Entity{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`SELECT `+entityColumns+` FROM entities WHERE owner_id = ? AND id IN (%s)`,
		strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Entity, 0, len(ids))
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		result = append(result, entity)
	}
	return result, rows.Err()
}

// ListEntities lists entities with the given status, paginated.
func (r *Repository) ListEntities(ctx context.Context, ownerID string, status entities.Status, limit, offset int) ([]*entities.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE owner_id = ? AND status = ?
		ORDER BY importance_score DESC, name ASC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Entity, 0, limit)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		result = append(result, entity)
	}
	return result, rows.Err()
}

// SearchEntities searches active entities by name or alias pattern.
func (r *Repository) SearchEntities(ctx context.Context, ownerID, query string, limit int) ([]*entities.Entity, error) {
	normalizedQuery := "%" + entities.NormalizeName(query) + "%"
	sqlQuery := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE owner_id = ? AND status = 'active'
			AND (normalized_name LIKE ? OR lower(aliases) LIKE ?)
		ORDER BY importance_score DESC, name ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, sqlQuery, ownerID, normalizedQuery, normalizedQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	defer rows.Close()

	result := make([]*entities.Entity, 0, limit)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		result = append(result, entity)
	}
	return result, rows.Err()
}

// CountEntities returns the number of entities with the given status.
func (r *Repository) CountEntities(ctx context.Context, ownerID string, status entities.Status) (int, error) {
	query := `SELECT COUNT(*) FROM entities WHERE owner_id = ? AND status = ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, ownerID, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting entities: %w", err)
	}
	return count, nil
}

// ApplyDecay persists decay bookkeeping for an active entity. Only score
// related fields are touched so decay can run concurrently with content
// mutation. Returns false if the row was not active.
func (r *Repository) ApplyDecay(ctx context.Context, ownerID, entityID string, score float64, status entities.Status, decayedAt time.Time) (bool, error) {
	query := `
		UPDATE entities
		SET importance_score = ?, status = ?, last_decay_at = ?, updated_at = ?
		WHERE owner_id = ? AND id = ? AND status = 'active'
	`
	result, err := r.db.ExecContext(ctx, query, score, string(status), decayedAt, timeNow(), ownerID, entityID)
	if err != nil {
		return false, fmt.Errorf("applying decay: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ArchiveEntity soft-archives an active entity. Returns false if the entity
// was not active (already merged or archived by a concurrent run).
func (r *Repository) ArchiveEntity(ctx context.Context, ownerID, entityID, supersededBy string, at time.Time) (bool, error) {
	query := `
		UPDATE entities
		SET status = 'archived', superseded_by = ?, updated_at = ?
		WHERE owner_id = ? AND id = ? AND status = 'active'
	`
	result, err := r.db.ExecContext(ctx, query, nullString(supersededBy), at, ownerID, entityID)
	if err != nil {
		return false, fmt.Errorf("archiving entity: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// TouchEntities bumps access_count and last_accessed_at on the given
// entities (retrieval feedback loop).
func (r *Repository) TouchEntities(ctx context.Context, ownerID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, at, ownerID)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE entities
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE owner_id = ? AND id IN (%s)
	`, strings.Join(placeholders, ","))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touching entities: %w", err)
	}
	return nil
}

const factColumns = `id, owner_id, entity_id, predicate, object_text, object_entity_id,
		confidence, exclusive, valid_from, valid_to, invalidated_at, version,
		previous_version_id, source_id, deleted, created_at`

// scanFact scans one fact row.
func scanFact(row interface{ Scan(...any) error }) (*entities.Fact, error) {
	var f entities.Fact
	var objectEntityID, previousVersionID, sourceID sql.NullString
	var validTo, invalidatedAt sql.NullTime
	var exclusive, deleted int

	err := row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.EntityID,
		&f.Predicate,
		&f.ObjectText,
		&objectEntityID,
		&f.Confidence,
		&exclusive,
		&f.ValidFrom,
		&validTo,
		&invalidatedAt,
		&f.Version,
		&previousVersionID,
		&sourceID,
		&deleted,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.ObjectEntityID = objectEntityID.String
	f.PreviousVersionID = previousVersionID.String
	f.SourceID = sourceID.String
	f.Exclusive = exclusive != 0
	f.Deleted = deleted != 0
	if validTo.Valid {
		f.ValidTo = &validTo.Time
	}
	if invalidatedAt.Valid {
		f.InvalidatedAt = &invalidatedAt.Time
	}
	return &f, nil
}

func insertFactTx(ctx context.Context, tx interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, fact *entities.Fact) error {
	query := `
		INSERT INTO facts (` + factColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		fact.ID,
		fact.OwnerID,
		fact.EntityID,
		fact.Predicate,
		fact.ObjectText,
		nullString(fact.ObjectEntityID),
		fact.Confidence,
		boolToInt(fact.Exclusive),
		fact.ValidFrom,
		nullTime(fact.ValidTo),
		nullTime(fact.InvalidatedAt),
		fact.Version,
		nullString(fact.PreviousVersionID),
		nullString(fact.SourceID),
		boolToInt(fact.Deleted),
		fact.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("inserting fact %s: %w", fact.ID, ports.ErrDuplicateActiveFact)
	}
	if err != nil {
		return fmt.Errorf("inserting fact: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// InsertFact inserts a fact. Returns ports.ErrDuplicateActiveFact when a
// concurrent writer already holds the open slot for a single-valued predicate.
func (r *Repository) InsertFact(ctx context.Context, fact *entities.Fact) error {
	if fact.ID == "" {
		fact.ID = generateUUID()
	}
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = timeNow()
	}
	return insertFactTx(ctx, r.db, fact)
}

// SupersedeFact atomically closes the old fact and inserts its successor.
func (r *Repository) SupersedeFact(ctx context.Context, oldFactID string, closedAt time.Time, successor *entities.Fact) error {
	if successor.ID == "" {
		successor.ID = generateUUID()
	}
	if successor.CreatedAt.IsZero() {
		successor.CreatedAt = timeNow()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
		UPDATE facts SET valid_to = ?, invalidated_at = ?
		WHERE owner_id = ? AND id = ? AND valid_to IS NULL
	`, closedAt, closedAt, successor.OwnerID, oldFactID)
	if err != nil {
		return fmt.Errorf("closing fact: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Someone else already closed it; the fresh successor would either
		// duplicate or conflict. Surface as a versioning race.
		return fmt.Errorf("fact %s already closed: %w", oldFactID, ports.ErrDuplicateActiveFact)
	}

	if err := insertFactTx(ctx, tx, successor); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing supersede: %w", err)
	}
	return nil
}

// UpdateFactConfidence raises a fact's confidence (re-observation).
func (r *Repository) UpdateFactConfidence(ctx context.Context, ownerID, factID string, confidence float64) error {
	query := `UPDATE facts SET confidence = ? WHERE owner_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, query, confidence, ownerID, factID); err != nil {
		return fmt.Errorf("updating fact confidence: %w", err)
	}
	return nil
}

// FindFactByID finds a fact by ID.
func (r *Repository) FindFactByID(ctx context.Context, ownerID, factID string) (*entities.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM facts WHERE owner_id = ? AND id = ?`
	row := r.db.QueryRowContext(ctx, query, ownerID, factID)

	fact, err := scanFact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning fact: %w", err)
	}
	return fact, nil
}

// FindOpenFacts returns non-deleted facts with valid_to unset for an
// (entity, predicate) pair. Future-dated rows are included: they hold the
// single-active slot, so versioning has to see them.
func (r *Repository) FindOpenFacts(ctx context.Context, ownerID, entityID, predicate string) ([]entities.Fact, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		WHERE owner_id = ? AND entity_id = ? AND predicate = ?
			AND valid_to IS NULL AND deleted = 0
		ORDER BY created_at DESC
	`
	return r.queryFacts(ctx, query, ownerID, entityID, predicate)
}

// FindFactsByEntity returns facts for an entity, newest first. The active
// view hides facts whose valid_from has not arrived yet; includeClosed
// shows the full history, future-dated rows included.
func (r *Repository) FindFactsByEntity(ctx context.Context, ownerID, entityID string, includeClosed bool) ([]entities.Fact, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		WHERE owner_id = ? AND entity_id = ? AND deleted = 0
	`
	args := []any{ownerID, entityID}
	if !includeClosed {
		query += ` AND valid_to IS NULL AND valid_from <= ?`
		args = append(args, timeNow())
	}
	query += ` ORDER BY created_at DESC`
	return r.queryFacts(ctx, query, args...)
}

// FindFactsByPredicates returns open facts matching any of the given
// predicates, newest first.
func (r *Repository) FindFactsByPredicates(ctx context.Context, ownerID string, predicates []string, limit int) ([]entities.Fact, error) {
	if len(predicates) == 0 {
		return []entities.Fact{}, nil
	}

	placeholders := make([]string, len(predicates))
	args := make([]any, 0, len(predicates)+3)
	args = append(args, ownerID)
	for i, p := range predicates {
		placeholders[i] = "?"
		args = append(args, p)
	}
	args = append(args, timeNow(), limit)

	query := fmt.Sprintf(`
		SELECT `+factColumns+`
		FROM facts
		WHERE owner_id = ? AND predicate IN (%s) AND valid_to IS NULL AND deleted = 0
			AND valid_from <= ?
		ORDER BY created_at DESC
		LIMIT ?
	`, strings.Join(placeholders, ","))
	return r.queryFacts(ctx, query, args...)
}

// FindFactsInWindow returns facts whose validity started in [from, to).
func (r *Repository) FindFactsInWindow(ctx context.Context, ownerID string, from, to time.Time, limit int) ([]entities.Fact, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		WHERE owner_id = ? AND deleted = 0 AND valid_from >= ? AND valid_from < ?
		ORDER BY valid_from ASC
		LIMIT ?
	`
	return r.queryFacts(ctx, query, ownerID, from, to, limit)
}

// FindClosedFacts returns facts that are no longer true, newest first.
func (r *Repository) FindClosedFacts(ctx context.Context, ownerID string, limit int) ([]entities.Fact, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		WHERE owner_id = ? AND deleted = 0 AND valid_to IS NOT NULL
		ORDER BY valid_to DESC
		LIMIT ?
	`
	return r.queryFacts(ctx, query, ownerID, limit)
}

// FindVersionChain walks a fact's version history back to version 1, newest
// first. Uses a recursive CTE over previous_version_id.
func (r *Repository) FindVersionChain(ctx context.Context, ownerID, factID string) ([]entities.Fact, error) {
	query := `
		WITH RECURSIVE chain(id) AS (
			SELECT id FROM facts WHERE owner_id = ? AND id = ?
			UNION
			SELECT f.previous_version_id
			FROM facts f
			JOIN chain ON f.id = chain.id
			WHERE f.previous_version_id IS NOT NULL
		)
		SELECT ` + factColumns + `
		FROM facts
		WHERE owner_id = ? AND id IN (SELECT id FROM chain)
		ORDER BY version DESC
	`
	return r.queryFacts(ctx, query, ownerID, factID, ownerID)
}

// ReassignFacts moves all facts from one entity to another (merge).
func (r *Repository) ReassignFacts(ctx context.Context, ownerID, fromEntityID, toEntityID string) (int, error) {
	query := `UPDATE facts SET entity_id = ? WHERE owner_id = ? AND entity_id = ?`
	result, err := r.db.ExecContext(ctx, query, toEntityID, ownerID, fromEntityID)
	if err != nil {
		return 0, fmt.Errorf("reassigning facts: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// queryFacts is a helper to execute fact queries.
func (r *Repository) queryFacts(ctx context.Context, query string, args ...any) ([]entities.Fact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	facts := make([]entities.Fact, 0, 16)
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		facts = append(facts, *fact)
	}
	return facts, rows.Err()
}
