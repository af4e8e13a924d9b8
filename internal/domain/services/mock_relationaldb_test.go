package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

// mockRelationalDB is an in-memory implementation of ports.RelationalDB for
// service tests. Semantics mirror the sqlite repository closely enough for
// the services to be exercised end to end, including the single-active-fact
// constraint.
type mockRelationalDB struct {
	entities      map[string]*entities.Entity
	facts         map[string]*entities.Fact
	relationships map[string]*entities.Relationship
	inferences    map[string]*entities.Inference
	sources       map[string]*entities.Source
	predicates    map[string]*entities.Predicate
	mergeRecords  []entities.MergeRecord
	taskRuns      map[string]time.Time
	auditLog      []entities.AuditEntry
}

var _ ports.RelationalDB = (*mockRelationalDB)(nil)

func newMockRelationalDB() *mockRelationalDB {
	return &mockRelationalDB{
		entities:      make(map[string]*entities.Entity),
		facts:         make(map[string]*entities.Fact),
		relationships: make(map[string]*entities.Relationship),
		inferences:    make(map[string]*entities.Inference),
		sources:       make(map[string]*entities.Source),
		predicates:    make(map[string]*entities.Predicate),
		taskRuns:      make(map[string]time.Time),
	}
}

func (m *mockRelationalDB) EnsureSchema(_ context.Context) error { return nil }
func (m *mockRelationalDB) Close() error                         { return nil }

// Entity methods.

func (m *mockRelationalDB) SaveEntity(_ context.Context, entity *entities.Entity) error {
	m.entities[entity.ID] = entity
	return nil
}

func (m *mockRelationalDB) UpdateEntity(_ context.Context, entity *entities.Entity) error {
	m.entities[entity.ID] = entity
	return nil
}

func (m *mockRelationalDB) FindOrCreateEntity(_ context.Context, entity *entities.Entity) (*entities.Entity, error) {
	for _, e := range m.entities {
		if e.OwnerID == entity.OwnerID && e.NormalizedName == entity.NormalizedName {
			return e, nil
		}
	}
	m.entities[entity.ID] = entity
	return entity, nil
}

func (m *mockRelationalDB) FindEntityByID(_ context.Context, ownerID, entityID string) (*entities.Entity, error) {
	e := m.entities[entityID]
	if e == nil || e.OwnerID != ownerID {
		return nil, nil
	}
	return e, nil
}

func (m *mockRelationalDB) FindEntityByName(_ context.Context, ownerID, name string) (*entities.Entity, error) {
	norm := entities.NormalizeName(name)
	for _, e := range m.entities {
		if e.OwnerID == ownerID && e.NormalizedName == norm {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockRelationalDB) FindEntitiesByIDs(_ context.Context, ownerID string, ids []string) ([]*entities.Entity, error) {
	var result []*entities.Entity
	for _, id := range ids {
		if e := m.entities[id]; e != nil && e.OwnerID == ownerID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockRelationalDB) ListEntities(_ context.Context, ownerID string, status entities.Status, limit, offset int) ([]*entities.Entity, error) {
	var result []*entities.Entity
	for _, e := range m.entities {
		if e.OwnerID == ownerID && e.Status == status {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if offset > len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRelationalDB) SearchEntities(_ context.Context, ownerID, query string, limit int) ([]*entities.Entity, error) {
	needle := entities.NormalizeName(query)
	var result []*entities.Entity
	for _, e := range m.entities {
		if e.OwnerID == ownerID && e.Status == entities.StatusActive && strings.Contains(e.NormalizedName, needle) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRelationalDB) CountEntities(_ context.Context, ownerID string, status entities.Status) (int, error) {
	count := 0
	for _, e := range m.entities {
		if e.OwnerID == ownerID && e.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *mockRelationalDB) ApplyDecay(_ context.Context, ownerID, entityID string, score float64, status entities.Status, decayedAt time.Time) (bool, error) {
	e := m.entities[entityID]
	if e == nil || e.OwnerID != ownerID || e.Status != entities.StatusActive {
		return false, nil
	}
	e.ImportanceScore = score
	e.Status = status
	at := decayedAt
	e.LastDecayAt = &at
	return true, nil
}

func (m *mockRelationalDB) ArchiveEntity(_ context.Context, ownerID, entityID, supersededBy string, at time.Time) (bool, error) {
	e := m.entities[entityID]
	if e == nil || e.OwnerID != ownerID || e.Status != entities.StatusActive {
		return false, nil
	}
	e.Status = entities.StatusArchived
	e.SupersededBy = supersededBy
	e.UpdatedAt = at
	return true, nil
}

func (m *mockRelationalDB) TouchEntities(_ context.Context, ownerID string, ids []string, at time.Time) error {
	for _, id := range ids {
		if e := m.entities[id]; e != nil && e.OwnerID == ownerID {
			e.AccessCount++
			t := at
			e.LastAccessedAt = &t
		}
	}
	return nil
}

// Fact methods.

func (m *mockRelationalDB) InsertFact(_ context.Context, fact *entities.Fact) error {
	if fact.Exclusive {
		for _, f := range m.facts {
			if f.OwnerID == fact.OwnerID && f.EntityID == fact.EntityID &&
				f.Predicate == fact.Predicate && f.IsOpen() && f.Exclusive {
				return ports.ErrDuplicateActiveFact
			}
		}
	}
	copied := *fact
	m.facts[fact.ID] = &copied
	return nil
}

func (m *mockRelationalDB) SupersedeFact(_ context.Context, oldFactID string, closedAt time.Time, successor *entities.Fact) error {
	old := m.facts[oldFactID]
	if old == nil || !old.IsOpen() {
		return ports.ErrDuplicateActiveFact
	}
	at := closedAt
	now := time.Now()
	old.ValidTo = &at
	old.InvalidatedAt = &now
	copied := *successor
	m.facts[successor.ID] = &copied
	return nil
}

func (m *mockRelationalDB) UpdateFactConfidence(_ context.Context, ownerID, factID string, confidence float64) error {
	if f := m.facts[factID]; f != nil && f.OwnerID == ownerID {
		f.Confidence = confidence
	}
	return nil
}

func (m *mockRelationalDB) FindFactByID(_ context.Context, ownerID, factID string) (*entities.Fact, error) {
	f := m.facts[factID]
	if f == nil || f.OwnerID != ownerID {
		return nil, nil
	}
	return f, nil
}

func (m *mockRelationalDB) FindOpenFacts(_ context.Context, ownerID, entityID, predicate string) ([]entities.Fact, error) {
	var result []entities.Fact
	for _, f := range m.facts {
		if f.OwnerID == ownerID && f.EntityID == entityID && f.Predicate == predicate && f.IsOpen() {
			result = append(result, *f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockRelationalDB) FindFactsByEntity(_ context.Context, ownerID, entityID string, includeClosed bool) ([]entities.Fact, error) {
	var result []entities.Fact
	for _, f := range m.facts {
		if f.OwnerID != ownerID || f.EntityID != entityID || f.Deleted {
			continue
		}
		if !includeClosed && (!f.IsOpen() || f.ValidFrom.After(timeNow())) {
			continue
		}
		result = append(result, *f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockRelationalDB) FindFactsByPredicates(_ context.Context, ownerID string, predicates []string, limit int) ([]entities.Fact, error) {
	match := make(map[string]bool, len(predicates))
	for _, p := range predicates {
		match[p] = true
	}
	var result []entities.Fact
	for _, f := range m.facts {
		if f.OwnerID == ownerID && match[f.Predicate] && f.IsOpen() && !f.ValidFrom.After(timeNow()) {
			result = append(result, *f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRelationalDB) FindFactsInWindow(_ context.Context, ownerID string, from, to time.Time, limit int) ([]entities.Fact, error) {
	var result []entities.Fact
	for _, f := range m.facts {
		if f.OwnerID == ownerID && !f.Deleted && !f.ValidFrom.Before(from) && f.ValidFrom.Before(to) {
			result = append(result, *f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ValidFrom.Before(result[j].ValidFrom) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRelationalDB) FindClosedFacts(_ context.Context, ownerID string, limit int) ([]entities.Fact, error) {
	var result []entities.Fact
	for _, f := range m.facts {
		if f.OwnerID == ownerID && !f.Deleted && f.ValidTo != nil {
			result = append(result, *f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ValidTo.After(*result[j].ValidTo) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRelationalDB) FindVersionChain(_ context.Context, ownerID, factID string) ([]entities.Fact, error) {
	var chain []entities.Fact
	id := factID
	for id != "" {
		f := m.facts[id]
		if f == nil || f.OwnerID != ownerID {
			break
		}
		chain = append(chain, *f)
		id = f.PreviousVersionID
	}
	return chain, nil
}

func (m *mockRelationalDB) ReassignFacts(_ context.Context, ownerID, fromEntityID, toEntityID string) (int, error) {
	moved := 0
	for _, f := range m.facts {
		if f.OwnerID == ownerID && f.EntityID == fromEntityID {
			f.EntityID = toEntityID
			moved++
		}
	}
	return moved, nil
}

// Relationship methods.

func (m *mockRelationalDB) SaveRelationship(_ context.Context, rel *entities.Relationship) error {
	for _, existing := range m.relationships {
		if existing.OwnerID == rel.OwnerID && existing.SourceEntityID == rel.SourceEntityID &&
			existing.TargetEntityID == rel.TargetEntityID && existing.Type == rel.Type {
			if rel.Strength > existing.Strength {
				existing.Strength = rel.Strength
			}
			*rel = *existing
			return nil
		}
	}
	if rel.ID == "" {
		rel.ID = generateUUID()
	}
	copied := *rel
	m.relationships[rel.ID] = &copied
	return nil
}

func (m *mockRelationalDB) FindRelationshipBetween(_ context.Context, ownerID, sourceEntityID, targetEntityID string) (*entities.Relationship, error) {
	for _, rel := range m.relationships {
		if rel.OwnerID != ownerID {
			continue
		}
		if (rel.SourceEntityID == sourceEntityID && rel.TargetEntityID == targetEntityID) ||
			(rel.SourceEntityID == targetEntityID && rel.TargetEntityID == sourceEntityID) {
			return rel, nil
		}
	}
	return nil, nil
}

func (m *mockRelationalDB) FindRelationshipsByEntity(_ context.Context, ownerID, entityID string, minStrength float64) ([]entities.Relationship, error) {
	var result []entities.Relationship
	for _, rel := range m.relationships {
		if rel.OwnerID != ownerID || !rel.Active || rel.Strength < minStrength {
			continue
		}
		if rel.SourceEntityID == entityID || rel.TargetEntityID == entityID {
			result = append(result, *rel)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockRelationalDB) ReassignRelationships(_ context.Context, ownerID, fromEntityID, toEntityID string) (int, error) {
	moved := 0
	for id, rel := range m.relationships {
		if rel.OwnerID != ownerID {
			continue
		}
		if rel.SourceEntityID == fromEntityID {
			rel.SourceEntityID = toEntityID
			moved++
		}
		if rel.TargetEntityID == fromEntityID {
			rel.TargetEntityID = toEntityID
			moved++
		}
		if rel.SourceEntityID == rel.TargetEntityID {
			delete(m.relationships, id)
		}
	}
	return moved, nil
}

func (m *mockRelationalDB) CountRelationships(_ context.Context, ownerID string) (int, error) {
	count := 0
	for _, rel := range m.relationships {
		if rel.OwnerID == ownerID && rel.Active {
			count++
		}
	}
	return count, nil
}

// Inference methods.

func (m *mockRelationalDB) SaveInference(_ context.Context, inf *entities.Inference) error {
	if inf.ID == "" {
		inf.ID = generateUUID()
	}
	m.inferences[inf.ID] = inf
	return nil
}

func (m *mockRelationalDB) FindInferencesByEntity(_ context.Context, ownerID, entityID string, now time.Time) ([]entities.Inference, error) {
	var result []entities.Inference
	for _, inf := range m.inferences {
		if inf.OwnerID != ownerID || inf.Expired(now) {
			continue
		}
		if inf.SourceEntityID == entityID || inf.TargetEntityID == entityID {
			result = append(result, *inf)
		}
	}
	return result, nil
}

func (m *mockRelationalDB) DeleteExpiredInferences(_ context.Context, ownerID string, now time.Time) (int, error) {
	deleted := 0
	for id, inf := range m.inferences {
		if inf.OwnerID == ownerID && inf.Expired(now) {
			delete(m.inferences, id)
			deleted++
		}
	}
	return deleted, nil
}

// Source methods.

func (m *mockRelationalDB) SaveSource(_ context.Context, src *entities.Source) error {
	m.sources[src.ID] = src
	return nil
}

func (m *mockRelationalDB) DeleteSource(_ context.Context, ownerID, sourceID string) (int, error) {
	deleted := 0
	for _, f := range m.facts {
		if f.OwnerID == ownerID && f.SourceID == sourceID {
			f.Deleted = true
			deleted++
		}
	}
	delete(m.sources, sourceID)
	return deleted, nil
}

// Predicate methods.

func (m *mockRelationalDB) SavePredicate(_ context.Context, pred *entities.Predicate) error {
	m.predicates[pred.Name] = pred
	return nil
}

func (m *mockRelationalDB) FindPredicate(_ context.Context, name string) (*entities.Predicate, error) {
	return m.predicates[name], nil
}

func (m *mockRelationalDB) ListPredicates(_ context.Context) ([]entities.Predicate, error) {
	result := make([]entities.Predicate, 0, len(m.predicates))
	for _, p := range m.predicates {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockRelationalDB) DeletePredicate(_ context.Context, name string) error {
	delete(m.predicates, name)
	return nil
}

// Merge log methods.

func (m *mockRelationalDB) SaveMergeRecord(_ context.Context, rec *entities.MergeRecord) error {
	m.mergeRecords = append(m.mergeRecords, *rec)
	return nil
}

func (m *mockRelationalDB) ListMergeRecords(_ context.Context, ownerID string, limit int) ([]entities.MergeRecord, error) {
	var result []entities.MergeRecord
	for i := len(m.mergeRecords) - 1; i >= 0; i-- {
		if m.mergeRecords[i].OwnerID == ownerID {
			result = append(result, m.mergeRecords[i])
		}
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// Maintenance bookkeeping.

func (m *mockRelationalDB) LastTaskRun(_ context.Context, ownerID, task string) (*time.Time, error) {
	if at, ok := m.taskRuns[ownerID+"/"+task]; ok {
		return &at, nil
	}
	return nil, nil
}

func (m *mockRelationalDB) RecordTaskRun(_ context.Context, ownerID, task string, at time.Time) error {
	m.taskRuns[ownerID+"/"+task] = at
	return nil
}

// Audit log.

func (m *mockRelationalDB) LogAction(_ context.Context, ownerID, action, entityID string, details map[string]any) error {
	m.auditLog = append(m.auditLog, entities.AuditEntry{
		ID:        int64(len(m.auditLog) + 1),
		OwnerID:   ownerID,
		Action:    action,
		EntityID:  entityID,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *mockRelationalDB) FindAuditLog(_ context.Context, ownerID, entityID string) ([]entities.AuditEntry, error) {
	var result []entities.AuditEntry
	for _, entry := range m.auditLog {
		if entry.OwnerID == ownerID && entry.EntityID == entityID {
			result = append(result, entry)
		}
	}
	return result, nil
}
