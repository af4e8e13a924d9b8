package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

// ConfidenceFloor is the minimum extraction confidence for a candidate to be
// stored. Candidates under the floor are skipped, not errored.
const ConfidenceFloor = 0.3

const (
	// coMentionTTL is how long a derived co-mention lives before the
	// cleanup task sweeps it. Re-derivation on later ingests renews it.
	coMentionTTL = 30 * 24 * time.Hour

	coMentionConfidence = 0.4

	// coMentionCap bounds how many subjects of one text pair up.
	coMentionCap = 8
)

// IngestOutcome reports what happened to one candidate.
type IngestOutcome struct {
	Status     entities.IngestStatus
	Reason     string
	Entity     *entities.Entity
	Fact       *entities.Fact
	Superseded *entities.Fact
}

// IngestService turns extracted candidates into entities and versioned facts.
type IngestService struct {
	relationalDB ports.RelationalDB
	vectorDB     ports.VectorDB
	embedder     ports.Embedder
	predicates   *PredicateService
	decay        *DecayService
	importance   *ImportanceService
}

// NewIngestService creates a new IngestService.
func NewIngestService(relationalDB ports.RelationalDB, vectorDB ports.VectorDB, embedder ports.Embedder, predicates *PredicateService, decay *DecayService, importance *ImportanceService) *IngestService {
	return &IngestService{
		relationalDB: relationalDB,
		vectorDB:     vectorDB,
		embedder:     embedder,
		predicates:   predicates,
		decay:        decay,
		importance:   importance,
	}
}

// IngestText extracts candidates from raw text via the LLM and ingests each
// one. Per-candidate failures are collected, not fatal.
func (s *IngestService) IngestText(ctx context.Context, llm ports.LLMClient, ownerID, text, origin string) ([]*IngestOutcome, []ItemError, error) {
	names, err := s.predicates.ValidNames(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading predicates: %w", err)
	}

	candidates, err := llm.ExtractCandidates(ctx, text, names)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting candidates: %w", err)
	}

	source := &entities.Source{
		ID:        generateUUID(),
		OwnerID:   ownerID,
		Kind:      origin,
		Reference: truncate(text, 200),
		CreatedAt: timeNow(),
	}
	if err := s.relationalDB.SaveSource(ctx, source); err != nil {
		return nil, nil, fmt.Errorf("saving source: %w", err)
	}

	var outcomes []*IngestOutcome
	var failures []ItemError
	for _, candidate := range candidates {
		outcome, err := s.Ingest(ctx, ownerID, &candidate, source.ID)
		if err != nil {
			failures = append(failures, ItemError{ID: candidate.EntityName, Err: err.Error()})
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	s.deriveCoMentions(ctx, ownerID, outcomes, source.Reference)

	return outcomes, failures, nil
}

// deriveCoMentions records a soft connection between subjects named in the
// same text. Derived, not stated: each inference expires unless a later
// ingest derives it again.
func (s *IngestService) deriveCoMentions(ctx context.Context, ownerID string, outcomes []*IngestOutcome, evidence string) {
	seen := make(map[string]bool)
	var ids []string
	for _, outcome := range outcomes {
		if outcome.Entity == nil || seen[outcome.Entity.ID] {
			continue
		}
		seen[outcome.Entity.ID] = true
		ids = append(ids, outcome.Entity.ID)
		if len(ids) == coMentionCap {
			break
		}
	}

	now := timeNow()
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			// Best effort: a failed inference write never fails the ingest.
			_ = s.relationalDB.SaveInference(ctx, &entities.Inference{
				ID:             generateUUID(),
				OwnerID:        ownerID,
				SourceEntityID: ids[i],
				TargetEntityID: ids[j],
				Relation:       "co_mentioned",
				Confidence:     coMentionConfidence,
				Evidence:       []string{evidence},
				ExpiresAt:      now.Add(coMentionTTL),
				CreatedAt:      now,
			})
		}
	}
}

// Ingest stores a single candidate: resolves the subject entity, then either
// re-observes, supersedes, or appends a fact depending on the predicate's
// cardinality and the current open fact.
func (s *IngestService) Ingest(ctx context.Context, ownerID string, candidate *entities.Candidate, sourceID string) (*IngestOutcome, error) {
	if skip := validateCandidate(candidate); skip != "" {
		return &IngestOutcome{Status: entities.IngestSkipped, Reason: skip}, nil
	}

	now := timeNow()

	validFrom := now
	if candidate.ValidFrom != "" {
		parsed, err := time.Parse(time.RFC3339, candidate.ValidFrom)
		if err != nil {
			return &IngestOutcome{Status: entities.IngestSkipped, Reason: "unparseable valid_from"}, nil
		}
		validFrom = parsed
	}

	entity, err := s.resolveEntity(ctx, ownerID, candidate.EntityName, candidate.EntityKind, candidate.Sensitivity, candidate.Context, now)
	if err != nil {
		return nil, err
	}

	var objectEntityID string
	if candidate.ObjectName != "" {
		object, err := s.resolveEntity(ctx, ownerID, candidate.ObjectName, entities.KindUnknown, candidate.Sensitivity, candidate.Context, now)
		if err != nil {
			return nil, err
		}
		objectEntityID = object.ID
	}

	outcome, err := s.storeFact(ctx, ownerID, entity, candidate, objectEntityID, sourceID, validFrom, now)
	if err != nil && errors.Is(err, ports.ErrDuplicateActiveFact) {
		// Lost the race with a concurrent writer. Re-read and retry once.
		outcome, err = s.storeFact(ctx, ownerID, entity, candidate, objectEntityID, sourceID, validFrom, now)
		if err != nil && errors.Is(err, ports.ErrDuplicateActiveFact) {
			return nil, fmt.Errorf("storing fact for %s: %w", entity.Name, ErrVersioningRace)
		}
	}
	if err != nil {
		return nil, err
	}
	outcome.Entity = entity
	return outcome, nil
}

// storeFact applies the versioning rules for one candidate against the
// current open fact, if any.
func (s *IngestService) storeFact(ctx context.Context, ownerID string, entity *entities.Entity, candidate *entities.Candidate, objectEntityID, sourceID string, validFrom, now time.Time) (*IngestOutcome, error) {
	singleValued, err := s.predicates.IsSingleValued(ctx, candidate.Predicate)
	if err != nil {
		return nil, fmt.Errorf("checking predicate cardinality: %w", err)
	}

	open, hadOpen, err := s.findOpenFact(ctx, ownerID, entity.ID, candidate, objectEntityID, singleValued)
	if err != nil {
		return nil, err
	}

	objectText := strings.TrimSpace(candidate.Object)

	if open != nil && sameObject(open, objectText, objectEntityID) {
		// Re-observation keeps the best confidence seen so far.
		if candidate.Confidence > open.Confidence {
			if err := s.relationalDB.UpdateFactConfidence(ctx, ownerID, open.ID, candidate.Confidence); err != nil {
				return nil, fmt.Errorf("re-observing fact: %w", err)
			}
			open.Confidence = candidate.Confidence
		}
		return &IngestOutcome{Status: entities.IngestReobserved, Fact: open}, nil
	}

	fact := &entities.Fact{
		ID:             generateUUID(),
		OwnerID:        ownerID,
		EntityID:       entity.ID,
		Predicate:      candidate.Predicate,
		ObjectText:     objectText,
		ObjectEntityID: objectEntityID,
		Confidence:     candidate.Confidence,
		Exclusive:      singleValued,
		ValidFrom:      validFrom,
		Version:        1,
		SourceID:       sourceID,
		CreatedAt:      now,
	}

	if open != nil && singleValued {
		// Contradiction: close the old fact and chain the new one onto it.
		// A future-dated successor closes the old fact at the successor's
		// valid_from, so the old fact stays true until then.
		closedAt := now
		if validFrom.After(now) {
			closedAt = validFrom
		}
		fact.Version = open.Version + 1
		fact.PreviousVersionID = open.ID
		if err := s.relationalDB.SupersedeFact(ctx, open.ID, closedAt, fact); err != nil {
			return nil, fmt.Errorf("superseding fact: %w", err)
		}
		return &IngestOutcome{Status: entities.IngestSuperseded, Fact: fact, Superseded: open}, nil
	}

	if err := s.relationalDB.InsertFact(ctx, fact); err != nil {
		return nil, fmt.Errorf("inserting fact: %w", err)
	}
	status := entities.IngestInserted
	if !singleValued && hadOpen {
		status = entities.IngestAppended
	}
	return &IngestOutcome{Status: status, Fact: fact}, nil
}

// findOpenFact returns the open fact the candidate interacts with: for a
// single-valued predicate the one open fact, for a multi-valued predicate
// the open fact with the same object (re-observation), if any. The boolean
// reports whether the predicate had any open facts at all, matched or not.
func (s *IngestService) findOpenFact(ctx context.Context, ownerID, entityID string, candidate *entities.Candidate, objectEntityID string, singleValued bool) (*entities.Fact, bool, error) {
	open, err := s.relationalDB.FindOpenFacts(ctx, ownerID, entityID, candidate.Predicate)
	if err != nil {
		return nil, false, fmt.Errorf("finding open facts: %w", err)
	}
	if len(open) == 0 {
		return nil, false, nil
	}
	if singleValued {
		return &open[0], true, nil
	}
	objectText := strings.TrimSpace(candidate.Object)
	for i := range open {
		if sameObject(&open[i], objectText, objectEntityID) {
			return &open[i], true, nil
		}
	}
	return nil, true, nil
}

// resolveEntity finds or creates the entity, refreshing it on re-mention and
// scheduling an embedding for new entities.
func (s *IngestService) resolveEntity(ctx context.Context, ownerID, name string, kind entities.EntityKind, sensitivity entities.Sensitivity, snippet string, now time.Time) (*entities.Entity, error) {
	if kind == "" {
		kind = entities.KindUnknown
	}
	candidate := &entities.Entity{
		ID:              generateUUID(),
		OwnerID:         ownerID,
		Name:            strings.TrimSpace(name),
		NormalizedName:  entities.NormalizeName(name),
		Kind:            kind,
		Tier:            entities.TierMedium,
		ImportanceScore: entities.TierMedium.BaseScore(),
		Sensitivity:     parseSensitivity(sensitivity),
		Status:          entities.StatusActive,
		MentionCount:    1,
		LastMentionedAt: now,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if snippet != "" {
		candidate.RecentContext = []string{snippet}
	}

	entity, err := s.relationalDB.FindOrCreateEntity(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("resolving entity %s: %w", name, err)
	}

	// FindOrCreateEntity keeps our generated ID only when it inserts.
	if entity.ID == candidate.ID {
		s.embedEntity(ctx, entity)
		if s.importance != nil {
			s.importance.ClassifyAsync(ctx, entity)
		}
		return entity, nil
	}

	// Re-mention: sensitivity can only tighten, never loosen.
	if parsed := parseSensitivity(sensitivity); parsed.Rank() > entity.Sensitivity.Rank() {
		entity.Sensitivity = parsed
	}
	if entity.Kind == entities.KindUnknown && kind != entities.KindUnknown {
		entity.Kind = kind
	}
	if err := s.decay.Refresh(ctx, entity, snippet, now); err != nil {
		return nil, err
	}
	return entity, nil
}

// embedEntity stores the entity's vector, best effort. A missing vector is
// repaired later by the maintenance re-embed task.
func (s *IngestService) embedEntity(ctx context.Context, entity *entities.Entity) {
	if s.embedder == nil || s.vectorDB == nil {
		return
	}
	text := entity.Name
	if entity.Summary != "" {
		text += ": " + entity.Summary
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return
	}
	_ = s.vectorDB.SaveVector(ctx, entity.OwnerID, entity.ID, vector)
}

func validateCandidate(candidate *entities.Candidate) string {
	switch {
	case candidate == nil:
		return "empty candidate"
	case strings.TrimSpace(candidate.EntityName) == "":
		return "missing entity name"
	case strings.TrimSpace(candidate.Predicate) == "":
		return "missing predicate"
	case strings.TrimSpace(candidate.Object) == "" && candidate.ObjectName == "":
		return "missing object"
	case candidate.Confidence < ConfidenceFloor:
		return fmt.Sprintf("confidence %.2f below floor", candidate.Confidence)
	}
	return ""
}

func sameObject(fact *entities.Fact, objectText, objectEntityID string) bool {
	if objectEntityID != "" && fact.ObjectEntityID != "" {
		return fact.ObjectEntityID == objectEntityID
	}
	return strings.EqualFold(fact.ObjectText, objectText)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

func parseSensitivity(value entities.Sensitivity) entities.Sensitivity {
	sensitivity := entities.Sensitivity(strings.ToLower(strings.TrimSpace(string(value))))
	if !sensitivity.Valid() {
		return entities.SensitivityNormal
	}
	return sensitivity
}
