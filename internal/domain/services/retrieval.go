package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

// RankProfile weighs the four relevance signals. Weights should sum to 1 but
// scoring tolerates any positive weights.
type RankProfile struct {
	Semantic   float64
	Importance float64
	Recency    float64
	Frequency  float64

	// RecencyHalfLifeDays controls how fast the recency signal fades.
	RecencyHalfLifeDays float64
	// FrequencyCap normalizes access counts; counts beyond it score 1.0.
	FrequencyCap int
}

// DefaultProfile is the general-purpose ranking mix.
var DefaultProfile = RankProfile{
	Semantic:            0.5,
	Importance:          0.25,
	Recency:             0.15,
	Frequency:           0.10,
	RecencyHalfLifeDays: 14,
	FrequencyCap:        100,
}

// GraphFirstProfile is for relationship lookups, where who the entity is
// connected to matters and the semantic match does not.
var GraphFirstProfile = RankProfile{
	Semantic:            0,
	Importance:          0.5,
	Recency:             0.3,
	Frequency:           0.2,
	RecencyHalfLifeDays: 30,
	FrequencyCap:        100,
}

// Filters narrow a retrieval before ranking and shape context assembly.
type Filters struct {
	Kinds           []entities.EntityKind
	IncludeArchived bool
	MinImportance   float64
	// MaxSensitivity is the sensitivity ceiling: entities above it are
	// never returned. Empty means the normal ceiling.
	MaxSensitivity entities.Sensitivity
	// IncludeClosed admits facts whose validity has ended into context
	// assembly.
	IncludeClosed bool
	// ExcludeExpired drops facts whose valid_from has not arrived yet even
	// when IncludeClosed admits the full history.
	ExcludeExpired bool
}

// Result is one ranked retrieval hit.
type Result struct {
	Entity   *entities.Entity
	Score    float64
	Semantic float64
	Degraded bool
}

// EntityContext is the full picture of one entity for answer assembly.
type EntityContext struct {
	Entity        *entities.Entity
	Facts         []entities.Fact
	Relationships []entities.Relationship
	Inferences    []entities.Inference
	Neighbors     map[string]*entities.Entity
}

// RetrievalService ranks entities for a query by blending semantic
// similarity with importance, recency, and access frequency. When the
// embedding path is down it degrades to importance plus recency rather than
// failing the query.
type RetrievalService struct {
	relationalDB ports.RelationalDB
	vectorDB     ports.VectorDB
	embedder     ports.Embedder
}

// NewRetrievalService creates a new RetrievalService.
func NewRetrievalService(relationalDB ports.RelationalDB, vectorDB ports.VectorDB, embedder ports.Embedder) *RetrievalService {
	return &RetrievalService{relationalDB: relationalDB, vectorDB: vectorDB, embedder: embedder}
}

// Search runs a ranked retrieval. Results touch access bookkeeping so that
// frequently retrieved entities rank and decay accordingly.
func (s *RetrievalService) Search(ctx context.Context, ownerID, query string, profile RankProfile, filters Filters, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}

	now := timeNow()
	results, err := s.semanticSearch(ctx, ownerID, query, profile, filters, limit, now)
	if err != nil {
		// Semantic path down: fall back to importance plus recency over a
		// name search so the query still answers.
		results, err = s.degradedSearch(ctx, ownerID, query, profile, filters, limit, now)
		if err != nil {
			return nil, err
		}
	}

	if len(results) > 0 {
		ids := make([]string, 0, len(results))
		for _, result := range results {
			ids = append(ids, result.Entity.ID)
		}
		if err := s.relationalDB.TouchEntities(ctx, ownerID, ids, now); err != nil {
			return nil, fmt.Errorf("recording access: %w", err)
		}
	}
	return results, nil
}

func (s *RetrievalService) semanticSearch(ctx context.Context, ownerID, query string, profile RankProfile, filters Filters, limit int, now time.Time) ([]Result, error) {
	if s.embedder == nil || s.vectorDB == nil {
		return nil, fmt.Errorf("semantic search unavailable")
	}
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Over-fetch so filters have room to drop hits.
	hits, err := s.vectorDB.Search(ctx, ownerID, vector, limit*3)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	semantic := make(map[string]float64, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ID)
		semantic[hit.ID] = hit.Score
	}
	found, err := s.relationalDB.FindEntitiesByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("loading entities: %w", err)
	}

	var results []Result
	for _, entity := range found {
		if !passesFilters(entity, filters) {
			continue
		}
		results = append(results, Result{
			Entity:   entity,
			Semantic: semantic[entity.ID],
			Score:    compositeScore(entity, semantic[entity.ID], profile, now),
		})
	}
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *RetrievalService) degradedSearch(ctx context.Context, ownerID, query string, profile RankProfile, filters Filters, limit int, now time.Time) ([]Result, error) {
	found, err := s.relationalDB.SearchEntities(ctx, ownerID, query, limit*3)
	if err != nil {
		return nil, fmt.Errorf("degraded search: %w", err)
	}
	if len(found) == 0 {
		// Nothing matches the name; surface whatever matters most.
		found, err = s.relationalDB.ListEntities(ctx, ownerID, entities.StatusActive, limit*3, 0)
		if err != nil {
			return nil, fmt.Errorf("degraded listing: %w", err)
		}
	}

	var results []Result
	for _, entity := range found {
		if !passesFilters(entity, filters) {
			continue
		}
		// No semantic signal: redistribute its weight over the rest.
		score := profile.Importance*entity.ImportanceScore +
			profile.Recency*recencyScore(entity, profile, now)
		score /= profile.Importance + profile.Recency
		results = append(results, Result{Entity: entity, Score: score, Degraded: true})
	}
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// FullContext assembles everything known about one entity: its open facts,
// its edges, unexpired inferences, and the entities on the far end of each
// edge.
func (s *RetrievalService) FullContext(ctx context.Context, ownerID, entityID string, filters Filters) (*EntityContext, error) {
	entity, err := s.relationalDB.FindEntityByID(ctx, ownerID, entityID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}

	now := timeNow()
	facts, err := s.relationalDB.FindFactsByEntity(ctx, ownerID, entityID, filters.IncludeClosed)
	if err != nil {
		return nil, fmt.Errorf("loading facts: %w", err)
	}
	if filters.ExcludeExpired {
		kept := facts[:0]
		for _, fact := range facts {
			if !fact.ValidFrom.After(now) {
				kept = append(kept, fact)
			}
		}
		facts = kept
	}
	relationships, err := s.relationalDB.FindRelationshipsByEntity(ctx, ownerID, entityID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading relationships: %w", err)
	}
	inferences, err := s.relationalDB.FindInferencesByEntity(ctx, ownerID, entityID, now)
	if err != nil {
		return nil, fmt.Errorf("loading inferences: %w", err)
	}

	neighborIDs := make([]string, 0, len(relationships))
	for _, rel := range relationships {
		other := rel.TargetEntityID
		if other == entityID {
			other = rel.SourceEntityID
		}
		neighborIDs = append(neighborIDs, other)
	}
	neighbors := make(map[string]*entities.Entity, len(neighborIDs))
	if len(neighborIDs) > 0 {
		found, err := s.relationalDB.FindEntitiesByIDs(ctx, ownerID, neighborIDs)
		if err != nil {
			return nil, fmt.Errorf("loading neighbors: %w", err)
		}
		for _, neighbor := range found {
			neighbors[neighbor.ID] = neighbor
		}
	}

	if err := s.relationalDB.TouchEntities(ctx, ownerID, []string{entityID}, now); err != nil {
		return nil, fmt.Errorf("recording access: %w", err)
	}

	return &EntityContext{
		Entity:        entity,
		Facts:         facts,
		Relationships: relationships,
		Inferences:    inferences,
		Neighbors:     neighbors,
	}, nil
}

// compositeScore blends the four signals per the profile. The current
// (possibly decayed) importance score is used, so neglected entities sink in
// results before they are archived.
func compositeScore(entity *entities.Entity, semantic float64, profile RankProfile, now time.Time) float64 {
	frequencyCap := profile.FrequencyCap
	if frequencyCap <= 0 {
		frequencyCap = DefaultProfile.FrequencyCap
	}
	frequency := math.Log1p(float64(entity.AccessCount)) / math.Log1p(float64(frequencyCap))
	if frequency > 1 {
		frequency = 1
	}
	return profile.Semantic*semantic +
		profile.Importance*entity.ImportanceScore +
		profile.Recency*recencyScore(entity, profile, now) +
		profile.Frequency*frequency
}

func recencyScore(entity *entities.Entity, profile RankProfile, now time.Time) float64 {
	halfLife := profile.RecencyHalfLifeDays
	if halfLife <= 0 {
		halfLife = DefaultProfile.RecencyHalfLifeDays
	}
	last := entity.LastMentionedAt
	if entity.LastAccessedAt != nil && entity.LastAccessedAt.After(last) {
		last = *entity.LastAccessedAt
	}
	ageDays := now.Sub(last).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / halfLife)
}

func passesFilters(entity *entities.Entity, filters Filters) bool {
	if !filters.IncludeArchived && entity.Status != entities.StatusActive {
		return false
	}
	if entity.ImportanceScore < filters.MinImportance {
		return false
	}
	ceiling := filters.MaxSensitivity
	if ceiling == "" {
		ceiling = entities.SensitivityNormal
	}
	if entity.Sensitivity.Rank() > ceiling.Rank() {
		return false
	}
	if len(filters.Kinds) > 0 {
		match := false
		for _, kind := range filters.Kinds {
			if entity.Kind == kind {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entity.ID < results[j].Entity.ID
	})
}
