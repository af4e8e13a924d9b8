package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

const (
	// DefaultMergeThreshold is the cosine similarity above which two
	// entities of the same kind are proposed as duplicates, used when the
	// caller does not supply a threshold.
	DefaultMergeThreshold = 0.92

	// mentionCeiling normalizes mention counts in the keeper score. Counts
	// beyond the ceiling all score 1.0.
	mentionCeiling = 100

	// ageCeiling normalizes entity age in the keeper score.
	ageCeiling = 365 * 24 * time.Hour

	previewScanLimit = 500
)

// KeeperScore ranks which of two duplicates survives a merge: importance
// weighs most, then mention history, then age (the older record has the
// longer history). Ties break toward the lexically lower id so concurrent
// runs pick the same keeper.
func KeeperScore(entity *entities.Entity, now time.Time) float64 {
	mentions := math.Log1p(float64(entity.MentionCount)) / math.Log1p(mentionCeiling)
	if mentions > 1 {
		mentions = 1
	}
	age := now.Sub(entity.CreatedAt).Seconds() / ageCeiling.Seconds()
	if age > 1 {
		age = 1
	}
	if age < 0 {
		age = 0
	}
	return 0.5*entity.ImportanceScore + 0.3*mentions + 0.2*age
}

// ConsolidationService finds near-duplicate entities and merges them. Preview
// proposes pairs; Merge executes one pair; Run does a full sweep.
type ConsolidationService struct {
	relationalDB ports.RelationalDB
	vectorDB     ports.VectorDB
}

// NewConsolidationService creates a new ConsolidationService.
func NewConsolidationService(relationalDB ports.RelationalDB, vectorDB ports.VectorDB) *ConsolidationService {
	return &ConsolidationService{relationalDB: relationalDB, vectorDB: vectorDB}
}

// Preview scans active entities and proposes merge pairs without changing
// anything. A pair qualifies when vector similarity clears the threshold and
// the kinds are compatible, or when one entity's name is an alias of the
// other. A non-positive threshold means DefaultMergeThreshold.
func (s *ConsolidationService) Preview(ctx context.Context, ownerID string, threshold float64) ([]entities.MergeCandidate, error) {
	if threshold <= 0 {
		threshold = DefaultMergeThreshold
	}
	active, err := s.relationalDB.ListEntities(ctx, ownerID, entities.StatusActive, previewScanLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}

	byID := make(map[string]*entities.Entity, len(active))
	for _, entity := range active {
		byID[entity.ID] = entity
	}

	now := timeNow()
	seen := make(map[string]bool)
	var candidates []entities.MergeCandidate

	for _, entity := range active {
		matches, err := s.similarTo(ctx, entity, byID, threshold)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			key := pairKey(entity.ID, match.other.ID)
			if seen[key] {
				continue
			}
			seen[key] = true
			keeper, loser := pickKeeper(entity, match.other, now)
			candidates = append(candidates, entities.MergeCandidate{
				KeeperID:   keeper.ID,
				LoserID:    loser.ID,
				KeeperName: keeper.Name,
				LoserName:  loser.Name,
				Similarity: match.similarity,
			})
		}
	}
	return candidates, nil
}

type similarMatch struct {
	other      *entities.Entity
	similarity float64
}

func (s *ConsolidationService) similarTo(ctx context.Context, entity *entities.Entity, byID map[string]*entities.Entity, threshold float64) ([]similarMatch, error) {
	var matches []similarMatch

	// Alias overlap is a merge signal regardless of vector distance.
	for _, other := range byID {
		if other.ID == entity.ID {
			continue
		}
		if entity.HasAlias(other.NormalizedName) || other.HasAlias(entity.NormalizedName) {
			matches = append(matches, similarMatch{other: other, similarity: 1})
		}
	}

	if s.vectorDB == nil {
		return matches, nil
	}
	vector, err := s.vectorDB.FindVector(ctx, entity.OwnerID, entity.ID)
	if err != nil {
		return nil, fmt.Errorf("loading vector for %s: %w", entity.Name, err)
	}
	if vector == nil {
		return matches, nil
	}
	hits, err := s.vectorDB.Search(ctx, entity.OwnerID, vector, 5)
	if err != nil {
		return nil, fmt.Errorf("searching near %s: %w", entity.Name, err)
	}
	for _, hit := range hits {
		if hit.ID == entity.ID || hit.Score < threshold {
			continue
		}
		other, ok := byID[hit.ID]
		if !ok || !compatibleKinds(entity.Kind, other.Kind) {
			continue
		}
		matches = append(matches, similarMatch{other: other, similarity: hit.Score})
	}
	return matches, nil
}

// Merge folds the loser into the keeper. The loser is archived first so a
// concurrent merge of the same pair fails its archive and backs off with
// ErrConsolidationConflict instead of double-applying.
func (s *ConsolidationService) Merge(ctx context.Context, ownerID, keeperID, loserID string, similarity float64) (*entities.MergeRecord, error) {
	keeper, err := s.relationalDB.FindEntityByID(ctx, ownerID, keeperID)
	if err != nil {
		return nil, err
	}
	loser, err := s.relationalDB.FindEntityByID(ctx, ownerID, loserID)
	if err != nil {
		return nil, err
	}
	if keeper == nil || loser == nil {
		return nil, fmt.Errorf("merge pair %s/%s: %w", keeperID, loserID, ErrConsolidationConflict)
	}
	if !keeper.IsActive() {
		return nil, fmt.Errorf("keeper %s not active: %w", keeper.Name, ErrConsolidationConflict)
	}

	winnerBefore := snapshot(keeper)
	loserSnapshot := snapshot(loser)

	now := timeNow()
	archived, err := s.relationalDB.ArchiveEntity(ctx, ownerID, loser.ID, keeper.ID, now)
	if err != nil {
		return nil, fmt.Errorf("archiving merge loser: %w", err)
	}
	if !archived {
		return nil, fmt.Errorf("loser %s already claimed: %w", loser.Name, ErrConsolidationConflict)
	}

	if _, err := s.relationalDB.ReassignFacts(ctx, ownerID, loser.ID, keeper.ID); err != nil {
		return nil, fmt.Errorf("reassigning facts: %w", err)
	}
	if _, err := s.relationalDB.ReassignRelationships(ctx, ownerID, loser.ID, keeper.ID); err != nil {
		return nil, fmt.Errorf("reassigning relationships: %w", err)
	}

	absorb(keeper, loser, now)
	if err := s.relationalDB.UpdateEntity(ctx, keeper); err != nil {
		return nil, fmt.Errorf("updating merge keeper: %w", err)
	}

	if s.vectorDB != nil {
		// The loser's vector must not surface in searches anymore.
		_ = s.vectorDB.Delete(ctx, ownerID, loser.ID)
	}

	record := &entities.MergeRecord{
		ID:            generateUUID(),
		OwnerID:       ownerID,
		WinnerID:      keeper.ID,
		LoserID:       loser.ID,
		Similarity:    similarity,
		WinnerBefore:  winnerBefore,
		LoserSnapshot: loserSnapshot,
		WinnerAfter:   snapshot(keeper),
		CreatedAt:     now,
	}
	if err := s.relationalDB.SaveMergeRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("saving merge record: %w", err)
	}
	_ = s.relationalDB.LogAction(ctx, ownerID, "merge", keeper.ID, map[string]any{
		"loser_id":   loser.ID,
		"loser_name": loser.Name,
		"similarity": similarity,
	})
	return record, nil
}

// Run is the full consolidation sweep: preview, then merge each proposed
// pair. Conflicting pairs are skipped and reported, not fatal.
func (s *ConsolidationService) Run(ctx context.Context, ownerID string, threshold float64) ([]*entities.MergeRecord, []ItemError, error) {
	candidates, err := s.Preview(ctx, ownerID, threshold)
	if err != nil {
		return nil, nil, err
	}

	merged := make(map[string]bool)
	var records []*entities.MergeRecord
	var failures []ItemError
	for _, candidate := range candidates {
		// A loser from an earlier pair may reappear as a keeper here.
		if merged[candidate.KeeperID] || merged[candidate.LoserID] {
			continue
		}
		record, err := s.Merge(ctx, ownerID, candidate.KeeperID, candidate.LoserID, candidate.Similarity)
		if err != nil {
			failures = append(failures, ItemError{ID: candidate.LoserID, Err: err.Error()})
			continue
		}
		merged[candidate.LoserID] = true
		records = append(records, record)
	}
	return records, failures, nil
}

// absorb folds the loser's accumulated state into the keeper.
func absorb(keeper, loser *entities.Entity, now time.Time) {
	keeper.Aliases = appendCapped(keeper.Aliases, loser.NormalizedName, 32)
	for _, alias := range loser.Aliases {
		keeper.Aliases = appendCapped(keeper.Aliases, alias, 32)
	}
	for _, snippet := range loser.RecentContext {
		keeper.RecentContext = appendCapped(keeper.RecentContext, snippet, entities.MaxRecentContext)
	}
	keeper.MentionCount += loser.MentionCount
	keeper.AccessCount += loser.AccessCount
	if loser.ImportanceScore > keeper.ImportanceScore {
		keeper.ImportanceScore = loser.ImportanceScore
	}
	if loser.Tier.Rank() > keeper.Tier.Rank() {
		keeper.Tier = loser.Tier
	}
	if loser.Sensitivity.Rank() > keeper.Sensitivity.Rank() {
		keeper.Sensitivity = loser.Sensitivity
	}
	if loser.LastMentionedAt.After(keeper.LastMentionedAt) {
		keeper.LastMentionedAt = loser.LastMentionedAt
	}
	if keeper.Summary == "" {
		keeper.Summary = loser.Summary
	}
	keeper.Version++
	keeper.UpdatedAt = now
}

func pickKeeper(a, b *entities.Entity, now time.Time) (keeper, loser *entities.Entity) {
	scoreA, scoreB := KeeperScore(a, now), KeeperScore(b, now)
	if scoreA > scoreB {
		return a, b
	}
	if scoreB > scoreA {
		return b, a
	}
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}

// compatibleKinds keeps a person from being merged into a place. An unknown
// kind is compatible with anything.
func compatibleKinds(a, b entities.EntityKind) bool {
	return a == b || a == entities.KindUnknown || b == entities.KindUnknown
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

func snapshot(entity *entities.Entity) string {
	encoded, err := json.Marshal(entity)
	if err != nil {
		return ""
	}
	return string(encoded)
}
