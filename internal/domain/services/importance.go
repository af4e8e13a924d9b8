package services

import (
	"context"
	"strings"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

const (
	// highTierMentions short-circuits to the high tier without an LLM call.
	highTierMentions = 20
	// mediumFloorMentions guarantees at least the medium tier.
	mediumFloorMentions = 8
)

// criticalNameMarkers are normalized entity names that denote the owner or
// their closest people. A match classifies as critical without an LLM call.
var criticalNameMarkers = map[string]bool{
	SelfEntityName: true,
	"mom":          true,
	"mum":          true,
	"mother":       true,
	"dad":          true,
	"father":       true,
	"wife":         true,
	"husband":      true,
	"partner":      true,
	"boyfriend":    true,
	"girlfriend":   true,
	"fiance":       true,
	"fiancee":      true,
	"sister":       true,
	"brother":      true,
	"son":          true,
	"daughter":     true,
}

// petNameMarkers classify as high without an LLM call.
var petNameMarkers = map[string]bool{
	"dog":    true,
	"cat":    true,
	"puppy":  true,
	"kitten": true,
	"pet":    true,
}

// relationshipPredicates mark facts whose presence bumps an entity to the
// high tier in the heuristic pass.
var relationshipPredicates = map[string]bool{
	"relationship_status": true,
	"feels_about":         true,
	"knows":               true,
}

// ImportanceService assigns importance tiers. A cheap heuristic pass runs
// first and short-circuits on strong signals (self/family/partner markers,
// pets, heavy mention counts); only unmatched entities are delegated to the
// LLM classifier. A critical tier is sticky and never downgraded
// automatically.
type ImportanceService struct {
	relationalDB ports.RelationalDB
	llm          ports.LLMClient
}

// NewImportanceService creates a new ImportanceService.
func NewImportanceService(relationalDB ports.RelationalDB, llm ports.LLMClient) *ImportanceService {
	return &ImportanceService{relationalDB: relationalDB, llm: llm}
}

// ClassifyAsync applies the heuristic tier to a freshly created entity.
// Failures are swallowed; the batch classifier will revisit the entity.
func (s *ImportanceService) ClassifyAsync(ctx context.Context, entity *entities.Entity) {
	tier, ok := s.heuristicTier(entity, nil)
	if !ok || tier == entity.Tier {
		return
	}
	s.applyTier(ctx, entity, tier)
}

// Classify runs the full classification for one entity. A heuristic match
// decides the tier outright; otherwise the LLM is consulted, falling back
// to medium when it is unavailable or returns garbage. Entities mentioned
// often enough are floored at medium regardless of the LLM's verdict.
func (s *ImportanceService) Classify(ctx context.Context, entity *entities.Entity) (entities.Tier, error) {
	// Critical is sticky: only an explicit user action downgrades it.
	if entity.Tier == entities.TierCritical {
		return entities.TierCritical, nil
	}

	facts, err := s.relationalDB.FindFactsByEntity(ctx, entity.OwnerID, entity.ID, false)
	if err != nil {
		return "", err
	}

	tier, ok := s.heuristicTier(entity, facts)
	if !ok {
		tier = s.llmTier(ctx, entity, facts)
	}
	if entity.MentionCount >= mediumFloorMentions && tier.Rank() < entities.TierMedium.Rank() {
		tier = entities.TierMedium
	}

	if err := s.applyTier(ctx, entity, tier); err != nil {
		return "", err
	}
	return tier, nil
}

// heuristicTier is the cheap signal-based classification. The boolean
// reports whether a signal matched; callers delegate to the LLM when it
// did not.
func (s *ImportanceService) heuristicTier(entity *entities.Entity, facts []entities.Fact) (entities.Tier, bool) {
	name := entity.NormalizedName
	if name == "" {
		name = entities.NormalizeName(entity.Name)
	}

	if criticalNameMarkers[name] {
		return entities.TierCritical, true
	}
	if petNameMarkers[name] {
		return entities.TierHigh, true
	}
	if entity.MentionCount >= highTierMentions {
		return entities.TierHigh, true
	}
	if entity.Kind == entities.KindPerson && entity.Sensitivity.Rank() >= entities.SensitivitySensitive.Rank() {
		return entities.TierHigh, true
	}
	for i := range facts {
		if relationshipPredicates[facts[i].Predicate] {
			return entities.TierHigh, true
		}
	}
	return "", false
}

// llmTier asks the model for a tier, constrained to the known five.
// Anything unusable comes back as medium.
func (s *ImportanceService) llmTier(ctx context.Context, entity *entities.Entity, facts []entities.Fact) entities.Tier {
	if s.llm == nil {
		return entities.TierMedium
	}
	summaries := make([]string, 0, len(facts))
	for i := range facts {
		summaries = append(summaries, facts[i].Predicate+" "+facts[i].ObjectText)
	}
	classification, err := s.llm.ClassifyImportance(ctx, entity, summaries)
	if err != nil || classification == nil {
		return entities.TierMedium
	}
	if tier := entities.Tier(strings.ToLower(string(classification.Tier))); tier.Valid() {
		return tier
	}
	return entities.TierMedium
}

// applyTier persists a tier change, raising the score to the new base when
// it is below it. Lowering a tier does not cut an earned score.
func (s *ImportanceService) applyTier(ctx context.Context, entity *entities.Entity, tier entities.Tier) error {
	entity.Tier = tier
	if base := tier.BaseScore(); entity.ImportanceScore < base {
		entity.ImportanceScore = base
	}
	entity.ClampScore()
	return s.relationalDB.UpdateEntity(ctx, entity)
}

// Promote sets an explicit tier from a user action. This is the only path
// that downgrades a critical entity.
func (s *ImportanceService) Promote(ctx context.Context, entity *entities.Entity, tier entities.Tier) error {
	entity.Tier = tier
	entity.ImportanceScore = tier.BaseScore()
	return s.relationalDB.UpdateEntity(ctx, entity)
}
