package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/mocks"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

func TestClassify_LLMOverridesHeuristic(t *testing.T) {
	db := newMockRelationalDB()
	llm := &mocks.LLMClient{Classification: &ports.Classification{Tier: entities.TierHigh, Score: 0.8}}
	svc := NewImportanceService(db, llm)
	entity := storedEntity(t, db, entities.TierLow, 0.3, time.Now())

	tier, err := svc.Classify(context.Background(), entity)
	require.NoError(t, err)

	assert.Equal(t, entities.TierHigh, tier)
	assert.Equal(t, entities.TierHigh, entity.Tier)
	assert.InDelta(t, 0.8, entity.ImportanceScore, 0.0001)
	assert.Equal(t, 1, llm.ClassifyCallCount)
}

func TestClassify_SelfMarkerIsCriticalWithoutLLM(t *testing.T) {
	db := newMockRelationalDB()
	llm := &mocks.LLMClient{Classification: &ports.Classification{Tier: entities.TierTrivial}}
	svc := NewImportanceService(db, llm)

	entity := storedEntity(t, db, entities.TierMedium, 0.5, time.Now())
	entity.Name = "me"
	entity.NormalizedName = "me"

	tier, err := svc.Classify(context.Background(), entity)
	require.NoError(t, err)
	assert.Equal(t, entities.TierCritical, tier)
	assert.Equal(t, 0, llm.ClassifyCallCount)
}

func TestClassify_FamilyMarkerIsCritical(t *testing.T) {
	db := newMockRelationalDB()
	svc := NewImportanceService(db, nil)

	entity := storedEntity(t, db, entities.TierLow, 0.3, time.Now())
	entity.Name = "Mom"
	entity.NormalizedName = "mom"

	tier, err := svc.Classify(context.Background(), entity)
	require.NoError(t, err)
	assert.Equal(t, entities.TierCritical, tier)
	assert.InDelta(t, 1.0, entity.ImportanceScore, 0.0001)
}

func TestClassify_HeavyMentionsShortCircuitToHigh(t *testing.T) {
	db := newMockRelationalDB()
	llm := &mocks.LLMClient{Classification: &ports.Classification{Tier: entities.TierTrivial}}
	svc := NewImportanceService(db, llm)

	entity := storedEntity(t, db, entities.TierLow, 0.3, time.Now())
	entity.MentionCount = 25

	tier, err := svc.Classify(context.Background(), entity)
	require.NoError(t, err)
	assert.Equal(t, entities.TierHigh, tier)
	assert.Equal(t, 0, llm.ClassifyCallCount)
}

func TestClassify_MentionFloorRaisesLLMVerdict(t *testing.T) {
	db := newMockRelationalDB()
	llm := &mocks.LLMClient{Classification: &ports.Classification{Tier: entities.TierTrivial}}
	svc := NewImportanceService(db, llm)

	entity := storedEntity(t, db, entities.TierLow, 0.3, time.Now())
	entity.MentionCount = 9

	tier, err := svc.Classify(context.Background(), entity)
	require.NoError(t, err)
	assert.Equal(t, entities.TierMedium, tier)
	assert.Equal(t, 1, llm.ClassifyCallCount)
}

func TestClassify_LLMErrorFallsBackToMedium(t *testing.T) {
	db := newMockRelationalDB()
	llm := &mocks.LLMClient{ClassifyErr: assert.AnError}
	svc := NewImportanceService(db, llm)

	entity := storedEntity(t, db, entities.TierLow, 0.3, time.Now())

	tier, err := svc.Classify(context.Background(), entity)
	require.NoError(t, err)
	assert.Equal(t, entities.TierMedium, tier)
}

func TestClassify_GarbageTierIgnored(t *testing.T) {
	db := newMockRelationalDB()
	llm := &mocks.LLMClient{Classification: &ports.Classification{Tier: "mega-important"}}
	svc := NewImportanceService(db, llm)

	entity := storedEntity(t, db, entities.TierMedium, 0.5, time.Now())
	entity.Kind = entities.KindPerson

	tier, err := svc.Classify(context.Background(), entity)
	require.NoError(t, err)
	assert.True(t, tier.Valid())
}

func TestClassify_CriticalIsSticky(t *testing.T) {
	db := newMockRelationalDB()
	llm := &mocks.LLMClient{Classification: &ports.Classification{Tier: entities.TierTrivial}}
	svc := NewImportanceService(db, llm)

	entity := storedEntity(t, db, entities.TierCritical, 1.0, time.Now())

	tier, err := svc.Classify(context.Background(), entity)
	require.NoError(t, err)
	assert.Equal(t, entities.TierCritical, tier)
	assert.Equal(t, entities.TierCritical, entity.Tier)
}

func TestClassify_RelationshipFactsRaiseTier(t *testing.T) {
	db := newMockRelationalDB()
	svc := NewImportanceService(db, nil)
	ctx := context.Background()

	entity := storedEntity(t, db, entities.TierLow, 0.3, time.Now())
	require.NoError(t, db.InsertFact(ctx, &entities.Fact{
		ID: "fact-1", OwnerID: testOwner, EntityID: entity.ID,
		Predicate: "feels_about", ObjectText: "anxious", Confidence: 0.8,
		ValidFrom: time.Now(), Version: 1, CreatedAt: time.Now(),
	}))

	tier, err := svc.Classify(ctx, entity)
	require.NoError(t, err)
	assert.Equal(t, entities.TierHigh, tier)
}

func TestClassify_LoweringTierKeepsEarnedScore(t *testing.T) {
	db := newMockRelationalDB()
	llm := &mocks.LLMClient{Classification: &ports.Classification{Tier: entities.TierLow}}
	svc := NewImportanceService(db, llm)

	entity := storedEntity(t, db, entities.TierHigh, 0.9, time.Now())

	_, err := svc.Classify(context.Background(), entity)
	require.NoError(t, err)
	assert.Equal(t, entities.TierLow, entity.Tier)
	assert.InDelta(t, 0.9, entity.ImportanceScore, 0.0001)
}

func TestPromote_ExplicitTierOverridesEverything(t *testing.T) {
	db := newMockRelationalDB()
	svc := NewImportanceService(db, nil)

	entity := storedEntity(t, db, entities.TierCritical, 1.0, time.Now())

	require.NoError(t, svc.Promote(context.Background(), entity, entities.TierLow))
	assert.Equal(t, entities.TierLow, entity.Tier)
	assert.InDelta(t, 0.3, entity.ImportanceScore, 0.0001)
}
