package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/services"
)

func seedPerson(t *testing.T, stack *testStack, name string, sensitivity entities.Sensitivity) *entities.Entity {
	t.Helper()

	entity, err := stack.repo.FindOrCreateEntity(t.Context(), &entities.Entity{
		OwnerID:         testOwner,
		Name:            name,
		Kind:            entities.KindPerson,
		Tier:            entities.TierMedium,
		ImportanceScore: 0.5,
		Sensitivity:     sensitivity,
		Status:          entities.StatusActive,
	})
	require.NoError(t, err)
	return entity
}

func TestQueryHandler_Handle_EmptyQuery(t *testing.T) {
	stack := newTestStack(t)
	handler := NewQueryHandler(stack.router)

	_, err := handler.Handle(t.Context(), testOwner, "", entities.SensitivityNormal, false, 10)
	require.Error(t, err)
}

func TestQueryHandler_EntitySummary(t *testing.T) {
	stack := newTestStack(t)
	handler := NewQueryHandler(stack.router)

	entity := seedPerson(t, stack, "Sarah", entities.SensitivityNormal)
	require.NoError(t, stack.repo.InsertFact(t.Context(), &entities.Fact{
		OwnerID:    testOwner,
		EntityID:   entity.ID,
		Predicate:  "works_at",
		ObjectText: "Acme",
		Confidence: 0.9,
		Exclusive:  true,
		ValidFrom:  entity.CreatedAt,
		Version:    1,
	}))

	answer, err := handler.Handle(t.Context(), testOwner, "who is Sarah?", entities.SensitivityNormal, false, 10)
	require.NoError(t, err)

	assert.Equal(t, services.IntentEntitySummary, answer.Intent)
	require.NotNil(t, answer.Context)
	assert.Equal(t, "Sarah", answer.Context.Entity.Name)
	require.Len(t, answer.Context.Facts, 1)
	assert.Equal(t, "Acme", answer.Context.Facts[0].ObjectText)
}

func TestQueryHandler_SensitivityCeilingHidesEntity(t *testing.T) {
	stack := newTestStack(t)
	handler := NewQueryHandler(stack.router)

	seedPerson(t, stack, "Therapist", entities.SensitivityPrivate)

	answer, err := handler.Handle(t.Context(), testOwner, "who is Therapist?", entities.SensitivityNormal, false, 10)
	require.NoError(t, err)

	// Falls through to standard search rather than exposing the entity.
	assert.Nil(t, answer.Context)
}

func TestQueryHandler_DegradedWhenEmbeddingDown(t *testing.T) {
	stack := newTestStack(t)
	handler := NewQueryHandler(stack.router)

	seedPerson(t, stack, "Maya Patel", entities.SensitivityNormal)
	stack.embedder.Err = errors.New("embedding service down")

	answer, err := handler.Handle(t.Context(), testOwner, "maya", entities.SensitivityNormal, false, 10)
	require.NoError(t, err)

	assert.True(t, answer.Degraded)
	require.NotEmpty(t, answer.Results)
	assert.Equal(t, "Maya Patel", answer.Results[0].Entity.Name)
}
