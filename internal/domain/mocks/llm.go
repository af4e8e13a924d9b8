package mocks

import (
	"context"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

// LLMClient is a mock implementation of ports.LLMClient.
type LLMClient struct {
	// ExtractCandidates return values
	Candidates []entities.Candidate
	ExtractErr error

	// ClassifyImportance return values
	Classification *ports.Classification
	ClassifyErr    error

	// Call tracking
	ExtractCallCount  int
	ClassifyCallCount int
	LastText          string
	LastPredicates    []string
}

// ExtractCandidates returns the configured candidates or error.
func (m *LLMClient) ExtractCandidates(ctx context.Context, text string, validPredicates []string) ([]entities.Candidate, error) {
	m.ExtractCallCount++
	m.LastText = text
	m.LastPredicates = validPredicates
	if m.ExtractErr != nil {
		return nil, m.ExtractErr
	}
	return m.Candidates, nil
}

// ClassifyImportance returns the configured classification or error.
func (m *LLMClient) ClassifyImportance(ctx context.Context, entity *entities.Entity, knownFacts []string) (*ports.Classification, error) {
	m.ClassifyCallCount++
	if m.ClassifyErr != nil {
		return nil, m.ClassifyErr
	}
	return m.Classification, nil
}
