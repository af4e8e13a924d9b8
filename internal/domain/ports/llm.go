// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
)

// Classification is the result of delegated importance classification.
type Classification struct {
	Tier      entities.Tier `json:"tier"`
	Score     float64       `json:"score"`
	Rationale string        `json:"rationale"`
}

// LLMClient defines the interface for LLM operations. Both methods produce
// untrusted output that callers validate before it touches store state.
type LLMClient interface {
	// ExtractCandidates turns raw text into typed candidate facts with
	// confidence scores. validPredicates constrains the extraction prompt.
	ExtractCandidates(ctx context.Context, text string, validPredicates []string) ([]entities.Candidate, error)

	// ClassifyImportance asks the model to place an entity into one of the
	// five importance tiers, given a short description of what is known.
	ClassifyImportance(ctx context.Context, entity *entities.Entity, knownFacts []string) (*Classification, error)
}
