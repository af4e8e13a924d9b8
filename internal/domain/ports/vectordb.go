package ports

import "context"

// ScoredID is a vector search hit: an entity id with its cosine similarity.
type ScoredID struct {
	ID    string
	Score float64
}

// VectorDB defines the interface for vector database operations. Vectors are
// keyed by entity id and carry the owner id so searches stay owner-scoped.
type VectorDB interface {
	// SaveVector stores or replaces an entity's semantic vector.
	SaveVector(ctx context.Context, ownerID, entityID string, vector []float32) error

	// FindVector retrieves an entity's vector. Returns nil if absent.
	FindVector(ctx context.Context, ownerID, entityID string) ([]float32, error)

	// Search returns the entities most similar to the given vector for one
	// owner, best first.
	Search(ctx context.Context, ownerID string, vector []float32, limit int) ([]ScoredID, error)

	// Delete removes an entity's vector.
	Delete(ctx context.Context, ownerID, entityID string) error
}
