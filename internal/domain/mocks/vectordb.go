package mocks

import (
	"context"
	"slices"
	"strings"

	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

// VectorDB is a mock implementation of ports.VectorDB. Vectors are held in
// memory keyed by owner and entity id; Search returns the configured hits.
type VectorDB struct {
	Hits []ports.ScoredID
	// HitsFor overrides Hits per querying entity: when the query vector
	// matches a stored entity's vector, that entity's hits are returned.
	HitsFor map[string][]ports.ScoredID
	Err     error

	SearchErr error

	// Call tracking
	SaveCallCount   int
	SearchCallCount int
	DeleteCallCount int
	Deleted         []string

	vectors map[string][]float32
}

func (m *VectorDB) key(ownerID, entityID string) string {
	return ownerID + "/" + entityID
}

// SaveVector stores a vector in memory.
func (m *VectorDB) SaveVector(ctx context.Context, ownerID, entityID string, vector []float32) error {
	m.SaveCallCount++
	if m.Err != nil {
		return m.Err
	}
	if m.vectors == nil {
		m.vectors = make(map[string][]float32)
	}
	m.vectors[m.key(ownerID, entityID)] = vector
	return nil
}

// FindVector returns a stored vector, or nil when absent.
func (m *VectorDB) FindVector(ctx context.Context, ownerID, entityID string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.vectors[m.key(ownerID, entityID)], nil
}

// Search returns the hits configured for the querying entity, falling back
// to the shared Hits list.
func (m *VectorDB) Search(ctx context.Context, ownerID string, vector []float32, limit int) ([]ports.ScoredID, error) {
	m.SearchCallCount++
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if m.Err != nil {
		return nil, m.Err
	}
	hits := m.Hits
	if m.HitsFor != nil {
		if id := m.entityForVector(ownerID, vector); id != "" {
			hits = m.HitsFor[id]
		}
	}
	if limit < len(hits) {
		return hits[:limit], nil
	}
	return hits, nil
}

func (m *VectorDB) entityForVector(ownerID string, vector []float32) string {
	prefix := ownerID + "/"
	for key, stored := range m.vectors {
		if strings.HasPrefix(key, prefix) && slices.Equal(stored, vector) {
			return strings.TrimPrefix(key, prefix)
		}
	}
	return ""
}

// Delete removes a vector.
func (m *VectorDB) Delete(ctx context.Context, ownerID, entityID string) error {
	m.DeleteCallCount++
	m.Deleted = append(m.Deleted, entityID)
	if m.Err != nil {
		return m.Err
	}
	delete(m.vectors, m.key(ownerID, entityID))
	return nil
}
