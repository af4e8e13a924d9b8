package handlers

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/mnemo-ai/mnemo/internal/domain/ports"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/config"
	embedder "github.com/mnemo-ai/mnemo/internal/infrastructure/embedder/openai"
)

// OwnerHandler manages the owner registry: each owner gets its own qdrant
// collection and sqlite database.
type OwnerHandler struct {
	basePath string
}

// NewOwnerHandler creates a new owner handler.
func NewOwnerHandler(basePath string) *OwnerHandler {
	return &OwnerHandler{basePath: basePath}
}

// OwnerInfo describes one registered owner.
type OwnerInfo struct {
	ID          string
	Collection  string
	Description string
}

// Add registers a new owner. The collection manager, when provided, creates
// the owner's vector collection up front.
func (h *OwnerHandler) Add(ctx context.Context, id, description string, collections ports.CollectionManager) (*OwnerInfo, error) {
	sanitized := config.SanitizeOwnerID(id)
	if sanitized == "" {
		return nil, fmt.Errorf("invalid owner id %q", id)
	}

	owners, err := config.LoadOwners(h.basePath)
	if err != nil {
		return nil, err
	}
	if owners.Exists(sanitized) {
		return nil, fmt.Errorf("owner %q already exists", sanitized)
	}

	entry := config.OwnerEntry{
		Collection:  config.GenerateCollectionName(sanitized),
		Description: description,
	}
	owners.Add(sanitized, entry)
	if err := owners.Save(h.basePath); err != nil {
		return nil, err
	}

	if collections != nil {
		if err := collections.EnsureCollection(ctx, embedder.VectorSize); err != nil {
			return nil, fmt.Errorf("creating collection: %w", err)
		}
	}

	return &OwnerInfo{ID: sanitized, Collection: entry.Collection, Description: description}, nil
}

// List returns all registered owners, sorted by id.
func (h *OwnerHandler) List(ctx context.Context) ([]OwnerInfo, error) {
	owners, err := config.LoadOwners(h.basePath)
	if err != nil {
		return nil, err
	}
	result := make([]OwnerInfo, 0, len(owners.Owners))
	for id, entry := range owners.Owners {
		result = append(result, OwnerInfo{ID: id, Collection: entry.Collection, Description: entry.Description})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Remove unregisters an owner and deletes its data: the vector collection
// and the per-owner database directory. This is the only hard delete.
func (h *OwnerHandler) Remove(ctx context.Context, id string, collections ports.CollectionManager) error {
	sanitized := config.SanitizeOwnerID(id)
	owners, err := config.LoadOwners(h.basePath)
	if err != nil {
		return err
	}
	if !owners.Exists(sanitized) {
		return fmt.Errorf("owner %q not found", sanitized)
	}

	if collections != nil {
		if err := collections.DeleteCollection(ctx); err != nil {
			return fmt.Errorf("deleting collection: %w", err)
		}
	}
	if err := os.RemoveAll(config.OwnerDir(h.basePath, sanitized)); err != nil {
		return fmt.Errorf("removing owner data: %w", err)
	}

	owners.Remove(sanitized)
	return owners.Save(h.basePath)
}
