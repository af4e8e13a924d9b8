package handlers

import (
	"context"
	"fmt"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
	"github.com/mnemo-ai/mnemo/internal/domain/services"
)

// EntityHandler handles entity inspection and curation.
type EntityHandler struct {
	relationalDB ports.RelationalDB
	retrieval    *services.RetrievalService
	graph        *services.GraphService
	importance   *services.ImportanceService
}

// NewEntityHandler creates a new entity handler.
func NewEntityHandler(relationalDB ports.RelationalDB, retrieval *services.RetrievalService, graph *services.GraphService, importance *services.ImportanceService) *EntityHandler {
	return &EntityHandler{
		relationalDB: relationalDB,
		retrieval:    retrieval,
		graph:        graph,
		importance:   importance,
	}
}

// List returns entities with the given status.
func (h *EntityHandler) List(ctx context.Context, ownerID string, status entities.Status, limit, offset int) ([]*entities.Entity, error) {
	return h.relationalDB.ListEntities(ctx, ownerID, status, limit, offset)
}

// Show assembles the full context for one entity, looked up by name.
func (h *EntityHandler) Show(ctx context.Context, ownerID, name string, includeClosed bool) (*services.EntityContext, error) {
	entity, err := h.relationalDB.FindEntityByName(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("entity %q not found", name)
	}
	return h.retrieval.FullContext(ctx, ownerID, entity.ID, services.Filters{IncludeClosed: includeClosed})
}

// History returns the version chain for every closed fact of an entity,
// oldest truth last.
func (h *EntityHandler) History(ctx context.Context, ownerID, name, predicate string) ([]entities.Fact, error) {
	entity, err := h.relationalDB.FindEntityByName(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("entity %q not found", name)
	}

	facts, err := h.relationalDB.FindFactsByEntity(ctx, ownerID, entity.ID, true)
	if err != nil {
		return nil, fmt.Errorf("loading facts: %w", err)
	}
	if predicate == "" {
		return facts, nil
	}
	var filtered []entities.Fact
	for _, fact := range facts {
		if fact.Predicate == predicate {
			filtered = append(filtered, fact)
		}
	}
	return filtered, nil
}

// Promote sets an explicit importance tier on an entity.
func (h *EntityHandler) Promote(ctx context.Context, ownerID, name string, tier entities.Tier) (*entities.Entity, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
	entity, err := h.relationalDB.FindEntityByName(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("entity %q not found", name)
	}
	if err := h.importance.Promote(ctx, entity, tier); err != nil {
		return nil, fmt.Errorf("promoting entity: %w", err)
	}
	return entity, nil
}

// Relate creates or strengthens an edge between two named entities.
func (h *EntityHandler) Relate(ctx context.Context, ownerID, sourceName, targetName string, relType entities.RelationType, strength float64) (*entities.Relationship, error) {
	source, err := h.relationalDB.FindEntityByName(ctx, ownerID, sourceName)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("entity %q not found", sourceName)
	}
	target, err := h.relationalDB.FindEntityByName(ctx, ownerID, targetName)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("entity %q not found", targetName)
	}
	return h.graph.Relate(ctx, ownerID, source.ID, target.ID, relType, strength)
}

// Relations walks the graph outward from a named entity.
func (h *EntityHandler) Relations(ctx context.Context, ownerID, name string, depth int, minStrength float64) ([]services.GraphNode, error) {
	entity, err := h.relationalDB.FindEntityByName(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("entity %q not found", name)
	}
	return h.graph.Traverse(ctx, ownerID, entity.ID, depth, minStrength)
}
