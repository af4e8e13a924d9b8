package services

import (
	"context"
	"fmt"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
)

// MaxTraversalDepth caps how far a traversal may walk regardless of what the
// caller asks for.
const MaxTraversalDepth = 4

// GraphNode is one entity reached by a traversal, with how it was reached.
type GraphNode struct {
	Entity   *entities.Entity
	Depth    int
	Via      *entities.Relationship
	ViaID    string
	Strength float64
}

// GraphService walks the relationship graph breadth-first. Every walk is
// bounded by depth and minimum edge strength, and a visited set makes cycles
// safe.
type GraphService struct {
	relationalDB ports.RelationalDB
}

// NewGraphService creates a new GraphService.
func NewGraphService(relationalDB ports.RelationalDB) *GraphService {
	return &GraphService{relationalDB: relationalDB}
}

// Traverse walks outward from an entity up to maxDepth hops, following
// active edges with strength >= minStrength. The start entity is not
// included in the result. Nodes are returned in breadth-first order, so
// closer entities come first.
func (s *GraphService) Traverse(ctx context.Context, ownerID, startID string, maxDepth int, minStrength float64) ([]GraphNode, error) {
	if maxDepth <= 0 || maxDepth > MaxTraversalDepth {
		maxDepth = MaxTraversalDepth
	}

	start, err := s.relationalDB.FindEntityByID(ctx, ownerID, startID)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, fmt.Errorf("entity %s not found", startID)
	}

	visited := map[string]bool{startID: true}
	frontier := []string{startID}
	var nodes []GraphNode

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			edges, err := s.relationalDB.FindRelationshipsByEntity(ctx, ownerID, id, minStrength)
			if err != nil {
				return nil, fmt.Errorf("loading edges for %s: %w", id, err)
			}
			for i := range edges {
				edge := &edges[i]
				other := edge.TargetEntityID
				if other == id {
					other = edge.SourceEntityID
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				nodes = append(nodes, GraphNode{
					Depth:    depth,
					Via:      edge,
					ViaID:    id,
					Strength: edge.Strength,
				})
				next = append(next, other)
			}
		}
		frontier = next
	}

	if len(nodes) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		other := node.Via.TargetEntityID
		if other == node.ViaID {
			other = node.Via.SourceEntityID
		}
		ids = append(ids, other)
	}
	found, err := s.relationalDB.FindEntitiesByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("loading traversal entities: %w", err)
	}
	byID := make(map[string]*entities.Entity, len(found))
	for _, entity := range found {
		byID[entity.ID] = entity
	}

	// Merged or missing endpoints drop out of the walk.
	filtered := nodes[:0]
	for i, node := range nodes {
		entity := byID[ids[i]]
		if entity == nil || !entity.IsActive() {
			continue
		}
		node.Entity = entity
		filtered = append(filtered, node)
	}
	return filtered, nil
}

// Relate records an edge between two entities, creating or strengthening
// it. Both endpoints must exist and be active.
func (s *GraphService) Relate(ctx context.Context, ownerID, sourceID, targetID string, relType entities.RelationType, strength float64) (*entities.Relationship, error) {
	if sourceID == targetID {
		return nil, fmt.Errorf("entity cannot relate to itself")
	}
	for _, id := range []string{sourceID, targetID} {
		entity, err := s.relationalDB.FindEntityByID(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		if entity == nil || !entity.IsActive() {
			return nil, fmt.Errorf("entity %s not found or not active", id)
		}
	}
	if strength <= 0 || strength > 1 {
		strength = 0.5
	}
	rel := &entities.Relationship{
		OwnerID:        ownerID,
		SourceEntityID: sourceID,
		TargetEntityID: targetID,
		Type:           relType,
		Strength:       strength,
		Active:         true,
		StartedAt:      timeNow(),
	}
	if err := s.relationalDB.SaveRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("saving relationship: %w", err)
	}
	return rel, nil
}

// Connected reports whether two entities are linked within maxDepth hops,
// and at what depth.
func (s *GraphService) Connected(ctx context.Context, ownerID, fromID, toID string, maxDepth int, minStrength float64) (bool, int, error) {
	nodes, err := s.Traverse(ctx, ownerID, fromID, maxDepth, minStrength)
	if err != nil {
		return false, 0, err
	}
	for _, node := range nodes {
		if node.Entity.ID == toID {
			return true, node.Depth, nil
		}
	}
	return false, 0, nil
}
