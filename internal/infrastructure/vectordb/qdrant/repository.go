// Package qdrant provides a VectorDB implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mnemo-ai/mnemo/internal/domain/ports"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/config"
)

// Repository implements the VectorDB interface using Qdrant. Every point
// carries an owner_id payload and every search filters on it, so vectors
// never leak across owners.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// DeleteCollection removes the collection and all its data.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// ownerFilter builds the mandatory owner scoping filter.
func ownerFilter(ownerID string, extra ...*pb.Condition) *pb.Filter {
	must := []*pb.Condition{
		{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "owner_id",
					Match: &pb.Match{
						MatchValue: &pb.Match_Keyword{Keyword: ownerID},
					},
				},
			},
		},
	}
	must = append(must, extra...)
	return &pb.Filter{Must: must}
}

// SaveVector stores or replaces an entity's semantic vector.
func (r *Repository) SaveVector(ctx context.Context, ownerID, entityID string, vector []float32) error {
	point := &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: entityID},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: vector},
			},
		},
		Payload: map[string]*pb.Value{
			"owner_id": {Kind: &pb.Value_StringValue{StringValue: ownerID}},
		},
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         []*pb.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upserting point: %w", err)
	}
	return nil
}

// FindVector retrieves an entity's vector. Returns nil if absent or owned by
// someone else.
func (r *Repository) FindVector(ctx context.Context, ownerID, entityID string) ([]float32, error) {
	resp, err := r.points.Get(ctx, &pb.GetPoints{
		CollectionName: r.collection,
		Ids: []*pb.PointId{
			{PointIdOptions: &pb.PointId_Uuid{Uuid: entityID}},
		},
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting point: %w", err)
	}

	if len(resp.Result) == 0 {
		return nil, nil
	}

	point := resp.Result[0]
	if owner, ok := point.Payload["owner_id"]; !ok || owner.GetStringValue() != ownerID {
		return nil, nil
	}

	vectors := point.Vectors.GetVector()
	if vectors == nil {
		return nil, nil
	}
	return vectors.Data, nil
}

// Search returns the entities most similar to the given vector for one
// owner, best first.
func (r *Repository) Search(ctx context.Context, ownerID string, vector []float32, limit int) ([]ports.ScoredID, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter:         ownerFilter(ownerID),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: false},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	results := make([]ports.ScoredID, 0, len(resp.Result))
	for _, point := range resp.Result {
		id := point.Id.GetUuid()
		if id == "" {
			continue
		}
		results = append(results, ports.ScoredID{
			ID:    id,
			Score: float64(point.Score),
		})
	}
	return results, nil
}

// Delete removes an entity's vector.
func (r *Repository) Delete(ctx context.Context, ownerID, entityID string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: ownerFilter(ownerID, &pb.Condition{
					ConditionOneOf: &pb.Condition_HasId{
						HasId: &pb.HasIdCondition{
							HasId: []*pb.PointId{
								{PointIdOptions: &pb.PointId_Uuid{Uuid: entityID}},
							},
						},
					},
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting point: %w", err)
	}
	return nil
}
