package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/mocks"
	"github.com/mnemo-ai/mnemo/internal/domain/services"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/config"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/relationaldb/sqlite"
)

const testOwner = "owner-1"

// testStack wires real services over an in-memory database, with mocked
// external collaborators.
type testStack struct {
	repo     *sqlite.Repository
	llm      *mocks.LLMClient
	embedder *mocks.Embedder
	vectorDB *mocks.VectorDB

	retrieval *services.RetrievalService
	graph     *services.GraphService
	ingest    *services.IngestService
	router    *services.RouterService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(t.Context()))

	llm := &mocks.LLMClient{}
	emb := &mocks.Embedder{EmbeddingResult: []float32{0.1, 0.2, 0.3}}
	vdb := &mocks.VectorDB{}

	predicates := services.NewPredicateService(repo)
	require.NoError(t, predicates.LoadDefaults(t.Context()))

	decay := services.NewDecayService(repo)
	importance := services.NewImportanceService(repo, llm)
	ingest := services.NewIngestService(repo, vdb, emb, predicates, decay, importance)
	retrieval := services.NewRetrievalService(repo, vdb, emb)
	graph := services.NewGraphService(repo)
	router := services.NewRouterService(repo, retrieval, graph)

	return &testStack{
		repo:      repo,
		llm:       llm,
		embedder:  emb,
		vectorDB:  vdb,
		retrieval: retrieval,
		graph:     graph,
		ingest:    ingest,
		router:    router,
	}
}

func TestIngestHandler_Handle(t *testing.T) {
	stack := newTestStack(t)
	stack.llm.Candidates = []entities.Candidate{
		{
			EntityName: "Sarah Chen",
			EntityKind: entities.KindPerson,
			Predicate:  "works_at",
			Object:     "Acme",
			Confidence: 0.95,
		},
	}

	handler := NewIngestHandler(stack.ingest, stack.llm)

	result, err := handler.Handle(t.Context(), testOwner, "Sarah started at Acme.", "cli")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	assert.Zero(t, result.Skipped)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, entities.IngestInserted, result.Outcomes[0].Status)
	assert.Equal(t, "Sarah Chen", result.Outcomes[0].Entity.Name)
}

func TestIngestHandler_Handle_EmptyText(t *testing.T) {
	stack := newTestStack(t)
	handler := NewIngestHandler(stack.ingest, stack.llm)

	_, err := handler.Handle(t.Context(), testOwner, "", "cli")
	require.Error(t, err)
}

func TestIngestHandler_Handle_ContradictionSupersedes(t *testing.T) {
	stack := newTestStack(t)
	handler := NewIngestHandler(stack.ingest, stack.llm)

	stack.llm.Candidates = []entities.Candidate{
		{EntityName: "Sarah", EntityKind: entities.KindPerson, Predicate: "works_at", Object: "Acme", Confidence: 0.9},
	}
	_, err := handler.Handle(t.Context(), testOwner, "Sarah works at Acme.", "cli")
	require.NoError(t, err)

	stack.llm.Candidates = []entities.Candidate{
		{EntityName: "Sarah", EntityKind: entities.KindPerson, Predicate: "works_at", Object: "Globex", Confidence: 0.9},
	}
	result, err := handler.Handle(t.Context(), testOwner, "Sarah moved to Globex.", "cli")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Superseded)
	require.Len(t, result.Outcomes, 1)
	require.NotNil(t, result.Outcomes[0].Superseded)
	assert.Equal(t, "Acme", result.Outcomes[0].Superseded.ObjectText)
	assert.Equal(t, 2, result.Outcomes[0].Fact.Version)
}

func TestIngestHandler_Handle_LowConfidenceSkipped(t *testing.T) {
	stack := newTestStack(t)
	handler := NewIngestHandler(stack.ingest, stack.llm)

	stack.llm.Candidates = []entities.Candidate{
		{EntityName: "Maybe", EntityKind: entities.KindPerson, Predicate: "works_at", Object: "Somewhere", Confidence: 0.1},
	}

	result, err := handler.Handle(t.Context(), testOwner, "Maybe works somewhere?", "cli")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Inserted)
}
