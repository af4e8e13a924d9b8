package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mnemo-ai/mnemo/internal/application/handlers"
	"github.com/mnemo-ai/mnemo/internal/domain/services"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/config"
	embedder "github.com/mnemo-ai/mnemo/internal/infrastructure/embedder/openai"
	llm "github.com/mnemo-ai/mnemo/internal/infrastructure/llm/openai"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/relationaldb/sqlite"
	"github.com/mnemo-ai/mnemo/internal/infrastructure/vectordb/qdrant"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config             *config.Config
	Owners             *config.OwnersConfig
	OwnerID            string
	IngestHandler      *handlers.IngestHandler
	QueryHandler       *handlers.QueryHandler
	EntityHandler      *handlers.EntityHandler
	MaintenanceHandler *handlers.MaintenanceHandler
}

// internalDeps holds all dependencies including low-level components.
type internalDeps struct {
	Deps
	vectorDB     *qdrant.Repository
	relationalDB *sqlite.Repository
	embedder     *embedder.Embedder
	predicates   *services.PredicateService
}

// withDeps loads config and builds dependencies, then calls the provided
// function. It handles cleanup automatically.
func withDeps(fn func(*Deps) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

// withInternalDeps provides access to all dependencies including low-level
// components.
func withInternalDeps(fn func(*internalDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	owners, err := config.LoadOwners(cwd)
	if err != nil {
		return fmt.Errorf("loading owners: %w", err)
	}

	if globalOwner == "" {
		return errors.New("owner is required (use --owner flag)")
	}
	ownerID := config.SanitizeOwnerID(globalOwner)

	collection, err := owners.GetCollection(ownerID)
	if err != nil {
		return err
	}

	qdrantCfg := cfg.Qdrant
	qdrantCfg.Collection = collection

	vectorDB, err := qdrant.NewRepository(qdrantCfg)
	if err != nil {
		return fmt.Errorf("creating qdrant repository: %w", err)
	}
	defer vectorDB.Close()

	sqlitePath := config.SQLitePathForOwner(cwd, ownerID)
	relationalDB, err := sqlite.NewRepository(config.SQLiteConfig{Path: sqlitePath})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer relationalDB.Close()

	ctx := context.Background()
	if err := relationalDB.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	emb, err := embedder.NewEmbedder(cfg.Embedder)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	predicates := services.NewPredicateService(relationalDB)
	if err := predicates.LoadDefaults(ctx); err != nil {
		return fmt.Errorf("seeding predicates: %w", err)
	}

	decay := services.NewDecayService(relationalDB)
	importance := services.NewImportanceService(relationalDB, llmClient)
	ingest := services.NewIngestService(relationalDB, vectorDB, emb, predicates, decay, importance)
	retrieval := services.NewRetrievalService(relationalDB, vectorDB, emb)
	graph := services.NewGraphService(relationalDB)
	router := services.NewRouterService(relationalDB, retrieval, graph)
	consolidation := services.NewConsolidationService(relationalDB, vectorDB)
	maintenance := services.NewMaintenanceService(relationalDB, vectorDB, emb, decay, consolidation, importance)

	deps := &internalDeps{
		Deps: Deps{
			Config:             cfg,
			Owners:             owners,
			OwnerID:            ownerID,
			IngestHandler:      handlers.NewIngestHandler(ingest, llmClient),
			QueryHandler:       handlers.NewQueryHandler(router),
			EntityHandler:      handlers.NewEntityHandler(relationalDB, retrieval, graph, importance),
			MaintenanceHandler: handlers.NewMaintenanceHandler(maintenance, consolidation),
		},
		vectorDB:     vectorDB,
		relationalDB: relationalDB,
		embedder:     emb,
		predicates:   predicates,
	}

	return fn(deps)
}

// withPredicateService provides direct predicate registry access.
func withPredicateService(fn func(*services.PredicateService) error) error {
	return withInternalDeps(func(d *internalDeps) error {
		return fn(d.predicates)
	})
}
