package handlers

import (
	"context"
	"fmt"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/ports"
	"github.com/mnemo-ai/mnemo/internal/domain/services"
)

// IngestHandler handles text ingestion.
type IngestHandler struct {
	ingestService *services.IngestService
	llm           ports.LLMClient
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(ingestService *services.IngestService, llm ports.LLMClient) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		llm:           llm,
	}
}

// IngestResult summarizes what an ingestion run did.
type IngestResult struct {
	Inserted   int
	Superseded int
	Reobserved int
	Appended   int
	Skipped    int
	Failures   []services.ItemError
	Outcomes   []*services.IngestOutcome
}

// Handle extracts candidates from the text and stores them for the owner.
func (h *IngestHandler) Handle(ctx context.Context, ownerID, text, origin string) (*IngestResult, error) {
	if text == "" {
		return nil, fmt.Errorf("nothing to ingest")
	}

	outcomes, failures, err := h.ingestService.IngestText(ctx, h.llm, ownerID, text, origin)
	if err != nil {
		return nil, fmt.Errorf("ingesting text: %w", err)
	}

	result := &IngestResult{Failures: failures, Outcomes: outcomes}
	for _, outcome := range outcomes {
		switch outcome.Status {
		case entities.IngestInserted:
			result.Inserted++
		case entities.IngestSuperseded:
			result.Superseded++
		case entities.IngestReobserved:
			result.Reobserved++
		case entities.IngestAppended:
			result.Appended++
		case entities.IngestSkipped:
			result.Skipped++
		}
	}
	return result, nil
}
