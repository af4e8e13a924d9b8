package handlers

import (
	"context"
	"fmt"

	"github.com/mnemo-ai/mnemo/internal/domain/entities"
	"github.com/mnemo-ai/mnemo/internal/domain/services"
)

// QueryHandler handles natural language queries against the store.
type QueryHandler struct {
	router *services.RouterService
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(router *services.RouterService) *QueryHandler {
	return &QueryHandler{router: router}
}

// Handle routes and answers a query. The sensitivity ceiling defaults to
// normal; callers opt in to more private material explicitly.
func (h *QueryHandler) Handle(ctx context.Context, ownerID, query string, maxSensitivity entities.Sensitivity, includeArchived bool, limit int) (*services.Answer, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	filters := services.Filters{
		MaxSensitivity:  maxSensitivity,
		IncludeArchived: includeArchived,
	}
	answer, err := h.router.Ask(ctx, ownerID, query, filters, limit)
	if err != nil {
		return nil, fmt.Errorf("answering query: %w", err)
	}
	return answer, nil
}
