// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"

	"github.com/mnemo-ai/mnemo/internal/infrastructure/config"
)

// InitHandler handles store initialization.
type InitHandler struct{}

// NewInitHandler creates a new init handler.
func NewInitHandler() *InitHandler {
	return &InitHandler{}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath string
	OwnersPath string
}

// Handle writes the default configuration and an empty owner registry.
func (h *InitHandler) Handle(ctx context.Context, basePath string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("mnemo already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	owners := &config.OwnersConfig{}
	if err := owners.Save(basePath); err != nil {
		return nil, fmt.Errorf("writing owner registry: %w", err)
	}

	return &InitResult{
		ConfigPath: config.ConfigFilePath(basePath),
		OwnersPath: config.OwnersFilePath(basePath),
	}, nil
}
