package mcp

import (
	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driving"
)

// SettingsProvider returns the live retrieval settings.
type SettingsProvider interface {
	Get() domain.RetrievalSettings
}

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval ranks indexed chunks against a query.
	Retrieval driving.RetrievalService

	// Settings supplies defaults for top_k and threshold.
	Settings SettingsProvider

	// Chat answers questions; the ask tool is only registered when set.
	Chat driving.ChatService

	// Sync exposes per-record sync status.
	Sync driving.SyncCoordinator

	// Kinds is the content-kind registry.
	Kinds *domain.KindRegistry
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil || p.Settings == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
