package mcp

import (
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides hybrid note search.
	Search driving.SearchService

	// ChunkSearch ranks notes by their best chunk. Optional.
	ChunkSearch driving.ChunkSearchService

	// Clusters groups notes by topic. Optional.
	Clusters driving.ClusterService

	// Chat answers questions with citations. Optional.
	Chat driving.ChatService

	// Notes exposes notes as resources. Optional.
	Notes driving.NoteService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
