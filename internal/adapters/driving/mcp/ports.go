package mcp

import (
	"github.com/custodia-labs/deepone/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Research runs research tasks. Required.
	Research driving.ResearchService

	// Index answers local similarity queries. Optional.
	Index driving.IndexService

	// History exposes stored reports and runs. Optional.
	History driving.HistoryService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Research == nil {
		return ErrMissingResearchService
	}
	return nil
}
