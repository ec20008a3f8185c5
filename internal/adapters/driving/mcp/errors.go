// Package mcp provides an MCP (Model Context Protocol) server adapter for deepone.
// It lets AI assistants run research tasks, query the local index and read
// stored reports.
package mcp

import "errors"

// ErrMissingResearchService is returned when the research service is not provided.
var ErrMissingResearchService = errors.New("mcp: research service is required")

// ErrIndexUnavailable is returned by search_local when no index is wired.
var ErrIndexUnavailable = errors.New("mcp: local index is not available")
