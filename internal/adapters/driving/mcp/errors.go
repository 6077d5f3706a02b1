// Package mcp provides an MCP (Model Context Protocol) server adapter for recall.
// It lets AI assistants search, cluster and question the user's notes.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrToolUnavailable is returned by tools whose service is not configured.
var ErrToolUnavailable = errors.New("mcp: tool is not available")
