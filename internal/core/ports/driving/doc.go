// Package driving holds the interfaces the CLI and the MCP server call:
// indexing, search, chunk search, clusters, chat, sessions, notes and
// settings. The services package implements them.
package driving
