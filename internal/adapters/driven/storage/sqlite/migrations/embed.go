// Package migrations holds the schema for recall.db: note tags, excluded
// tags, chat sessions and cached embedding sets. Files are applied in name
// order by the sqlite store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
