// Package sqlite persists recall's local state in ~/.recall/data/recall.db
// using modernc.org/sqlite, so the binary builds without cgo.
//
// One Store backs four ports: TagStore (note tags and excluded tags),
// SessionStore (chat sessions), EmbeddingCache (whole embedding sets keyed
// by content hash, vectors as float32 blobs) and GraphStore (extracted
// relations). The schema lives in migrations/.
package sqlite
