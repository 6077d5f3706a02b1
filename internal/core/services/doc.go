// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The retrieval pipeline is built bottom-up: NoteService holds the corpus
// and its tags, EmbeddingIndex caches vectors, SearchService and
// ChunkService score notes and chunks, Router dispatches a query across
// the vector, graph and tree backends, and ChatService grounds model
// answers in the routed context.
//
// Services are pure Go with no CGO or external dependencies.
package services
