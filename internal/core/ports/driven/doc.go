// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - NoteSource: Loads the notes corpus (Keep export, markdown folder, Notion)
//   - Chunker: Splits notes into offset-tracked chunks
//   - TagStore: Tag and excluded tag persistence
//   - SessionStore: Chat session persistence
//   - EmbeddingCache: Whole-set embedding persistence
//   - ConfigStore: Application configuration
//   - PromptStore: Prompt templates
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, only keyword scoring runs.
//   - LLMService: Language model operations. Without it, chat and tree/graph building are disabled.
//   - ImageEmbedder: CLIP-style embeddings. Without it, image scoring is disabled.
//   - VectorStore, GraphIndex, TreeIndex: Retrieval backends. Unready backends are skipped.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or chunker package
package driven
