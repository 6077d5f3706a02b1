package domain

// TreeNode is a node of the hierarchical summary tree.
// Level 0 nodes are leaf chunks; higher levels are summaries.
type TreeNode struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Level     int       `json:"level"`

	// Children are ids of independently addressable nodes.
	Children []string `json:"children"`

	// NoteIDs is the union of originating notes.
	NoteIDs []string `json:"note_ids"`

	// ChunkIndex is set on leaves built from a single chunk.
	ChunkIndex *int `json:"chunk_index,omitempty"`
}

// IsLeaf reports whether the node is a level 0 chunk.
func (n TreeNode) IsLeaf() bool {
	return n.Level == 0
}

// Relation is a subject-predicate-object fact extracted from a note.
type Relation struct {
	ID        string
	Subject   string
	Predicate string
	Object    string
	NoteID    string
	NoteTitle string
	Embedding []float32
}

// Text renders the relation as a sentence.
func (r Relation) Text() string {
	return r.Subject + " " + r.Predicate + " " + r.Object
}

// EmbeddingSet is a cached, index-aligned set of vectors.
type EmbeddingSet struct {
	// Hash is the content hash over all embedded texts.
	Hash string

	// Count is the number of embedded entities.
	Count int

	// Dimensions is the vector size.
	Dimensions int

	// Vectors are index-aligned with the embedded entities.
	Vectors [][]float32
}
