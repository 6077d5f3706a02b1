package domain

import (
	"strconv"
	"time"
)

// Chunk size policy, in characters.
const (
	// MinChunkLength is the smallest chunk emitted unless it is the only one.
	MinChunkLength = 100

	// MaxChunkLength is the largest chunk emitted by greedy merging.
	MaxChunkLength = 1500

	// ShortNoteThreshold is the title+content length at or below which a
	// note becomes exactly one chunk.
	ShortNoteThreshold = 500
)

// Chunk is a bounded span of a note's text.
// Chunks are rebuilt wholesale whenever the corpus changes.
type Chunk struct {
	// NoteID refers back to the owning note.
	NoteID string

	// Index is the zero-based position within the note.
	Index int

	// Text is the chunk text. Chunk 0 carries the note title as a prefix.
	Text string

	// Title is the note title.
	Title string

	// Start is the byte offset of the span in the note content.
	Start int

	// End is the exclusive byte offset of the span in the note content.
	End int

	// HeadingTrail lists ancestor headings, outermost first.
	HeadingTrail []string

	// LowConfidenceOffsets is set when Start and End could not be located
	// precisely and fall back to the whole note.
	LowConfidenceOffsets bool

	// Copied note metadata.
	Created time.Time
	Edited  time.Time
	Tag     string
}

// CitationID returns the composite citation id of the chunk.
func (c Chunk) CitationID() string {
	return CitationID(c.NoteID, &c.Index)
}

// CitationID builds a citation id: the note id alone for note-level
// results, or note id + "_c" + chunk index for chunk-level results.
func CitationID(noteID string, chunkIndex *int) string {
	if chunkIndex == nil {
		return noteID
	}
	return noteID + "_c" + strconv.Itoa(*chunkIndex)
}
