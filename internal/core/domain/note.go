package domain

import (
	"strings"
	"time"
)

// Note is one unit of the personal notes corpus.
// Notes are immutable once loaded; only the tag annotation changes.
type Note struct {
	// ID is stable and derived from the source (file name, path or page id).
	ID string

	// Title is the human-readable title. May be empty.
	Title string

	// Content is plain text with lightweight markdown-like structure.
	Content string

	// Created is when the note was first written.
	Created time.Time

	// Edited is when the note was last changed.
	Edited time.Time

	// Archived marks notes the user archived at the source.
	Archived bool

	// Pinned marks notes the user pinned at the source.
	Pinned bool

	// Color is the source colour label, if any.
	Color string

	// Labels are source-provided labels (Keep labels, front matter tags).
	Labels []string

	// Tag is the user-assigned tag. Empty when untagged.
	Tag string

	// Images are attached images.
	Images []ImageAttachment

	// Source names the connector that produced the note.
	Source string

	// URI is the original location of the note.
	URI string
}

// Text returns the title and content joined by a space, trimmed.
// This is the text embedded for note-level retrieval.
func (n Note) Text() string {
	return strings.TrimSpace(n.Title + " " + n.Content)
}

// HasImages reports whether the note carries image attachments.
func (n Note) HasImages() bool {
	return len(n.Images) > 0
}

// ImageAttachment is an image attached to a note.
type ImageAttachment struct {
	// Path is the absolute path to the image file.
	Path string

	// MIMEType is the declared media type.
	MIMEType string
}

// TagCount is a tag with the number of notes carrying it.
type TagCount struct {
	Tag   string
	Count int
}
