package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/recall/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for recall resources.
	uriScheme = "recall://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "notes",
		Name:        "notes",
		Description: "List of visible notes",
		MIMEType:    "application/json",
	}, s.handleNotesResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "tags",
		Name:        "tags",
		Description: "Tags with note counts and the excluded tags",
		MIMEType:    "application/json",
	}, s.handleTagsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "notes/{noteId}",
		Name:        "note-content",
		Description: "Content of a specific note",
		MIMEType:    "text/markdown",
	}, s.handleNoteContentResource)
}

// handleNotesResource lists visible notes.
func (s *Server) handleNotesResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Notes == nil {
		return jsonResult(req.Params.URI, []struct{}{})
	}

	type noteInfo struct {
		ID     string   `json:"id"`
		Title  string   `json:"title"`
		Tag    string   `json:"tag,omitempty"`
		Labels []string `json:"labels,omitempty"`
		URI    string   `json:"uri"`
	}

	notes := s.ports.Notes.Notes()
	infos := make([]noteInfo, len(notes))
	for i := range notes {
		infos[i] = noteInfo{
			ID:     notes[i].ID,
			Title:  notes[i].Title,
			Tag:    notes[i].Tag,
			Labels: notes[i].Labels,
			URI:    noteURI(notes[i].ID),
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleTagsResource lists tags and excluded tags.
func (s *Server) handleTagsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type tagInfo struct {
		Tag   string `json:"tag"`
		Count int    `json:"count"`
	}
	out := struct {
		Tags     []tagInfo `json:"tags"`
		Excluded []string  `json:"excluded"`
	}{Tags: []tagInfo{}, Excluded: []string{}}

	if s.ports.Notes != nil {
		for _, tc := range s.ports.Notes.Tags() {
			out.Tags = append(out.Tags, tagInfo{Tag: tc.Tag, Count: tc.Count})
		}
		if excluded := s.ports.Notes.ExcludedTags(); excluded != nil {
			out.Excluded = excluded
		}
	}
	return jsonResult(req.Params.URI, out)
}

// handleNoteContentResource returns one note as markdown. Notes hidden by
// an excluded tag are not found.
func (s *Server) handleNoteContentResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Notes == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	noteID := extractNoteID(req.Params.URI)
	if noteID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	note, err := s.ports.Notes.Get(noteID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting note: %w", err)
	}
	if !visible(s.ports.Notes.Notes(), noteID) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	text := note.Content
	if note.Title != "" {
		text = "# " + note.Title + "\n\n" + note.Content
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     text,
		}},
	}, nil
}

func visible(notes []domain.Note, id string) bool {
	for i := range notes {
		if notes[i].ID == id {
			return true
		}
	}
	return false
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// noteURI builds recall://notes/{noteId}. Ids may contain slashes
// (markdown paths), so the id is path-escaped.
func noteURI(id string) string {
	return uriScheme + "notes/" + url.PathEscape(id)
}

// extractNoteID extracts the note ID from a URI like recall://notes/{noteId}.
func extractNoteID(uri string) string {
	const prefix = uriScheme + "notes/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id, err := url.PathUnescape(strings.TrimPrefix(uri, prefix))
	if err != nil {
		return ""
	}
	return id
}
