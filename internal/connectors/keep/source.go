// Package keep loads notes from a Google Keep Takeout export directory.
package keep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/connectors/fswatch"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure Source implements the interfaces.
var (
	_ driven.NoteSource  = (*Source)(nil)
	_ driven.NoteWatcher = (*Source)(nil)
)

// Name is the source name.
const Name = "keep"

// Source reads every *.json note file of a Takeout "Keep" directory.
type Source struct {
	dir string
}

// New creates a source for the export directory dir.
func New(dir string) *Source {
	return &Source{dir: dir}
}

// Name returns "keep".
func (s *Source) Name() string {
	return Name
}

// keepNote is the Takeout note file format.
type keepNote struct {
	Title                   string       `json:"title"`
	TextContent             string       `json:"textContent"`
	ListContent             []listItem   `json:"listContent"`
	CreatedTimestampUsec    int64        `json:"createdTimestampUsec"`
	UserEditedTimestampUsec int64        `json:"userEditedTimestampUsec"`
	IsTrashed               bool         `json:"isTrashed"`
	IsArchived              bool         `json:"isArchived"`
	IsPinned                bool         `json:"isPinned"`
	Color                   string       `json:"color"`
	Labels                  []label      `json:"labels"`
	Attachments             []attachment `json:"attachments"`
}

type listItem struct {
	Text      string `json:"text"`
	IsChecked bool   `json:"isChecked"`
}

type label struct {
	Name string `json:"name"`
}

type attachment struct {
	FilePath string `json:"filePath"`
	MIMEType string `json:"mimetype"`
}

// Load parses every note file, sorted by file name. Trashed notes are
// skipped; a file that fails to parse is logged and skipped.
func (s *Source) Load(ctx context.Context) ([]domain.Note, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("open keep export: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open keep export: %s is not a directory: %w", s.dir, domain.ErrInvalidInput)
	}

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list keep notes: %w", err)
	}
	sort.Strings(paths)

	notes := make([]domain.Note, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		note, err := s.parse(path)
		if err != nil {
			logger.Warn("Skipping %s: %v", filepath.Base(path), err)
			continue
		}
		if note != nil {
			notes = append(notes, *note)
		}
	}
	logger.Debug("Loaded %d Keep notes from %s", len(notes), s.dir)
	return notes, nil
}

// parse reads one note file. A trashed note yields nil.
func (s *Source) parse(path string) (*domain.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	var raw keepNote
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if raw.IsTrashed {
		return nil, nil
	}

	content := raw.TextContent
	if content == "" && len(raw.ListContent) > 0 {
		content = renderList(raw.ListContent)
	}

	color := raw.Color
	if color == "" {
		color = "DEFAULT"
	}

	note := &domain.Note{
		ID:       filepath.Base(path),
		Title:    raw.Title,
		Content:  content,
		Created:  fromMicros(raw.CreatedTimestampUsec),
		Edited:   fromMicros(raw.UserEditedTimestampUsec),
		Archived: raw.IsArchived,
		Pinned:   raw.IsPinned,
		Color:    color,
		Source:   Name,
		URI:      path,
	}
	for _, l := range raw.Labels {
		if name := strings.TrimSpace(l.Name); name != "" {
			note.Labels = append(note.Labels, name)
		}
	}
	for _, a := range raw.Attachments {
		if a.FilePath == "" || !strings.HasPrefix(a.MIMEType, "image/") {
			continue
		}
		note.Images = append(note.Images, domain.ImageAttachment{
			Path:     filepath.Join(s.dir, filepath.Base(a.FilePath)),
			MIMEType: a.MIMEType,
		})
	}
	return note, nil
}

func renderList(items []listItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		mark := " "
		if it.IsChecked {
			mark = "x"
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", mark, it.Text))
	}
	return strings.Join(lines, "\n")
}

// fromMicros converts a Takeout microsecond timestamp. Zero stays zero.
func fromMicros(usec int64) time.Time {
	if usec == 0 {
		return time.Time{}
	}
	return time.UnixMicro(usec)
}

// Watch blocks until ctx is cancelled, calling onChange after note files change.
func (s *Source) Watch(ctx context.Context, onChange func()) error {
	if _, err := os.Stat(s.dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("watch keep export: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("watch keep export: %w", err)
	}
	return fswatch.New(s.dir, fswatch.HasExt(".json")).Run(ctx, onChange)
}
