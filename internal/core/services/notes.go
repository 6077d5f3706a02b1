package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure NoteService implements the interface.
var _ driving.NoteService = (*NoteService)(nil)

// noteView is the read side of NoteService used by the search services.
type noteView interface {
	Get(id string) (domain.Note, error)
	Visible(id string) bool
}

// NoteService owns the loaded corpus, the tag assignments and the
// excluded tag set. Every mutation is persisted through the TagStore
// before it becomes visible.
type NoteService struct {
	source driven.NoteSource
	tags   driven.TagStore

	mu       sync.RWMutex
	notes    []domain.Note
	byID     map[string]int
	noteTags map[string]string
	excluded map[string]struct{}
}

// NewNoteService creates a note service. The source may be nil when notes
// are supplied with SetNotes.
func NewNoteService(source driven.NoteSource, tags driven.TagStore) *NoteService {
	return &NoteService{
		source:   source,
		tags:     tags,
		byID:     make(map[string]int),
		noteTags: make(map[string]string),
		excluded: make(map[string]struct{}),
	}
}

// Load reads notes from the source and tags from the store.
func (s *NoteService) Load(ctx context.Context) error {
	if s.source == nil {
		return errors.New("no note source configured")
	}

	logger.Section("Loading Notes")
	notes, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load notes from %s: %w", s.source.Name(), err)
	}
	logger.Info("Loaded %d notes from %s", len(notes), s.source.Name())

	if err := s.loadTags(ctx); err != nil {
		return err
	}

	s.SetNotes(notes)
	return nil
}

func (s *NoteService) loadTags(ctx context.Context) error {
	tags, err := s.tags.Tags(ctx)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	excluded, err := s.tags.ExcludedTags(ctx)
	if err != nil {
		return fmt.Errorf("load excluded tags: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.noteTags = tags
	if s.noteTags == nil {
		s.noteTags = make(map[string]string)
	}
	s.excluded = toSet(excluded)
	logger.Debug("Loaded %d note tags and %d excluded tags", len(s.noteTags), len(s.excluded))
	return nil
}

// SetNotes replaces the corpus. Notes with a duplicate id keep the first.
func (s *NoteService) SetNotes(notes []domain.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes = make([]domain.Note, 0, len(notes))
	s.byID = make(map[string]int, len(notes))
	for _, n := range notes {
		if _, dup := s.byID[n.ID]; dup || n.ID == "" {
			logger.Warn("Skipping note with empty or duplicate id %q", n.ID)
			continue
		}
		s.byID[n.ID] = len(s.notes)
		s.notes = append(s.notes, n)
	}
}

// All returns every loaded note, tag-annotated, including excluded ones.
// This is the set the indexes are built from.
func (s *NoteService) All() []domain.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Note, len(s.notes))
	for i, n := range s.notes {
		out[i] = s.annotate(n)
	}
	return out
}

// Notes returns visible notes, tag-annotated.
func (s *NoteService) Notes() []domain.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if s.visible(n.ID) {
			out = append(out, s.annotate(n))
		}
	}
	return out
}

// Get returns a note by id, tag-annotated.
func (s *NoteService) Get(id string) (domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return domain.Note{}, fmt.Errorf("note %q: %w", id, domain.ErrNotFound)
	}
	return s.annotate(s.notes[i]), nil
}

// Visible reports whether the note is loaded and not hidden by an excluded tag.
func (s *NoteService) Visible(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byID[id]; !ok {
		return false
	}
	return s.visible(id)
}

func (s *NoteService) visible(id string) bool {
	if len(s.excluded) == 0 {
		return true
	}
	tag, ok := s.noteTags[id]
	if !ok {
		return true
	}
	_, hidden := s.excluded[tag]
	return !hidden
}

func (s *NoteService) annotate(n domain.Note) domain.Note {
	n.Tag = s.noteTags[n.ID]
	return n
}

// TagNotes assigns tag to every listed note. Unknown ids fail the whole call.
func (s *NoteService) TagNotes(ctx context.Context, ids []string, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return fmt.Errorf("tag name: %w", domain.ErrInvalidInput)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no note ids: %w", domain.ErrInvalidInput)
	}

	s.mu.RLock()
	var unknown []string
	for _, id := range ids {
		if _, ok := s.byID[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	s.mu.RUnlock()
	if len(unknown) > 0 {
		return fmt.Errorf("invalid note ids %v: %w", unknown, domain.ErrInvalidInput)
	}

	for _, id := range ids {
		if err := s.tags.SetTag(ctx, id, tag); err != nil {
			return fmt.Errorf("save tag for %s: %w", id, err)
		}
	}

	s.mu.Lock()
	for _, id := range ids {
		s.noteTags[id] = tag
	}
	s.mu.Unlock()

	logger.Info("Tagged %d notes with %q", len(ids), tag)
	return nil
}

// RemoveTag clears the tag of one note.
func (s *NoteService) RemoveTag(ctx context.Context, id string) error {
	s.mu.RLock()
	_, tagged := s.noteTags[id]
	s.mu.RUnlock()
	if !tagged {
		return fmt.Errorf("tag of note %q: %w", id, domain.ErrNotFound)
	}

	if err := s.tags.DeleteTag(ctx, id); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	s.mu.Lock()
	delete(s.noteTags, id)
	s.mu.Unlock()
	return nil
}

// RemoveTagFromAll clears tag from every note carrying it and returns the count.
func (s *NoteService) RemoveTagFromAll(ctx context.Context, tag string) (int, error) {
	s.mu.RLock()
	var ids []string
	for id, t := range s.noteTags {
		if t == tag {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	if len(ids) == 0 {
		return 0, fmt.Errorf("tag %q: %w", tag, domain.ErrNotFound)
	}

	for _, id := range ids {
		if err := s.tags.DeleteTag(ctx, id); err != nil {
			return 0, fmt.Errorf("delete tag of %s: %w", id, err)
		}
	}

	s.mu.Lock()
	for _, id := range ids {
		delete(s.noteTags, id)
	}
	s.mu.Unlock()
	return len(ids), nil
}

// Tags returns every tag in use with its note count, sorted by name.
func (s *NoteService) Tags() []domain.TagCount {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, tag := range s.noteTags {
		counts[tag]++
	}
	s.mu.RUnlock()

	out := make([]domain.TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, domain.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// ExcludedTags returns the hidden tags, sorted.
func (s *NoteService) ExcludedTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.excluded))
	for tag := range s.excluded {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// SetExcludedTags replaces the hidden tags.
func (s *NoteService) SetExcludedTags(ctx context.Context, tags []string) error {
	set := toSet(tags)
	clean := make([]string, 0, len(set))
	for tag := range set {
		clean = append(clean, tag)
	}
	sort.Strings(clean)

	if err := s.tags.SetExcludedTags(ctx, clean); err != nil {
		return fmt.Errorf("save excluded tags: %w", err)
	}

	s.mu.Lock()
	s.excluded = set
	s.mu.Unlock()
	return nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
