package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// tagStore implements driven.TagStore.
type tagStore struct {
	store *Store
}

var _ driven.TagStore = (*tagStore)(nil)

// Tags returns every note id to tag assignment.
func (s *tagStore) Tags(ctx context.Context) (map[string]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT note_id, tag FROM note_tags")
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[string]string)
	for rows.Next() {
		var noteID, tag string
		if err := rows.Scan(&noteID, &tag); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags[noteID] = tag
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}
	return tags, nil
}

// SetTag assigns a tag to a note, replacing any previous tag.
func (s *tagStore) SetTag(ctx context.Context, noteID, tag string) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO note_tags (note_id, tag) VALUES (?, ?)
		ON CONFLICT(note_id) DO UPDATE SET tag = excluded.tag
	`, noteID, tag)
	if err != nil {
		return fmt.Errorf("saving tag: %w", err)
	}
	return nil
}

// DeleteTag removes the tag of a note.
func (s *tagStore) DeleteTag(ctx context.Context, noteID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM note_tags WHERE note_id = ?", noteID)
	if err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	return nil
}

// ExcludedTags returns the excluded tags, sorted.
func (s *tagStore) ExcludedTags(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT tag FROM excluded_tags ORDER BY tag")
	if err != nil {
		return nil, fmt.Errorf("querying excluded tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scanning excluded tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating excluded tags: %w", err)
	}
	return tags, nil
}

// SetExcludedTags replaces the excluded tag set in one transaction.
func (s *tagStore) SetExcludedTags(ctx context.Context, tags []string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM excluded_tags"); err != nil {
		return fmt.Errorf("clearing excluded tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO excluded_tags (tag) VALUES (?)", tag); err != nil {
			return fmt.Errorf("saving excluded tag: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing excluded tags: %w", err)
	}
	return nil
}
