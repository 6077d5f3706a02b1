package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// graphStore implements driven.GraphStore.
type graphStore struct {
	store *Store
}

var _ driven.GraphStore = (*graphStore)(nil)

// ReplaceRelations replaces every stored relation in one transaction.
func (s *graphStore) ReplaceRelations(ctx context.Context, relations []domain.Relation) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM graph_relations"); err != nil {
		return fmt.Errorf("clearing relations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO graph_relations (id, subject, predicate, object, note_id, note_title, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range relations {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Subject, r.Predicate, r.Object,
			r.NoteID, r.NoteTitle, encodeVector(r.Embedding)); err != nil {
			return fmt.Errorf("inserting relation %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing relations: %w", err)
	}
	return nil
}

// Relations returns every stored relation in insertion order.
func (s *graphStore) Relations(ctx context.Context) ([]domain.Relation, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, subject, predicate, object, note_id, note_title, embedding
		FROM graph_relations ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying relations: %w", err)
	}
	defer rows.Close()

	relations := []domain.Relation{}
	for rows.Next() {
		var r domain.Relation
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Subject, &r.Predicate, &r.Object,
			&r.NoteID, &r.NoteTitle, &blob); err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}
		r.Embedding = decodeVector(blob)
		relations = append(relations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relations: %w", err)
	}
	return relations, nil
}
