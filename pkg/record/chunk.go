package record

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CreateChunks inserts a document's chunks in one transaction. Ordinals must
// already be assigned; the unique (document, ordinal) constraint rejects
// duplicates.
func (s *Store) CreateChunks(ctx context.Context, chunks []Chunk) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("create_chunks", ErrStoreClosed)
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("create_chunks", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, ordinal, content, metadata) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return wrapError("create_chunks", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return wrapError("create_chunks", fmt.Errorf("failed to marshal metadata: %w", err))
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Ordinal, c.Content, string(metaJSON)); err != nil {
			return wrapError("create_chunks", fmt.Errorf("failed to insert chunk %d: %w", c.Ordinal, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapError("create_chunks", err)
	}
	return nil
}

// ChunksByDocument returns a document's chunks in ordinal order.
func (s *Store) ChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("chunks_by_document", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, ordinal, content, COALESCE(metadata, '') FROM chunks
		 WHERE document_id = ? ORDER BY ordinal`, documentID)
	if err != nil {
		return nil, wrapError("chunks_by_document", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var metaJSON string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Content, &metaJSON); err != nil {
			return nil, wrapError("chunks_by_document", err)
		}
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &c.Metadata)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChunkTextsByID resolves chunk IDs to their text content. IDs with no row are
// simply absent from the result; callers decide how to treat gaps.
func (s *Store) ChunkTextsByID(ctx context.Context, ids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("chunk_texts_by_id", ErrStoreClosed)
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, wrapError("chunk_texts_by_id", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, wrapError("chunk_texts_by_id", err)
		}
		out[id] = content
	}
	return out, rows.Err()
}
