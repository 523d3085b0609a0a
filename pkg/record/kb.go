package record

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateKnowledgeBase creates a knowledge base. The partition key is derived
// from the name and made unique.
func (s *Store) CreateKnowledgeBase(ctx context.Context, name, description string) (*KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("create_knowledge_base", ErrStoreClosed)
	}
	if name == "" {
		return nil, wrapError("create_knowledge_base", fmt.Errorf("name cannot be empty"))
	}

	kb := &KnowledgeBase{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Partition:   partitionKey(name),
	}

	query := `
		INSERT INTO knowledge_bases (id, name, description, partition_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`
	if _, err := s.db.ExecContext(ctx, query, kb.ID, kb.Name, kb.Description, kb.Partition); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, wrapError("create_knowledge_base", ErrConflict)
		}
		return nil, wrapError("create_knowledge_base", err)
	}

	return s.GetKnowledgeBase(ctx, kb.ID)
}

// GetKnowledgeBase retrieves a knowledge base by ID.
func (s *Store) GetKnowledgeBase(ctx context.Context, id string) (*KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_knowledge_base", ErrStoreClosed)
	}

	var kb KnowledgeBase
	query := `
		SELECT id, name, COALESCE(description, ''), partition_key, created_at, updated_at
		FROM knowledge_bases WHERE id = ?
	`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&kb.ID, &kb.Name, &kb.Description, &kb.Partition, &kb.CreatedAt, &kb.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, wrapError("get_knowledge_base", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_knowledge_base", err)
	}

	return &kb, nil
}

// GetKnowledgeBaseByName retrieves a knowledge base by its display name.
func (s *Store) GetKnowledgeBaseByName(ctx context.Context, name string) (*KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_knowledge_base", ErrStoreClosed)
	}

	var kb KnowledgeBase
	query := `
		SELECT id, name, COALESCE(description, ''), partition_key, created_at, updated_at
		FROM knowledge_bases WHERE name = ?
	`
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&kb.ID, &kb.Name, &kb.Description, &kb.Partition, &kb.CreatedAt, &kb.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, wrapError("get_knowledge_base", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_knowledge_base", err)
	}

	return &kb, nil
}

// ListKnowledgeBases returns all knowledge bases with their document counts,
// newest first.
func (s *Store) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBaseInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_knowledge_bases", ErrStoreClosed)
	}

	query := `
		SELECT kb.id, kb.name, COALESCE(kb.description, ''), kb.partition_key,
		       kb.created_at, kb.updated_at, COUNT(d.id)
		FROM knowledge_bases kb
		LEFT JOIN documents d ON d.knowledge_base_id = kb.id
		GROUP BY kb.id
		ORDER BY kb.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapError("list_knowledge_bases", err)
	}
	defer rows.Close()

	var out []KnowledgeBaseInfo
	for rows.Next() {
		var info KnowledgeBaseInfo
		if err := rows.Scan(
			&info.ID, &info.Name, &info.Description, &info.Partition,
			&info.CreatedAt, &info.UpdatedAt, &info.DocumentCount,
		); err != nil {
			return nil, wrapError("list_knowledge_bases", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// partitionKey derives a stable partition key from a knowledge base name,
// suffixed for uniqueness.
func partitionKey(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, slug)
	return fmt.Sprintf("%s_%s", slug, uuid.NewString()[:8])
}
