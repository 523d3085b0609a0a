package record

import (
	"context"
	"database/sql"
	"fmt"
)

const documentColumns = `
	id, title, COALESCE(description, ''), file_path, file_type,
	COALESCE(source_url, ''), COALESCE(original_filename, ''), status,
	COALESCE(knowledge_base_id, ''), COALESCE(conversation_id, ''), uploaded_at
`

// CreateDocument inserts a new document record. The caller supplies the ID.
func (s *Store) CreateDocument(ctx context.Context, doc *Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("create_document", ErrStoreClosed)
	}
	if doc.ID == "" {
		return wrapError("create_document", fmt.Errorf("document ID cannot be empty"))
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}

	query := `
		INSERT INTO documents (id, title, description, file_path, file_type,
			source_url, original_filename, status, knowledge_base_id, conversation_id, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.Title, doc.Description, doc.FilePath, doc.FileType,
		nullable(doc.SourceURL), nullable(doc.OriginalFilename), string(doc.Status),
		nullable(doc.KnowledgeBaseID), nullable(doc.ConversationID),
	)
	if err != nil {
		return wrapError("create_document", fmt.Errorf("failed to insert document: %w", err))
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_document", ErrStoreClosed)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, wrapError("get_document", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_document", err)
	}
	return doc, nil
}

// UpdateDocumentStatus transitions a document's status.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, status DocumentStatus) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("update_document_status", ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE documents SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return wrapError("update_document_status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrapError("update_document_status", ErrNotFound)
	}
	return nil
}

// DocumentsByConversation returns all documents attached to a conversation.
func (s *Store) DocumentsByConversation(ctx context.Context, conversationID string) ([]Document, error) {
	return s.listDocuments(ctx, "documents_by_conversation",
		`SELECT `+documentColumns+` FROM documents WHERE conversation_id = ? ORDER BY uploaded_at`, conversationID)
}

// DocumentsByKnowledgeBase returns all documents in a knowledge base.
func (s *Store) DocumentsByKnowledgeBase(ctx context.Context, kbID string) ([]Document, error) {
	return s.listDocuments(ctx, "documents_by_knowledge_base",
		`SELECT `+documentColumns+` FROM documents WHERE knowledge_base_id = ? ORDER BY uploaded_at`, kbID)
}

func (s *Store) listDocuments(ctx context.Context, op, query string, args ...any) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError(op, ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(op, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, wrapError(op, err)
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.Title, &doc.Description, &doc.FilePath, &doc.FileType,
		&doc.SourceURL, &doc.OriginalFilename, &status,
		&doc.KnowledgeBaseID, &doc.ConversationID, &doc.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = DocumentStatus(status)
	return &doc, nil
}

// nullable maps empty strings to SQL NULL so foreign keys stay clean.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
