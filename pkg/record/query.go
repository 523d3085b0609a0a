package record

import (
	"context"

	"github.com/google/uuid"
)

// RecordQuery stores a query for history before its answer exists.
func (s *Store) RecordQuery(ctx context.Context, q *QueryRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("record_query", ErrStoreClosed)
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (id, query_text, knowledge_base_id, conversation_id, created_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		q.ID, q.QueryText, nullable(q.KnowledgeBaseID), nullable(q.ConversationID))
	if err != nil {
		return wrapError("record_query", err)
	}
	return nil
}

// SetQueryResponse attaches the generated answer to a recorded query.
func (s *Store) SetQueryResponse(ctx context.Context, queryID, response string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("set_query_response", ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE queries SET response_text = ? WHERE id = ?`, response, queryID)
	if err != nil {
		return wrapError("set_query_response", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrapError("set_query_response", ErrNotFound)
	}
	return nil
}

// QueriesByKnowledgeBase returns a knowledge base's query history, newest
// first.
func (s *Store) QueriesByKnowledgeBase(ctx context.Context, kbID string) ([]QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("queries_by_knowledge_base", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query_text, COALESCE(response_text, ''), COALESCE(knowledge_base_id, ''),
		        COALESCE(conversation_id, ''), created_at
		 FROM queries WHERE knowledge_base_id = ? ORDER BY created_at DESC`, kbID)
	if err != nil {
		return nil, wrapError("queries_by_knowledge_base", err)
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		var q QueryRecord
		if err := rows.Scan(&q.ID, &q.QueryText, &q.ResponseText, &q.KnowledgeBaseID,
			&q.ConversationID, &q.CreatedAt); err != nil {
			return nil, wrapError("queries_by_knowledge_base", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
