package record

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// CreateConversation starts a new conversation thread.
func (s *Store) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("create_conversation", ErrStoreClosed)
	}

	id := uuid.NewString()
	query := `
		INSERT INTO conversations (id, title, is_active, created_at, last_active)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`
	if _, err := s.db.ExecContext(ctx, query, id, title); err != nil {
		return nil, wrapError("create_conversation", err)
	}
	return s.getConversationLocked(ctx, id)
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_conversation", ErrStoreClosed)
	}
	return s.getConversationLocked(ctx, id)
}

func (s *Store) getConversationLocked(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, is_active, created_at, last_active FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.IsActive, &c.CreatedAt, &c.LastActive)
	if err == sql.ErrNoRows {
		return nil, wrapError("get_conversation", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_conversation", err)
	}
	return &c, nil
}

// AddMessage appends a message to a conversation and bumps its last-active
// time.
func (s *Store) AddMessage(ctx context.Context, conversationID, content string, fromUser bool) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("add_message", ErrStoreClosed)
	}

	m := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Content:        content,
		FromUser:       fromUser,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, content, from_user, created_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		m.ID, m.ConversationID, m.Content, m.FromUser)
	if err != nil {
		return nil, wrapError("add_message", err)
	}

	_, _ = s.db.ExecContext(ctx,
		`UPDATE conversations SET last_active = CURRENT_TIMESTAMP WHERE id = ?`, conversationID)

	return m, nil
}

// MessagesByConversation returns a conversation's messages oldest first.
func (s *Store) MessagesByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("messages_by_conversation", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, content, from_user, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY created_at`, conversationID)
	if err != nil {
		return nil, wrapError("messages_by_conversation", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.FromUser, &m.CreatedAt); err != nil {
			return nil, wrapError("messages_by_conversation", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
