// Package record persists the record-keeping entities of the system:
// knowledge bases, documents, chunks, conversations, messages, lawyers,
// cases and query history, backed by SQLite.
package record

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store provides CRUD access to all record entities.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if necessary) the record database at the given path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, wrapError("open", fmt.Errorf("database path cannot be empty"))
	}

	// _journal_mode=WAL: Better concurrency
	// _busy_timeout=5000: Wait up to 5s for lock instead of failing immediately
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrapError("open", fmt.Errorf("failed to open database: %w", err))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	s := &Store{db: db}

	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, wrapError("open", fmt.Errorf("failed to enable foreign keys: %w", err))
	}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, wrapError("open", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_bases (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		partition_key TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_active TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		file_path TEXT NOT NULL,
		file_type TEXT NOT NULL,
		source_url TEXT,
		original_filename TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		knowledge_base_id TEXT REFERENCES knowledge_bases(id) ON DELETE CASCADE,
		conversation_id TEXT REFERENCES conversations(id) ON DELETE SET NULL,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_documents_kb ON documents(knowledge_base_id);
	CREATE INDEX IF NOT EXISTS idx_documents_conversation ON documents(conversation_id);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		ordinal INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		UNIQUE(document_id, ordinal)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		query_text TEXT NOT NULL,
		response_text TEXT,
		knowledge_base_id TEXT REFERENCES knowledge_bases(id) ON DELETE CASCADE,
		conversation_id TEXT REFERENCES conversations(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		from_user INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);

	CREATE TABLE IF NOT EXISTS lawyers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		specialization TEXT,
		years_of_experience INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL UNIQUE REFERENCES conversations(id) ON DELETE CASCADE,
		lawyer_id TEXT REFERENCES lawyers(id) ON DELETE SET NULL,
		status TEXT NOT NULL DEFAULT 'new',
		priority INTEGER NOT NULL DEFAULT 2,
		legal_analysis TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}
