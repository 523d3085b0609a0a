package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBlobStore persists blobs in a single SQLite database. Each Put is its
// own committed transaction, so the vector-blob, metadata-blob, pointer write
// order translates directly into durable publish order.
type SQLiteBlobStore struct {
	db *sql.DB
}

// OpenSQLiteBlobStore opens (creating if necessary) a blob database at path.
func OpenSQLiteBlobStore(ctx context.Context, path string) (*SQLiteBlobStore, error) {
	if path == "" {
		return nil, wrapError("open_blob_store", fmt.Errorf("database path cannot be empty"))
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrapError("open_blob_store", fmt.Errorf("failed to open database: %w", err))
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		partition_key TEXT NOT NULL,
		blob_key TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (partition_key, blob_key)
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, wrapError("open_blob_store", fmt.Errorf("failed to create tables: %w", err))
	}

	return &SQLiteBlobStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteBlobStore) Close() error {
	return s.db.Close()
}

// Put stores data under (partition, key), replacing any previous value.
func (s *SQLiteBlobStore) Put(ctx context.Context, partition, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (partition_key, blob_key, data) VALUES (?, ?, ?)
		 ON CONFLICT(partition_key, blob_key) DO UPDATE SET data = excluded.data, created_at = CURRENT_TIMESTAMP`,
		partition, key, data)
	if err != nil {
		return wrapError("blob_put", err)
	}
	return nil
}

// Get returns the data under (partition, key), or ErrBlobNotFound.
func (s *SQLiteBlobStore) Get(ctx context.Context, partition, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM blobs WHERE partition_key = ? AND blob_key = ?`, partition, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, wrapError("blob_get", err)
	}
	return data, nil
}

// Delete removes the blob under (partition, key). Missing keys are not an
// error.
func (s *SQLiteBlobStore) Delete(ctx context.Context, partition, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM blobs WHERE partition_key = ? AND blob_key = ?`, partition, key); err != nil {
		return wrapError("blob_delete", err)
	}
	return nil
}

// List returns the keys of a partition in lexical order.
func (s *SQLiteBlobStore) List(ctx context.Context, partition string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT blob_key FROM blobs WHERE partition_key = ? ORDER BY blob_key`, partition)
	if err != nil {
		return nil, wrapError("blob_list", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, wrapError("blob_list", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
