package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a Store persisted to a local SQLite database so cached identities
// and post payloads survive process restarts. Expiry is lazy, matching Memory.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (creating if needed) the database at path and ensures the
// cache table exists. The caller should call Close when done.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		payload   []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache entry: %w", err)
	}

	if s.now().UnixMilli() > expiresAt {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE key = ?`, key,
		); err != nil {
			return nil, false, fmt.Errorf("evict cache entry: %w", err)
		}
		return nil, false, nil
	}

	return payload, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, payload, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key, payload, s.now().Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}
