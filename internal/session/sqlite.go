package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, key)
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions (updated_at);
`

// SQLiteStore is the durable session store. Reads go through a short-lived
// LRU cache; all writes invalidate it.
type SQLiteStore struct {
	db    *sql.DB
	opts  Options
	cache *expirable.LRU[string, string]

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSQLiteStore opens (creating if needed) the session database at path and
// starts the retention sweeper.
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	if opts.Retention <= 0 {
		opts.Retention = DefaultOptions().Retention
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultOptions().SweepInterval
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultOptions().CacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultOptions().CacheTTL
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		opts:   opts,
		cache:  expirable.NewLRU[string, string](opts.CacheSize, nil, opts.CacheTTL),
		stopCh: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop()

	slog.Info("Session store opened", "path", path, "retention", opts.Retention)
	return s, nil
}

func cacheKey(sessionID, key string) string {
	return sessionID + "\x00" + key
}

// Get returns the value for (sessionID, key), reporting whether it exists.
func (s *SQLiteStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	if v, ok := s.cache.Get(cacheKey(sessionID, key)); ok {
		return v, true, nil
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM sessions WHERE session_id = ? AND key = ?",
		sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session key: %w", err)
	}
	s.cache.Add(cacheKey(sessionID, key), value)
	return value, true, nil
}

// Set writes the value, creating the session implicitly on first write.
func (s *SQLiteStore) Set(ctx context.Context, sessionID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		sessionID, key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to write session key: %w", err)
	}
	s.cache.Add(cacheKey(sessionID, key), value)
	return nil
}

// List returns the session's keys in lexical order.
func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM sessions WHERE session_id = ? ORDER BY key",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list session keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan session key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Delete removes one key from the session.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_id = ? AND key = ?",
		sessionID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session key: %w", err)
	}
	s.cache.Remove(cacheKey(sessionID, key))
	return nil
}

// Clear removes the entire session.
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	keys, err := s.List(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_id = ?", sessionID,
	); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	for _, key := range keys {
		s.cache.Remove(cacheKey(sessionID, key))
	}
	return nil
}

// Close stops the sweeper and closes the database.
func (s *SQLiteStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	return s.db.Close()
}

func (s *SQLiteStore) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Sweep(context.Background()); err != nil {
				slog.Error("Session retention sweep failed", "error", err)
			}
		}
	}
}

// Sweep prunes sessions whose most recent write is older than the retention
// horizon. Exposed so tests and operators can trigger it directly.
func (s *SQLiteStore) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.opts.Retention).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id IN (
			SELECT session_id FROM sessions GROUP BY session_id HAVING MAX(updated_at) < ?
		)`, cutoff,
	)
	if err != nil {
		return fmt.Errorf("failed to sweep sessions: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.cache.Purge()
		slog.Debug("Swept expired session rows", "rows", n)
	}
	return nil
}
