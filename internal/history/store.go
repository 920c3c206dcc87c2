// Package history keeps an append-only, size- and age-bounded log of past
// executions, queryable per session.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one immutable record of a completed run.
type Entry struct {
	ExecutionID     string
	SessionID       string
	Script          string
	Result          string
	ErrorMessage    string
	Success         bool
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	MemoryUsedBytes int64
}

// Query filters a history lookup. Limit bounds the result set; Detailed
// controls whether script source and result bodies are included.
type Query struct {
	SessionID string
	Limit     int
	Detailed  bool
}

// Options bounds the log. MaxEntries evicts oldest-first when exceeded;
// Retention drops entries by age on the sweep interval, independent of the
// count limit.
type Options struct {
	MaxEntries    int
	Retention     time.Duration
	SweepInterval time.Duration
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxEntries:    1000,
		Retention:     24 * time.Hour,
		SweepInterval: time.Hour,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	execution_id  TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	script        TEXT NOT NULL,
	result        TEXT NOT NULL,
	error_message TEXT NOT NULL,
	success       INTEGER NOT NULL,
	start_time    INTEGER NOT NULL,
	end_time      INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL,
	memory_bytes  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_start_time ON executions (start_time);
CREATE INDEX IF NOT EXISTS idx_executions_session ON executions (session_id, start_time);
`

// Store is the sqlite-backed history log.
type Store struct {
	db   *sql.DB
	opts Options

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewStore opens (creating if needed) the history database at path and
// starts the age sweep.
func NewStore(path string, opts Options) (*Store, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultOptions().MaxEntries
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultOptions().Retention
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultOptions().SweepInterval
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	s := &Store{db: db, opts: opts, stopCh: make(chan struct{})}
	s.wg.Add(1)
	go s.sweepLoop()
	return s, nil
}

// Append records one completed run and applies the count bound.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions
		 (execution_id, session_id, script, result, error_message, success, start_time, end_time, duration_ms, memory_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ExecutionID, entry.SessionID, entry.Script, entry.Result, entry.ErrorMessage,
		boolToInt(entry.Success), entry.StartTime.UnixMilli(), entry.EndTime.UnixMilli(),
		entry.Duration.Milliseconds(), entry.MemoryUsedBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return s.evictOverCount(ctx)
}

// Find returns matching entries, newest first. Entries past the retention
// horizon are excluded even when the sweep has not caught up with them yet.
func (s *Store) Find(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = s.opts.MaxEntries
	}

	cutoff := time.Now().Add(-s.opts.Retention).UnixMilli()
	query := `SELECT execution_id, session_id, script, result, error_message, success,
		start_time, end_time, duration_ms, memory_bytes FROM executions
		WHERE start_time >= ?`
	args := []interface{}{cutoff}
	if q.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, q.SessionID)
	}
	query += " ORDER BY start_time DESC, execution_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var success int
		var start, end, durationMs int64
		if err := rows.Scan(&e.ExecutionID, &e.SessionID, &e.Script, &e.Result, &e.ErrorMessage,
			&success, &start, &end, &durationMs, &e.MemoryUsedBytes); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Success = success != 0
		e.StartTime = time.UnixMilli(start)
		e.EndTime = time.UnixMilli(end)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if !q.Detailed {
			e.Script = ""
			e.Result = truncate(e.Result, 200)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close stops the sweeper and closes the database.
func (s *Store) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	return s.db.Close()
}

func (s *Store) evictOverCount(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM executions WHERE execution_id IN (
			SELECT execution_id FROM executions ORDER BY start_time DESC, execution_id DESC LIMIT -1 OFFSET ?
		)`, s.opts.MaxEntries,
	)
	if err != nil {
		return fmt.Errorf("failed to evict history entries: %w", err)
	}
	return nil
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Sweep(context.Background()); err != nil {
				slog.Error("History age sweep failed", "error", err)
			}
		}
	}
}

// Sweep drops entries older than the retention horizon. Exposed so tests and
// operators can trigger it directly.
func (s *Store) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.opts.Retention).UnixMilli()
	res, err := s.db.ExecContext(ctx, "DELETE FROM executions WHERE start_time < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to sweep history: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.Debug("Swept aged history entries", "rows", n)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
