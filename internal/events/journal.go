package events

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type migration struct {
	ID  string
	SQL string
}

var migrations = []migration{
	{
		ID: "0001_pane_events",
		SQL: `
CREATE TABLE pane_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  kind TEXT NOT NULL,
  pane_id TEXT NOT NULL,
  handle TEXT NOT NULL DEFAULT '',
  from_state TEXT NOT NULL,
  to_state TEXT NOT NULL,
  pipe_id TEXT NOT NULL DEFAULT '',
  command TEXT NOT NULL DEFAULT '',
  detail TEXT NOT NULL DEFAULT '',
  ts INTEGER NOT NULL
);
CREATE INDEX idx_pane_events_pane_ts ON pane_events (pane_id, ts);`,
	},
}

// Journal persists lifecycle events in SQLite.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (creating if needed) the journal database at dbPath.
// ":memory:" opens a private in-memory database.
func OpenJournal(ctx context.Context, dbPath string) (*Journal, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func sqliteDSN(dbPath string) string {
	if dbPath == ":memory:" {
		return ":memory:"
	}
	u := url.URL{Scheme: "file", Path: dbPath}
	q := u.Query()
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  id TEXT PRIMARY KEY,
  applied_at INTEGER NOT NULL
);`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT id FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan applied migration: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate applied migrations: %w", err)
	}
	_ = rows.Close()

	now := time.Now().Unix()
	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %q: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (id, applied_at) VALUES (?, ?)", m.ID, now); err != nil {
			return fmt.Errorf("record migration %q: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// Record inserts e into the journal.
func (j *Journal) Record(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO pane_events (kind, pane_id, handle, from_state, to_state, pipe_id, command, detail, ts)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Kind, e.PaneID, e.Handle, e.From, e.To, e.PipeID, e.Command, e.Detail, e.TS.UnixNano())
	if err != nil {
		return fmt.Errorf("insert pane event: %w", err)
	}
	return nil
}

// Query filters journal reads.
type Query struct {
	// PaneID restricts results to one pane. Empty means all panes.
	PaneID string
	// Since drops events older than this instant. Zero means no bound.
	Since time.Time
	// Limit caps the number of rows. <= 0 means 50.
	Limit int
}

// Recent returns events matching q, newest first.
func (j *Journal) Recent(ctx context.Context, q Query) ([]Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	var since int64
	if !q.Since.IsZero() {
		since = q.Since.UnixNano()
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT kind, pane_id, handle, from_state, to_state, pipe_id, command, detail, ts
FROM pane_events
WHERE (? = '' OR pane_id = ?) AND ts >= ?
ORDER BY ts DESC, id DESC
LIMIT ?`, q.PaneID, q.PaneID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query pane events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.Kind, &e.PaneID, &e.Handle, &e.From, &e.To, &e.PipeID, &e.Command, &e.Detail, &ts); err != nil {
			return nil, fmt.Errorf("scan pane event: %w", err)
		}
		e.TS = time.Unix(0, ts).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pane events: %w", err)
	}
	return out, nil
}

// Prune deletes events older than before and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM pane_events WHERE ts < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune pane events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune pane events: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
