package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS postings (
	fingerprint   TEXT PRIMARY KEY,
	posting_key   TEXT NOT NULL,
	body          TEXT NOT NULL,
	registered_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	fingerprint TEXT NOT NULL,
	verdict     TEXT NOT NULL,
	decided_at  TEXT NOT NULL,
	supersedes  TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_fingerprint ON decisions(fingerprint);

CREATE TABLE IF NOT EXISTS weights (
	grp     TEXT NOT NULL,
	feature TEXT NOT NULL,
	weight  REAL NOT NULL DEFAULT 0,
	seen    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (grp, feature)
);

CREATE TABLE IF NOT EXISTS model_meta (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	decisions INTEGER NOT NULL DEFAULT 0,
	approved  INTEGER NOT NULL DEFAULT 0,
	refused   INTEGER NOT NULL DEFAULT 0
);

INSERT INTO model_meta (id, decisions) VALUES (1, 0) ON CONFLICT(id) DO NOTHING;
`

// SQLiteStore is a Store backed by an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions("sqlite")
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, unavailable(BackendSQLite, "open", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, unavailable(BackendSQLite, "init_schema", err)
	}
	o.logger.Info(ctx, "sqlite store ready", logger.String("path", path))
	return &SQLiteStore{db: db, logger: o.logger}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert implements Index.
func (s *SQLiteStore) Insert(ctx context.Context, fp model.Fingerprint, p model.Posting) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency(BackendSQLite, "insert_fingerprint", since(start)) }()

	body, err := encodePosting(p)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO postings (fingerprint, posting_key, body, registered_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO NOTHING`,
		string(fp), p.Key(), body, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, unavailable(BackendSQLite, "insert_fingerprint", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(BackendSQLite, "insert_fingerprint", err)
	}
	return n == 1, nil
}

// Contains implements Index.
func (s *SQLiteStore) Contains(ctx context.Context, fp model.Fingerprint) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM postings WHERE fingerprint = ?`, string(fp)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable(BackendSQLite, "contains", err)
	}
	return true, nil
}

// Lookup implements Index.
func (s *SQLiteStore) Lookup(ctx context.Context, fp model.Fingerprint) (model.Posting, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM postings WHERE fingerprint = ?`, string(fp)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Posting{}, model.ErrNotFound
	}
	if err != nil {
		return model.Posting{}, unavailable(BackendSQLite, "lookup", err)
	}
	return decodePosting(body)
}

// Remove implements Index.
func (s *SQLiteStore) Remove(ctx context.Context, fp model.Fingerprint) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM postings WHERE fingerprint = ?`, string(fp)); err != nil {
		return unavailable(BackendSQLite, "remove", err)
	}
	return nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM postings`).Scan(&n); err != nil {
		return 0, unavailable(BackendSQLite, "count", err)
	}
	return n, nil
}

// Commit implements Store.
func (s *SQLiteStore) Commit(ctx context.Context, d model.Decision, delta model.Delta) error {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency(BackendSQLite, "commit", since(start)) }()

	body, err := encodeDecision(d)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(BackendSQLite, "commit", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decisions (id, fingerprint, verdict, decided_at, supersedes, body)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, string(d.Fingerprint), string(d.Verdict), d.DecidedAt.UTC().Format(time.RFC3339Nano), d.Supersedes, body,
	); err != nil {
		return unavailable(BackendSQLite, "commit", err)
	}

	for _, adj := range delta.Adjustments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO weights (grp, feature, weight, seen) VALUES (?, ?, ?, ?)
			 ON CONFLICT(grp, feature) DO UPDATE SET
				weight = weight + excluded.weight,
				seen = seen + excluded.seen`,
			string(adj.Group), adj.Feature, adj.Weight, adj.Seen,
		); err != nil {
			return unavailable(BackendSQLite, "commit", err)
		}
	}

	if delta.Decisions != 0 || delta.Approved != 0 || delta.Refused != 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE model_meta SET
				decisions = decisions + ?,
				approved = approved + ?,
				refused = refused + ?
			 WHERE id = 1`,
			delta.Decisions, delta.Approved, delta.Refused,
		); err != nil {
			return unavailable(BackendSQLite, "commit", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable(BackendSQLite, "commit", err)
	}
	return nil
}

// LoadState implements Store.
func (s *SQLiteStore) LoadState(ctx context.Context) (model.ModelState, error) {
	var state model.ModelState
	if err := s.db.QueryRowContext(ctx,
		`SELECT decisions, approved, refused FROM model_meta WHERE id = 1`,
	).Scan(&state.Decisions, &state.Approved, &state.Refused); err != nil {
		return state, unavailable(BackendSQLite, "load_state", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT grp, feature, weight, seen FROM weights ORDER BY grp, feature`)
	if err != nil {
		return state, unavailable(BackendSQLite, "load_state", err)
	}
	defer rows.Close()

	for rows.Next() {
		var w model.FeatureWeight
		var group string
		if err := rows.Scan(&group, &w.Feature, &w.Weight, &w.Seen); err != nil {
			return state, unavailable(BackendSQLite, "load_state", err)
		}
		w.Group = model.Group(group)
		state.Weights = append(state.Weights, w)
	}
	if err := rows.Err(); err != nil {
		return state, unavailable(BackendSQLite, "load_state", err)
	}
	return state, nil
}

// History implements Store.
func (s *SQLiteStore) History(ctx context.Context, fp model.Fingerprint) ([]model.Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM decisions WHERE fingerprint = ? ORDER BY seq`, string(fp))
	if err != nil {
		return nil, unavailable(BackendSQLite, "history", err)
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, unavailable(BackendSQLite, "history", err)
		}
		d, err := decodeDecision(body)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(BackendSQLite, "history", err)
	}
	return out, nil
}

// Latest implements Store.
func (s *SQLiteStore) Latest(ctx context.Context, fp model.Fingerprint) (model.Decision, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM decisions WHERE fingerprint = ? ORDER BY seq DESC LIMIT 1`, string(fp),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Decision{}, false, nil
	}
	if err != nil {
		return model.Decision{}, false, unavailable(BackendSQLite, "latest", err)
	}
	d, err := decodeDecision(body)
	if err != nil {
		return model.Decision{}, false, fmt.Errorf("latest: %w", err)
	}
	return d, true, nil
}
