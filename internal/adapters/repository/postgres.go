package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS postings (
		fingerprint   TEXT PRIMARY KEY,
		posting_key   TEXT NOT NULL,
		body          JSONB NOT NULL,
		registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS decisions (
		seq         BIGSERIAL PRIMARY KEY,
		id          TEXT NOT NULL UNIQUE,
		fingerprint TEXT NOT NULL,
		verdict     TEXT NOT NULL,
		decided_at  TIMESTAMPTZ NOT NULL,
		supersedes  TEXT NOT NULL DEFAULT '',
		body        JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_fingerprint ON decisions (fingerprint)`,
	`CREATE TABLE IF NOT EXISTS weights (
		grp     TEXT NOT NULL,
		feature TEXT NOT NULL,
		weight  DOUBLE PRECISION NOT NULL DEFAULT 0,
		seen    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (grp, feature)
	)`,
	`CREATE TABLE IF NOT EXISTS model_meta (
		id        INTEGER PRIMARY KEY CHECK (id = 1),
		decisions INTEGER NOT NULL DEFAULT 0,
		approved  INTEGER NOT NULL DEFAULT 0,
		refused   INTEGER NOT NULL DEFAULT 0
	)`,
	`INSERT INTO model_meta (id, decisions) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
}

// PostgresStore is a Store backed by a PostgreSQL connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewPostgresStore connects to databaseURL, verifies the connection and
// applies the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	o := defaultOptions("postgres")
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, unavailable(BackendPostgres, "open", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable(BackendPostgres, "ping", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, unavailable(BackendPostgres, "init_schema", err)
		}
	}
	o.logger.Info(ctx, "postgres store ready")
	return &PostgresStore{pool: pool, logger: o.logger}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Insert implements Index.
func (s *PostgresStore) Insert(ctx context.Context, fp model.Fingerprint, p model.Posting) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency(BackendPostgres, "insert_fingerprint", since(start)) }()

	body, err := encodePosting(p)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO postings (fingerprint, posting_key, body)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		string(fp), p.Key(), body,
	)
	if err != nil {
		return false, unavailable(BackendPostgres, "insert_fingerprint", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Contains implements Index.
func (s *PostgresStore) Contains(ctx context.Context, fp model.Fingerprint) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM postings WHERE fingerprint = $1)`, string(fp),
	).Scan(&exists)
	if err != nil {
		return false, unavailable(BackendPostgres, "contains", err)
	}
	return exists, nil
}

// Lookup implements Index.
func (s *PostgresStore) Lookup(ctx context.Context, fp model.Fingerprint) (model.Posting, error) {
	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body::text FROM postings WHERE fingerprint = $1`, string(fp),
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Posting{}, model.ErrNotFound
	}
	if err != nil {
		return model.Posting{}, unavailable(BackendPostgres, "lookup", err)
	}
	return decodePosting(body)
}

// Remove implements Index.
func (s *PostgresStore) Remove(ctx context.Context, fp model.Fingerprint) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM postings WHERE fingerprint = $1`, string(fp)); err != nil {
		return unavailable(BackendPostgres, "remove", err)
	}
	return nil
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM postings`).Scan(&n); err != nil {
		return 0, unavailable(BackendPostgres, "count", err)
	}
	return n, nil
}

// Commit implements Store.
func (s *PostgresStore) Commit(ctx context.Context, d model.Decision, delta model.Delta) error {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency(BackendPostgres, "commit", since(start)) }()

	body, err := encodeDecision(d)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable(BackendPostgres, "commit", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO decisions (id, fingerprint, verdict, decided_at, supersedes, body)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		d.ID, string(d.Fingerprint), string(d.Verdict), d.DecidedAt, d.Supersedes, body,
	); err != nil {
		return unavailable(BackendPostgres, "commit", err)
	}

	for _, adj := range delta.Adjustments {
		if _, err := tx.Exec(ctx,
			`INSERT INTO weights (grp, feature, weight, seen) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (grp, feature) DO UPDATE SET
				weight = weights.weight + EXCLUDED.weight,
				seen = weights.seen + EXCLUDED.seen`,
			string(adj.Group), adj.Feature, adj.Weight, adj.Seen,
		); err != nil {
			return unavailable(BackendPostgres, "commit", err)
		}
	}

	if delta.Decisions != 0 || delta.Approved != 0 || delta.Refused != 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE model_meta SET
				decisions = decisions + $1,
				approved = approved + $2,
				refused = refused + $3
			 WHERE id = 1`,
			delta.Decisions, delta.Approved, delta.Refused,
		); err != nil {
			return unavailable(BackendPostgres, "commit", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable(BackendPostgres, "commit", err)
	}
	return nil
}

// LoadState implements Store.
func (s *PostgresStore) LoadState(ctx context.Context) (model.ModelState, error) {
	var state model.ModelState
	if err := s.pool.QueryRow(ctx,
		`SELECT decisions, approved, refused FROM model_meta WHERE id = 1`,
	).Scan(&state.Decisions, &state.Approved, &state.Refused); err != nil {
		return state, unavailable(BackendPostgres, "load_state", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT grp, feature, weight, seen FROM weights ORDER BY grp, feature`)
	if err != nil {
		return state, unavailable(BackendPostgres, "load_state", err)
	}
	defer rows.Close()

	for rows.Next() {
		var w model.FeatureWeight
		var group string
		if err := rows.Scan(&group, &w.Feature, &w.Weight, &w.Seen); err != nil {
			return state, unavailable(BackendPostgres, "load_state", err)
		}
		w.Group = model.Group(group)
		state.Weights = append(state.Weights, w)
	}
	if err := rows.Err(); err != nil {
		return state, unavailable(BackendPostgres, "load_state", err)
	}
	return state, nil
}

// History implements Store.
func (s *PostgresStore) History(ctx context.Context, fp model.Fingerprint) ([]model.Decision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT body::text FROM decisions WHERE fingerprint = $1 ORDER BY seq`, string(fp))
	if err != nil {
		return nil, unavailable(BackendPostgres, "history", err)
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, unavailable(BackendPostgres, "history", err)
		}
		d, err := decodeDecision(body)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(BackendPostgres, "history", err)
	}
	return out, nil
}

// Latest implements Store.
func (s *PostgresStore) Latest(ctx context.Context, fp model.Fingerprint) (model.Decision, bool, error) {
	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body::text FROM decisions WHERE fingerprint = $1 ORDER BY seq DESC LIMIT 1`, string(fp),
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Decision{}, false, nil
	}
	if err != nil {
		return model.Decision{}, false, unavailable(BackendPostgres, "latest", err)
	}
	d, err := decodeDecision(body)
	if err != nil {
		return model.Decision{}, false, fmt.Errorf("latest: %w", err)
	}
	return d, true, nil
}
