package repository

import (
	"context"
	"fmt"
)

// Settings selects and configures a backend for Open.
type Settings struct {
	Backend     string
	SQLitePath  string
	PostgresURL string
	// RedisURL, when set, moves the fingerprint index into Redis.
	RedisURL string
}

// Open builds the Store described by s.
func Open(ctx context.Context, s Settings, opts ...Option) (Store, error) {
	var (
		base Store
		err  error
	)
	switch s.Backend {
	case BackendMemory:
		base = NewMemoryStore()
	case BackendSQLite:
		base, err = NewSQLiteStore(ctx, s.SQLitePath, opts...)
	case BackendPostgres:
		base, err = NewPostgresStore(ctx, s.PostgresURL, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, s.Backend)
	}
	if err != nil {
		return nil, err
	}
	if s.RedisURL == "" {
		return base, nil
	}

	idx, err := NewRedisIndex(ctx, s.RedisURL, opts...)
	if err != nil {
		_ = base.Close()
		return nil, err
	}
	return WithSharedIndex(base, idx), nil
}
