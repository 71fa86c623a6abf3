// Package repository persists fingerprints, decisions and learned weights.
package repository

import (
	"context"

	"github.com/okian/scout/internal/domain/model"
)

// Backend names used in metrics and logs.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Index is the fingerprint set. Insert is an atomic check-then-insert and
// reports false when the fingerprint already existed.
type Index interface {
	Insert(ctx context.Context, fp model.Fingerprint, p model.Posting) (bool, error)
	Contains(ctx context.Context, fp model.Fingerprint) (bool, error)
	// Lookup returns model.ErrNotFound for unknown fingerprints.
	Lookup(ctx context.Context, fp model.Fingerprint) (model.Posting, error)
	Remove(ctx context.Context, fp model.Fingerprint) error
	// Count returns the number of registered fingerprints.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Store is the full persistence layer used by the engine.
type Store interface {
	Index

	// Commit appends d and applies delta in a single transaction. Nothing is
	// written when it fails.
	Commit(ctx context.Context, d model.Decision, delta model.Delta) error
	// LoadState returns every persisted weight ordered by group then feature.
	LoadState(ctx context.Context) (model.ModelState, error)
	// History returns the decisions for fp, oldest first.
	History(ctx context.Context, fp model.Fingerprint) ([]model.Decision, error)
	// Latest returns the most recent decision for fp. The boolean is false
	// when fp has never been decided.
	Latest(ctx context.Context, fp model.Fingerprint) (model.Decision, bool, error)
}
