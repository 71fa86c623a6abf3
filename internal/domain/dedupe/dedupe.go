// Package dedupe decides whether a posting has been seen before.
package dedupe

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Index is the persistent fingerprint set. Insert must be an atomic
// check-then-insert: it returns false when fp was already present and leaves
// the stored posting untouched.
type Index interface {
	Insert(ctx context.Context, fp model.Fingerprint, p model.Posting) (bool, error)
	Contains(ctx context.Context, fp model.Fingerprint) (bool, error)
	// Lookup returns model.ErrNotFound for unknown fingerprints.
	Lookup(ctx context.Context, fp model.Fingerprint) (model.Posting, error)
	Remove(ctx context.Context, fp model.Fingerprint) error
}

// Store is the fingerprint store. It is safe for concurrent use; atomicity of
// registration is delegated to the Index.
type Store struct {
	index       Index
	prefixRunes int
	logger      logger.Logger

	mu      sync.Mutex
	flagged map[model.Fingerprint]model.Posting
	order   []model.Fingerprint
}

// NewStore creates a fingerprint store over index.
func NewStore(index Index, opts ...Option) (*Store, error) {
	if index == nil {
		return nil, ErrNilIndex
	}
	s := &Store{
		index:       index,
		prefixRunes: DefaultPrefixRunes,
		logger:      logger.Get().Named("dedupe"),
		flagged:     make(map[model.Fingerprint]model.Posting),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fingerprint returns the digest the store would use for p.
func (s *Store) Fingerprint(p model.Posting) model.Fingerprint {
	fp, _ := Fingerprint(p, s.prefixRunes)
	return fp
}

// IsDuplicate reports whether p's fingerprint is already registered.
// Postings with an empty identity are never duplicates.
func (s *Store) IsDuplicate(ctx context.Context, p model.Posting) (bool, error) {
	fp, empty := Fingerprint(p, s.prefixRunes)
	if empty {
		return false, nil
	}
	ok, err := s.index.Contains(ctx, fp)
	if err != nil {
		return false, fmt.Errorf("is duplicate %s: %w", fp.Short(), err)
	}
	return ok, nil
}

// Register records p. Registering the same posting twice is a no-op that
// reports Inserted=false. When two callers race on the same fingerprint
// exactly one of them sees Inserted=true.
func (s *Store) Register(ctx context.Context, p model.Posting) (model.Registration, error) {
	fp, empty := Fingerprint(p, s.prefixRunes)
	reg := model.Registration{Fingerprint: fp, Flagged: empty}

	inserted, err := s.index.Insert(ctx, fp, p)
	if err != nil {
		return reg, fmt.Errorf("register %s: %w", fp.Short(), err)
	}
	reg.Inserted = inserted

	if empty {
		s.flag(ctx, fp, p)
		return reg, nil
	}
	if !inserted {
		metrics.RecordPostingDuplicate()
		s.logger.Debug(ctx, "duplicate posting",
			logger.String("fingerprint", fp.Short()),
			logger.String("key", p.Key()),
		)
	}
	return reg, nil
}

func (s *Store) flag(ctx context.Context, fp model.Fingerprint, p model.Posting) {
	s.mu.Lock()
	if _, ok := s.flagged[fp]; !ok {
		s.flagged[fp] = p
		s.order = append(s.order, fp)
	}
	s.mu.Unlock()

	metrics.RecordPostingFlagged()
	s.logger.Warn(ctx, "posting has no title or company, flagged for review",
		logger.String("fingerprint", fp.Short()),
		logger.String("key", p.Key()),
	)
}

// Lookup returns the posting stored under fp.
func (s *Store) Lookup(ctx context.Context, fp model.Fingerprint) (model.Posting, error) {
	p, err := s.index.Lookup(ctx, fp)
	if err != nil {
		return model.Posting{}, fmt.Errorf("lookup %s: %w", fp.Short(), err)
	}
	return p, nil
}

// Forget removes fp from the store. It exists to undo registrations made by a
// ranking pass that failed part way.
func (s *Store) Forget(ctx context.Context, fp model.Fingerprint) error {
	if err := s.index.Remove(ctx, fp); err != nil {
		return fmt.Errorf("forget %s: %w", fp.Short(), err)
	}
	s.mu.Lock()
	if _, ok := s.flagged[fp]; ok {
		delete(s.flagged, fp)
		for i, f := range s.order {
			if f == fp {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	return nil
}

// Flagged lists the postings awaiting manual review in the order they were
// flagged.
func (s *Store) Flagged() []model.Posting {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Posting, 0, len(s.order))
	for _, fp := range s.order {
		out = append(out, s.flagged[fp])
	}
	return out
}
