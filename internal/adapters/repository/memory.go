package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/scout/internal/domain/model"
)

// MemoryStore is a Store kept entirely in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	postings  map[model.Fingerprint]model.Posting
	decisions map[model.Fingerprint][]model.Decision
	weights   map[model.FeatureKey]model.FeatureWeight
	count     int
	approved  int
	refused   int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		postings:  make(map[model.Fingerprint]model.Posting),
		decisions: make(map[model.Fingerprint][]model.Decision),
		weights:   make(map[model.FeatureKey]model.FeatureWeight),
	}
}

// Insert implements Index.
func (s *MemoryStore) Insert(_ context.Context, fp model.Fingerprint, p model.Posting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.postings[fp]; ok {
		return false, nil
	}
	s.postings[fp] = p
	return true, nil
}

// Contains implements Index.
func (s *MemoryStore) Contains(_ context.Context, fp model.Fingerprint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.postings[fp]
	return ok, nil
}

// Lookup implements Index.
func (s *MemoryStore) Lookup(_ context.Context, fp model.Fingerprint) (model.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.postings[fp]
	if !ok {
		return model.Posting{}, model.ErrNotFound
	}
	return p, nil
}

// Remove implements Index.
func (s *MemoryStore) Remove(_ context.Context, fp model.Fingerprint) error {
	s.mu.Lock()
	delete(s.postings, fp)
	s.mu.Unlock()
	return nil
}

// Commit implements Store.
func (s *MemoryStore) Commit(_ context.Context, d model.Decision, delta model.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[d.Fingerprint] = append(s.decisions[d.Fingerprint], d)
	for _, adj := range delta.Adjustments {
		w := s.weights[adj.FeatureKey]
		w.FeatureKey = adj.FeatureKey
		w.Weight += adj.Weight
		w.Seen += adj.Seen
		s.weights[adj.FeatureKey] = w
	}
	s.count += delta.Decisions
	s.approved += delta.Approved
	s.refused += delta.Refused
	return nil
}

// LoadState implements Store.
func (s *MemoryStore) LoadState(_ context.Context) (model.ModelState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := model.ModelState{
		Weights:   make([]model.FeatureWeight, 0, len(s.weights)),
		Decisions: s.count,
		Approved:  s.approved,
		Refused:   s.refused,
	}
	for _, w := range s.weights {
		state.Weights = append(state.Weights, w)
	}
	sortWeights(state.Weights)
	return state, nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, fp model.Fingerprint) ([]model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Decision, len(s.decisions[fp]))
	copy(out, s.decisions[fp])
	return out, nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(_ context.Context, fp model.Fingerprint) (model.Decision, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds := s.decisions[fp]
	if len(ds) == 0 {
		return model.Decision{}, false, nil
	}
	return ds[len(ds)-1], true, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.postings), nil
}

// Close implements Index.
func (s *MemoryStore) Close() error { return nil }

func sortWeights(ws []model.FeatureWeight) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Group != ws[j].Group {
			return ws[i].Group < ws[j].Group
		}
		return ws[i].Feature < ws[j].Feature
	})
}
