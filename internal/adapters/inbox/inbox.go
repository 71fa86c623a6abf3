// Package inbox holds ranked recommendations that are waiting for a verdict.
package inbox

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Treap-based ordering: score DESC, then DiscoveredAt ASC, posting key ASC and
// fingerprint ASC. "less" means ranks earlier, so an in-order traversal yields
// the inbox from best to worst.

type sortKey struct {
	score        float64
	discoveredAt time.Time
	key          string
	fp           model.Fingerprint
}

func keyOf(r *model.RankedResult) sortKey {
	return sortKey{
		score:        r.Score,
		discoveredAt: r.Posting.DiscoveredAt,
		key:          r.Posting.Key(),
		fp:           r.Fingerprint,
	}
}

// less returns true if a should appear before b.
func less(a, b sortKey) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if !a.discoveredAt.Equal(b.discoveredAt) {
		return a.discoveredAt.Before(b.discoveredAt)
	}
	if a.key != b.key {
		return a.key < b.key
	}
	return a.fp < b.fp
}

type node struct {
	k     sortKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// priority derives a heap priority from the fingerprint. Fingerprints are
// digests, so this behaves like a random priority while staying reproducible.
func priority(fp model.Fingerprint) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fp))
	return h.Sum64()
}

func insert(n *node, k sortKey) *node {
	if n == nil {
		return &node{k: k, prio: priority(k.fp), size: 1}
	}
	if less(k, n.k) {
		n.left = insert(n.left, k)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k sortKey) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.k.fp == k.fp:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case less(k, n.k):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

func last(n *node) *node {
	if n == nil {
		return nil
	}
	for n.right != nil {
		n = n.right
	}
	return n
}

// collectTopN appends up to limit fingerprints in rank order.
func collectTopN(n *node, limit int, out *[]model.Fingerprint) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.k.fp)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// rankOf returns the 1-based position of k.
func rankOf(n *node, k sortKey) int {
	rank := 0
	for n != nil {
		switch {
		case n.k.fp == k.fp:
			return rank + nsize(n.left) + 1
		case less(k, n.k):
			n = n.left
		default:
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// Inbox is the set of surfaced recommendations awaiting a decision. It is
// safe for concurrent use.
type Inbox struct {
	mu      sync.RWMutex
	root    *node
	byFP    map[model.Fingerprint]model.RankedResult
	maxSize int

	logger logger.Logger
}

// New constructs an empty inbox.
func New(opts ...Option) *Inbox {
	i := &Inbox{
		byFP:   make(map[model.Fingerprint]model.RankedResult),
		logger: logger.Get().Named("inbox"),
	}
	for _, opt := range opts {
		opt(i)
	}
	metrics.UpdateInboxSize(0)
	return i
}

// Deliver adds the ranked results of a batch. It satisfies worker.Sink.
func (i *Inbox) Deliver(ctx context.Context, b model.Batch, results []model.RankedResult) { //nolint:gocritic // hugeParam: batches travel by value
	added, evicted := i.Put(results)
	i.logger.Debug(ctx, "batch delivered",
		logger.String("batch", b.ID),
		logger.Int("added", added),
		logger.Int("evicted", evicted),
	)
}

// Put inserts or refreshes results and reports how many were added and how
// many were evicted to respect the size cap.
func (i *Inbox) Put(results []model.RankedResult) (added, evicted int) {
	i.mu.Lock()
	for idx := range results {
		r := results[idx]
		if old, ok := i.byFP[r.Fingerprint]; ok {
			i.root = deleteNode(i.root, keyOf(&old))
		} else {
			added++
		}
		i.byFP[r.Fingerprint] = r
		i.root = insert(i.root, keyOf(&r))
	}
	for i.maxSize > 0 && len(i.byFP) > i.maxSize {
		worst := last(i.root)
		i.root = deleteNode(i.root, worst.k)
		delete(i.byFP, worst.k.fp)
		evicted++
	}
	size := len(i.byFP)
	i.mu.Unlock()

	metrics.UpdateInboxSize(size)
	return added, evicted
}

// Remove clears a recommendation once it has been decided. It reports whether
// the fingerprint was present.
func (i *Inbox) Remove(fp model.Fingerprint) bool {
	i.mu.Lock()
	r, ok := i.byFP[fp]
	if ok {
		i.root = deleteNode(i.root, keyOf(&r))
		delete(i.byFP, fp)
	}
	size := len(i.byFP)
	i.mu.Unlock()

	if ok {
		metrics.UpdateInboxSize(size)
	}
	return ok
}

// Get returns a pending recommendation with its current inbox rank.
func (i *Inbox) Get(fp model.Fingerprint) (model.RankedResult, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	r, ok := i.byFP[fp]
	if !ok {
		return model.RankedResult{}, false
	}
	r.Rank = rankOf(i.root, keyOf(&r))
	return r, true
}

// Top returns the best n pending recommendations, re-ranked within the inbox.
func (i *Inbox) Top(n int) ([]model.RankedResult, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	fps := make([]model.Fingerprint, 0, min(n, len(i.byFP)))
	collectTopN(i.root, n, &fps)

	out := make([]model.RankedResult, len(fps))
	for idx, fp := range fps {
		out[idx] = i.byFP[fp]
		out[idx].Rank = idx + 1
	}
	return out, nil
}

// Len returns the number of pending recommendations.
func (i *Inbox) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byFP)
}
