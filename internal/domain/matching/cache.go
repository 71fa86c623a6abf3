package matching

import (
	"sync"

	"github.com/okian/scout/internal/domain/model"
)

// featureCache is a bounded map with first-in first-out eviction.
type featureCache struct {
	mu    sync.Mutex
	limit int
	items map[model.Fingerprint]model.FeatureRecord
	order []model.Fingerprint
}

func newFeatureCache(limit int) *featureCache {
	return &featureCache{limit: limit, items: make(map[model.Fingerprint]model.FeatureRecord)}
}

func (c *featureCache) get(fp model.Fingerprint) (model.FeatureRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.items[fp]
	return rec, ok
}

func (c *featureCache) put(fp model.Fingerprint, rec model.FeatureRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[fp]; ok {
		c.items[fp] = rec
		return
	}
	for len(c.order) >= c.limit && len(c.order) > 0 {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
	c.items[fp] = rec
	c.order = append(c.order, fp)
}

func (c *featureCache) drop(fp model.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[fp]; !ok {
		return
	}
	delete(c.items, fp)
	for i, f := range c.order {
		if f == fp {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *featureCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
