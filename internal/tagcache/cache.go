package tagcache

import (
	"sort"
	"sync"
	"time"

	"pumpwatch-backend/internal/domain"
)

// Cache keeps the most recently ingested sample per tag with a sliding TTL,
// plus a per-pump membership index so pump lookups avoid a full scan. It is
// the in-process replacement for an external key-value cache: entries are
// never deleted explicitly, they simply stop being visible once expired.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[int]entry
	pumps   map[int]*pumpIndex
}

type entry struct {
	sample    domain.TagSample
	expiresAt time.Time
}

type pumpIndex struct {
	members   map[int]struct{}
	expiresAt time.Time
}

const DefaultTTL = 24 * time.Hour

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int]entry),
		pumps:   make(map[int]*pumpIndex),
	}
}

// Update upserts the sample under its tag id and refreshes both the entry TTL
// and the pump index TTL. Last write wins by arrival order, not by the
// sample's own timestamp.
func (c *Cache) Update(sample domain.TagSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[sample.TagID] = entry{sample: sample, expiresAt: now.Add(c.ttl)}

	idx := c.pumps[sample.PumpID]
	if idx == nil || !idx.expiresAt.After(now) {
		idx = &pumpIndex{members: make(map[int]struct{})}
		c.pumps[sample.PumpID] = idx
	}
	idx.members[sample.TagID] = struct{}{}
	idx.expiresAt = now.Add(c.ttl)

	// Drop expired tags from this pump's index while we hold the lock;
	// bounded by the pump's tag count.
	for tagID := range idx.members {
		if e, ok := c.entries[tagID]; ok && !e.expiresAt.After(now) {
			delete(c.entries, tagID)
			delete(idx.members, tagID)
		}
	}
}

// Latest returns the live sample for every tag in the pump's index. Expired
// or missing entries are skipped; a dangling index member is absence, not an
// error.
func (c *Cache) Latest(pumpID int) []domain.TagSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	idx := c.pumps[pumpID]
	if idx == nil || !idx.expiresAt.After(now) {
		return []domain.TagSample{}
	}
	results := make([]domain.TagSample, 0, len(idx.members))
	for tagID := range idx.members {
		if e, ok := c.entries[tagID]; ok && e.expiresAt.After(now) {
			results = append(results, e.sample)
		}
	}
	sortByTagID(results)
	return results
}

// AllLatest returns every live sample across all pumps.
func (c *Cache) AllLatest() []domain.TagSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	results := make([]domain.TagSample, 0, len(c.entries))
	for _, e := range c.entries {
		if e.expiresAt.After(now) {
			results = append(results, e.sample)
		}
	}
	sortByTagID(results)
	return results
}

func sortByTagID(samples []domain.TagSample) {
	sort.Slice(samples, func(i, j int) bool { return samples[i].TagID < samples[j].TagID })
}
