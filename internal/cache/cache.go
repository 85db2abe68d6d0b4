// Package cache implements the three-level smart cache that sits above the
// fusion pipelines: L1 holds raw feature bundles, L2 intermediate
// embeddings, L3 final per-sample predictions. Each level has its own
// capacity, memory budget, TTL, and lock. Writes deduplicate through a
// perceptual-hash index so near-identical content shares one entry.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/config"
	"github.com/haven-media/sentinel/internal/monitoring"
	"github.com/haven-media/sentinel/internal/timeutil"
)

// Level selects one of the three cache tiers.
type Level int

const (
	LevelFeatures Level = iota
	LevelEmbeddings
	LevelPredictions
	levelCount
)

func (l Level) String() string {
	switch l {
	case LevelFeatures:
		return "features"
	case LevelEmbeddings:
		return "embeddings"
	case LevelPredictions:
		return "predictions"
	}
	return "unknown"
}

// Entry is the per-item bookkeeping record. The cache owns entries;
// callers only ever receive the stored value.
type Entry struct {
	Key         uint64
	Value       any
	Category    category.Category
	CreatedAt   time.Time
	LastAccess  time.Time
	AccessCount int
	SizeBytes   int64
}

// LevelStats is a point-in-time snapshot of one tier.
type LevelStats struct {
	Entries   int     `json:"entries"`
	Bytes     int64   `json:"bytes"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Expired   int64   `json:"expired"`
	Dedups    int64   `json:"dedups"`
	HitRate   float64 `json:"hit_rate"`
}

// Stats covers all three tiers, indexed by Level.
type Stats [3]LevelStats

type tier struct {
	mu       sync.Mutex
	entries  map[uint64]*Entry
	capacity int
	budget   int64
	ttl      time.Duration
	simBits  int

	hits, misses, evictions, expired, dedups int64
}

// Cache is the three-tier store. Safe for concurrent use; each tier
// locks independently so in-flight tasks touching different tiers do
// not contend.
type Cache struct {
	tiers [levelCount]*tier
	clock timeutil.Clock
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// New builds a cache from the tuning config and starts the TTL sweeper.
// Call Close to stop the sweeper.
func New(cfg *config.TuningConfig) *Cache {
	return NewWithClock(cfg, timeutil.RealClock{})
}

// NewWithClock is New with an injected clock, for deterministic expiry in
// tests.
func NewWithClock(cfg *config.TuningConfig, clock timeutil.Clock) *Cache {
	if cfg == nil {
		cfg = &config.TuningConfig{}
	}
	budget := int64(cfg.GetCacheMemoryBudgetMB() * 1024 * 1024)
	sim := cfg.GetSimilarityThreshold()
	c := &Cache{
		clock: clock,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	caps := [levelCount]int{cfg.GetCacheL1Capacity(), cfg.GetCacheL2Capacity(), cfg.GetCacheL3Capacity()}
	ttls := [levelCount]time.Duration{cfg.GetCacheL1TTL(), cfg.GetCacheL2TTL(), cfg.GetCacheL3TTL()}
	for i := range c.tiers {
		c.tiers[i] = &tier{
			entries:  make(map[uint64]*Entry),
			capacity: caps[i],
			budget:   budget,
			ttl:      ttls[i],
			simBits:  sim,
		}
	}
	go c.sweepLoop(cfg.GetSweepInterval())
	return c
}

// Close stops the background sweeper. Idempotent.
func (c *Cache) Close() {
	c.once.Do(func() {
		close(c.stop)
		<-c.done
	})
}

// Get returns the value stored under key (or a hash-similar key) at the
// given level. Expired entries count as misses and are dropped in place.
func (c *Cache) Get(lv Level, key uint64) (any, bool) {
	t := c.tiers[lv]
	now := c.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookupLocked(key, now)
	if e == nil {
		t.misses++
		return nil, false
	}
	t.hits++
	e.AccessCount++
	e.LastAccess = now
	return e.Value, true
}

// Set stores a value at the given level. If an existing entry sits within
// the similarity threshold of key, that entry's access statistics are
// bumped and its value refreshed instead of inserting a near-duplicate.
func (c *Cache) Set(lv Level, key uint64, cat category.Category, value any, sizeBytes int64) {
	t := c.tiers[lv]
	now := c.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if e := t.lookupLocked(key, now); e != nil {
		t.dedups++
		e.AccessCount++
		e.LastAccess = now
		e.Value = value
		e.SizeBytes = sizeBytes
		return
	}

	t.entries[key] = &Entry{
		Key:         key,
		Value:       value,
		Category:    cat,
		CreatedAt:   now,
		LastAccess:  now,
		AccessCount: 1,
		SizeBytes:   sizeBytes,
	}
	t.evictLocked(now)
}

// lookupLocked resolves key exactly or via Hamming proximity, purging the
// entry if its TTL has lapsed. A hit on a since-evicted similar key simply
// falls through to nil, so a stale association heals on the next write.
func (t *tier) lookupLocked(key uint64, now time.Time) *Entry {
	e := t.entries[key]
	if e == nil && t.simBits > 0 {
		best := t.simBits + 1
		for k, cand := range t.entries {
			if d := HammingDistance(key, k); d <= t.simBits && d < best {
				best = d
				e = cand
			}
		}
	}
	if e == nil {
		return nil
	}
	if t.ttl > 0 && now.Sub(e.CreatedAt) > t.ttl {
		delete(t.entries, e.Key)
		t.expired++
		return nil
	}
	return e
}

// evictLocked enforces the count and memory bounds. Candidates are ranked
// coldest-first: lowest access count, then oldest last access, then oldest
// creation.
func (t *tier) evictLocked(now time.Time) {
	if len(t.entries) <= t.capacity && t.bytesLocked() <= t.budget {
		return
	}
	ranked := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.AccessCount != b.AccessCount {
			return a.AccessCount < b.AccessCount
		}
		if !a.LastAccess.Equal(b.LastAccess) {
			return a.LastAccess.Before(b.LastAccess)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	for _, e := range ranked {
		if len(t.entries) <= t.capacity && t.bytesLocked() <= t.budget {
			break
		}
		delete(t.entries, e.Key)
		t.evictions++
	}
}

func (t *tier) bytesLocked() int64 {
	var n int64
	for _, e := range t.entries {
		n += e.SizeBytes
	}
	return n
}

// Sweep purges expired entries from every tier. Runs on the background
// ticker; exported so tests and hosts can force a pass.
func (c *Cache) Sweep() {
	now := c.clock.Now()
	for lv, t := range c.tiers {
		t.mu.Lock()
		before := len(t.entries)
		for k, e := range t.entries {
			if t.ttl > 0 && now.Sub(e.CreatedAt) > t.ttl {
				delete(t.entries, k)
				t.expired++
			}
		}
		purged := before - len(t.entries)
		t.mu.Unlock()
		if purged > 0 {
			monitoring.Tracef("cache: sweep purged %d expired %s entries", purged, Level(lv))
		}
	}
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.done)
	if interval <= 0 {
		<-c.stop
		return
	}
	tick := c.clock.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C():
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}

// Len returns the entry count of one tier.
func (c *Cache) Len(lv Level) int {
	t := c.tiers[lv]
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Stats snapshots all tiers.
func (c *Cache) Stats() Stats {
	var s Stats
	for i, t := range c.tiers {
		t.mu.Lock()
		ls := LevelStats{
			Entries:   len(t.entries),
			Bytes:     t.bytesLocked(),
			Hits:      t.hits,
			Misses:    t.misses,
			Evictions: t.evictions,
			Expired:   t.expired,
			Dedups:    t.dedups,
		}
		if total := ls.Hits + ls.Misses; total > 0 {
			ls.HitRate = float64(ls.Hits) / float64(total)
		}
		t.mu.Unlock()
		s[i] = ls
	}
	return s
}
