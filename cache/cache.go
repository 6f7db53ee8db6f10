// Package cache implements the compilation cache (§4.F): a hash-validated,
// LRU-bounded, TTL-expiring store of compile outputs keyed by pipeline
// name. It is grounded on the teacher's checkpoint hashing idiom
// (crypto/sha256 + hex, a "sha256:" formatted digest) but trades the
// teacher's durable, JSON-marshaled Checkpoint[S] for an in-process-only
// cache: compile outputs hold live module callables, which cannot survive
// serialization, so entries never leave memory (§4.F).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMaxEntries bounds the cache when the caller does not specify one.
const DefaultMaxEntries = 256

// DefaultMaxAge is the TTL applied when the caller does not specify one.
const DefaultMaxAge = 30 * time.Minute

// entry is one cached compile output plus its validation fingerprint and
// LRU bookkeeping.
type entry struct {
	sourceHash   string
	registryHash string
	output       any
	lastAccess   time.Time
	createdAt    time.Time
}

// Stats is an atomic snapshot of cache activity (§4.F "stats() ->
// (hits, misses, evictions, size)").
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
}

// Cache is the compilation cache facade. A single short mutex guards both
// the entry map and the stats counters, so every get-and-touch or
// evict-and-insert sequence is atomic (§5: "LRU updates must be atomic
// with the get-and-touch operation").
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxEntries int
	maxAge     time.Duration

	hits      uint64
	misses    uint64
	evictions uint64

	metrics *metrics
}

type metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

// New creates a Cache bounded to maxEntries with entries expiring after
// maxAge. Zero values fall back to DefaultMaxEntries/DefaultMaxAge.
func New(maxEntries int, maxAge time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Cache{entries: make(map[string]*entry), maxEntries: maxEntries, maxAge: maxAge}
}

// WithMetrics attaches Prometheus counters/gauge to reg, generalizing the
// teacher's PrometheusMetrics pattern to the compilation cache's own
// hit/miss/eviction/size surface.
func (c *Cache) WithMetrics(reg prometheus.Registerer) *Cache {
	factory := promauto.With(reg)
	c.metrics = &metrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Name: "constellation_compile_cache_hits_total",
			Help: "Compilation cache hits.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "constellation_compile_cache_misses_total",
			Help: "Compilation cache misses, including stale-hash evictions.",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "constellation_compile_cache_evictions_total",
			Help: "Compilation cache entries evicted by LRU, invalidation, or hash mismatch.",
		}),
		size: factory.NewGauge(prometheus.GaugeOpts{
			Name: "constellation_compile_cache_size",
			Help: "Current number of compilation cache entries.",
		}),
	}
	return c
}

// HashSource computes the structural hash (§GLOSSARY) of a pipeline's
// source text.
func HashSource(sourceText string) string {
	return hashBytes([]byte(sourceText))
}

// HashRegistry computes a deterministic fingerprint of a registry's
// current contents from its sorted module name list, so compiling the
// same source against a registry that has gained or lost modules misses
// the cache even when the text is byte-identical.
func HashRegistry(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	h := sha256.New()
	for _, n := range sorted {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func hashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(h[:])
}

// Get returns the cached output for name if it exists, matches
// (sourceHash, registryHash), and has not exceeded max_age. A hash
// mismatch evicts the stale entry and counts as a miss.
func (c *Cache) Get(name, sourceHash, registryHash string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok {
		c.recordMiss()
		return nil, false
	}
	if time.Since(e.createdAt) > c.maxAge {
		delete(c.entries, name)
		c.recordEviction()
		c.recordMiss()
		return nil, false
	}
	if e.sourceHash != sourceHash || e.registryHash != registryHash {
		delete(c.entries, name)
		c.recordEviction()
		c.recordMiss()
		return nil, false
	}
	e.lastAccess = time.Now()
	c.recordHit()
	return e.output, true
}

// Put stores output under name, validated by (sourceHash, registryHash).
// A pre-existing entry for name is always replaced (its key may have
// changed). A new name at max_entries capacity evicts the entry with the
// oldest last-access timestamp.
func (c *Cache) Put(name, sourceHash, registryHash string, output any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, exists := c.entries[name]; exists {
		delete(c.entries, name)
		c.recordEviction()
	} else if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[name] = &entry{
		sourceHash:   sourceHash,
		registryHash: registryHash,
		output:       output,
		lastAccess:   now,
		createdAt:    now,
	}
	c.setSizeMetric()
}

func (c *Cache) evictOldestLocked() {
	var oldestName string
	var oldest time.Time
	first := true
	for name, e := range c.entries {
		if first || e.lastAccess.Before(oldest) {
			oldestName, oldest, first = name, e.lastAccess, false
		}
	}
	if !first {
		delete(c.entries, oldestName)
		c.recordEviction()
	}
}

// Invalidate evicts name if present. A no-op for an unknown name.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		delete(c.entries, name)
		c.recordEviction()
		c.setSizeMetric()
	}
}

// InvalidateAll evicts every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictions += uint64(len(c.entries))
	if c.metrics != nil {
		c.metrics.evictions.Add(float64(len(c.entries)))
	}
	c.entries = make(map[string]*entry)
	c.setSizeMetric()
}

// Stats returns an atomic snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Size: len(c.entries)}
}

// Size returns the current entry count.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) recordHit() {
	c.hits++
	if c.metrics != nil {
		c.metrics.hits.Inc()
	}
}

func (c *Cache) recordMiss() {
	c.misses++
	if c.metrics != nil {
		c.metrics.misses.Inc()
	}
}

func (c *Cache) recordEviction() {
	c.evictions++
	if c.metrics != nil {
		c.metrics.evictions.Inc()
	}
	c.setSizeMetric()
}

func (c *Cache) setSizeMetric() {
	if c.metrics != nil {
		c.metrics.size.Set(float64(len(c.entries) - 0))
	}
}
