package exec

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/constellation-run/constellation/semtype"
)

// resultCache is the per-module call-site cache keyed by
// (module_name, canonicalize(inputs)), enabled when cache_ms > 0 (§3.3,
// §4.E.2 step 2). It is independent of the §4.F compilation cache: this one
// memoizes module *results* within and across executions, not compiled
// DagSpecs.
type resultCache struct {
	mu      sync.Mutex
	backend string
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value   semtype.Value
	expires time.Time
}

func newResultCache(backend string) *resultCache {
	return &resultCache{backend: backend, entries: make(map[string]cacheEntry)}
}

func canonicalizeInputs(moduleName string, inputs map[string]semtype.Value) string {
	names := make([]string, 0, len(inputs))
	for n := range inputs {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(moduleName)
	for _, n := range names {
		b.WriteString("|")
		b.WriteString(n)
		b.WriteString("=")
		b.WriteString(formatValue(inputs[n]))
	}
	return b.String()
}

func formatValue(v semtype.Value) string {
	switch v.Type.Kind {
	case semtype.KString:
		return v.Str
	case semtype.KInt:
		return strconv.FormatInt(v.Int, 10)
	case semtype.KFloat:
		return strconv.FormatFloat(v.Flt, 'g', -1, 64)
	case semtype.KBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return "<complex>"
	}
}

func (c *resultCache) get(key string) (semtype.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, key)
		return semtype.Value{}, false
	}
	return e.value, true
}

func (c *resultCache) put(key string, v semtype.Value, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: v, expires: time.Now().Add(ttl)}
}
