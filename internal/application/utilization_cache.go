package application

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// utilizationCache stores recently computed utilization reports to avoid
// re-running the sweep for identical window queries while a site's reservation
// set remains unchanged. The site version is part of the key, so any committed
// mutation makes earlier entries unreachable.
type utilizationCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]utilizationCacheEntry
}

type utilizationCacheEntry struct {
	report    UtilizationReport
	expiresAt time.Time
}

func newUtilizationCache(ttl time.Duration, maxEntries int, now func() time.Time) *utilizationCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &utilizationCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]utilizationCacheEntry),
	}
}

func (c *utilizationCache) Get(key string) (UtilizationReport, bool) {
	if c == nil {
		return UtilizationReport{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return UtilizationReport{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return UtilizationReport{}, false
	}
	return entry.report, true
}

func (c *utilizationCache) Store(key string, report UtilizationReport) {
	if c == nil {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = utilizationCacheEntry{report: report, expiresAt: expiry}
}

func (c *utilizationCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *utilizationCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func buildUtilizationCacheKey(params UtilizationParams, version int64) string {
	builder := strings.Builder{}
	builder.WriteString(params.SiteID)
	builder.WriteString("|")
	builder.WriteString(strconv.FormatInt(version, 10))
	builder.WriteString("|")
	builder.WriteString(params.Start.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(params.End.UTC().Format(time.RFC3339Nano))
	return builder.String()
}
