package finance

import (
	"slices"
	"sync"
	"time"

	"montecarloBot/internal/montecarlo"
)

// seriesCache keeps fetched histories for a short TTL so repeated commands on
// the same window do not hit Yahoo again.
type seriesCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]seriesCacheEntry
}

func newSeriesCache(ttl time.Duration) *seriesCache {
	return &seriesCache{ttl: ttl, now: time.Now, entries: map[string]seriesCacheEntry{}}
}

func (c *seriesCache) get(key string) (montecarlo.PriceSeries, bool) {
	if c.ttl <= 0 {
		return montecarlo.PriceSeries{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return montecarlo.PriceSeries{}, false
	}
	if !c.now().Before(entry.createdAt.Add(c.ttl)) {
		delete(c.entries, key)
		return montecarlo.PriceSeries{}, false
	}
	return cloneSeries(entry.series), true
}

func (c *seriesCache) set(key string, s montecarlo.PriceSeries) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = seriesCacheEntry{createdAt: c.now(), series: cloneSeries(s)}
	c.mu.Unlock()
}

func cloneSeries(s montecarlo.PriceSeries) montecarlo.PriceSeries {
	return montecarlo.PriceSeries{
		Symbol:     s.Symbol,
		Timestamps: slices.Clone(s.Timestamps),
		Prices:     slices.Clone(s.Prices),
	}
}
