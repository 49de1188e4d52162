package search

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ResultCache maps a query key to the result list computed for it. Entries
// expire ttl after Put. A reader gets either a complete stored slice or
// nothing: slices are installed whole and never modified afterwards.
type ResultCache struct {
	c   *gocache.Cache
	ttl time.Duration
}

func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResultCache{
		c:   gocache.New(ttl, cleanupInterval(ttl)),
		ttl: ttl,
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return time.Minute
	}
	return ttl
}

func (c *ResultCache) TTL() time.Duration { return c.ttl }

func (c *ResultCache) Get(key string) ([]Result, bool) {
	obj, found := c.c.Get(key)
	if !found {
		return nil, false
	}
	res, ok := obj.([]Result)
	return res, ok
}

func (c *ResultCache) Put(key string, results []Result) {
	if results == nil {
		results = []Result{}
	}
	c.c.Set(key, results, gocache.DefaultExpiration)
}

func (c *ResultCache) Invalidate(key string) {
	c.c.Delete(key)
}

func (c *ResultCache) Flush() {
	c.c.Flush()
}

// Len counts stored entries, including expired ones not yet swept.
func (c *ResultCache) Len() int {
	return c.c.ItemCount()
}
