// Package assets implements the asset-query resolution cache: it
// canonicalizes search requests, deduplicates concurrent identical
// queries, ranks results, and caches them for the process lifetime.
package assets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"adcraft/internal/logging"
)

// Asset sources. Primary-provider results always rank ahead of
// external ones.
const (
	SourcePrimary  = "/primary"
	SourceExternal = "/external"
)

// Query describes one asset search request.
type Query struct {
	Tags         []string `json:"tags"`
	Tone         string   `json:"tone"`
	CampaignType string   `json:"campaign_type"`
	TargetCount  int      `json:"target_count"`
}

// Asset is one ranked search hit.
type Asset struct {
	Name      string  `json:"name"`
	Source    string  `json:"source"` // /primary or /external
	Relevance float64 `json:"relevance"`
	Category  string  `json:"category,omitempty"`
}

// Result is a ranked asset list plus search metadata.
type Result struct {
	Assets     []Asset   `json:"assets"`
	TotalFound int       `json:"total_found"`
	Key        string    `json:"key"`
	SearchedAt time.Time `json:"searched_at"`
}

// Empty reports whether the search found nothing. Empty results are
// returned to callers but never cached, so a later retry reaches the
// searcher again.
func (r Result) Empty() bool {
	return r.TotalFound == 0 && len(r.Assets) == 0
}

// Searcher is the external asset search collaborator.
type Searcher interface {
	Search(ctx context.Context, q Query) (Result, error)
}

// Cache deduplicates and caches asset searches. Entries expire only by
// explicit invalidation within a process lifetime; there is no TTL.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]Result
	group    singleflight.Group
	searcher Searcher
	now      func() time.Time
}

// NewCache creates a cache backed by the given searcher.
func NewCache(searcher Searcher) *Cache {
	return &Cache{
		entries:  make(map[string]Result),
		searcher: searcher,
		now:      time.Now,
	}
}

// Key canonicalizes a query into its cache key: tags are lower-cased,
// deduplicated, and sorted, so tag order never splits the cache.
func Key(q Query) string {
	seen := make(map[string]struct{}, len(q.Tags))
	tags := make([]string, 0, len(q.Tags))
	for _, t := range q.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	sort.Strings(tags)

	tone := strings.ToLower(strings.TrimSpace(q.Tone))
	ctype := strings.ToLower(strings.TrimSpace(q.CampaignType))
	return fmt.Sprintf("tags=%s|tone=%s|type=%s|count=%d",
		strings.Join(tags, ","), tone, ctype, q.TargetCount)
}

// Resolve returns the cached result for the query, or delegates to the
// searcher on a miss. Concurrent resolves for the same canonical key
// share a single search call.
func (c *Cache) Resolve(ctx context.Context, q Query) (Result, error) {
	key := Key(q)
	log := logging.Get(logging.CategoryAssets)

	c.mu.RLock()
	cached, hit := c.entries[key]
	c.mu.RUnlock()
	if hit {
		log.Debug("Cache hit for %s", key)
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another resolver may have filled the entry while this call
		// waited on the flight group.
		c.mu.RLock()
		cached, hit := c.entries[key]
		c.mu.RUnlock()
		if hit {
			return cached, nil
		}

		res, err := c.searcher.Search(ctx, q)
		if err != nil {
			return Result{}, err
		}

		res.Key = key
		res.SearchedAt = c.now()
		res.Assets = rank(res.Assets)

		if res.Empty() {
			// Typed no-assets result; not cached so a retry can search
			// again.
			log.Info("No assets found for %s", key)
			return res, nil
		}

		c.mu.Lock()
		c.entries[key] = res
		c.mu.Unlock()
		log.Debug("Cached %d assets for %s", len(res.Assets), key)
		return res, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("asset search failed: %w", err)
	}
	return v.(Result), nil
}

// Invalidate removes one cache entry by canonical key. Returns whether
// the entry existed.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// InvalidateAll clears the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Result)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// rank orders assets: primary-provider results before external ones,
// then by descending relevance; ties keep the provider's order.
func rank(assets []Asset) []Asset {
	out := make([]Asset, len(assets))
	copy(out, assets)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source == SourcePrimary
		}
		return out[i].Relevance > out[j].Relevance
	})
	return out
}
