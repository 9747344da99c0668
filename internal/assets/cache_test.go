package assets

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingSearcher counts Search calls and returns a fixed result.
type countingSearcher struct {
	calls  atomic.Int64
	result Result
	err    error
	delay  time.Duration
}

func (s *countingSearcher) Search(ctx context.Context, q Query) (Result, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return Result{}, s.err
	}
	return s.result, nil
}

func twoAssets() Result {
	return Result{
		Assets: []Asset{
			{Name: "banner.png", Source: SourcePrimary, Relevance: 0.9},
			{Name: "photo.jpg", Source: SourceExternal, Relevance: 0.95},
		},
		TotalFound: 2,
	}
}

func TestKeyCanonicalization(t *testing.T) {
	a := Key(Query{Tags: []string{"Launch", "hero"}, Tone: "Upbeat", CampaignType: "acme", TargetCount: 5})
	b := Key(Query{Tags: []string{"hero", "launch"}, Tone: "upbeat", CampaignType: "ACME", TargetCount: 5})
	if a != b {
		t.Errorf("tag order and case split the cache key:\n%s\n%s", a, b)
	}

	c := Key(Query{Tags: []string{"hero", "hero", " hero ", ""}, TargetCount: 5})
	d := Key(Query{Tags: []string{"hero"}, TargetCount: 5})
	if c != d {
		t.Errorf("duplicate and blank tags split the cache key:\n%s\n%s", c, d)
	}

	if Key(Query{Tags: []string{"hero"}, TargetCount: 5}) == Key(Query{Tags: []string{"hero"}, TargetCount: 3}) {
		t.Error("target count must be part of the key")
	}
}

func TestResolveCachesByCanonicalKey(t *testing.T) {
	s := &countingSearcher{result: twoAssets()}
	c := NewCache(s)

	first, err := c.Resolve(context.Background(), Query{Tags: []string{"a", "b"}, TargetCount: 5})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := c.Resolve(context.Background(), Query{Tags: []string{"b", "a"}, TargetCount: 5})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if s.calls.Load() != 1 {
		t.Errorf("searcher called %d times, equivalent queries should share one search", s.calls.Load())
	}
	if first.Key != second.Key {
		t.Errorf("keys differ: %s vs %s", first.Key, second.Key)
	}
	if c.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", c.Len())
	}
}

func TestResolveRanksPrimaryFirst(t *testing.T) {
	s := &countingSearcher{result: Result{
		Assets: []Asset{
			{Name: "ext-high.jpg", Source: SourceExternal, Relevance: 0.99},
			{Name: "pri-low.png", Source: SourcePrimary, Relevance: 0.50},
			{Name: "pri-high.png", Source: SourcePrimary, Relevance: 0.80},
			{Name: "ext-low.jpg", Source: SourceExternal, Relevance: 0.40},
		},
		TotalFound: 4,
	}}
	c := NewCache(s)

	res, err := c.Resolve(context.Background(), Query{Tags: []string{"x"}, TargetCount: 10})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	wantOrder := []string{"pri-high.png", "pri-low.png", "ext-high.jpg", "ext-low.jpg"}
	for i, name := range wantOrder {
		if res.Assets[i].Name != name {
			t.Fatalf("rank[%d] = %s, want %s (full order %v)", i, res.Assets[i].Name, name, res.Assets)
		}
	}
}

func TestRankTiesAreStable(t *testing.T) {
	in := []Asset{
		{Name: "first.png", Source: SourcePrimary, Relevance: 0.5},
		{Name: "second.png", Source: SourcePrimary, Relevance: 0.5},
		{Name: "third.png", Source: SourcePrimary, Relevance: 0.5},
	}
	out := rank(in)
	for i, name := range []string{"first.png", "second.png", "third.png"} {
		if out[i].Name != name {
			t.Errorf("tie order changed: rank[%d] = %s, want %s", i, out[i].Name, name)
		}
	}
}

func TestResolveEmptyResultNotCached(t *testing.T) {
	s := &countingSearcher{result: Result{}}
	c := NewCache(s)

	q := Query{Tags: []string{"nothing"}, TargetCount: 5}

	res, err := c.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Empty() {
		t.Fatal("expected an empty result")
	}
	if c.Len() != 0 {
		t.Errorf("empty result was cached (%d entries)", c.Len())
	}

	// A retry searches again instead of replaying the empty result.
	if _, err := c.Resolve(context.Background(), q); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if s.calls.Load() != 2 {
		t.Errorf("searcher called %d times, want 2 (empty results are not cached)", s.calls.Load())
	}
}

func TestResolveSearchErrorNotCached(t *testing.T) {
	s := &countingSearcher{err: fmt.Errorf("upstream down")}
	c := NewCache(s)

	if _, err := c.Resolve(context.Background(), Query{Tags: []string{"x"}}); err == nil {
		t.Fatal("Resolve should surface the search error")
	}
	if c.Len() != 0 {
		t.Error("failed search was cached")
	}
}

func TestResolveConcurrentCallsShareOneSearch(t *testing.T) {
	s := &countingSearcher{result: twoAssets(), delay: 20 * time.Millisecond}
	c := NewCache(s)

	q := Query{Tags: []string{"shared"}, TargetCount: 5}

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Resolve(context.Background(), q); err != nil {
				t.Errorf("Resolve failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := s.calls.Load(); got != 1 {
		t.Errorf("searcher called %d times under concurrency, want 1", got)
	}
}

func TestInvalidate(t *testing.T) {
	s := &countingSearcher{result: twoAssets()}
	c := NewCache(s)

	q := Query{Tags: []string{"x"}, TargetCount: 5}
	res, err := c.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if !c.Invalidate(res.Key) {
		t.Error("Invalidate should report the entry existed")
	}
	if c.Invalidate(res.Key) {
		t.Error("second Invalidate should report a miss")
	}

	// Next resolve searches again.
	if _, err := c.Resolve(context.Background(), q); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if s.calls.Load() != 2 {
		t.Errorf("searcher called %d times after invalidation, want 2", s.calls.Load())
	}

	c.InvalidateAll()
	if c.Len() != 0 {
		t.Error("InvalidateAll left entries behind")
	}
}

func TestCatalogSearcherScoresByTagOverlap(t *testing.T) {
	s := NewCatalogSearcher([]CatalogEntry{
		{Name: "both.png", Source: SourcePrimary, Tags: []string{"hero", "launch"}},
		{Name: "one.png", Source: SourceExternal, Tags: []string{"hero"}},
		{Name: "none.png", Source: SourcePrimary, Tags: []string{"misc"}},
	})

	res, err := s.Search(context.Background(), Query{Tags: []string{"hero", "launch"}, TargetCount: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if res.TotalFound != 2 {
		t.Fatalf("found %d assets, want 2 (no-overlap entries excluded)", res.TotalFound)
	}
	var both, one Asset
	for _, a := range res.Assets {
		switch a.Name {
		case "both.png":
			both = a
		case "one.png":
			one = a
		}
	}
	if both.Relevance <= one.Relevance {
		t.Errorf("relevance: both=%f should exceed one=%f", both.Relevance, one.Relevance)
	}
}

func TestCatalogSearcherHonorsTargetCount(t *testing.T) {
	entries := make([]CatalogEntry, 8)
	for i := range entries {
		entries[i] = CatalogEntry{Name: fmt.Sprintf("asset-%d.png", i), Source: SourcePrimary, Tags: []string{"hero"}}
	}
	s := NewCatalogSearcher(entries)

	res, err := s.Search(context.Background(), Query{Tags: []string{"hero"}, TargetCount: 3})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Assets) != 3 {
		t.Errorf("returned %d assets, want target count 3", len(res.Assets))
	}
	if res.TotalFound != 8 {
		t.Errorf("total found = %d, want 8", res.TotalFound)
	}
}
