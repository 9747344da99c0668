package assets

import (
	"context"
	"strings"
)

// CatalogEntry is one asset in a local catalog.
type CatalogEntry struct {
	Name     string
	Source   string // /primary or /external
	Category string
	Tags     []string
}

// CatalogSearcher implements Searcher over an in-memory catalog. It
// scores entries by tag overlap with the query; primary entries get a
// small boost so ranking is stable even before the cache re-sorts.
type CatalogSearcher struct {
	entries []CatalogEntry
}

// NewCatalogSearcher creates a searcher over the given catalog.
func NewCatalogSearcher(entries []CatalogEntry) *CatalogSearcher {
	return &CatalogSearcher{entries: entries}
}

// Search scores every catalog entry against the query tags and returns
// the matches, up to the query's target count.
func (s *CatalogSearcher) Search(ctx context.Context, q Query) (Result, error) {
	want := make(map[string]struct{}, len(q.Tags))
	for _, t := range q.Tags {
		want[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	var found []Asset
	for _, e := range s.entries {
		matches := 0
		for _, t := range e.Tags {
			if _, ok := want[strings.ToLower(t)]; ok {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		relevance := float64(matches) / float64(len(q.Tags)+1)
		if e.Source == SourcePrimary {
			relevance += 0.1
		}
		found = append(found, Asset{
			Name:      e.Name,
			Source:    e.Source,
			Relevance: relevance,
			Category:  e.Category,
		})
	}

	total := len(found)
	if q.TargetCount > 0 && len(found) > q.TargetCount {
		found = found[:q.TargetCount]
	}

	return Result{Assets: found, TotalFound: total}, nil
}
