package source

import (
	"context"

	"bookdex/internal/cache"
	"bookdex/internal/errors"
)

// detailCacheTables maps source ids to their cache tables.
var detailCacheTables = map[string]string{
	GoogleBooks: "googlebooks_cache",
	OpenLibrary: "openlibrary_cache",
}

// cachedAdapter wraps an Adapter and caches GetDetail responses in SQLite.
// "Not found" answers are cached too, with a shorter TTL, so repeated
// imports of a bad id do not hit the provider every time. Searches are
// never cached: result freshness matters more than the extra request.
type cachedAdapter struct {
	Adapter
	table string
}

// cachedDetail is the cache payload for one detail lookup.
type cachedDetail struct {
	Record   *Record `json:"record"`
	NotFound bool    `json:"not_found"`
}

// WithDetailCache wraps adapter with the detail cache for its source.
// Sources without a configured cache table are returned unwrapped.
func WithDetailCache(adapter Adapter) Adapter {
	table, ok := detailCacheTables[adapter.Descriptor().ID]
	if !ok {
		return adapter
	}
	return &cachedAdapter{Adapter: adapter, table: table}
}

func (c *cachedAdapter) GetDetail(ctx context.Context, externalID string) (*Record, error) {
	sourceID := c.Adapter.Descriptor().ID

	result, _, err := cache.GetOrFetchWithTTL(c.table, "detail:"+externalID,
		func() (*cachedDetail, error) {
			record, err := c.Adapter.GetDetail(ctx, externalID)
			if err != nil {
				if errors.IsNotFound(err) {
					return &cachedDetail{NotFound: true}, nil
				}
				return nil, err
			}
			return &cachedDetail{Record: record}, nil
		},
		cache.SelectNegativeCacheTTL(func(d *cachedDetail) bool { return d.NotFound }),
	)
	if err != nil {
		return nil, err
	}
	if result == nil || result.NotFound || result.Record == nil {
		return nil, errors.NewNotFoundError(sourceID, externalID)
	}
	return result.Record, nil
}
