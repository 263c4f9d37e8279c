package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "bookdex/internal/errors"
	"bookdex/internal/source"
)

type stubAdapter struct {
	id      string
	records []source.Record
	err     error
	delay   time.Duration
}

func (s *stubAdapter) Descriptor() source.Descriptor {
	return source.Descriptor{ID: s.id, DisplayName: s.id}
}

func (s *stubAdapter) Search(ctx context.Context, query string, limit, offset int) ([]source.Record, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *stubAdapter) GetDetail(ctx context.Context, externalID string) (*source.Record, error) {
	for i := range s.records {
		if s.records[i].ExternalID == externalID {
			return &s.records[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError(s.id, externalID)
}

type stubLookup struct {
	links map[source.Key]string
	err   error
}

func (s *stubLookup) FindImportLinks(ctx context.Context, src string, externalIDs []string) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := map[string]string{}
	for _, id := range externalIDs {
		if bookID, ok := s.links[source.Key{Source: src, ExternalID: id}]; ok {
			out[id] = bookID
		}
	}
	return out, nil
}

func record(src, id, title string) source.Record {
	return source.Record{ExternalID: id, Source: src, Title: title}
}

func newTestEngine(t *testing.T, store ImportLookup, adapters ...*stubAdapter) *Engine {
	t.Helper()

	registry := source.NewRegistry()
	for _, adapter := range adapters {
		registry.Register(adapter, source.DefaultFailureThreshold)
	}
	return NewEngine(registry, store, time.Second)
}

func TestSearchAllMergesSources(t *testing.T) {
	engine := newTestEngine(t, nil,
		&stubAdapter{id: "source1", records: []source.Record{record("source1", "X1", "Dune")}},
		&stubAdapter{id: "source2", records: []source.Record{
			record("source2", "Y1", "Dune"),
			record("source2", "Y2", "Dune Messiah"),
		}},
	)

	result, err := engine.SearchAll(context.Background(), "dune", nil, 10, 0)
	require.NoError(t, err)

	assert.Equal(t, "dune", result.Query)
	assert.Equal(t, 3, result.TotalItems)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "source1", result.Sources[0].Source)
	assert.Equal(t, "source2", result.Sources[1].Source)
	assert.Len(t, result.Sources[0].Items, 1)
	assert.Len(t, result.Sources[1].Items, 2)
	assert.Empty(t, result.Sources[0].Error)
}

func TestSearchAllEmptyQuery(t *testing.T) {
	engine := newTestEngine(t, nil, &stubAdapter{id: "source1"})

	_, err := engine.SearchAll(context.Background(), "  ", nil, 10, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidQuery(err))
}

func TestSearchAllUnknownSource(t *testing.T) {
	engine := newTestEngine(t, nil, &stubAdapter{id: "source1"})

	_, err := engine.SearchAll(context.Background(), "dune", []string{"nope"}, 10, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnknownSource(err))
}

func TestSearchAllSubsetSelection(t *testing.T) {
	engine := newTestEngine(t, nil,
		&stubAdapter{id: "source1", records: []source.Record{record("source1", "X1", "Dune")}},
		&stubAdapter{id: "source2", records: []source.Record{record("source2", "Y1", "Dune")}},
	)

	result, err := engine.SearchAll(context.Background(), "dune", []string{"source2"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "source2", result.Sources[0].Source)
	assert.Equal(t, 1, result.TotalItems)
}

func TestSearchAllPartialFailureIsolated(t *testing.T) {
	engine := newTestEngine(t, nil,
		&stubAdapter{id: "source1", records: []source.Record{record("source1", "X1", "Dune")}},
		&stubAdapter{id: "source2", err: apperrors.NewProviderUnavailableError("source2", "connection refused")},
	)

	result, err := engine.SearchAll(context.Background(), "dune", nil, 10, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalItems)
	assert.Empty(t, result.Sources[0].Error)
	assert.Len(t, result.Sources[0].Items, 1)
	assert.Contains(t, result.Sources[1].Error, "connection refused")
	assert.Empty(t, result.Sources[1].Items)
}

func TestSearchAllTimeout(t *testing.T) {
	engine := newTestEngine(t, nil,
		&stubAdapter{id: "source1", records: []source.Record{record("source1", "X1", "Dune")}},
		&stubAdapter{id: "source2", delay: 5 * time.Second},
	)

	result, err := engine.SearchAll(context.Background(), "dune", nil, 10, 50*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalItems)
	assert.Len(t, result.Sources[0].Items, 1)
	assert.Equal(t, "timeout", result.Sources[1].Error)
	assert.False(t, result.Sources[0].Items[0].IsImported)
}

func TestSearchAllAllSourcesFailing(t *testing.T) {
	engine := newTestEngine(t, nil,
		&stubAdapter{id: "source1", err: apperrors.NewRateLimitError("source1", "slow down")},
		&stubAdapter{id: "source2", err: apperrors.NewProviderUnavailableError("source2", "boom")},
	)

	result, err := engine.SearchAll(context.Background(), "dune", nil, 10, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalItems)
	assert.Equal(t, "rate limited", result.Sources[0].Error)
	assert.NotEmpty(t, result.Sources[1].Error)
}

func TestSearchAllDedupesWithinSource(t *testing.T) {
	engine := newTestEngine(t, nil,
		&stubAdapter{id: "source1", records: []source.Record{
			record("source1", "X1", "Dune"),
			record("source1", "X2", "Dune Messiah"),
			record("source1", "X1", "Dune (reissue)"),
		}},
	)

	result, err := engine.SearchAll(context.Background(), "dune", nil, 10, 0)
	require.NoError(t, err)

	require.Len(t, result.Sources[0].Items, 2)
	assert.Equal(t, "Dune", result.Sources[0].Items[0].Title)
	assert.Equal(t, "Dune Messiah", result.Sources[0].Items[1].Title)
	assert.Equal(t, 2, result.TotalItems)
}

func TestSearchAllNoCrossSourceMerge(t *testing.T) {
	shared := source.Record{ExternalID: "X1", Source: "source1", Title: "Dune", ISBN13: "9780441013593"}
	other := source.Record{ExternalID: "OL1W", Source: "source2", Title: "Dune", ISBN13: "9780441013593"}

	engine := newTestEngine(t, nil,
		&stubAdapter{id: "source1", records: []source.Record{shared}},
		&stubAdapter{id: "source2", records: []source.Record{other}},
	)

	result, err := engine.SearchAll(context.Background(), "dune", nil, 10, 0)
	require.NoError(t, err)

	// Same ISBN from two providers stays two entries.
	assert.Equal(t, 2, result.TotalItems)
}

func TestSearchAllAnnotatesImports(t *testing.T) {
	store := &stubLookup{links: map[source.Key]string{
		{Source: "source1", ExternalID: "X1"}: "book-42",
	}}
	engine := newTestEngine(t, store,
		&stubAdapter{id: "source1", records: []source.Record{
			record("source1", "X1", "Dune"),
			record("source1", "X2", "Dune Messiah"),
		}},
	)

	result, err := engine.SearchAll(context.Background(), "dune", nil, 10, 0)
	require.NoError(t, err)

	items := result.Sources[0].Items
	assert.True(t, items[0].IsImported)
	assert.Equal(t, "book-42", items[0].ImportedBookID)
	assert.False(t, items[1].IsImported)
	assert.Empty(t, items[1].ImportedBookID)
}

func TestSearchAllLookupFailureDegrades(t *testing.T) {
	store := &stubLookup{err: apperrors.NewStorageError("query import links", context.DeadlineExceeded)}
	engine := newTestEngine(t, store,
		&stubAdapter{id: "source1", records: []source.Record{record("source1", "X1", "Dune")}},
	)

	result, err := engine.SearchAll(context.Background(), "dune", nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalItems)
	assert.False(t, result.Sources[0].Items[0].IsImported)
}

func TestSearchAllRecordsHealthOutcomes(t *testing.T) {
	registry := source.NewRegistry()
	registry.Register(&stubAdapter{id: "source1", err: apperrors.NewProviderUnavailableError("source1", "down")}, 2)
	engine := NewEngine(registry, nil, time.Second)

	for i := 0; i < 2; i++ {
		_, err := engine.SearchAll(context.Background(), "dune", nil, 10, 0)
		require.NoError(t, err)
	}

	assert.False(t, registry.Available("source1"))

	// Unhealthy sources are still queried; health is advisory.
	result, err := engine.SearchAll(context.Background(), "dune", nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	assert.NotEmpty(t, result.Sources[0].Error)
}
