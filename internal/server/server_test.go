package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookdex/internal/aggregate"
	apperrors "bookdex/internal/errors"
	"bookdex/internal/importer"
	"bookdex/internal/library"
	"bookdex/internal/source"
)

type stubAdapter struct {
	id      string
	records []source.Record
	err     error
}

func (s *stubAdapter) Descriptor() source.Descriptor {
	return source.Descriptor{ID: s.id, DisplayName: s.id, Capabilities: []string{"search", "details"}}
}

func (s *stubAdapter) Search(ctx context.Context, query string, limit, offset int) ([]source.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *stubAdapter) GetDetail(ctx context.Context, externalID string) (*source.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.records {
		if s.records[i].ExternalID == externalID {
			record := s.records[i]
			return &record, nil
		}
	}
	return nil, apperrors.NewNotFoundError(s.id, externalID)
}

func newTestServer(t *testing.T, adapters ...*stubAdapter) (*httptest.Server, *library.SQLiteStore) {
	t.Helper()

	registry := source.NewRegistry()
	for _, adapter := range adapters {
		registry.Register(adapter, source.DefaultFailureThreshold)
	}

	store := library.NewSQLiteStore(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, store.Connect())
	t.Cleanup(func() { _ = store.Close() })

	engine := aggregate.NewEngine(registry, store, time.Second)
	coordinator := importer.NewCoordinator(registry, store)

	srv := New(":0", registry, engine, coordinator, store)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func duneAdapter() *stubAdapter {
	return &stubAdapter{
		id: "source1",
		records: []source.Record{{
			ExternalID:    "X1",
			Source:        "source1",
			Title:         "Dune",
			Authors:       []string{"Frank Herbert"},
			PublishedDate: "1965-08-01",
		}},
	}
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body, into any) int {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestSourcesEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, duneAdapter(), &stubAdapter{id: "source2"})

	var body struct {
		Sources []source.Descriptor `json:"sources"`
	}
	status := getJSON(t, ts.URL+"/api/sources", &body)

	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Sources, 2)
	assert.Equal(t, "source1", body.Sources[0].ID)
	assert.True(t, body.Sources[0].Available)
}

func TestSearchEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, duneAdapter(), &stubAdapter{
		id:  "source2",
		err: apperrors.NewProviderUnavailableError("source2", "down"),
	})

	var result aggregate.SearchResult
	status := getJSON(t, ts.URL+"/api/search?q=dune", &result)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, result.TotalItems)
	require.Len(t, result.Sources, 2)
	assert.Empty(t, result.Sources[0].Error)
	assert.NotEmpty(t, result.Sources[1].Error)
	assert.False(t, result.Sources[0].Items[0].IsImported)
}

func TestSearchEndpointValidation(t *testing.T) {
	ts, _ := newTestServer(t, duneAdapter())

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/search?q=", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/search?q=dune&sources=missing", nil))
}

func TestSearchSingleSourceEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, duneAdapter(), &stubAdapter{id: "source2"})

	var result aggregate.SearchResult
	status := getJSON(t, ts.URL+"/api/search/source1?q=dune", &result)

	assert.Equal(t, http.StatusOK, status)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "source1", result.Sources[0].Source)
}

func TestDetailsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, duneAdapter())

	var record source.Record
	status := getJSON(t, ts.URL+"/api/details/source1/X1", &record)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Dune", record.Title)
	assert.False(t, record.IsImported)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/details/source1/missing", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/details/nope/X1", nil))
}

func TestImportFlow(t *testing.T) {
	ts, _ := newTestServer(t, duneAdapter())

	var first importer.Result
	status := postJSON(t, ts.URL+"/api/import", map[string]string{
		"source": "source1", "external_id": "X1",
	}, &first)
	assert.Equal(t, http.StatusOK, status)
	require.True(t, first.Success)
	require.NotEmpty(t, first.LocalBookID)

	// Repeat import is idempotent.
	var second importer.Result
	postJSON(t, ts.URL+"/api/import", map[string]string{
		"source": "source1", "external_id": "X1",
	}, &second)
	assert.True(t, second.Success)
	assert.Equal(t, first.LocalBookID, second.LocalBookID)
	assert.Equal(t, "already imported", second.Message)

	// Search now reports the record as imported.
	var result aggregate.SearchResult
	getJSON(t, ts.URL+"/api/search?q=dune", &result)
	require.Len(t, result.Sources[0].Items, 1)
	assert.True(t, result.Sources[0].Items[0].IsImported)
	assert.Equal(t, first.LocalBookID, result.Sources[0].Items[0].ImportedBookID)

	// So do the details.
	var record source.Record
	getJSON(t, ts.URL+"/api/details/source1/X1", &record)
	assert.True(t, record.IsImported)
}

func TestImportBulkEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, duneAdapter())

	var bulk importer.BulkResult
	status := postJSON(t, ts.URL+"/api/import/bulk", map[string]any{
		"items": []map[string]string{
			{"source": "source1", "external_id": "X1"},
			{"source": "source1", "external_id": "missing"},
		},
	}, &bulk)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, bulk.Total)
	assert.Equal(t, 1, bulk.Successful)
	assert.Equal(t, 1, bulk.Failed)
	assert.True(t, bulk.Results[0].Success)
	assert.False(t, bulk.Results[1].Success)
}

func TestImportBadRequest(t *testing.T) {
	ts, _ := newTestServer(t, duneAdapter())

	resp, err := http.Post(ts.URL+"/api/import", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status := postJSON(t, ts.URL+"/api/import/bulk", map[string]any{"items": []any{}}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCachedEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, duneAdapter())

	var imported importer.Result
	postJSON(t, ts.URL+"/api/import", map[string]string{
		"source": "source1", "external_id": "X1",
	}, &imported)
	require.True(t, imported.Success)

	var list struct {
		Books []library.Book `json:"books"`
		Total int            `json:"total"`
	}
	status := getJSON(t, ts.URL+"/api/cached", &list)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Books, 1)
	assert.Equal(t, "Dune", list.Books[0].Title)

	var book library.Book
	status = getJSON(t, ts.URL+"/api/cached/"+imported.LocalBookID, &book)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Dune", book.Title)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/cached/"+imported.LocalBookID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/cached/"+imported.LocalBookID, nil))

	// The import link is gone too, so a re-import creates a fresh book.
	var again importer.Result
	postJSON(t, ts.URL+"/api/import", map[string]string{
		"source": "source1", "external_id": "X1",
	}, &again)
	assert.True(t, again.Success)
	assert.NotEqual(t, imported.LocalBookID, again.LocalBookID)
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, duneAdapter())
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", nil))
}
