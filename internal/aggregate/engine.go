// Package aggregate fans a single search query out to every selected book
// source concurrently and merges the per-source results into one response.
// One slow or failing provider never fails the whole search; its outcome is
// recorded as a per-source error annotation instead.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "bookdex/internal/errors"
	"bookdex/internal/source"
)

const (
	// DefaultDeadline bounds each per-source search call.
	DefaultDeadline = 10 * time.Second

	// DefaultLimit is the per-source result count when the caller does not
	// ask for one.
	DefaultLimit = 10
)

// SourceResult holds one source's slice of an aggregated search.
type SourceResult struct {
	Source    string          `json:"source"`
	Items     []source.Record `json:"items"`
	ElapsedMs int64           `json:"elapsed_ms"`
	Error     string          `json:"error,omitempty"`
}

// SearchResult is the merged response to one logical multi-source query.
// Sources preserves registration order; items within a source preserve the
// provider's own ranking.
type SearchResult struct {
	Query          string         `json:"query"`
	Sources        []SourceResult `json:"sources"`
	TotalItems     int            `json:"total_items"`
	TotalElapsedMs int64          `json:"total_elapsed_ms"`
}

// ImportLookup resolves which external records have already been imported.
// *library.SQLiteStore satisfies it.
type ImportLookup interface {
	FindImportLinks(ctx context.Context, source string, externalIDs []string) (map[string]string, error)
}

// Engine coordinates concurrent fan-out over a source registry and annotates
// merged results against the local library.
type Engine struct {
	registry *source.Registry
	store    ImportLookup
	deadline time.Duration
}

// NewEngine creates an aggregation engine. The store may be nil, in which
// case import-status annotation is skipped.
func NewEngine(registry *source.Registry, store ImportLookup, deadline time.Duration) *Engine {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Engine{
		registry: registry,
		store:    store,
		deadline: deadline,
	}
}

// SearchAll queries the selected sources in parallel and merges their
// results. If sourceIDs is empty every registered source is queried,
// including sources currently flagged unavailable; the health flag is
// advisory and a flagged source may have recovered.
//
// Only precondition violations fail the call: an empty query or an unknown
// source id. Provider failures and timeouts land in the per-source Error
// field.
func (e *Engine) SearchAll(ctx context.Context, query string, sourceIDs []string, limit int, deadline time.Duration) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewInvalidQueryError("search query must not be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if deadline <= 0 {
		deadline = e.deadline
	}

	if len(sourceIDs) == 0 {
		sourceIDs = e.registry.IDs()
	}

	adapters := make([]source.Adapter, len(sourceIDs))
	for i, id := range sourceIDs {
		adapter, err := e.registry.Resolve(id)
		if err != nil {
			return nil, err
		}
		adapters[i] = adapter
	}

	start := time.Now()
	results := make([]SourceResult, len(adapters))

	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func(i int, adapter source.Adapter) {
			defer wg.Done()
			results[i] = e.searchOne(ctx, adapter, query, limit, deadline)
		}(i, adapter)
	}
	wg.Wait()

	result := &SearchResult{
		Query:          query,
		Sources:        results,
		TotalElapsedMs: time.Since(start).Milliseconds(),
	}
	for i := range result.Sources {
		e.annotateImports(ctx, &result.Sources[i])
		result.TotalItems += len(result.Sources[i].Items)
	}

	slog.Debug("aggregated search complete",
		"query", query,
		"sources", len(result.Sources),
		"total_items", result.TotalItems,
		"elapsed_ms", result.TotalElapsedMs)

	return result, nil
}

// searchOne runs a single source's search under its own deadline and
// captures the outcome into a result slot.
func (e *Engine) searchOne(ctx context.Context, adapter source.Adapter, query string, limit int, deadline time.Duration) SourceResult {
	id := adapter.Descriptor().ID

	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	items, err := adapter.Search(callCtx, query, limit, 0)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			err = apperrors.NewTimeoutError(id)
		}
		e.registry.RecordOutcome(id, false)
		label := errorLabel(err)
		slog.Warn("source search failed",
			"source", id,
			"error", err,
			"elapsed_ms", elapsed)
		return SourceResult{Source: id, Items: []source.Record{}, ElapsedMs: elapsed, Error: label}
	}

	e.registry.RecordOutcome(id, true)
	return SourceResult{Source: id, Items: dedupeRecords(items), ElapsedMs: elapsed}
}

// dedupeRecords drops same-source duplicates by external id, keeping the
// first occurrence so provider ranking is preserved. Records from different
// sources are never merged even when they share an ISBN; each copy carries
// the source-specific identifier needed for import.
func dedupeRecords(items []source.Record) []source.Record {
	deduped := make([]source.Record, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ExternalID]; ok {
			continue
		}
		seen[item.ExternalID] = struct{}{}
		deduped = append(deduped, item)
	}
	return deduped
}

// annotateImports fills IsImported/ImportedBookID with one batched lookup
// per source. Lookup failures degrade to unannotated results rather than
// failing the search.
func (e *Engine) annotateImports(ctx context.Context, sr *SourceResult) {
	if e.store == nil || len(sr.Items) == 0 {
		return
	}

	ids := make([]string, len(sr.Items))
	for i, item := range sr.Items {
		ids[i] = item.ExternalID
	}

	links, err := e.store.FindImportLinks(ctx, sr.Source, ids)
	if err != nil {
		slog.Warn("import status lookup failed", "source", sr.Source, "error", err)
		return
	}

	for i := range sr.Items {
		if bookID, ok := links[sr.Items[i].ExternalID]; ok {
			sr.Items[i].IsImported = true
			sr.Items[i].ImportedBookID = bookID
		}
	}
}

// errorLabel converts a per-source failure into the short annotation stored
// on the aggregated result.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || apperrors.IsTimeout(err):
		return "timeout"
	case apperrors.IsRateLimitError(err):
		return "rate limited"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return err.Error()
	}
}

// Sources lists every registered source's descriptor with its current
// availability flag, in registration order.
func (e *Engine) Sources() []source.Descriptor {
	return e.registry.List()
}
