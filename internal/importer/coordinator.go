// Package importer performs idempotent imports of external book records into
// the local library. Importing the same (source, external id) twice yields
// one local book, whether the calls are sequential or concurrent.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	apperrors "bookdex/internal/errors"
	"bookdex/internal/library"
	"bookdex/internal/source"
)

// Error kinds reported on failed import results.
const (
	ErrKindUnknownSource  = "unknown_source"
	ErrKindNotFound       = "not_found"
	ErrKindImportFailed   = "import_failed"
	ErrKindStorageFailure = "storage_failure"
)

// Overrides lets the caller replace mapped metadata field-by-field before
// the book is persisted. Zero-valued fields keep the provider's value.
type Overrides struct {
	Title       string   `json:"title,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Description string   `json:"description,omitempty"`
	Language    string   `json:"language,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

// Result is the outcome of one import attempt.
type Result struct {
	Source      string `json:"source"`
	ExternalID  string `json:"external_id"`
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	LocalBookID string `json:"local_book_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BulkItem identifies one record in a bulk import request.
type BulkItem struct {
	Source     string     `json:"source"`
	ExternalID string     `json:"external_id"`
	Overrides  *Overrides `json:"overrides,omitempty"`
}

// BulkResult summarizes a bulk import. Results preserve input order.
type BulkResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// Store is the slice of the library store the coordinator needs.
// *library.SQLiteStore satisfies it.
type Store interface {
	FindImportLink(ctx context.Context, source, externalID string) (string, bool, error)
	CreateBook(ctx context.Context, book *library.Book) error
	LinkImport(ctx context.Context, source, externalID, bookID string) (string, bool, error)
	DeleteBook(ctx context.Context, bookID string) error
}

// CoverFetcher stores a local copy of a record's cover image and returns its
// path. Fetch failures only cost the cover, never the import.
type CoverFetcher interface {
	Fetch(ctx context.Context, url, bookID string) (string, error)
}

// Coordinator resolves adapters by source tag, fetches detail, and performs
// the create-or-link operation against the local store. A per-key mutex
// serializes concurrent imports of the same record; the store's insert-if-
// absent link operation backs that up across processes.
type Coordinator struct {
	registry *source.Registry
	store    Store
	covers   CoverFetcher

	mu    sync.Mutex
	locks map[source.Key]*sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCoverFetcher enables local cover downloads during import.
func WithCoverFetcher(covers CoverFetcher) Option {
	return func(c *Coordinator) {
		c.covers = covers
	}
}

// NewCoordinator creates an import coordinator.
func NewCoordinator(registry *source.Registry, store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		store:    store,
		locks:    make(map[source.Key]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImportOne imports a single external record. Repeated calls for the same
// key are safe and report the same local book id. Failures are returned in
// the result, not as an error.
func (c *Coordinator) ImportOne(ctx context.Context, sourceID, externalID string, overrides *Overrides) Result {
	sourceID = strings.TrimSpace(sourceID)
	externalID = strings.TrimSpace(externalID)
	result := Result{Source: sourceID, ExternalID: externalID}

	if sourceID == "" || externalID == "" {
		result.Error = ErrKindImportFailed
		result.Message = "source and external id are required"
		return result
	}

	unlock := c.lockKey(source.Key{Source: sourceID, ExternalID: externalID})
	defer unlock()

	if bookID, found, err := c.store.FindImportLink(ctx, sourceID, externalID); err != nil {
		result.Error = ErrKindStorageFailure
		result.Message = fmt.Sprintf("failed to check import status: %v", err)
		return result
	} else if found {
		result.Success = true
		result.LocalBookID = bookID
		result.Message = "already imported"
		return result
	}

	adapter, err := c.registry.Resolve(sourceID)
	if err != nil {
		result.Error = ErrKindUnknownSource
		result.Message = err.Error()
		return result
	}

	record, err := adapter.GetDetail(ctx, externalID)
	if err != nil {
		c.registry.RecordOutcome(sourceID, false)
		if apperrors.IsNotFound(err) {
			result.Error = ErrKindNotFound
		} else {
			result.Error = ErrKindImportFailed
		}
		result.Message = fmt.Sprintf("failed to fetch detail: %v", err)
		return result
	}
	c.registry.RecordOutcome(sourceID, true)

	book := mapRecord(record, overrides)
	c.fetchCover(ctx, book)
	if err := c.store.CreateBook(ctx, book); err != nil {
		result.Error = ErrKindStorageFailure
		result.Message = fmt.Sprintf("failed to save book: %v", err)
		return result
	}

	linkedID, created, err := c.store.LinkImport(ctx, sourceID, externalID, book.ID)
	if err != nil {
		// No link was recorded, so remove the orphaned book.
		if delErr := c.store.DeleteBook(ctx, book.ID); delErr != nil {
			slog.Warn("failed to clean up orphaned book", "book_id", book.ID, "error", delErr)
		}
		result.Error = ErrKindStorageFailure
		result.Message = fmt.Sprintf("failed to record import link: %v", err)
		return result
	}
	if !created {
		// Another writer linked this key first; keep its book.
		if delErr := c.store.DeleteBook(ctx, book.ID); delErr != nil {
			slog.Warn("failed to clean up duplicate book", "book_id", book.ID, "error", delErr)
		}
		result.Success = true
		result.LocalBookID = linkedID
		result.Message = "already imported"
		return result
	}

	slog.Info("imported book",
		"source", sourceID,
		"external_id", externalID,
		"book_id", book.ID,
		"title", book.Title)

	result.Success = true
	result.LocalBookID = book.ID
	result.Message = "imported"
	return result
}

// ImportBulk imports each item independently. One item's failure does not
// abort the batch; results preserve input order.
func (c *Coordinator) ImportBulk(ctx context.Context, items []BulkItem) BulkResult {
	bulk := BulkResult{
		Total:   len(items),
		Results: make([]Result, 0, len(items)),
	}
	for _, item := range items {
		result := c.ImportOne(ctx, item.Source, item.ExternalID, item.Overrides)
		if result.Success {
			bulk.Successful++
		} else {
			bulk.Failed++
		}
		bulk.Results = append(bulk.Results, result)
	}
	return bulk
}

// lockKey serializes imports of one (source, external id) pair in-process.
func (c *Coordinator) lockKey(key source.Key) func() {
	c.mu.Lock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// fetchCover runs before the book is persisted so the stored row carries the
// local path. Covers are keyed by (source, external id), which is stable
// across re-imports.
func (c *Coordinator) fetchCover(ctx context.Context, book *library.Book) {
	if c.covers == nil || book.CoverURL == "" {
		return
	}
	key := book.Source + "-" + book.ExternalID
	path, err := c.covers.Fetch(ctx, book.CoverURL, key)
	if err != nil {
		slog.Warn("cover download failed", "source", book.Source, "external_id", book.ExternalID, "error", err)
		return
	}
	book.CoverPath = path
}

// mapRecord converts a unified record to the local book schema, applying
// overrides field-by-field. Provider-only fields (ratings, preview links)
// are dropped.
func mapRecord(record *source.Record, overrides *Overrides) *library.Book {
	book := &library.Book{
		Title:         record.Title,
		Authors:       record.Authors,
		Description:   record.Description,
		ISBN10:        record.ISBN10,
		ISBN13:        record.ISBN13,
		Publisher:     record.Publisher,
		PublishedDate: record.PublishedDate,
		PublishedYear: publishedYear(record.PublishedDate),
		PageCount:     record.PageCount,
		Language:      record.Language,
		Categories:    record.Categories,
		CoverURL:      record.ThumbnailURL,
		Source:        record.Source,
		ExternalID:    record.ExternalID,
	}

	if overrides != nil {
		if overrides.Title != "" {
			book.Title = overrides.Title
		}
		if len(overrides.Authors) > 0 {
			book.Authors = overrides.Authors
		}
		if overrides.Description != "" {
			book.Description = overrides.Description
		}
		if overrides.Language != "" {
			book.Language = overrides.Language
		}
		if len(overrides.Categories) > 0 {
			book.Categories = overrides.Categories
		}
	}
	return book
}

// publishedYear extracts the leading four-digit year from a provider date
// string, which may be "2006", "2006-01" or "2006-01-02".
func publishedYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, r := range date[:4] {
		if !unicode.IsDigit(r) {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}
