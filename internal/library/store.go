// Package library is the local book storage the import pipeline writes to.
package library

import (
	"context"
	"time"
)

// Book is a locally stored book created from an external record.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Authors       []string  `json:"authors"`
	Description   string    `json:"description,omitempty"`
	ISBN10        string    `json:"isbn_10,omitempty"`
	ISBN13        string    `json:"isbn_13,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	PublishedDate string    `json:"published_date,omitempty"`
	PublishedYear int       `json:"published_year,omitempty"`
	PageCount     int       `json:"page_count,omitempty"`
	Language      string    `json:"language,omitempty"`
	Categories    []string  `json:"categories,omitempty"`
	CoverURL      string    `json:"cover_url,omitempty"`
	CoverPath     string    `json:"cover_path,omitempty"`
	Source        string    `json:"source,omitempty"`
	ExternalID    string    `json:"external_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store is the local library storage consumed by the import and search
// pipelines. Implementations must make LinkImport atomic per
// (source, externalID): two racing links for the same key must converge on
// one book id.
type Store interface {
	// Connect opens the underlying storage and creates missing tables
	Connect() error

	// FindImportLink returns the local book id linked to (source,
	// externalID), if any
	FindImportLink(ctx context.Context, source, externalID string) (string, bool, error)

	// FindImportLinks is the batched form used to annotate search results;
	// the returned map is keyed by external id
	FindImportLinks(ctx context.Context, source string, externalIDs []string) (map[string]string, error)

	// CreateBook persists a new book and fills in its id
	CreateBook(ctx context.Context, book *Book) error

	// LinkImport records (source, externalID) -> bookID. When another link
	// for the key already exists the stored id is returned with
	// created=false and nothing is written (insert-if-absent).
	LinkImport(ctx context.Context, source, externalID, bookID string) (linkedID string, created bool, err error)

	// DeleteBook removes a book and any import link pointing at it
	DeleteBook(ctx context.Context, bookID string) error

	// GetBook fetches one book by local id
	GetBook(ctx context.Context, bookID string) (*Book, bool, error)

	// ListImported pages through imported books, optionally filtered by
	// source, newest first. Returns the page and the unfiltered total.
	ListImported(ctx context.Context, source string, limit, offset int) ([]Book, int, error)

	// Close closes the underlying storage
	Close() error
}
