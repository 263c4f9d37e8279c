// Package source defines the unified book record model, the adapter contract
// each external catalog implements, and the registry that tracks configured
// sources and their health.
package source

import (
	"context"
	"strings"
)

// Source ids for the configured external catalogs.
const (
	GoogleBooks = "google_books"
	OpenLibrary = "open_library"
)

// Record is the unified representation of a book as returned by any source.
// (Source, ExternalID) is its identity key; ExternalID is unique only within
// its source.
type Record struct {
	ExternalID     string   `json:"external_id"`
	Source         string   `json:"source"`
	Title          string   `json:"title"`
	Authors        []string `json:"authors"`
	Description    string   `json:"description,omitempty"`
	ISBN10         string   `json:"isbn_10,omitempty"`
	ISBN13         string   `json:"isbn_13,omitempty"`
	Publisher      string   `json:"publisher,omitempty"`
	PublishedDate  string   `json:"published_date,omitempty"`
	PageCount      int      `json:"page_count,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	Language       string   `json:"language,omitempty"`
	ThumbnailURL   string   `json:"thumbnail_url,omitempty"`
	PreviewLink    string   `json:"preview_link,omitempty"`
	InfoLink       string   `json:"info_link,omitempty"`
	AverageRating  float64  `json:"average_rating,omitempty"`
	RatingsCount   int      `json:"ratings_count,omitempty"`
	MaturityRating string   `json:"maturity_rating,omitempty"`

	// Populated at query time against the local library
	IsImported     bool   `json:"is_imported"`
	ImportedBookID string `json:"imported_book_id,omitempty"`
}

// Key identifies a record across the system.
type Key struct {
	Source     string `json:"source"`
	ExternalID string `json:"external_id"`
}

// Key returns the identity key for this record.
func (r Record) Key() Key {
	return Key{Source: r.Source, ExternalID: r.ExternalID}
}

// Descriptor holds static and dynamic metadata about a configured source.
type Descriptor struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	RateLimit    string   `json:"rate_limit"`
	HasAPIKey    bool     `json:"has_api_key"`
	Available    bool     `json:"is_available"`
}

// Adapter translates one provider-specific HTTP API into the unified model.
// Implementations issue outbound HTTP requests and mutate no local state.
type Adapter interface {
	// Descriptor returns static metadata for this source. The Available
	// flag is filled in by the registry.
	Descriptor() Descriptor

	// Search runs a provider search. The query must be non-empty after
	// trimming; limit is clamped to the provider maximum. Individual
	// malformed items are skipped, not fatal.
	Search(ctx context.Context, query string, limit, offset int) ([]Record, error)

	// GetDetail fetches the full record for one external id.
	GetDetail(ctx context.Context, externalID string) (*Record, error)
}

// NormalizeISBN canonicalizes an ISBN to digits (and a trailing X for
// ISBN-10 check digits), dropping hyphens and spaces.
func NormalizeISBN(isbn string) string {
	var b strings.Builder
	b.Grow(len(isbn))
	for _, r := range isbn {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		}
	}
	return b.String()
}
