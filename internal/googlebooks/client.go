// Package googlebooks implements the source.Adapter contract on top of the
// Google Books volumes API.
package googlebooks

import (
	"net/http"
	"strings"
	"time"

	"bookdex/internal/ratelimit"
	"bookdex/internal/source"
)

const (
	defaultBaseURL       = "https://www.googleapis.com/books/v1"
	defaultMaxAttempts   = 3
	defaultRatePerSecond = 2
	// maxResultsLimit is the documented maxResults cap of the volumes API
	maxResultsLimit = 40
	defaultLimit    = 10
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a Google Books API client implementing source.Adapter.
type Client struct {
	apiKey        string
	baseURL       string
	httpClient    HTTPDoer
	rateLimiter   *ratelimit.Limiter
	retryAttempts int

	// optional search passthrough filters
	languageRestrict string
	orderBy          string
	printType        string
}

// NewClient creates a new Google Books API client. The API key is optional;
// keyless clients share a much smaller quota.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:        apiKey,
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		rateLimiter:   ratelimit.New("GoogleBooks", defaultRatePerSecond),
		retryAttempts: defaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL sets a custom base URL for the volumes API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRetryAttempts sets the number of retry attempts for failed requests.
func WithRetryAttempts(attempts int) Option {
	return func(client *Client) {
		if attempts > 0 {
			client.retryAttempts = attempts
		}
	}
}

// WithRateLimiter sets a custom rate limiter for the client.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		if limiter != nil {
			client.rateLimiter = limiter
		}
	}
}

// WithLanguageRestrict limits search results to a language (ISO-639-1).
func WithLanguageRestrict(lang string) Option {
	return func(client *Client) {
		client.languageRestrict = lang
	}
}

// WithOrderBy sets the volumes API result ordering (relevance, newest).
func WithOrderBy(order string) Option {
	return func(client *Client) {
		client.orderBy = order
	}
}

// WithPrintType filters search results by print type (all, books, magazines).
func WithPrintType(printType string) Option {
	return func(client *Client) {
		client.printType = printType
	}
}

// Descriptor returns static metadata for the Google Books source.
func (c *Client) Descriptor() source.Descriptor {
	return source.Descriptor{
		ID:           source.GoogleBooks,
		DisplayName:  "Google Books",
		Description:  "Search millions of books from Google's index",
		Capabilities: []string{"search", "details", "isbn-lookup", "preview", "thumbnails"},
		RateLimit:    "1000 requests/day without an API key",
		HasAPIKey:    c.apiKey != "",
	}
}
