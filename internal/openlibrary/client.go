// Package openlibrary implements the source.Adapter contract on top of the
// Open Library search and works APIs.
package openlibrary

import (
	"net/http"
	"strings"
	"time"

	"bookdex/internal/ratelimit"
	"bookdex/internal/source"
)

const (
	defaultBaseURL  = "https://openlibrary.org"
	coversBaseURL   = "https://covers.openlibrary.org"
	defaultAttempts = 3
	// Open Library asks clients to stay under one request per second
	defaultRatePerSecond = 1
	maxResultsLimit      = 100
	defaultLimit         = 10
	// maxSubjects caps the provider's often enormous subject lists
	maxSubjects = 5
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is an Open Library API client implementing source.Adapter.
// Open Library requires no API key.
type Client struct {
	baseURL       string
	httpClient    HTTPDoer
	rateLimiter   *ratelimit.Limiter
	retryAttempts int
}

// NewClient creates a new Open Library API client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		rateLimiter:   ratelimit.New("OpenLibrary", defaultRatePerSecond),
		retryAttempts: defaultAttempts,
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

// WithBaseURL sets a custom base URL for the Open Library API.
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

// Descriptor returns static metadata for the Open Library source.
func (c *Client) Descriptor() source.Descriptor {
	return source.Descriptor{
		ID:           source.OpenLibrary,
		DisplayName:  "Open Library",
		Description:  "Free, editable library catalog from the Internet Archive",
		Capabilities: []string{"search", "details", "isbn-lookup", "thumbnails"},
		RateLimit:    "1 request/second recommended",
		HasAPIKey:    false,
	}
}
