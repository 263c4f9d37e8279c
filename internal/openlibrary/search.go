package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "bookdex/internal/errors"
	"bookdex/internal/source"
)

// Search queries /search.json and maps each doc into the unified model.
// Open Library paginates by page number, so the offset is converted.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) ([]source.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewInvalidQueryError("query must not be empty")
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxResultsLimit {
		limit = maxResultsLimit
	}
	page := 1
	if offset > 0 {
		page = offset/limit + 1
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(page))

	endpoint := fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode())

	var response searchResponse
	if err := c.getJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	records := make([]source.Record, 0, len(response.Docs))
	for _, doc := range response.Docs {
		record, ok := mapSearchDoc(doc)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// GetDetail fetches one work by its key (e.g. "OL45883W") and resolves
// author names through the authors endpoint. Failing author lookups degrade
// to a shorter author list instead of failing the call.
func (c *Client) GetDetail(ctx context.Context, externalID string) (*source.Record, error) {
	externalID = strings.TrimSpace(strings.TrimPrefix(externalID, "/works/"))
	if externalID == "" {
		return nil, apperrors.NewNotFoundError(source.OpenLibrary, externalID)
	}

	endpoint := fmt.Sprintf("%s/works/%s.json", c.baseURL, url.PathEscape(externalID))

	var work workResponse
	if err := c.getJSON(ctx, endpoint, &work); err != nil {
		return nil, err
	}
	if work.Title == "" {
		return nil, apperrors.NewNotFoundError(source.OpenLibrary, externalID)
	}

	record := mapWork(externalID, work)
	record.Authors = c.resolveAuthors(ctx, work.Authors)
	return &record, nil
}

// resolveAuthors fetches author names for the work's author references.
func (c *Client) resolveAuthors(ctx context.Context, refs []workAuthorRef) []string {
	var names []string
	for _, ref := range refs {
		key := strings.TrimPrefix(ref.Author.Key, "/")
		if key == "" {
			continue
		}

		var author authorResponse
		endpoint := fmt.Sprintf("%s/%s.json", c.baseURL, key)
		if err := c.getJSON(ctx, endpoint, &author); err != nil {
			slog.Warn("Failed to resolve Open Library author", "key", key, "error", err)
			continue
		}
		if author.Name != "" {
			names = append(names, author.Name)
		}
	}
	return names
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if err := c.doJSONRequest(ctx, endpoint, target); err != nil {
			lastErr = err
			if !isRetryable(err) || attempt == c.retryAttempts {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
			continue
		}
		return nil
	}
	return lastErr
}

func (c *Client) doJSONRequest(ctx context.Context, endpoint string, target any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.NewProviderUnavailableError(source.OpenLibrary, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewRateLimitError(source.OpenLibrary, "throttled, slow down")
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(source.OpenLibrary, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apperrors.NewProviderUnavailableError(source.OpenLibrary,
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return apperrors.NewProviderUnavailableError(source.OpenLibrary, "failed to decode response: "+err.Error())
	}
	return nil
}

func isRetryable(err error) bool {
	var unavailable *apperrors.ProviderUnavailableError
	if !errors.As(err, &unavailable) {
		return false
	}
	return strings.Contains(unavailable.Message, "connection") ||
		strings.Contains(unavailable.Message, "timeout") ||
		strings.Contains(unavailable.Message, "Timeout")
}

func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	if delay > 10*time.Second {
		return 10 * time.Second
	}
	return delay
}
