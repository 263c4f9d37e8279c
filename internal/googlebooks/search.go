package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "bookdex/internal/errors"
	"bookdex/internal/source"
)

// Search queries the volumes API and maps each hit into the unified model.
// Malformed individual items are skipped with a logged warning.
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
	if offset < 0 {
		offset = 0
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("startIndex", strconv.Itoa(offset))
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	if c.languageRestrict != "" {
		params.Set("langRestrict", c.languageRestrict)
	}
	if c.orderBy != "" {
		params.Set("orderBy", c.orderBy)
	}
	if c.printType != "" {
		params.Set("printType", c.printType)
	}

	endpoint := fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode())

	var response volumesResponse
	if err := c.getJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	records := make([]source.Record, 0, len(response.Items))
	for _, item := range response.Items {
		record, ok := mapVolume(item)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// GetDetail fetches one volume by id.
func (c *Client) GetDetail(ctx context.Context, externalID string) (*source.Record, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperrors.NewNotFoundError(source.GoogleBooks, externalID)
	}

	endpoint := fmt.Sprintf("%s/volumes/%s", c.baseURL, url.PathEscape(externalID))
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	var item volume
	if err := c.getJSON(ctx, endpoint, &item); err != nil {
		return nil, err
	}

	record, ok := mapVolume(item)
	if !ok {
		return nil, apperrors.NewProviderUnavailableError(source.GoogleBooks, "volume response missing required fields")
	}
	return &record, nil
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
		return apperrors.NewProviderUnavailableError(source.GoogleBooks, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewRateLimitError(source.GoogleBooks, "quota exceeded, try again later")
	case resp.StatusCode == http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.NewInvalidQueryError("provider rejected query: " + strings.TrimSpace(string(body)))
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(source.GoogleBooks, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apperrors.NewProviderUnavailableError(source.GoogleBooks,
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return apperrors.NewProviderUnavailableError(source.GoogleBooks, "failed to decode response: "+err.Error())
	}
	return nil
}

func isRetryable(err error) bool {
	var unavailable *apperrors.ProviderUnavailableError
	if !errors.As(err, &unavailable) {
		return false
	}
	// Network-level failures are worth one more try; HTTP status failures
	// are not.
	return strings.Contains(unavailable.Message, "connection") ||
		strings.Contains(unavailable.Message, "Timeout") ||
		strings.Contains(unavailable.Message, "timeout")
}

func backoffDelay(attempt int) time.Duration {
	// exponential backoff capped at 10 seconds
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	if delay > 10*time.Second {
		return 10 * time.Second
	}
	return delay
}
