package fileutil

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

const (
	defaultCoverMaxWidth = 400
	coverHTTPTimeout     = 30 * time.Second
)

// CoverStore downloads book cover images into a local directory, resizing
// them to a bounded width. Covers are keyed by book id, one JPEG per book.
type CoverStore struct {
	dir        string
	maxWidth   int
	httpClient *http.Client
}

// NewCoverStore creates a cover store rooted at dir.
func NewCoverStore(dir string) *CoverStore {
	return &CoverStore{
		dir:      dir,
		maxWidth: defaultCoverMaxWidth,
		httpClient: &http.Client{
			Timeout: coverHTTPTimeout,
		},
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func (s *CoverStore) WithHTTPClient(client *http.Client) *CoverStore {
	s.httpClient = client
	return s
}

// Path returns the local cover path for a book id.
func (s *CoverStore) Path(bookID string) string {
	return filepath.Join(s.dir, SanitizeFilename(bookID)+".jpg")
}

// Fetch downloads and resizes a cover image, returning its local path. An
// already-present cover is reused without a network call.
func (s *CoverStore) Fetch(ctx context.Context, url, bookID string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("no cover url for book %s", bookID)
	}

	savePath := s.Path(bookID)
	if FileExists(savePath) {
		return savePath, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download cover: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d downloading cover from %s", resp.StatusCode, url)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode cover image: %w", err)
	}

	if img.Bounds().Dx() > s.maxWidth {
		img = imaging.Resize(img, s.maxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return "", err
	}

	if err := imaging.Save(img, savePath, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to save cover: %w", err)
	}
	return savePath, nil
}
