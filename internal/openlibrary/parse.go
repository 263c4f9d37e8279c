package openlibrary

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"bookdex/internal/source"
)

// mapSearchDoc converts one search doc into the unified record. Docs missing
// a work key or title are dropped (lenient parsing).
func mapSearchDoc(doc searchDoc) (source.Record, bool) {
	workKey := strings.TrimPrefix(doc.Key, "/works/")
	if workKey == "" || doc.Title == "" {
		slog.Warn("Skipping Open Library doc missing required fields",
			"key", doc.Key, "title", doc.Title)
		return source.Record{}, false
	}

	var isbn10, isbn13 string
	for _, isbn := range doc.ISBN {
		normalized := source.NormalizeISBN(isbn)
		switch {
		case len(normalized) == 10 && isbn10 == "":
			isbn10 = normalized
		case len(normalized) == 13 && isbn13 == "":
			isbn13 = normalized
		}
	}

	var publisher string
	if len(doc.Publisher) > 0 {
		publisher = doc.Publisher[0]
	}

	var language string
	if len(doc.Language) > 0 {
		language = doc.Language[0]
	}

	var publishedDate string
	if doc.FirstPublishYear > 0 {
		publishedDate = strconv.Itoa(doc.FirstPublishYear)
	}

	return source.Record{
		ExternalID:    workKey,
		Source:        source.OpenLibrary,
		Title:         doc.Title,
		Authors:       doc.AuthorName,
		ISBN10:        isbn10,
		ISBN13:        isbn13,
		Publisher:     publisher,
		PublishedDate: publishedDate,
		PageCount:     doc.NumberOfPagesMedian,
		Categories:    truncateSubjects(doc.Subject),
		Language:      language,
		ThumbnailURL:  coverURL(doc.CoverID),
		InfoLink:      infoLink(workKey),
	}, true
}

// mapWork converts a work detail response. Authors are resolved separately.
func mapWork(workKey string, work workResponse) source.Record {
	var coverID int
	if len(work.Covers) > 0 {
		coverID = work.Covers[0]
	}

	return source.Record{
		ExternalID:   workKey,
		Source:       source.OpenLibrary,
		Title:        work.Title,
		Description:  decodeDescription(work.Description),
		Categories:   truncateSubjects(work.Subjects),
		ThumbnailURL: coverURL(coverID),
		InfoLink:     infoLink(workKey),
	}
}

// decodeDescription handles the two shapes Open Library uses: a bare string
// or {"type": ..., "value": ...}.
func decodeDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &typed); err == nil {
		return typed.Value
	}
	return ""
}

func truncateSubjects(subjects []string) []string {
	if len(subjects) > maxSubjects {
		return subjects[:maxSubjects]
	}
	return subjects
}

func coverURL(coverID int) string {
	if coverID <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/b/id/%d-M.jpg", coversBaseURL, coverID)
}

func infoLink(workKey string) string {
	return fmt.Sprintf("https://openlibrary.org/works/%s", workKey)
}
