package googlebooks

import (
	"log/slog"
	"strings"

	"bookdex/internal/source"
)

// mapVolume converts one volumes API item into the unified record.
// Items missing an id or title are dropped (lenient parsing); the second
// return value reports whether the item was usable.
func mapVolume(item volume) (source.Record, bool) {
	info := item.VolumeInfo

	if item.ID == "" || info.Title == "" {
		slog.Warn("Skipping Google Books item missing required fields",
			"id", item.ID, "title", info.Title)
		return source.Record{}, false
	}

	var isbn10, isbn13 string
	for _, identifier := range info.IndustryIdentifiers {
		switch identifier.Type {
		case "ISBN_10":
			isbn10 = source.NormalizeISBN(identifier.Identifier)
		case "ISBN_13":
			isbn13 = source.NormalizeISBN(identifier.Identifier)
		}
	}

	title := info.Title
	if info.Subtitle != "" {
		title = info.Title + ": " + info.Subtitle
	}

	return source.Record{
		ExternalID:     item.ID,
		Source:         source.GoogleBooks,
		Title:          title,
		Authors:        info.Authors,
		Description:    info.Description,
		ISBN10:         isbn10,
		ISBN13:         isbn13,
		Publisher:      info.Publisher,
		PublishedDate:  info.PublishedDate,
		PageCount:      info.PageCount,
		Categories:     info.Categories,
		Language:       info.Language,
		ThumbnailURL:   bestThumbnail(info.ImageLinks),
		PreviewLink:    info.PreviewLink,
		InfoLink:       info.InfoLink,
		AverageRating:  info.AverageRating,
		RatingsCount:   info.RatingsCount,
		MaturityRating: info.MaturityRating,
	}, true
}

// bestThumbnail picks the best available image link and upgrades plain HTTP
// links to HTTPS (Google still serves http:// thumbnail URLs).
func bestThumbnail(links imageLinks) string {
	thumbnail := links.Thumbnail
	if thumbnail == "" {
		thumbnail = links.SmallThumbnail
	}
	if thumbnail == "" {
		thumbnail = links.Medium
	}
	if thumbnail == "" {
		thumbnail = links.Large
	}
	if strings.HasPrefix(thumbnail, "http://") {
		thumbnail = "https://" + strings.TrimPrefix(thumbnail, "http://")
	}
	return thumbnail
}
