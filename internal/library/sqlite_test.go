package library

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, store.Connect())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleBook() *Book {
	return &Book{
		Title:         "The Left Hand of Darkness",
		Authors:       []string{"Ursula K. Le Guin"},
		ISBN13:        "9780441478125",
		Publisher:     "Ace",
		PublishedDate: "1969-06-01",
		PublishedYear: 1969,
		PageCount:     304,
		Language:      "en",
		Categories:    []string{"Fiction", "Science Fiction"},
		Source:        "google_books",
		ExternalID:    "vol-123",
	}
}

func TestCreateAndGetBook(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	book := sampleBook()
	require.NoError(t, store.CreateBook(ctx, book))
	require.NotEmpty(t, book.ID)

	got, found, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, []string{"Ursula K. Le Guin"}, got.Authors)
	assert.Equal(t, []string{"Fiction", "Science Fiction"}, got.Categories)
	assert.Equal(t, 1969, got.PublishedYear)
}

func TestGetBookNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, found, err := store.GetBook(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLinkImportFirstWriterWins(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	linked, created, err := store.LinkImport(ctx, "google_books", "vol-1", "book-a")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "book-a", linked)

	// Second writer for the same key keeps the stored id.
	linked, created, err = store.LinkImport(ctx, "google_books", "vol-1", "book-b")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "book-a", linked)

	// Different key is independent.
	linked, created, err = store.LinkImport(ctx, "open_library", "vol-1", "book-b")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "book-b", linked)
}

func TestLinkImportConcurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	const writers = 8
	results := make([]string, writers)
	createdCount := make([]bool, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			linked, created, err := store.LinkImport(ctx, "google_books", "race", string(rune('a'+i)))
			require.NoError(t, err)
			results[i] = linked
			createdCount[i] = created
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < writers; i++ {
		assert.Equal(t, results[0], results[i], "all writers should converge on one book id")
		if createdCount[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestFindImportLinks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _, err := store.LinkImport(ctx, "google_books", "vol-1", "book-1")
	require.NoError(t, err)
	_, _, err = store.LinkImport(ctx, "google_books", "vol-2", "book-2")
	require.NoError(t, err)
	_, _, err = store.LinkImport(ctx, "open_library", "vol-3", "book-3")
	require.NoError(t, err)

	links, err := store.FindImportLinks(ctx, "google_books", []string{"vol-1", "vol-2", "vol-3", "vol-missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"vol-1": "book-1", "vol-2": "book-2"}, links)

	links, err = store.FindImportLinks(ctx, "google_books", nil)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestDeleteBookRemovesLink(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	book := sampleBook()
	require.NoError(t, store.CreateBook(ctx, book))
	_, _, err := store.LinkImport(ctx, book.Source, book.ExternalID, book.ID)
	require.NoError(t, err)

	require.NoError(t, store.DeleteBook(ctx, book.ID))

	_, found, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.FindImportLink(ctx, book.Source, book.ExternalID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListImported(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i, title := range []string{"First", "Second", "Third"} {
		book := sampleBook()
		book.Title = title
		book.ExternalID = string(rune('a' + i))
		if i == 2 {
			book.Source = "open_library"
		}
		require.NoError(t, store.CreateBook(ctx, book))
	}

	books, total, err := store.ListImported(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, books, 3)

	books, total, err = store.ListImported(ctx, "open_library", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, books, 1)
	assert.Equal(t, "Third", books[0].Title)

	books, total, err = store.ListImported(ctx, "", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, books, 1)
}
