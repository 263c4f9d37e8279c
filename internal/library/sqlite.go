package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Schemas for the local library database. The import_links primary key is
// the uniqueness guarantee behind idempotent imports.
const booksSchema = `
CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY NOT NULL,
	title TEXT NOT NULL,
	authors TEXT,
	description TEXT,
	isbn_10 TEXT,
	isbn_13 TEXT,
	publisher TEXT,
	published_date TEXT,
	published_year INTEGER,
	page_count INTEGER,
	language TEXT,
	categories TEXT,
	cover_url TEXT,
	cover_path TEXT,
	source TEXT,
	external_id TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_books_source ON books(source);
`

const importLinksSchema = `
CREATE TABLE IF NOT EXISTS import_links (
	source TEXT NOT NULL,
	external_id TEXT NOT NULL,
	book_id TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (source, external_id)
);
`

// listSeparator joins multi-valued columns (authors, categories) for storage.
const listSeparator = "|"

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLiteStore instance
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{dbPath: dbPath}
}

// Connect opens the database and creates missing tables.
func (s *SQLiteStore) Connect() error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, schema := range []string{booksSchema, importLinksSchema} {
		if _, err := db.Exec(schema); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// FindImportLink returns the book id linked to (source, externalID), if any.
func (s *SQLiteStore) FindImportLink(ctx context.Context, source, externalID string) (string, bool, error) {
	var bookID string
	err := s.db.QueryRowContext(ctx,
		"SELECT book_id FROM import_links WHERE source = ? AND external_id = ?",
		source, externalID,
	).Scan(&bookID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query import link: %w", err)
	}
	return bookID, true, nil
}

// FindImportLinks batch-resolves links for one source.
func (s *SQLiteStore) FindImportLinks(ctx context.Context, source string, externalIDs []string) (map[string]string, error) {
	links := make(map[string]string, len(externalIDs))
	if len(externalIDs) == 0 {
		return links, nil
	}

	placeholders := strings.Repeat("?,", len(externalIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(externalIDs)+1)
	args = append(args, source)
	for _, id := range externalIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		"SELECT external_id, book_id FROM import_links WHERE source = ? AND external_id IN (%s)",
		placeholders,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query import links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var externalID, bookID string
		if err := rows.Scan(&externalID, &bookID); err != nil {
			return nil, fmt.Errorf("failed to scan import link: %w", err)
		}
		links[externalID] = bookID
	}
	return links, rows.Err()
}

// CreateBook persists a new book, assigning it a fresh id.
func (s *SQLiteStore) CreateBook(ctx context.Context, book *Book) error {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, title, authors, description, isbn_10, isbn_13, publisher,
			published_date, published_year, page_count, language, categories,
			cover_url, cover_path, source, external_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID, book.Title, strings.Join(book.Authors, listSeparator),
		book.Description, book.ISBN10, book.ISBN13, book.Publisher,
		book.PublishedDate, book.PublishedYear, book.PageCount, book.Language,
		strings.Join(book.Categories, listSeparator),
		book.CoverURL, book.CoverPath, book.Source, book.ExternalID,
		book.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// LinkImport records the import link with insert-if-absent semantics. The
// INSERT OR IGNORE against the primary key makes conflicting writers
// converge on the first stored book id.
func (s *SQLiteStore) LinkImport(ctx context.Context, source, externalID, bookID string) (string, bool, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO import_links (source, external_id, book_id) VALUES (?, ?, ?)",
		source, externalID, bookID,
	)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert import link: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted > 0 {
		return bookID, true, nil
	}

	existing, found, err := s.FindImportLink(ctx, source, externalID)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, fmt.Errorf("import link for %s/%s vanished during insert", source, externalID)
	}
	return existing, false, nil
}

// DeleteBook removes a book and any import link pointing at it.
func (s *SQLiteStore) DeleteBook(ctx context.Context, bookID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM import_links WHERE book_id = ?", bookID); err != nil {
		return fmt.Errorf("failed to delete import link: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM books WHERE id = ?", bookID); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const bookColumns = `id, title, authors, description, isbn_10, isbn_13,
	publisher, published_date, published_year, page_count, language,
	categories, cover_url, cover_path, source, external_id, created_at`

// GetBook fetches one book by local id.
func (s *SQLiteStore) GetBook(ctx context.Context, bookID string) (*Book, bool, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM books WHERE id = ?", bookColumns), bookID)

	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query book: %w", err)
	}
	return book, true, nil
}

// ListImported pages through imported books, newest first.
func (s *SQLiteStore) ListImported(ctx context.Context, source string, limit, offset int) ([]Book, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if source != "" {
		where = " WHERE source = ?"
		args = append(args, source)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM books%s ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		bookColumns, where,
	)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var books []Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, *book)
	}
	return books, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	var book Book
	var authors, categories string

	err := row.Scan(
		&book.ID, &book.Title, &authors, &book.Description,
		&book.ISBN10, &book.ISBN13, &book.Publisher,
		&book.PublishedDate, &book.PublishedYear, &book.PageCount,
		&book.Language, &categories, &book.CoverURL, &book.CoverPath,
		&book.Source, &book.ExternalID, &book.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	book.Authors = splitList(authors)
	book.Categories = splitList(categories)
	return &book, nil
}

func splitList(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, listSeparator)
}
