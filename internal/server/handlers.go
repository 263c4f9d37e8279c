package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bookdex/internal/importer"
	"bookdex/internal/library"
)

// handleSources lists every configured source with its advisory availability
// flag.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": s.engine.Sources(),
	})
}

// handleSearch fans the query out to the selected sources.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, splitSources(r.URL.Query().Get("sources")))
}

// handleSearchSource queries a single source.
func (s *Server) handleSearchSource(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, []string{chi.URLParam(r, "source")})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, sources []string) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	deadline := time.Duration(0)
	if ms, err := strconv.Atoi(q.Get("deadline_ms")); err == nil && ms > 0 {
		deadline = time.Duration(ms) * time.Millisecond
	}

	result, err := s.engine.SearchAll(r.Context(), q.Get("q"), sources, limit, deadline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDetails fetches one record's full detail from its source and
// annotates its import status.
func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source")
	externalID := chi.URLParam(r, "id")

	adapter, err := s.registry.Resolve(sourceID)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := adapter.GetDetail(r.Context(), externalID)
	if err != nil {
		s.registry.RecordOutcome(sourceID, false)
		writeError(w, err)
		return
	}
	s.registry.RecordOutcome(sourceID, true)

	if bookID, found, err := s.store.FindImportLink(r.Context(), sourceID, externalID); err == nil && found {
		record.IsImported = true
		record.ImportedBookID = bookID
	}

	writeJSON(w, http.StatusOK, record)
}

type importRequest struct {
	Source     string              `json:"source"`
	ExternalID string              `json:"external_id"`
	Overrides  *importer.Overrides `json:"overrides,omitempty"`
}

// handleImport imports one record. The outcome travels in the result body;
// only a malformed request is an HTTP error.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	result := s.coordinator.ImportOne(r.Context(), req.Source, req.ExternalID, req.Overrides)
	writeJSON(w, http.StatusOK, result)
}

type bulkImportRequest struct {
	Items []importer.BulkItem `json:"items"`
}

func (s *Server) handleImportBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		badRequest(w, "items must not be empty")
		return
	}

	writeJSON(w, http.StatusOK, s.coordinator.ImportBulk(r.Context(), req.Items))
}

// handleListCached pages through imported books.
func (s *Server) handleListCached(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(q.Get("offset"))

	books, total, err := s.store.ListImported(r.Context(), q.Get("source"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if books == nil {
		books = []library.Book{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"books":  books,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetCached(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	book, found, err := s.store.GetBook(r.Context(), bookID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{
			Code:    "not_found",
			Message: "no imported book with id " + bookID,
		}})
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteCached(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	_, found, err := s.store.GetBook(r.Context(), bookID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{
			Code:    "not_found",
			Message: "no imported book with id " + bookID,
		}})
		return
	}

	if err := s.store.DeleteBook(r.Context(), bookID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func splitSources(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	sources := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			sources = append(sources, part)
		}
	}
	return sources
}
