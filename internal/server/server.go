// Package server exposes the aggregated search and import operations over
// HTTP. Routing is chi; payloads are plain JSON records.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bookdex/internal/aggregate"
	"bookdex/internal/importer"
	"bookdex/internal/library"
	"bookdex/internal/source"
)

// Library is the slice of the store the HTTP layer needs for the cached-book
// endpoints. *library.SQLiteStore satisfies it.
type Library interface {
	FindImportLink(ctx context.Context, source, externalID string) (string, bool, error)
	GetBook(ctx context.Context, bookID string) (*library.Book, bool, error)
	ListImported(ctx context.Context, source string, limit, offset int) ([]library.Book, int, error)
	DeleteBook(ctx context.Context, bookID string) error
}

// Server wires the aggregation engine and import coordinator to HTTP routes.
type Server struct {
	addr        string
	registry    *source.Registry
	engine      *aggregate.Engine
	coordinator *importer.Coordinator
	store       Library
}

// New creates a Server listening on addr.
func New(addr string, registry *source.Registry, engine *aggregate.Engine, coordinator *importer.Coordinator, store Library) *Server {
	return &Server{
		addr:        addr,
		registry:    registry,
		engine:      engine,
		coordinator: coordinator,
		store:       store,
	}
}

// Router builds the HTTP route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", s.handleSources)
		r.Get("/search", s.handleSearch)
		r.Get("/search/{source}", s.handleSearchSource)
		r.Get("/details/{source}/{id}", s.handleDetails)
		r.Post("/import", s.handleImport)
		r.Post("/import/bulk", s.handleImportBulk)
		r.Get("/cached", s.handleListCached)
		r.Get("/cached/{id}", s.handleGetCached)
		r.Delete("/cached/{id}", s.handleDeleteCached)
	})

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
