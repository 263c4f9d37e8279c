package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"bookdex/internal/aggregate"
	"bookdex/internal/config"
	"bookdex/internal/fileutil"
	"bookdex/internal/googlebooks"
	"bookdex/internal/importer"
	"bookdex/internal/library"
	"bookdex/internal/openlibrary"
	"bookdex/internal/ratelimit"
	"bookdex/internal/source"
)

// app bundles the wired components behind every command.
type app struct {
	registry    *source.Registry
	store       *library.SQLiteStore
	engine      *aggregate.Engine
	coordinator *importer.Coordinator
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close library store", "error", err)
	}
}

// buildApp constructs the registry, store, engine and coordinator from the
// current configuration.
func buildApp() (*app, error) {
	settings, err := config.LoadSourceSettings(viper.GetString("sources.file"))
	if err != nil {
		return nil, fmt.Errorf("failed to load source settings: %w", err)
	}

	registry := source.NewRegistry()
	registerAdapter(registry, settings[source.GoogleBooks], newGoogleBooksAdapter(settings[source.GoogleBooks]))
	registerAdapter(registry, settings[source.OpenLibrary], newOpenLibraryAdapter(settings[source.OpenLibrary]))

	store := library.NewSQLiteStore(viper.GetString("library.dbfile"))
	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}

	deadline := viper.GetDuration("search.deadline")
	engine := aggregate.NewEngine(registry, store, deadline)

	var opts []importer.Option
	if config.DownloadCovers {
		opts = append(opts, importer.WithCoverFetcher(fileutil.NewCoverStore(config.CoverDir)))
	}
	coordinator := importer.NewCoordinator(registry, store, opts...)

	return &app{
		registry:    registry,
		store:       store,
		engine:      engine,
		coordinator: coordinator,
	}, nil
}

func registerAdapter(registry *source.Registry, settings config.SourceSettings, adapter source.Adapter) {
	registry.Register(source.WithDetailCache(adapter), settings.FailureThreshold)
}

func newGoogleBooksAdapter(settings config.SourceSettings) source.Adapter {
	opts := []googlebooks.Option{}
	if settings.RateLimit > 0 {
		opts = append(opts, googlebooks.WithRateLimiter(
			ratelimit.NewWithBurst("GoogleBooks", settings.RateLimit, settings.Burst)))
	}
	if settings.TimeoutMs > 0 {
		opts = append(opts, googlebooks.WithHTTPClient(httpClient(settings.TimeoutMs)))
	}
	if lang := viper.GetString("googlebooks.language"); lang != "" {
		opts = append(opts, googlebooks.WithLanguageRestrict(lang))
	}
	if order := viper.GetString("googlebooks.orderby"); order != "" {
		opts = append(opts, googlebooks.WithOrderBy(order))
	}
	if printType := viper.GetString("googlebooks.printtype"); printType != "" {
		opts = append(opts, googlebooks.WithPrintType(printType))
	}
	return googlebooks.NewClient(config.GoogleBooksAPIKey, opts...)
}

func newOpenLibraryAdapter(settings config.SourceSettings) source.Adapter {
	opts := []openlibrary.Option{}
	if settings.RateLimit > 0 {
		opts = append(opts, openlibrary.WithRateLimiter(
			ratelimit.NewWithBurst("OpenLibrary", settings.RateLimit, settings.Burst)))
	}
	if settings.TimeoutMs > 0 {
		opts = append(opts, openlibrary.WithHTTPClient(httpClient(settings.TimeoutMs)))
	}
	return openlibrary.NewClient(opts...)
}

func httpClient(timeoutMs int) *http.Client {
	return &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond}
}
