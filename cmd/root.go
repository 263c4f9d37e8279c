package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"bookdex/internal/aggregate"
	"bookdex/internal/cache"
	"bookdex/internal/config"
	"bookdex/internal/fileutil"
	"bookdex/internal/importer"
	"bookdex/internal/library"
	"bookdex/internal/server"
	"bookdex/internal/source"
	"bookdex/internal/tui"
)

// CLI represents the complete command structure for the bookdex application
type CLI struct {
	// Global flags
	LibraryDB string `help:"Path to library SQLite database file" default:"./bookdex.db"`
	NoCovers  bool   `help:"Skip downloading cover images on import"`
	CoverDir  string `help:"Directory for downloaded cover images" default:"./covers"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file" default:"./cache.db"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)" default:"720h"`

	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API server"`
	Search  SearchCmd  `cmd:"" help:"Search the configured book sources"`
	Details DetailsCmd `cmd:"" help:"Show one record's full detail from its source"`
	Import  ImportCmd  `cmd:"" help:"Import a book from a source into the local library"`
	Sources SourcesCmd `cmd:"" help:"List configured sources and their availability"`
	Cached  CachedCmd  `cmd:"" help:"List books imported into the local library"`
	Export  ExportCmd  `cmd:"" help:"Export the local library to a JSON file"`
	Cache   CacheCmd   `cmd:"" help:"Cache maintenance"`
}

// ServeCmd runs the HTTP API server.
type ServeCmd struct {
	Addr string `help:"Listen address for the HTTP server" default:""`
}

// SearchCmd searches one or more sources from the terminal.
type SearchCmd struct {
	Query       string   `arg:"" help:"Search query"`
	Sources     []string `short:"s" help:"Source ids to query (default: all)"`
	Limit       int      `short:"n" help:"Maximum results per source" default:"10"`
	Interactive bool     `short:"i" help:"Pick a result interactively and import it"`
	JSONOutput  string   `help:"Write the aggregated result to a JSON file"`
}

// DetailsCmd fetches a single record's detail.
type DetailsCmd struct {
	Source     string `arg:"" help:"Source id (google_books, open_library)"`
	ExternalID string `arg:"" help:"External id within the source"`
}

// ImportCmd imports one record into the local library.
type ImportCmd struct {
	Source     string `arg:"" help:"Source id (google_books, open_library)"`
	ExternalID string `arg:"" help:"External id within the source"`
	Title      string `help:"Override the imported title"`
	Language   string `help:"Override the imported language"`
}

// SourcesCmd lists the configured sources.
type SourcesCmd struct{}

// CachedCmd lists imported books.
type CachedCmd struct {
	Source string `short:"s" help:"Only list books imported from this source"`
	Limit  int    `short:"n" help:"Maximum books to list" default:"20"`
	Offset int    `help:"Listing offset" default:"0"`
}

// ExportCmd writes the imported library to a JSON file.
type ExportCmd struct {
	Output    string `short:"o" help:"Path to the JSON output file" default:"./bookdex.json"`
	Overwrite bool   `help:"Overwrite the output file if it exists"`
}

// CacheCmd groups cache maintenance subcommands.
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Clear cached responses for one source"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging()
	initConfig()

	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("bookdex"),
		kong.Description("Search external book catalogs and import records into a local library."),
		kong.UsageOnError(),
	)

	updateGlobalConfig(&cli)

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initLogging() {
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	config.InitConfig()

	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h")

	viper.AutomaticEnv()
	if err := viper.BindEnv("googlebooks.apikey", "GOOGLE_BOOKS_API_KEY"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}

	// Re-read values that may have come from the config file
	config.InitConfig()
}

func updateGlobalConfig(cli *CLI) {
	viper.Set("library.dbfile", cli.LibraryDB)
	viper.Set("covers.dir", cli.CoverDir)
	viper.Set("cache.dbfile", cli.CacheDBFile)
	viper.Set("cache.ttl", cli.CacheTTL)

	config.CoverDir = cli.CoverDir
	config.SetDownloadCovers(!cli.NoCovers)
}

// Run methods for each command

func (s *ServeCmd) Run() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	addr := s.Addr
	if addr == "" {
		addr = viper.GetString("server.addr")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(addr, app.registry, app.engine, app.coordinator, app.store)
	return srv.Run(ctx)
}

func (s *SearchCmd) Run() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	result, err := app.engine.SearchAll(ctx, s.Query, s.Sources, s.Limit, 0)
	if err != nil {
		return err
	}

	if s.JSONOutput != "" {
		if _, err := fileutil.WriteJSONFile(result, s.JSONOutput, true); err != nil {
			return err
		}
		slog.Info("Wrote search results", "path", s.JSONOutput, "total_items", result.TotalItems)
	}

	if s.Interactive {
		return s.runInteractive(ctx, app, result)
	}

	for _, sr := range result.Sources {
		if sr.Error != "" {
			fmt.Printf("%s: error: %s\n", sr.Source, sr.Error)
			continue
		}
		fmt.Printf("%s (%d results, %dms)\n", sr.Source, len(sr.Items), sr.ElapsedMs)
		for _, item := range sr.Items {
			imported := ""
			if item.IsImported {
				imported = " [imported]"
			}
			fmt.Printf("  %-16s %s (%s)%s\n", item.ExternalID, item.Title, strings.Join(item.Authors, ", "), imported)
		}
	}
	fmt.Printf("total: %d items in %dms\n", result.TotalItems, result.TotalElapsedMs)
	return nil
}

func (s *SearchCmd) runInteractive(ctx context.Context, app *app, result *aggregate.SearchResult) error {
	var records []source.Record
	for _, sr := range result.Sources {
		records = append(records, sr.Items...)
	}

	selection, err := tui.Select(s.Query, records)
	if err != nil {
		return err
	}
	if selection.Action != tui.ActionSelected {
		return nil
	}

	imported := app.coordinator.ImportOne(ctx, selection.Selection.Source, selection.Selection.ExternalID, nil)
	if !imported.Success {
		return fmt.Errorf("import failed: %s", imported.Message)
	}
	slog.Info("Imported book", "book_id", imported.LocalBookID, "message", imported.Message)
	return nil
}

func (d *DetailsCmd) Run() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	adapter, err := app.registry.Resolve(d.Source)
	if err != nil {
		return err
	}

	record, err := adapter.GetDetail(context.Background(), d.ExternalID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", record.Title, record.PublishedDate)
	fmt.Printf("  authors:   %s\n", strings.Join(record.Authors, ", "))
	if record.ISBN13 != "" {
		fmt.Printf("  isbn-13:   %s\n", record.ISBN13)
	}
	if record.Publisher != "" {
		fmt.Printf("  publisher: %s\n", record.Publisher)
	}
	if record.PageCount > 0 {
		fmt.Printf("  pages:     %d\n", record.PageCount)
	}
	if record.Description != "" {
		fmt.Printf("\n%s\n", record.Description)
	}
	return nil
}

func (i *ImportCmd) Run() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	var overrides *importer.Overrides
	if i.Title != "" || i.Language != "" {
		overrides = &importer.Overrides{Title: i.Title, Language: i.Language}
	}

	result := app.coordinator.ImportOne(context.Background(), i.Source, i.ExternalID, overrides)
	if !result.Success {
		return fmt.Errorf("%s: %s", result.Error, result.Message)
	}
	slog.Info("Import complete", "book_id", result.LocalBookID, "message", result.Message)
	return nil
}

func (s *SourcesCmd) Run() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	for _, descriptor := range app.registry.List() {
		status := "available"
		if !descriptor.Available {
			status = "unavailable"
		}
		key := ""
		if descriptor.HasAPIKey {
			key = " (api key)"
		}
		fmt.Printf("%-14s %-22s %-12s %s%s\n",
			descriptor.ID, descriptor.DisplayName, status, descriptor.RateLimit, key)
	}
	return nil
}

func (c *CachedCmd) Run() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	books, total, err := app.store.ListImported(context.Background(), c.Source, c.Limit, c.Offset)
	if err != nil {
		return err
	}

	for _, book := range books {
		fmt.Printf("%s  %-12s  %s (%s)\n", book.ID, book.Source, book.Title, strings.Join(book.Authors, ", "))
	}
	fmt.Printf("%d of %d books\n", len(books), total)
	return nil
}

func (e *ExportCmd) Run() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	var books []library.Book
	for offset := 0; ; offset += 100 {
		page, _, err := app.store.ListImported(ctx, "", 100, offset)
		if err != nil {
			return err
		}
		books = append(books, page...)
		if len(page) < 100 {
			break
		}
	}

	written, err := fileutil.WriteJSONFile(books, e.Output, e.Overwrite)
	if err != nil {
		return err
	}
	if !written {
		return fmt.Errorf("output file %s exists, use --overwrite to replace it", e.Output)
	}
	slog.Info("Exported library", "path", e.Output, "books", len(books))
	return nil
}
