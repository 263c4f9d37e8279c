package config

import (
	"github.com/spf13/viper"
)

// Global configuration variables
var (
	// GoogleBooksAPIKey is the optional API key for the Google Books API.
	// Searches work without one, but Google throttles keyless clients sooner.
	GoogleBooksAPIKey string
	// DownloadCovers controls whether imports fetch cover thumbnails locally
	DownloadCovers bool
	// CoverDir is the directory cover thumbnails are written to
	CoverDir string
)

// InitConfig initializes the global configuration
func InitConfig() {
	// Set default values
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("library.dbfile", "./bookdex.db")
	viper.SetDefault("covers.enabled", true)
	viper.SetDefault("covers.dir", "./covers")
	viper.SetDefault("search.deadline", "10s")
	viper.SetDefault("search.limit", 10)
	viper.SetDefault("sources.file", "./sources.yaml")

	// Get values from viper
	GoogleBooksAPIKey = viper.GetString("googlebooks.apikey")
	DownloadCovers = viper.GetBool("covers.enabled")
	CoverDir = viper.GetString("covers.dir")
}

// SetDownloadCovers sets the DownloadCovers flag
func SetDownloadCovers(download bool) {
	DownloadCovers = download
}
