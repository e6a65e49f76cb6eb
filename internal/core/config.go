package core

import (
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Spotify  SpotifyConfig
	ITunes   ITunesConfig
	Discogs  DiscogsConfig
	Enrich   EnrichConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	URL string
}

type SpotifyConfig struct {
	APIBaseURL string
	PageSize   int
}

type ITunesConfig struct {
	SearchURL string
	Country   string
	CacheSize int
}

type DiscogsConfig struct {
	APIBaseURL string
	Token      string
	UserAgent  string
	CacheSize  int
}

type EnrichConfig struct {
	CatalogBatchSize     int
	MarketplaceBatchSize int
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Spotify: SpotifyConfig{
			APIBaseURL: "https://api.spotify.com/v1/",
			PageSize:   100,
		},
		ITunes: ITunesConfig{
			SearchURL: "https://itunes.apple.com/search",
			Country:   "GB",
			CacheSize: 4096,
		},
		Discogs: DiscogsConfig{
			APIBaseURL: "https://api.discogs.com",
			UserAgent:  "cratelink/1.0 (+https://cratelink.example.com)",
			CacheSize:  4096,
		},
		Enrich: EnrichConfig{
			CatalogBatchSize:     10,
			MarketplaceBatchSize: 8,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
