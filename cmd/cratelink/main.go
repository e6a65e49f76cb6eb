// Package main provides the cratelink service entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"cratelink/internal/core"
	"cratelink/internal/db"
	"cratelink/internal/enrich"
	"cratelink/internal/ratelimit"
	"cratelink/internal/spotify"
	"cratelink/internal/web"
	"cratelink/pkg/vendors"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cratelink",
	Short: "cratelink - Spotify playlist import and record shopping service",
	Long: `cratelink ingests Spotify playlists, enriches every track with purchase
offers from iTunes and the Discogs marketplace, and persists the result for
review, selection, and export.`,
	RunE: runCratelink,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")
	rootCmd.PersistentFlags().String("spotify-api-base-url", "", "Spotify API base URL override")
	rootCmd.PersistentFlags().Int("spotify-page-size", 100, "Spotify playlist page size")
	rootCmd.PersistentFlags().String("itunes-country", "GB", "iTunes storefront country code")
	rootCmd.PersistentFlags().String("discogs-token", "", "Discogs personal access token")
	rootCmd.PersistentFlags().String("server-host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("CRATELINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(&config.Log)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Database.URL = viper.GetString("database-url")

	if v := viper.GetString("spotify-api-base-url"); v != "" {
		cfg.Spotify.APIBaseURL = v
	}
	if v := viper.GetInt("spotify-page-size"); v > 0 {
		cfg.Spotify.PageSize = v
	}

	if v := viper.GetString("itunes-search-url"); v != "" {
		cfg.ITunes.SearchURL = v
	}
	if v := viper.GetString("itunes-country"); v != "" {
		cfg.ITunes.Country = v
	}
	if v := viper.GetInt("itunes-cache-size"); v > 0 {
		cfg.ITunes.CacheSize = v
	}

	if v := viper.GetString("discogs-api-base-url"); v != "" {
		cfg.Discogs.APIBaseURL = v
	}
	cfg.Discogs.Token = viper.GetString("discogs-token")
	if v := viper.GetString("discogs-user-agent"); v != "" {
		cfg.Discogs.UserAgent = v
	}
	if v := viper.GetInt("discogs-cache-size"); v > 0 {
		cfg.Discogs.CacheSize = v
	}

	if v := viper.GetInt("enrich-catalog-batch-size"); v > 0 {
		cfg.Enrich.CatalogBatchSize = v
	}
	if v := viper.GetInt("enrich-marketplace-batch-size"); v > 0 {
		cfg.Enrich.MarketplaceBatchSize = v
	}

	if v := viper.GetString("server-host"); v != "" {
		cfg.Server.Host = v
	}
	if v := viper.GetInt("server-port"); v > 0 {
		cfg.Server.Port = v
	}

	cfg.Log.Level = viper.GetString("log-level")
	if v := viper.GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}

	return cfg
}

func buildLogger(cfg *core.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	if strings.ToLower(cfg.Format) == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := zapConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runCratelink(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting cratelink",
		zap.String("version", "1.0.0"),
		zap.String("itunes_country", config.ITunes.Country),
		zap.Bool("discogs_enabled", config.Discogs.Token != ""))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if config.Discogs.Token == "" {
		logger.Warn("No Discogs token configured, marketplace lookups are disabled")
	}

	database, err := db.New(ctx, config.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	metrics := web.NewMetrics()

	spotifyClient := spotify.NewClient(&config.Spotify, logger.Named("spotify"))

	catalog := vendors.NewITunes(
		config.ITunes.SearchURL,
		config.ITunes.Country,
		vendors.NewLRUCache(config.ITunes.CacheSize),
	)
	marketplace := vendors.NewDiscogs(
		config.Discogs.APIBaseURL,
		config.Discogs.Token,
		config.Discogs.UserAgent,
		vendors.NewLRUCache(config.Discogs.CacheSize),
	)

	orchestrator := enrich.NewOrchestrator(
		spotifyClient,
		catalog,
		marketplace,
		&config.Enrich,
		logger.Named("enrich"),
		metrics,
	)

	limiter := ratelimit.New()
	defer limiter.Stop()

	server := web.NewServer(
		&config.Server,
		logger.Named("web"),
		metrics,
		limiter,
		orchestrator,
		web.Stores{
			Imports:     database.Imports(),
			Activities:  database.Activities(),
			Preferences: database.Preferences(),
			Vendors:     database.Vendors(),
		},
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gCtx)
	})

	logger.Info("cratelink started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("cratelink stopped with error", zap.Error(err))
		return err
	}

	logger.Info("cratelink stopped gracefully")
	return nil
}

func validateConfig() error {
	if config.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if config.ITunes.Country == "" {
		return fmt.Errorf("iTunes storefront country is required")
	}

	return nil
}
