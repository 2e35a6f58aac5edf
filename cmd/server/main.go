package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/catalog/catalog/application"
	"github.com/dfryer1193/catalog/catalog/domain"
	"github.com/dfryer1193/catalog/catalog/persistence"
	"github.com/dfryer1193/catalog/internal/config"
	"github.com/dfryer1193/catalog/internal/rest"
	"github.com/dfryer1193/catalog/shared/db"
	"github.com/dfryer1193/catalog/shared/db/postgres"
	"github.com/dfryer1193/catalog/shared/db/sqlite"
)

const (
	shutdownTimeout  = 5 * time.Second
	redisPingTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	configureLogging(cfg)

	database, err := newDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure database")
	}
	if err := database.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()
	log.Info().Str("dialect", database.Dialect().String()).Msg("Connected to database")

	var repo domain.ProductRepository = persistence.NewProductRepository(database.DB(), database.Dialect())
	if cfg.CacheEnabled() {
		client, err := newRedisClient(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer client.Close()
		repo = persistence.NewCachedProductRepository(repo, client, cfg.CacheTTL)
	}

	store, opts, err := newImageStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure image storage")
	}
	opts.AllowedOrigins = cfg.AllowedOrigins
	opts.UploadRateLimit = cfg.UploadRateLimit
	opts.UploadRateBurst = cfg.UploadRateBurst
	opts.Health = database.DB().PingContext

	pipeline := application.NewPipeline(store, &http.Client{Timeout: cfg.FetchTimeout}, cfg.MaxImageBytes, cfg.MaxImagePixels)
	productService := application.NewProductService(repo, pipeline)

	r := rest.NewRouter(rest.NewProductsApi(productService, store), opts)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msg("API is running on port :" + fmt.Sprint(cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
	}

	log.Info().Msg("Server stopped")
}

func configureLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if level == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
}

func newDatabase(cfg *config.Config) (db.Database, error) {
	dialect, err := db.DialectFromURL(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case db.Postgres:
		pgCfg, err := postgres.NewPostgresConfig(cfg.DatabaseURL, cfg.DatabaseSSL)
		if err != nil {
			return nil, err
		}
		return postgres.NewPostgresDB(pgCfg), nil
	default:
		return sqlite.NewSQLiteDB(sqlite.NewSQLiteConfig(cfg.DatabaseURL)), nil
	}
}

func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.RedisAddr, err)
	}

	log.Info().Str("addr", cfg.RedisAddr).Msg("Product cache enabled")
	return client, nil
}

// newImageStore returns the configured store plus the router options it needs.
// Only the local store is served statically.
func newImageStore(cfg *config.Config) (domain.ImageStore, rest.Options, error) {
	switch cfg.StorageMode {
	case config.StorageCloudinary:
		store, err := persistence.NewCloudinaryImageStore(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return nil, rest.Options{}, err
		}
		log.Info().Str("folder", cfg.CloudinaryFolder).Msg("Storing images on Cloudinary")
		return store, rest.Options{}, nil
	default:
		store, err := persistence.NewLocalImageStore(cfg.UploadDir, "")
		if err != nil {
			return nil, rest.Options{}, err
		}
		log.Info().Str("dir", store.Dir()).Msg("Storing images on local disk")
		return store, rest.Options{
			StaticPrefix: "/" + store.Prefix(),
			StaticDir:    store.Dir(),
		}, nil
	}
}
