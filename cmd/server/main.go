package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/imagiseum/gallery/internal/config"
	"github.com/imagiseum/gallery/internal/database"
	"github.com/imagiseum/gallery/internal/handler"
	"github.com/imagiseum/gallery/internal/logger"
	"github.com/imagiseum/gallery/internal/middleware"
	"github.com/imagiseum/gallery/internal/provider"
	"github.com/imagiseum/gallery/internal/queue"
	"github.com/imagiseum/gallery/internal/repository"
	"github.com/imagiseum/gallery/internal/repository/memory"
	"github.com/imagiseum/gallery/internal/router"
	"github.com/imagiseum/gallery/internal/service"
	"github.com/imagiseum/gallery/internal/storage"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Production: cfg.IsProduction()})

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, images, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	files, err := openFiles(ctx, cfg)
	if err != nil {
		return err
	}

	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
		log.Info("redis connected", "addr", cfg.Redis.Addr)
	} else {
		log.Info("redis unavailable, response cache off and rate limiting in process")
	}
	cache := middleware.NewResponseCache(cfg.Cache, rdb, log)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, rdb, log)

	opts := []service.CatalogOption{service.WithCache(cache), service.WithLogger(log)}
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, log)
		defer pub.Close()
		opts = append(opts, service.WithEvents(pub))
		go queue.StartImageConsumer(ctx, cfg.RabbitMQURL, "logs", log)
	}

	tokens := service.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	creds := service.NewCredentials(users, cfg.BcryptCost).WithCache(cache)
	catalog := service.NewCatalog(images, files, cfg.UploadURLPrefix, opts...)
	search := service.NewSearch(images)

	gen := provider.NewCloudflare(cfg.CloudflareAccountID, cfg.CloudflareAPIToken, cfg.CloudflareModel, cfg.AITimeout)
	gen.Log = log
	if !gen.Configured() {
		log.Warn("cloudflare credentials missing, image generation disabled")
	}

	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}

	deps := router.Deps{
		Log:       log,
		Guard:     service.NewGuard(tokens, users),
		Auth:      handler.NewAuthHandler(creds, tokens, catalog),
		Images:    handler.NewImageHandler(catalog, search, gen),
		Tags:      handler.NewTagHandler(search),
		Health:    handler.Health(pinger),
		Cache:     cache,
		Limiter:   limiter,
		BodyLimit: cfg.BodyLimit,
	}
	if cfg.StorageDriver == "local" {
		deps.UploadDir = cfg.UploadDir
		deps.UploadURL = cfg.UploadURLPrefix
	}
	e := router.New(deps)

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver, "storage", cfg.StorageDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (service.UserStore, service.ImageStore, *sql.DB, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return s.Users, s.Images, nil, nil
	}

	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
	}
	return repository.NewUserRepo(db), repository.NewImageRepo(db), db, nil
}

func openFiles(ctx context.Context, cfg config.Config) (service.FileStore, error) {
	if cfg.StorageDriver == "s3" {
		return storage.NewS3(ctx, cfg.S3)
	}
	return storage.NewLocal(cfg.UploadDir), nil
}
