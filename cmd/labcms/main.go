package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/apexanalytical/labcms/pkg/api"
	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/auth"
	"github.com/apexanalytical/labcms/pkg/config"
	"github.com/apexanalytical/labcms/pkg/observability"
	"github.com/apexanalytical/labcms/pkg/pipeline"
	"github.com/apexanalytical/labcms/pkg/ratelimit"
	"github.com/apexanalytical/labcms/pkg/storage/postgres"
	"github.com/apexanalytical/labcms/pkg/upload"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	metrics := observability.NewMetrics()
	auditLog := observability.NewMeteredAuditLogger(audit.NewLogrusLogger(logger), metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newCounterStore(ctx, cfg, logger)

	db, err := postgres.Open(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()

	uploadStore, err := upload.NewDiskStore(cfg.Upload.Dir)
	if err != nil {
		logger.WithError(err).Fatal("failed to prepare upload directory")
	}
	validator := upload.NewValidator(cfg.Upload.MaxFileBytes, cfg.Upload.AllowedMIMETypes)
	uploads := upload.NewProcessor(validator, uploadStore, auditLog)

	users := postgres.NewIdentityStore(db)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenMaxAge)

	p := pipeline.New(cfg, store, users, tokens, auditLog, logger, metrics)

	handlers := &api.Handlers{
		Auth:       api.NewAuthHandlers(users, tokens, auditLog, logger),
		Services:   api.NewServiceHandlers(postgres.NewServiceStore(db), uploads, auditLog, logger),
		Categories: api.NewCategoryHandlers(postgres.NewCategoryStore(db), auditLog, logger),
		Metrics:    metrics.Handler(),
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(p, handlers),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

// newCounterStore picks the shared Redis store when configured, and
// otherwise falls back to the per-instance in-memory store with a
// background sweeper.
func newCounterStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) ratelimit.Store {
	if cfg.Redis.URL == "" {
		memory := ratelimit.NewMemoryStore()
		memory.StartSweeper(ctx, ratelimit.DefaultSweepInterval)
		logger.Info("rate limiting with in-memory store")
		return memory
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		// Plain host:port, not a redis:// URL.
		opts = &redis.Options{Addr: cfg.Redis.URL}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}

	client := redis.NewClient(opts)
	store := ratelimit.NewRedisStore(client, "ratelimit")
	if err := store.Ping(ctx); err != nil {
		logger.WithError(err).Warn("redis unreachable at startup, limiters will fail open until it recovers")
	} else {
		logger.WithField("addr", opts.Addr).Info("rate limiting with redis store")
	}
	return store
}
