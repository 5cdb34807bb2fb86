package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/adapter/memory"
	"github.com/user/imagegrab-service/internal/adapter/postgres"
	redis_adapter "github.com/user/imagegrab-service/internal/adapter/redis"
	"github.com/user/imagegrab-service/internal/delivery/http/handler"
	"github.com/user/imagegrab-service/internal/delivery/http/router"
	"github.com/user/imagegrab-service/internal/repository"
	"github.com/user/imagegrab-service/internal/usecase"
	"github.com/user/imagegrab-service/pkg/config"
	"github.com/user/imagegrab-service/pkg/logger"
	"github.com/user/imagegrab-service/pkg/metrics"
)

const purgeInterval = 5 * time.Minute

func getCmdServe(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

  Configuration is read from .env and the environment (SERVER_PORT,
  SESSION_STORE, PAGE_SOURCE, ...).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("could not load config: %w", err)
			}
			log, err := logger.New(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("could not build logger: %w", err)
			}
			defer log.Sync() //nolint:errcheck
			return serve(gs.ctx, cfg, log)
		},
	}
}

// purger is implemented by session stores that need expired rows removed.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type sessionStore struct {
	repo   repository.SessionRepository
	checks map[string]handler.HealthCheck
	close  func()
}

func openSessionStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sessionStore, error) {
	switch cfg.SessionStore {
	case "memory":
		return &sessionStore{repo: memory.NewSessionRepo(cfg.SessionTTL()), close: func() {}}, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("unable to connect to redis: %w", err)
		}
		log.Info("Redis connection established", zap.String("addr", cfg.RedisAddr))
		return &sessionStore{
			repo:   redis_adapter.NewSessionRepo(rdb, cfg.SessionTTL()),
			checks: map[string]handler.HealthCheck{"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
			close:  func() { rdb.Close() },
		}, nil

	case "postgres":
		dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		repo := postgres.NewSessionRepo(dbpool, cfg.SessionTTL())
		if err := repo.Migrate(ctx); err != nil {
			dbpool.Close()
			return nil, fmt.Errorf("migrating sessions table: %w", err)
		}
		log.Info("PostgreSQL connection pool established")
		return &sessionStore{
			repo:   repo,
			checks: map[string]handler.HealthCheck{"postgres": dbpool.Ping},
			close:  dbpool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown session store %q, expected memory, redis or postgres", cfg.SessionStore)
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	c, err := newCore(cfg, cfg.PageSource, m, log)
	if err != nil {
		return err
	}
	defer c.close()

	store, err := openSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	sessions := usecase.NewSessionManager(store.repo, c.pipeline, c.packager, cfg.GrabTimeout(), log)
	defer sessions.Close()

	if p, ok := store.repo.(purger); ok {
		go purgeExpired(ctx, p, log)
	}

	apiHandler := handler.NewHandler(sessions, c.downloader, store.checks, log)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(apiHandler, m, prometheus.DefaultGatherer, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("port", cfg.ServerPort),
			zap.String("page_source", cfg.PageSource), zap.String("session_store", cfg.SessionStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("could not listen on port %s: %w", cfg.ServerPort, err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exiting")
	return nil
}

func purgeExpired(ctx context.Context, p purger, log *zap.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				log.Warn("failed to purge expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}
