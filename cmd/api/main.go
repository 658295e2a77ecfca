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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/scoopshop-backend/api/controllers"
	"github.com/angelmondragon/scoopshop-backend/api/routes"
	"github.com/angelmondragon/scoopshop-backend/internal/cart"
	"github.com/angelmondragon/scoopshop-backend/pkg/config"
	"github.com/angelmondragon/scoopshop-backend/pkg/db"
	"github.com/angelmondragon/scoopshop-backend/pkg/env"
	"github.com/angelmondragon/scoopshop-backend/pkg/events"
	"github.com/angelmondragon/scoopshop-backend/pkg/instance"
	"github.com/angelmondragon/scoopshop-backend/pkg/logger"
	"github.com/angelmondragon/scoopshop-backend/pkg/metrics"
	"github.com/angelmondragon/scoopshop-backend/pkg/migrate"
	"github.com/angelmondragon/scoopshop-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	var closers []func() error
	readiness := map[string]controllers.Pinger{}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		closers = append(closers, redisClient.Close)
		readiness["redis"] = redisClient
	}

	var dbClient *db.Client
	if cfg.Cart.UsesSQL() {
		dbClient, err = db.New(context.Background(), cfg.DB, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap database", err)
			os.Exit(1)
		}
		closers = append(closers, dbClient.Close)
		readiness["db"] = dbClient

		if err := migrate.MaybeRun(context.Background(), cfg, logg, dbClient); err != nil {
			logg.Error(context.Background(), "failed to run migrations", err)
			os.Exit(1)
		}
	}

	store, err := newSessionStore(cfg, redisClient, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cartMetrics := metrics.NewCartMetrics(registry)

	bus := events.NewBus(cfg.Cart.EventBuffer, cartMetrics)
	cartService, err := cart.NewService(store, bus, cartMetrics, logg, cart.Options{
		MaxQuantity:    cfg.Cart.MaxQuantity,
		DebounceWindow: cfg.Cart.DebounceWindow,
		IdleTTL:        cfg.Cart.IdleTTL,
		SweepInterval:  cfg.Cart.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	var (
		idempotencyStore redis.IdempotencyStore
		rateLimitStore   redis.RateLimitStore
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		rateLimitStore = redisClient
	}

	addr := ":" + env.First(cfg.App.Port, "PORT")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.ID(),
		"cart_store": store.Name(),
	})

	go func() {
		if err := cartService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "cart sweeper stopped unexpectedly", err)
		}
	}()

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, readiness, idempotencyStore, rateLimitStore, registry, cartService, bus),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// open event streams end once the bus closes, so close it before draining
	bus.Close()
	shutdownErr := server.Shutdown(shutdownCtx)
	// pending debounced writes land before the stores close
	shutdownErr = multierr.Append(shutdownErr, cartService.Close(shutdownCtx))
	for i := len(closers) - 1; i >= 0; i-- {
		shutdownErr = multierr.Append(shutdownErr, closers[i]())
	}
	if shutdownErr != nil {
		logg.Error(ctx, "errors during shutdown", shutdownErr)
		exitCode = 1
	} else {
		logg.Info(ctx, "api server shut down gracefully")
	}
	os.Exit(exitCode)
}

func newSessionStore(cfg *config.Config, redisClient *redis.Client, dbClient *db.Client) (cart.SessionStore, error) {
	switch cfg.Cart.StoreKind() {
	case config.CartStoreRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis cart store selected without a redis connection")
		}
		return cart.NewRedisStore(redisClient, cfg.Cart.SessionTTL)
	case config.CartStoreSQL:
		if dbClient == nil {
			return nil, fmt.Errorf("sql cart store selected without a database")
		}
		return cart.NewSQLStore(dbClient.DB())
	default:
		return cart.NewMemoryStore(), nil
	}
}
