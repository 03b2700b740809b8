package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/redis/go-redis/v9"

	"payhook/internal/config"
	"payhook/internal/dispatch"
	"payhook/internal/health"
	"payhook/internal/httpapi"
	"payhook/internal/ledger"
	"payhook/internal/reconcile"
	"payhook/internal/storage"
)

func main() {

	cfg := config.Load()

	if len(cfg.Providers) == 0 {
		slog.Warn("no webhook providers configured, all callbacks will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	redisUp := rdb.Ping(ctx).Err() == nil
	if !redisUp {
		slog.Warn("redis unavailable, using in-memory ledger and dead letters", "addr", cfg.RedisAddr)
	}

	var eventLedger ledger.Ledger
	var deadletters dispatch.DeadLetters
	if redisUp {
		eventLedger = ledger.NewRedisLedger(rdb, cfg.EventRetention)
		deadletters = dispatch.NewRedisDeadLetters(rdb)
	} else {
		eventLedger = ledger.NewMemoryLedger(cfg.EventRetention)
		deadletters = dispatch.NewMemoryDeadLetters()
	}

	var store storage.Store
	if cfg.DatabaseURL != "" {
		pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("postgres failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = storage.NewPostgresStore(pool)
		slog.Info("connected to postgres")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	reconciler := reconcile.NewReconciler(store)

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        256,
			MaxIdleConnsPerHost: 64,
			IdleConnTimeout:     120 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
		Timeout: 10 * time.Second,
	}

	var sinkMonitor *health.Monitor
	var healthChecker dispatch.HealthChecker
	var healthReporter httpapi.HealthReporter
	if cfg.MonitorHealth && len(cfg.SinkURLs) > 0 {
		sinkMonitor = health.NewMonitor(cfg.SinkURLs, 10*time.Second)
		sinkMonitor.Start(ctx)
		healthChecker = sinkMonitor
		healthReporter = sinkMonitor
	}

	queue := dispatch.NewQueue(cfg.QueueCapacity)
	dispatcher := dispatch.NewDispatcher(
		queue,
		dispatch.NewHTTPSender(client, []byte(cfg.SinkSecret)),
		dispatch.NewBreakerSet(10, 30*time.Second, 3),
		healthChecker,
		deadletters,
		dispatch.Options{
			Sinks:       cfg.SinkURLs,
			Workers:     cfg.Workers,
			MaxAttempts: cfg.MaxAttempts,
		},
	)
	dispatcher.Start()
	defer dispatcher.Stop()

	handler := httpapi.NewHandler(
		cfg.Providers,
		cfg.SignatureTolerance,
		eventLedger,
		reconciler,
		dispatcher,
		store,
		healthReporter,
	)

	app := fiber.New(fiber.Config{
		AppName:     "payhook",
		JSONEncoder: sonic.Marshal,
		JSONDecoder: sonic.Unmarshal,
		ReadTimeout: 10 * time.Second,
	})
	app.Use(logger.New())
	httpapi.Register(app, handler, cfg.IsProduction())

	go func() {
		slog.Info("server running", "port", cfg.Port, "environment", cfg.Environment)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
}
