package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tredicik/consult-service/internal/commerce"
	"github.com/tredicik/consult-service/internal/config"
	"github.com/tredicik/consult-service/internal/db"
	"github.com/tredicik/consult-service/internal/handlers"
	"github.com/tredicik/consult-service/internal/httpx"
	"github.com/tredicik/consult-service/internal/jobs"
	"github.com/tredicik/consult-service/internal/kafkax"
	"github.com/tredicik/consult-service/internal/offerings"
	"github.com/tredicik/consult-service/internal/otelx"
	"github.com/tredicik/consult-service/internal/outbox"
	"github.com/tredicik/consult-service/internal/runtime"
	"github.com/tredicik/consult-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "consult-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	tenant, err := config.LoadTenant(config.String("TENANT_CONFIG_PATH", ""))
	if err != nil {
		logger.Error("tenant config load failed", "err", err)
		panic(err)
	}
	logger.Info("tenant loaded", "tenant_id", tenant.ID, "tenant_name", tenant.Name)

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, db.Config{
		URL:      dbURL,
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if err := storage.Migrate(ctx, pool); err != nil {
		logger.Error("migrations failed", "err", err)
		panic(err)
	}

	platformURL, err := config.RequiredString("PLATFORM_BASE_URL")
	if err != nil {
		panic(err)
	}
	// The platform addresses tenants by numeric id; tenant.ID is the
	// storefront's own identity string.
	platform := commerce.New(commerce.Config{
		BaseURL:  platformURL,
		APIKey:   config.String("PLATFORM_API_KEY", ""),
		TenantID: int64(config.Int("PLATFORM_TENANT_ID", 0)),
	})

	offeringSource := offerings.NewSource(platform, logger, tenant.Defaults,
		time.Duration(config.Int("OFFERING_CACHE_SECONDS", 300))*time.Second)

	holdRepo := storage.NewHoldRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	expiryWorker := jobs.NewExpiryWorker(holdRepo, outboxRepo, logger,
		time.Duration(config.Int("HOLD_SWEEP_SECONDS", 60))*time.Second)
	go expiryWorker.Run(ctx)

	holdTTL := time.Duration(config.Int("HOLD_TTL_MINUTES", 30)) * time.Minute
	bookingHandler := handlers.NewBookingHandler(holdRepo, outboxRepo, offeringSource, platform,
		logger, tenant.Hours, holdTTL)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "platform", Check: platform.Ping},
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMux(checks...)
	bookingHandler.Register(mux)

	limiter := buildLimiter(logger)
	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: tenant.AllowedOrigins}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRateLimit(limiter, logger, true),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "consult")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// buildLimiter picks the Redis fixed-window limiter when REDIS_ADDR is set,
// so multiple instances share one budget; otherwise a per-process one.
func buildLimiter(logger *slog.Logger) httpx.Limiter {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		logger.Info("rate limiter using in-process window")
		return httpx.NewMemoryLimiter(limit, time.Minute)
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	logger.Info("rate limiter using redis", "addr", addr)
	return httpx.NewRedisLimiter(rdb, limit, time.Minute, "consult")
}
