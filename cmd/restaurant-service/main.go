package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bcafe/restaurant-service/internal/cache"
	"bcafe/restaurant-service/internal/config"
	"bcafe/restaurant-service/internal/httpapi"
	"bcafe/restaurant-service/internal/notify"
	"bcafe/restaurant-service/internal/store"
	"bcafe/restaurant-service/internal/store/postgres"
	"bcafe/restaurant-service/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup(context.Background(), telemetry.Config{
		ServiceName: "restaurant-service",
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool, postgres.Options{Policy: bookingPolicy(cfg)})

	var menuCache *cache.MenuCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		menuCache = cache.NewMenuCache(client, cfg.MenuCacheTTL)
	}

	handler := httpapi.NewHandler(st, menuCache)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute: cfg.RateLimitPerMinute,
		IPBurst:     cfg.RateLimitBurst,
	})

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Session-ID", "X-Request-ID"},
	})

	routes := httpapi.AuthMiddleware(st, handler.Routes())
	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(corsWrapper.Handler(routes))), "restaurant-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	provider := notify.NewProvider(cfg.NotifyProvider, cfg.NotifyWebhookURL, cfg.NotifyWebhookToken)
	worker := notify.New(st, notify.Config{BatchSize: cfg.NotifyBatchSize, Provider: provider})
	go notify.Start(workerCtx, cfg.NotifyInterval, worker)

	go func() {
		log.Printf("restaurant-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopWorker()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// bookingPolicy builds the scheduler policy from config, falling back to the
// documented defaults when a clock value does not parse.
func bookingPolicy(cfg config.Config) store.BookingPolicy {
	open, ok := store.MinuteOfDay(cfg.ServiceOpen)
	if !ok {
		open = 10 * 60
	}
	closeAt, ok := store.MinuteOfDay(cfg.ServiceClose)
	if !ok {
		closeAt = 22 * 60
	}
	return store.BookingPolicy{
		OpenMinute:  open,
		CloseMinute: closeAt,
		Ceilings: map[int]int{
			2:  cfg.CeilingTwo,
			4:  cfg.CeilingFour,
			8:  cfg.CeilingEight,
			10: cfg.CeilingTen,
		},
	}
}
