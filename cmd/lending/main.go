// cmd/lending/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"lendhall/internal/domain"
	"lendhall/internal/lending"
	"lendhall/internal/outbox"
	"lendhall/internal/platform/cache"
	"lendhall/internal/platform/config"
	"lendhall/internal/platform/database"
	"lendhall/internal/platform/logging"
	"lendhall/internal/platform/metrics"
	"lendhall/internal/platform/middleware"
	"lendhall/internal/platform/tracing"
	"lendhall/internal/reservation"
)

func main() {
	cfg := config.Load("lending", "8080")
	logger := logging.New(cfg.ServiceName)

	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer shutdownTracing(ctx)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ob := outbox.NewStore(db)
	fulfiller := reservation.NewFulfiller(ob)

	lendingSvc := lending.NewService(db, ob, fulfiller, domain.SystemClock, logger)
	reservationSvc := reservation.NewService(db, ob, domain.SystemClock, logger)

	idemCache := cache.New(cfg.RedisAddr)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.Metrics)
	r.Use(middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst).Handler)
	r.Use(middleware.Idempotency(idemCache, cfg.IdempotencyTTL, logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/", lending.NewHandler(lendingSvc).Routes())
	r.Mount("/reservations", reservation.NewHandler(reservationSvc).Routes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting lending service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("lending service stopped")
}
