// cmd/dispatcher/main.go
//
// Background worker: drains the outbox to the event publisher and runs
// the daily overdue-loan sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"lendhall/internal/domain"
	"lendhall/internal/lending"
	"lendhall/internal/outbox"
	"lendhall/internal/platform/config"
	"lendhall/internal/platform/database"
	"lendhall/internal/platform/logging"
	"lendhall/internal/platform/tracing"
	"lendhall/internal/reservation"
)

func main() {
	cfg := config.Load("dispatcher", "8090")
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
	dispatcher := outbox.NewDispatcher(ob, outbox.LogPublisher{Logger: logger}, logger, cfg.OutboxBatchSize)
	lendingSvc := lending.NewService(db, ob, reservation.NewFulfiller(ob), domain.SystemClock, logger)

	c := cron.New()

	if _, err := c.AddFunc(cfg.OutboxInterval, func() {
		n, err := dispatcher.RunOnce(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("outbox dispatch failed")
			return
		}
		if n > 0 {
			logger.Info().Int("dispatched", n).Msg("outbox drained")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.OutboxInterval).Msg("invalid outbox schedule")
	}

	if _, err := c.AddFunc(cfg.OverdueSweepSpec, func() {
		n, err := lendingSvc.SweepOverdue(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("overdue sweep failed")
			return
		}
		logger.Info().Int("flagged", n).Msg("overdue sweep complete")
	}); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.OverdueSweepSpec).Msg("invalid sweep schedule")
	}

	c.Start()
	logger.Info().
		Str("outbox_interval", cfg.OutboxInterval).
		Str("sweep_spec", cfg.OverdueSweepSpec).
		Msg("dispatcher started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	<-c.Stop().Done()
	logger.Info().Msg("dispatcher stopped")
}
