// internal/outbox/dispatcher.go
package outbox

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendhall/internal/platform/metrics"
)

// Publisher delivers a dispatched record to its transport.
type Publisher interface {
	Publish(ctx context.Context, record Record) error
}

// LogPublisher writes event envelopes to the structured log. It is the default
// transport until a broker is wired in.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(_ context.Context, record Record) error {
	p.Logger.Info().
		Str("event_id", record.EventID.String()).
		Str("event_type", record.EventType).
		Str("aggregate_type", record.AggregateType).
		Str("aggregate_id", record.AggregateID.String()).
		RawJSON("payload", record.Payload).
		Msg("event dispatched")
	return nil
}

// Dispatcher polls the outbox and pushes pending records to a Publisher.
// Delivery is at-least-once: a record is only marked dispatched after the
// publisher accepted it, so a crash between publish and mark replays it.
type Dispatcher struct {
	store     *Store
	publisher Publisher
	logger    zerolog.Logger
	batchSize int
	tracer    trace.Tracer
}

// NewDispatcher creates a dispatcher reading batches of batchSize records.
func NewDispatcher(store *Store, publisher Publisher, logger zerolog.Logger, batchSize int) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		logger:    logger,
		batchSize: batchSize,
		tracer:    otel.Tracer("lendhall/outbox"),
	}
}

// RunOnce processes a single batch and returns how many records were
// dispatched. Publish failures stop the batch so ordering is preserved.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	ctx, span := d.tracer.Start(ctx, "outbox.dispatch_batch")
	defer span.End()

	records, err := d.store.Undispatched(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	dispatched := make([]int64, 0, len(records))
	for _, record := range records {
		if err := d.publisher.Publish(ctx, record); err != nil {
			metrics.OutboxFailed.Inc()
			d.logger.Error().
				Err(err).
				Str("event_type", record.EventType).
				Str("event_id", record.EventID.String()).
				Msg("publish failed, stopping batch")
			// Mark what went through; the failed record is retried next poll.
			if markErr := d.store.MarkDispatched(ctx, dispatched); markErr != nil {
				return len(dispatched), fmt.Errorf("mark dispatched after publish failure: %w", markErr)
			}
			return len(dispatched), fmt.Errorf("publish %s: %w", record.EventType, err)
		}
		dispatched = append(dispatched, record.ID)
	}

	if err := d.store.MarkDispatched(ctx, dispatched); err != nil {
		return 0, err
	}

	metrics.OutboxDispatched.Add(float64(len(dispatched)))
	span.SetAttributes(attribute.Int("events.dispatched", len(dispatched)))
	return len(dispatched), nil
}
