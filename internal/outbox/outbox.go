// internal/outbox/outbox.go
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrDuplicateEvent = errors.New("duplicate event id")
	ErrEmptyBatch     = errors.New("empty outbox batch")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one event awaiting dispatch. Records are written in the same
// transaction as the business mutation that produced them, so an event exists
// iff its mutation committed.
type Record struct {
	ID            int64      `json:"id" db:"id"`
	EventID       uuid.UUID  `json:"event_id" db:"event_id"`
	AggregateType string     `json:"aggregate_type" db:"aggregate_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id" db:"aggregate_id"`
	EventType     string     `json:"event_type" db:"event_type"`
	Payload       []byte     `json:"payload" db:"payload"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	DispatchedAt  *time.Time `json:"dispatched_at,omitempty" db:"dispatched_at"`
}

// NewRecord serializes a domain event payload into a Record ready for Append.
func NewRecord(aggregateType string, aggregateID uuid.UUID, eventType string, payload any) (Record, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Record{
		EventID:       uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}, nil
}

// Store reads and writes the outbox table.
type Store struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// NewStore creates a new outbox store over the shared database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("lendhall/outbox"),
	}
}

// Append inserts records inside the caller's transaction. This is the only
// write path for events.
func (s *Store) Append(ctx context.Context, tx *sqlx.Tx, records ...Record) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}

	ctx, span := s.tracer.Start(ctx, "outbox.append",
		trace.WithAttributes(attribute.Int("event.count", len(records))),
	)
	defer span.End()

	const query = `
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now().UTC()
	for _, record := range records {
		_, err := tx.ExecContext(ctx, query,
			record.EventID,
			record.AggregateType,
			record.AggregateID,
			record.EventType,
			record.Payload,
			now,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrDuplicateEvent
			}
			return fmt.Errorf("insert outbox record %s: %w", record.EventType, err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.String("event.id", record.EventID.String()),
			attribute.String("event.type", record.EventType),
		))
	}

	return nil
}

// Undispatched returns the oldest records that have not been dispatched yet,
// in insert order.
func (s *Store) Undispatched(ctx context.Context, limit int) ([]Record, error) {
	ctx, span := s.tracer.Start(ctx, "outbox.undispatched",
		trace.WithAttributes(attribute.Int("batch.size", limit)),
	)
	defer span.End()

	const query = `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, created_at, dispatched_at
		FROM outbox
		WHERE dispatched_at IS NULL
		ORDER BY id ASC
		LIMIT $1
	`

	var records []Record
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("query undispatched records: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(records)))
	return records, nil
}

// MarkDispatched stamps the given records as delivered.
func (s *Store) MarkDispatched(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "outbox.mark_dispatched",
		trace.WithAttributes(attribute.Int("event.count", len(ids))),
	)
	defer span.End()

	const query = `
		UPDATE outbox
		SET dispatched_at = $1
		WHERE id = ANY($2) AND dispatched_at IS NULL
	`

	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC(), pq.Array(ids)); err != nil {
		return fmt.Errorf("mark records dispatched: %w", err)
	}

	return nil
}
