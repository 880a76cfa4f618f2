// internal/reservation/implementation.go
package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendhall/internal/domain"
	"lendhall/internal/lending"
	"lendhall/internal/outbox"
)

const aggregateTypeReservation = "reservation"

var dialect = goqu.Dialect("postgres")

var reservationColumns = []any{
	"id", "member_id", "book_copy_id", "reserved_at", "queue_position",
	"status", "version", "created_at", "updated_at",
}

// service implements the Service interface.
type service struct {
	db     *sqlx.DB
	outbox *outbox.Store
	clock  domain.Clock
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewService creates a new reservation service instance.
func NewService(db *sqlx.DB, ob *outbox.Store, clock domain.Clock, logger zerolog.Logger) Service {
	return &service{
		db:     db,
		outbox: ob,
		clock:  clock,
		logger: logger,
		tracer: otel.Tracer("lendhall/reservation"),
	}
}

// PlaceReservation queues a hold on a copy. Eligibility and the queue position
// are both evaluated inside one serializable transaction; a partial unique
// index on (member_id, book_copy_id) for active rows backs the duplicate rule
// against concurrent requests.
func (s *service) PlaceReservation(ctx context.Context, memberID domain.MemberID, copyID domain.BookCopyID) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.place",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.String("copy.id", copyID.String()),
		),
	)
	defer span.End()

	now := s.clock()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Step 1: Gather the placement context.
	pc, err := s.loadPlacementContext(ctx, tx, memberID, copyID)
	if err != nil {
		return nil, err
	}

	// Step 2: Decide.
	if d := CheckPlacement(pc); !d.Allowed {
		return nil, d.Err()
	}

	// Step 3: Assign the queue position from the in-transaction active count.
	activeForCopy, err := s.countActiveForCopy(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}

	res, err := NewReservation(memberID, copyID, NextQueuePosition(activeForCopy), now)
	if err != nil {
		return nil, err
	}

	// Step 4: Persist and record the event.
	const insert = `
		INSERT INTO reservations (id, member_id, book_copy_id, reserved_at, queue_position, status, version, created_at, updated_at)
		VALUES (:id, :member_id, :book_copy_id, :reserved_at, :queue_position, :status, :version, :created_at, :updated_at)
	`
	if _, err := tx.NamedExecContext(ctx, insert, res); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	record, err := outbox.NewRecord(aggregateTypeReservation, res.ID.UUID, ReservationPlacedEventType, ReservationPlacedEvent{
		ReservationID: res.ID,
		MemberID:      memberID,
		BookCopyID:    copyID,
		QueuePosition: res.QueuePosition,
		ReservedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.outbox.Append(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return res, nil
}

// CancelReservation cancels a hold. Queue positions of later reservations are
// deliberately left alone: positions record arrival order.
func (s *service) CancelReservation(ctx context.Context, id domain.ReservationID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := s.getReservationTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if d := res.CanCancel(); !d.Allowed {
		return d.Err()
	}
	res.Cancel()

	if err := s.updateStatusTx(ctx, tx, res); err != nil {
		return err
	}

	record, err := outbox.NewRecord(aggregateTypeReservation, res.ID.UUID, ReservationCancelledEventType, ReservationCancelledEvent{
		ReservationID: res.ID,
		BookCopyID:    res.BookCopyID,
	})
	if err != nil {
		return err
	}
	if err := s.outbox.Append(ctx, tx, record); err != nil {
		return err
	}

	return tx.Commit()
}

// GetReservation retrieves a reservation by id.
func (s *service) GetReservation(ctx context.Context, id domain.ReservationID) (*Reservation, error) {
	query, args, err := dialect.From("reservations").
		Prepared(true).
		Select(reservationColumns...).
		Where(goqu.Ex{"id": id.String()}).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build reservation query: %w", err)
	}

	res := &Reservation{}
	if err := s.db.GetContext(ctx, res, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("reservation %s", id)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// ListReservationsForCopy returns the queue for a copy in arrival order.
func (s *service) ListReservationsForCopy(ctx context.Context, copyID domain.BookCopyID, activeOnly bool) ([]*Reservation, error) {
	ds := dialect.From("reservations").
		Prepared(true).
		Select(reservationColumns...).
		Where(goqu.Ex{"book_copy_id": copyID.String()}).
		Order(goqu.I("queue_position").Asc())
	if activeOnly {
		ds = ds.Where(goqu.Ex{"status": string(StatusActive)})
	}

	return s.selectReservations(ctx, ds)
}

// ListReservationsForMember returns a member's reservations, newest first.
func (s *service) ListReservationsForMember(ctx context.Context, memberID domain.MemberID, activeOnly bool) ([]*Reservation, error) {
	ds := dialect.From("reservations").
		Prepared(true).
		Select(reservationColumns...).
		Where(goqu.Ex{"member_id": memberID.String()}).
		Order(goqu.I("reserved_at").Desc())
	if activeOnly {
		ds = ds.Where(goqu.Ex{"status": string(StatusActive)})
	}

	return s.selectReservations(ctx, ds)
}

func (s *service) selectReservations(ctx context.Context, ds *goqu.SelectDataset) ([]*Reservation, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build reservation query: %w", err)
	}

	var reservations []*Reservation
	if err := s.db.SelectContext(ctx, &reservations, query, args...); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

func (s *service) loadPlacementContext(ctx context.Context, tx *sqlx.Tx, memberID domain.MemberID, copyID domain.BookCopyID) (PlacementContext, error) {
	var pc PlacementContext

	var memberActive bool
	if err := tx.GetContext(ctx, &memberActive, `SELECT active FROM members WHERE id = $1`, memberID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pc, domain.NotFoundf("member %s", memberID)
		}
		return pc, fmt.Errorf("get member: %w", err)
	}

	var copyStatus lending.CopyStatus
	if err := tx.GetContext(ctx, &copyStatus, `SELECT status FROM book_copies WHERE id = $1`, copyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pc, domain.NotFoundf("book copy %s", copyID)
		}
		return pc, fmt.Errorf("get book copy: %w", err)
	}

	var memberActiveCount int
	const countMember = `SELECT COUNT(*) FROM reservations WHERE member_id = $1 AND status = 'Active'`
	if err := tx.GetContext(ctx, &memberActiveCount, countMember, memberID); err != nil {
		return pc, fmt.Errorf("count member reservations: %w", err)
	}

	var duplicateExists bool
	const dupe = `SELECT EXISTS (SELECT 1 FROM reservations WHERE member_id = $1 AND book_copy_id = $2 AND status = 'Active')`
	if err := tx.GetContext(ctx, &duplicateExists, dupe, memberID, copyID); err != nil {
		return pc, fmt.Errorf("check duplicate reservation: %w", err)
	}

	return PlacementContext{
		MemberActive:      memberActive,
		CopyStatus:        copyStatus,
		MemberActiveCount: memberActiveCount,
		DuplicateExists:   duplicateExists,
	}, nil
}

func (s *service) countActiveForCopy(ctx context.Context, tx *sqlx.Tx, copyID domain.BookCopyID) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM reservations WHERE book_copy_id = $1 AND status = 'Active'`
	if err := tx.GetContext(ctx, &count, query, copyID); err != nil {
		return 0, fmt.Errorf("count copy reservations: %w", err)
	}
	return count, nil
}

func (s *service) getReservationTx(ctx context.Context, tx *sqlx.Tx, id domain.ReservationID) (*Reservation, error) {
	res := &Reservation{}
	const query = `
		SELECT id, member_id, book_copy_id, reserved_at, queue_position, status, version, created_at, updated_at
		FROM reservations
		WHERE id = $1
	`
	if err := tx.GetContext(ctx, res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("reservation %s", id)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (s *service) updateStatusTx(ctx context.Context, tx *sqlx.Tx, res *Reservation) error {
	const query = `
		UPDATE reservations
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`
	result, err := tx.ExecContext(ctx, query, res.Status, s.clock(), res.ID, res.Version)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return domain.Conflictf("reservation %s was modified concurrently", res.ID)
	}
	return nil
}

// Fulfiller fulfills holds from inside the lending return transaction. It
// satisfies lending.ReservationFulfiller.
type Fulfiller struct {
	outbox *outbox.Store
}

// NewFulfiller creates a Fulfiller writing fulfillment events to the outbox.
func NewFulfiller(ob *outbox.Store) *Fulfiller {
	return &Fulfiller{outbox: ob}
}

// FulfillNext marks the oldest active reservation for the copy as fulfilled
// inside the caller's transaction. Returns false when the queue is empty.
func (f *Fulfiller) FulfillNext(ctx context.Context, tx *sqlx.Tx, copyID domain.BookCopyID, now time.Time) (bool, error) {
	res := &Reservation{}
	const query = `
		SELECT id, member_id, book_copy_id, reserved_at, queue_position, status, version, created_at, updated_at
		FROM reservations
		WHERE book_copy_id = $1 AND status = 'Active'
		ORDER BY queue_position ASC
		LIMIT 1
	`
	if err := tx.GetContext(ctx, res, query, copyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get next reservation: %w", err)
	}

	res.Fulfill()

	const update = `
		UPDATE reservations
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`
	result, err := tx.ExecContext(ctx, update, res.Status, now, res.ID, res.Version)
	if err != nil {
		return false, fmt.Errorf("update reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return false, domain.Conflictf("reservation %s was modified concurrently", res.ID)
	}

	record, err := outbox.NewRecord(aggregateTypeReservation, res.ID.UUID, ReservationFulfilledEventType, ReservationFulfilledEvent{
		ReservationID: res.ID,
		MemberID:      res.MemberID,
		BookCopyID:    res.BookCopyID,
	})
	if err != nil {
		return false, err
	}
	if err := f.outbox.Append(ctx, tx, record); err != nil {
		return false, err
	}

	return true, nil
}
