// internal/lending/implementation.go
package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendhall/internal/domain"
	"lendhall/internal/outbox"
	"lendhall/internal/platform/metrics"
)

const aggregateTypeMember = "member"
const aggregateTypeBookCopy = "book_copy"
const aggregateTypeLoan = "loan"

// ReservationFulfiller fulfills the oldest active reservation for a copy
// inside the caller's transaction. Implemented by the reservation context.
type ReservationFulfiller interface {
	FulfillNext(ctx context.Context, tx *sqlx.Tx, copyID domain.BookCopyID, now time.Time) (bool, error)
}

// service implements the Service interface.
type service struct {
	db           *sqlx.DB
	outbox       *outbox.Store
	reservations ReservationFulfiller
	clock        domain.Clock
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewService creates a new lending service instance. reservations may be nil
// when the reservation context is not deployed alongside.
func NewService(db *sqlx.DB, ob *outbox.Store, reservations ReservationFulfiller, clock domain.Clock, logger zerolog.Logger) Service {
	return &service{
		db:           db,
		outbox:       ob,
		reservations: reservations,
		clock:        clock,
		logger:       logger,
		tracer:       otel.Tracer("lendhall/lending"),
	}
}

// RegisterMember creates a new member.
func (s *service) RegisterMember(ctx context.Context, name, barcode string) (*Member, error) {
	member, err := NewMember(name, barcode, s.clock())
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO members (id, name, barcode, loan_count, active, version, created_at, updated_at)
		VALUES (:id, :name, :barcode, :loan_count, :active, :version, :created_at, :updated_at)
	`
	if _, err := tx.NamedExecContext(ctx, query, member); err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	record, err := outbox.NewRecord(aggregateTypeMember, member.ID.UUID, MemberRegisteredEventType, MemberRegisteredEvent{
		MemberID: member.ID,
		Name:     member.Name,
		Barcode:  member.Barcode,
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

	return member, nil
}

// DeactivateMember turns a member inactive; members are never deleted.
func (s *service) DeactivateMember(ctx context.Context, id domain.MemberID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	member, err := s.getMemberTx(ctx, tx, id)
	if err != nil {
		return err
	}

	member.Deactivate()
	if err := s.updateMemberTx(ctx, tx, member); err != nil {
		return err
	}

	record, err := outbox.NewRecord(aggregateTypeMember, member.ID.UUID, MemberDeactivatedEventType, MemberDeactivatedEvent{MemberID: member.ID})
	if err != nil {
		return err
	}
	if err := s.outbox.Append(ctx, tx, record); err != nil {
		return err
	}

	return tx.Commit()
}

// GetMember retrieves a member by id.
func (s *service) GetMember(ctx context.Context, id domain.MemberID) (*Member, error) {
	member := &Member{}
	const query = `
		SELECT id, name, barcode, loan_count, active, version, created_at, updated_at
		FROM members
		WHERE id = $1
	`
	if err := s.db.GetContext(ctx, member, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("member %s", id)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

// AddBookCopy adds a copy to the collection.
func (s *service) AddBookCopy(ctx context.Context, title, barcode string, referenceOnly bool) (*BookCopy, error) {
	bookCopy, err := NewBookCopy(title, barcode, referenceOnly, s.clock())
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO book_copies (id, title, barcode, status, version, created_at, updated_at)
		VALUES (:id, :title, :barcode, :status, :version, :created_at, :updated_at)
	`
	if _, err := tx.NamedExecContext(ctx, query, bookCopy); err != nil {
		return nil, fmt.Errorf("insert book copy: %w", err)
	}

	record, err := outbox.NewRecord(aggregateTypeBookCopy, bookCopy.ID.UUID, BookCopyAddedEventType, BookCopyAddedEvent{
		BookCopyID: bookCopy.ID,
		Title:      bookCopy.Title,
		Status:     bookCopy.Status,
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

	return bookCopy, nil
}

// MarkCopyLost marks a copy lost regardless of its current state.
func (s *service) MarkCopyLost(ctx context.Context, id domain.BookCopyID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	bookCopy, err := s.getBookCopyTx(ctx, tx, id)
	if err != nil {
		return err
	}

	bookCopy.MarkAsLost()
	if err := s.updateBookCopyTx(ctx, tx, bookCopy); err != nil {
		return err
	}

	record, err := outbox.NewRecord(aggregateTypeBookCopy, bookCopy.ID.UUID, BookCopyMarkedLostEventType, BookCopyMarkedLostEvent{BookCopyID: bookCopy.ID})
	if err != nil {
		return err
	}
	if err := s.outbox.Append(ctx, tx, record); err != nil {
		return err
	}

	return tx.Commit()
}

// GetBookCopy retrieves a copy by id.
func (s *service) GetBookCopy(ctx context.Context, id domain.BookCopyID) (*BookCopy, error) {
	bookCopy := &BookCopy{}
	const query = `
		SELECT id, title, barcode, status, version, created_at, updated_at
		FROM book_copies
		WHERE id = $1
	`
	if err := s.db.GetContext(ctx, bookCopy, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("book copy %s", id)
		}
		return nil, fmt.Errorf("get book copy: %w", err)
	}
	return bookCopy, nil
}

// CheckoutBook creates a loan. Member, copy and loan all change in one
// serializable transaction: all three mutations succeed or none persist.
func (s *service) CheckoutBook(ctx context.Context, memberID domain.MemberID, copyID domain.BookCopyID) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "lending.checkout",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.String("copy.id", copyID.String()),
		),
	)
	defer span.End()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Step 1: Load both aggregates.
	member, err := s.getMemberTx(ctx, tx, memberID)
	if err != nil {
		return nil, err
	}
	bookCopy, err := s.getBookCopyTx(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}

	// Step 2: Apply the domain rules; either rejection leaves everything untouched.
	if err := member.IncrementLoanCount(); err != nil {
		return nil, err
	}
	if err := bookCopy.CheckOut(); err != nil {
		return nil, err
	}

	// Step 3: Create the loan.
	loan, err := NewLoan(memberID, copyID, s.clock())
	if err != nil {
		return nil, err
	}

	// Step 4: Persist member, copy and loan.
	if err := s.updateMemberTx(ctx, tx, member); err != nil {
		return nil, err
	}
	if err := s.updateBookCopyTx(ctx, tx, bookCopy); err != nil {
		return nil, err
	}
	const insertLoan = `
		INSERT INTO loans (id, member_id, book_copy_id, loan_date, due_date, returned_at, version, created_at, updated_at)
		VALUES (:id, :member_id, :book_copy_id, :loan_date, :due_date, :returned_at, :version, :created_at, :updated_at)
	`
	if _, err := tx.NamedExecContext(ctx, insertLoan, loan); err != nil {
		return nil, fmt.Errorf("insert loan: %w", err)
	}

	// Step 5: Record the event in the same transaction.
	record, err := outbox.NewRecord(aggregateTypeLoan, loan.ID.UUID, BookCheckedOutEventType, BookCheckedOutEvent{
		LoanID:     loan.ID,
		MemberID:   memberID,
		BookCopyID: copyID,
		DueDate:    loan.DueDate,
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

	return loan, nil
}

// ReturnBook closes a loan, frees the copy, decrements the member's loan count
// and fulfills the oldest active reservation for the copy if one exists.
func (s *service) ReturnBook(ctx context.Context, loanID domain.LoanID) error {
	ctx, span := s.tracer.Start(ctx, "lending.return",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	now := s.clock()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := s.getLoanTx(ctx, tx, loanID)
	if err != nil {
		return err
	}
	if err := loan.Return(now); err != nil {
		return err
	}

	bookCopy, err := s.getBookCopyTx(ctx, tx, loan.BookCopyID)
	if err != nil {
		return err
	}
	if err := bookCopy.Return(); err != nil {
		return err
	}

	member, err := s.getMemberTx(ctx, tx, loan.MemberID)
	if err != nil {
		return err
	}
	if err := member.DecrementLoanCount(); err != nil {
		return err
	}

	if err := s.updateLoanTx(ctx, tx, loan); err != nil {
		return err
	}
	if err := s.updateBookCopyTx(ctx, tx, bookCopy); err != nil {
		return err
	}
	if err := s.updateMemberTx(ctx, tx, member); err != nil {
		return err
	}

	if s.reservations != nil {
		fulfilled, err := s.reservations.FulfillNext(ctx, tx, loan.BookCopyID, now)
		if err != nil {
			return fmt.Errorf("fulfill next reservation: %w", err)
		}
		if fulfilled {
			s.logger.Info().
				Str("book_copy_id", loan.BookCopyID.String()).
				Msg("oldest reservation fulfilled on return")
		}
	}

	record, err := outbox.NewRecord(aggregateTypeLoan, loan.ID.UUID, BookReturnedEventType, BookReturnedEvent{
		LoanID:     loan.ID,
		MemberID:   loan.MemberID,
		BookCopyID: loan.BookCopyID,
		ReturnedAt: now,
	})
	if err != nil {
		return err
	}
	if err := s.outbox.Append(ctx, tx, record); err != nil {
		return err
	}

	return tx.Commit()
}

// ExtendLoan pushes the due date out for a loan that is neither returned nor
// overdue.
func (s *service) ExtendLoan(ctx context.Context, loanID domain.LoanID, days int) (*Loan, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := s.getLoanTx(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if err := loan.Extend(days, s.clock()); err != nil {
		return nil, err
	}
	if err := s.updateLoanTx(ctx, tx, loan); err != nil {
		return nil, err
	}

	record, err := outbox.NewRecord(aggregateTypeLoan, loan.ID.UUID, LoanExtendedEventType, LoanExtendedEvent{
		LoanID:     loan.ID,
		NewDueDate: loan.DueDate,
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

	return loan, nil
}

// GetLoan retrieves a loan by id.
func (s *service) GetLoan(ctx context.Context, id domain.LoanID) (*Loan, error) {
	loan := &Loan{}
	const query = `
		SELECT id, member_id, book_copy_id, loan_date, due_date, returned_at, version, created_at, updated_at
		FROM loans
		WHERE id = $1
	`
	if err := s.db.GetContext(ctx, loan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("loan %s", id)
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return loan, nil
}

// ListOverdueLoans returns open loans whose due date lies before asOf's date.
func (s *service) ListOverdueLoans(ctx context.Context, asOf time.Time) ([]*Loan, error) {
	const query = `
		SELECT id, member_id, book_copy_id, loan_date, due_date, returned_at, version, created_at, updated_at
		FROM loans
		WHERE returned_at IS NULL AND due_date::date < $1::date
		ORDER BY due_date ASC
	`
	var loans []*Loan
	if err := s.db.SelectContext(ctx, &loans, query, asOf); err != nil {
		return nil, fmt.Errorf("list overdue loans: %w", err)
	}
	return loans, nil
}

// SweepOverdue flags newly overdue loans and emits one LoanOverdue event per
// loan. Already-flagged loans are skipped, so the sweep is idempotent.
func (s *service) SweepOverdue(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "lending.sweep_overdue")
	defer span.End()

	now := s.clock()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		SELECT id, member_id, book_copy_id, loan_date, due_date, returned_at, version, created_at, updated_at
		FROM loans
		WHERE returned_at IS NULL AND overdue_flagged = FALSE AND due_date::date < $1::date
		ORDER BY id ASC
	`
	var loans []*Loan
	if err := tx.SelectContext(ctx, &loans, query, now); err != nil {
		return 0, fmt.Errorf("query newly overdue loans: %w", err)
	}
	if len(loans) == 0 {
		return 0, tx.Commit()
	}

	records := make([]outbox.Record, 0, len(loans))
	for _, loan := range loans {
		record, err := outbox.NewRecord(aggregateTypeLoan, loan.ID.UUID, LoanOverdueEventType, LoanOverdueEvent{
			LoanID:   loan.ID,
			MemberID: loan.MemberID,
			DueDate:  loan.DueDate,
		})
		if err != nil {
			return 0, err
		}
		records = append(records, record)

		if _, err := tx.ExecContext(ctx, `UPDATE loans SET overdue_flagged = TRUE, updated_at = $1 WHERE id = $2`, now, loan.ID); err != nil {
			return 0, fmt.Errorf("flag loan overdue: %w", err)
		}
	}

	if err := s.outbox.Append(ctx, tx, records...); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	metrics.OverdueSwept.Add(float64(len(loans)))
	span.SetAttributes(attribute.Int("loans.flagged", len(loans)))
	return len(loans), nil
}

func (s *service) getMemberTx(ctx context.Context, tx *sqlx.Tx, id domain.MemberID) (*Member, error) {
	member := &Member{}
	const query = `
		SELECT id, name, barcode, loan_count, active, version, created_at, updated_at
		FROM members
		WHERE id = $1
	`
	if err := tx.GetContext(ctx, member, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("member %s", id)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

func (s *service) getBookCopyTx(ctx context.Context, tx *sqlx.Tx, id domain.BookCopyID) (*BookCopy, error) {
	bookCopy := &BookCopy{}
	const query = `
		SELECT id, title, barcode, status, version, created_at, updated_at
		FROM book_copies
		WHERE id = $1
	`
	if err := tx.GetContext(ctx, bookCopy, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("book copy %s", id)
		}
		return nil, fmt.Errorf("get book copy: %w", err)
	}
	return bookCopy, nil
}

func (s *service) getLoanTx(ctx context.Context, tx *sqlx.Tx, id domain.LoanID) (*Loan, error) {
	loan := &Loan{}
	const query = `
		SELECT id, member_id, book_copy_id, loan_date, due_date, returned_at, version, created_at, updated_at
		FROM loans
		WHERE id = $1
	`
	if err := tx.GetContext(ctx, loan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("loan %s", id)
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return loan, nil
}

// updateMemberTx persists a member with an optimistic version check.
func (s *service) updateMemberTx(ctx context.Context, tx *sqlx.Tx, member *Member) error {
	const query = `
		UPDATE members
		SET name = $1, loan_count = $2, active = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6
	`
	res, err := tx.ExecContext(ctx, query, member.Name, member.LoanCount, member.Active, s.clock(), member.ID, member.Version)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return requireOneRow(res, "member", member.ID.String())
}

func (s *service) updateBookCopyTx(ctx context.Context, tx *sqlx.Tx, bookCopy *BookCopy) error {
	const query = `
		UPDATE book_copies
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`
	res, err := tx.ExecContext(ctx, query, bookCopy.Status, s.clock(), bookCopy.ID, bookCopy.Version)
	if err != nil {
		return fmt.Errorf("update book copy: %w", err)
	}
	return requireOneRow(res, "book copy", bookCopy.ID.String())
}

func (s *service) updateLoanTx(ctx context.Context, tx *sqlx.Tx, loan *Loan) error {
	const query = `
		UPDATE loans
		SET due_date = $1, returned_at = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5
	`
	res, err := tx.ExecContext(ctx, query, loan.DueDate, loan.ReturnedAt, s.clock(), loan.ID, loan.Version)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	return requireOneRow(res, "loan", loan.ID.String())
}

// requireOneRow turns a missed optimistic version check into a conflict.
func requireOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return domain.Conflictf("%s %s was modified concurrently", kind, id)
	}
	return nil
}
