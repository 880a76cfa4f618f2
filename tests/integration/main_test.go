// tests/integration/main_test.go
package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendhall/internal/approval"
	"lendhall/internal/domain"
	"lendhall/internal/lending"
	"lendhall/internal/outbox"
	"lendhall/internal/platform/database"
	"lendhall/internal/reservation"
)

// TestSuite wires the real services against a postgres instance. Tests skip
// unless DATABASE_URL points at a reachable database.
type TestSuite struct {
	lending      lending.Service
	reservations reservation.Service
	approvals    approval.Service
	outbox       *outbox.Store
	seq          int
}

func setupTestSuite(t *testing.T) *TestSuite {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("skipping integration tests: DATABASE_URL not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		t.Skipf("skipping integration tests: could not connect to postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("TRUNCATE TABLE outbox, approval_history, applications, workflow_definitions, reservations, loans, book_copies, members CASCADE")
	require.NoError(t, err)

	logger := zerolog.Nop()
	ob := outbox.NewStore(db)

	return &TestSuite{
		lending:      lending.NewService(db, ob, reservation.NewFulfiller(ob), domain.SystemClock, logger),
		reservations: reservation.NewService(db, ob, domain.SystemClock, logger),
		approvals:    approval.NewService(db, ob, nil, nil, domain.SystemClock, logger),
		outbox:       ob,
	}
}

func (ts *TestSuite) barcode(prefix string) string {
	ts.seq++
	return fmt.Sprintf("%s-%04d", prefix, ts.seq)
}

func TestCheckoutAndReturnFlow(t *testing.T) {
	ts := setupTestSuite(t)
	ctx := context.Background()

	member, err := ts.lending.RegisterMember(ctx, "Integration Member", ts.barcode("M"))
	require.NoError(t, err)

	bookCopy, err := ts.lending.AddBookCopy(ctx, "Integration Testing in Go", ts.barcode("C"), false)
	require.NoError(t, err)

	loan, err := ts.lending.CheckoutBook(ctx, member.ID, bookCopy.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.LoanDate.AddDate(0, 0, lending.LoanPeriodDays), loan.DueDate)

	updatedCopy, err := ts.lending.GetBookCopy(ctx, bookCopy.ID)
	require.NoError(t, err)
	assert.Equal(t, lending.CopyOnLoan, updatedCopy.Status)

	updatedMember, err := ts.lending.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updatedMember.LoanCount)

	// A second checkout of the same copy conflicts.
	other, err := ts.lending.RegisterMember(ctx, "Second Member", ts.barcode("M"))
	require.NoError(t, err)
	_, err = ts.lending.CheckoutBook(ctx, other.ID, bookCopy.ID)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, ts.lending.ReturnBook(ctx, loan.ID))

	returnedCopy, err := ts.lending.GetBookCopy(ctx, bookCopy.ID)
	require.NoError(t, err)
	assert.Equal(t, lending.CopyAvailable, returnedCopy.Status)

	closedLoan, err := ts.lending.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, closedLoan.IsReturned())

	err = ts.lending.ReturnBook(ctx, loan.ID)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	// The flow left events behind for the dispatcher.
	pending, err := ts.outbox.Undispatched(ctx, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, pending)
}

func TestLoanLimitEnforced(t *testing.T) {
	ts := setupTestSuite(t)
	ctx := context.Background()

	member, err := ts.lending.RegisterMember(ctx, "Heavy Borrower", ts.barcode("M"))
	require.NoError(t, err)

	for i := 0; i < lending.MaxLoanCount; i++ {
		bookCopy, err := ts.lending.AddBookCopy(ctx, fmt.Sprintf("Volume %d", i+1), ts.barcode("C"), false)
		require.NoError(t, err)
		_, err = ts.lending.CheckoutBook(ctx, member.ID, bookCopy.ID)
		require.NoError(t, err)
	}

	extra, err := ts.lending.AddBookCopy(ctx, "One Too Many", ts.barcode("C"), false)
	require.NoError(t, err)
	_, err = ts.lending.CheckoutBook(ctx, member.ID, extra.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestReservationQueueAndFulfillment(t *testing.T) {
	ts := setupTestSuite(t)
	ctx := context.Background()

	borrower, err := ts.lending.RegisterMember(ctx, "Borrower", ts.barcode("M"))
	require.NoError(t, err)
	first, err := ts.lending.RegisterMember(ctx, "First In Queue", ts.barcode("M"))
	require.NoError(t, err)
	second, err := ts.lending.RegisterMember(ctx, "Second In Queue", ts.barcode("M"))
	require.NoError(t, err)

	bookCopy, err := ts.lending.AddBookCopy(ctx, "Popular Title", ts.barcode("C"), false)
	require.NoError(t, err)

	// An available copy cannot be reserved.
	_, err = ts.reservations.PlaceReservation(ctx, first.ID, bookCopy.ID)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	loan, err := ts.lending.CheckoutBook(ctx, borrower.ID, bookCopy.ID)
	require.NoError(t, err)

	r1, err := ts.reservations.PlaceReservation(ctx, first.ID, bookCopy.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, r1.QueuePosition)

	r2, err := ts.reservations.PlaceReservation(ctx, second.ID, bookCopy.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, r2.QueuePosition)

	// Duplicate hold by the same member is refused.
	_, err = ts.reservations.PlaceReservation(ctx, first.ID, bookCopy.ID)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	// Returning the copy fulfills the oldest reservation.
	require.NoError(t, ts.lending.ReturnBook(ctx, loan.ID))

	fulfilled, err := ts.reservations.GetReservation(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusFulfilled, fulfilled.Status)

	waiting, err := ts.reservations.GetReservation(ctx, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusActive, waiting.Status)

	// Cancelling never renumbers: the second hold keeps position 2.
	require.NoError(t, ts.reservations.CancelReservation(ctx, r2.ID))
	cancelled, err := ts.reservations.GetReservation(ctx, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cancelled.QueuePosition)
	assert.Equal(t, reservation.StatusCancelled, cancelled.Status)
}

func TestApprovalWorkflowFlow(t *testing.T) {
	ts := setupTestSuite(t)
	ctx := context.Background()

	applicant, err := ts.lending.RegisterMember(ctx, "Applicant", ts.barcode("M"))
	require.NoError(t, err)

	wf, err := ts.approvals.CreateWorkflowDefinition(ctx, "purchase", []approval.StepSpec{
		{Name: "Team lead review", Role: "lead"},
		{Name: "Manager sign-off", Role: "manager"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, wf.StepCount())

	app, err := ts.approvals.CreateApplication(ctx, applicant.ID, "purchase", "three new scanners")
	require.NoError(t, err)
	require.NotNil(t, app.WorkflowID)
	assert.Equal(t, wf.ID, *app.WorkflowID)

	require.NoError(t, ts.approvals.Submit(ctx, app.ID, applicant.ID))
	require.NoError(t, ts.approvals.StartReview(ctx, app.ID))

	lead := domain.NewMemberID()
	manager := domain.NewMemberID()

	// The manager cannot act on the lead's step.
	_, err = ts.approvals.Approve(ctx, app.ID, manager, "manager", "")
	assert.True(t, errors.Is(err, domain.ErrConflict))

	midway, err := ts.approvals.Approve(ctx, app.ID, lead, "lead", "fine by me")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusInReview, midway.Status)
	assert.Equal(t, 2, midway.CurrentStep)

	final, err := ts.approvals.Approve(ctx, app.ID, manager, "manager", "")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, final.Status)

	stored, err := ts.approvals.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, stored.History, 2)
	assert.Equal(t, approval.ActionApproved, stored.History[0].Action)
}

func TestApprovalReturnAndResubmit(t *testing.T) {
	ts := setupTestSuite(t)
	ctx := context.Background()

	applicant, err := ts.lending.RegisterMember(ctx, "Returner", ts.barcode("M"))
	require.NoError(t, err)

	_, err = ts.approvals.CreateWorkflowDefinition(ctx, "leave", []approval.StepSpec{
		{Name: "Supervisor review", Role: "supervisor"},
	})
	require.NoError(t, err)

	app, err := ts.approvals.CreateApplication(ctx, applicant.ID, "leave", "two weeks in May")
	require.NoError(t, err)

	require.NoError(t, ts.approvals.Submit(ctx, app.ID, applicant.ID))
	require.NoError(t, ts.approvals.StartReview(ctx, app.ID))

	supervisor := domain.NewMemberID()
	require.NoError(t, ts.approvals.ReturnToApplicant(ctx, app.ID, supervisor, "supervisor", "dates missing"))

	returned, err := ts.approvals.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusReturned, returned.Status)

	// Only the applicant may resubmit.
	err = ts.approvals.Resubmit(ctx, app.ID, supervisor)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, ts.approvals.Resubmit(ctx, app.ID, applicant.ID))
	require.NoError(t, ts.approvals.StartReview(ctx, app.ID))

	resumed, err := ts.approvals.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.CurrentStep)
}
