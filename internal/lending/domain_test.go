// internal/lending/domain_test.go
package lending

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"lendhall/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestMember(t *testing.T) *Member {
	t.Helper()
	m, err := NewMember("Ada Lovelace", "M-0001", testNow)
	require.NoError(t, err)
	return m
}

func newTestCopy(t *testing.T, referenceOnly bool) *BookCopy {
	t.Helper()
	c, err := NewBookCopy("The Go Programming Language", "C-0001", referenceOnly, testNow)
	require.NoError(t, err)
	return c
}

func TestNewMemberValidation(t *testing.T) {
	_, err := NewMember("  ", "M-0001", testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NewMember("Ada", "", testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestMemberCanBorrow(t *testing.T) {
	m := newTestMember(t)
	assert.True(t, m.CanBorrow().Allowed)

	m.LoanCount = MaxLoanCount
	d := m.CanBorrow()
	assert.False(t, d.Allowed)
	assert.Equal(t, "member has reached the loan limit", d.Reason)

	m.LoanCount = 0
	m.Deactivate()
	d = m.CanBorrow()
	assert.False(t, d.Allowed)
	assert.Equal(t, "member is not active", d.Reason)
}

func TestIncrementLoanCountStopsAtLimit(t *testing.T) {
	m := newTestMember(t)
	for i := 0; i < MaxLoanCount; i++ {
		require.NoError(t, m.IncrementLoanCount())
	}
	err := m.IncrementLoanCount()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, MaxLoanCount, m.LoanCount)
}

func TestDecrementLoanCountNeverNegative(t *testing.T) {
	m := newTestMember(t)
	err := m.DecrementLoanCount()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, 0, m.LoanCount)

	require.NoError(t, m.IncrementLoanCount())
	require.NoError(t, m.DecrementLoanCount())
	assert.Equal(t, 0, m.LoanCount)
}

// Any arbitrary interleaving of borrows and returns keeps the count in
// [0, MaxLoanCount].
func TestLoanCountInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m, err := NewMember("Property Member", "M-PROP", testNow)
		if err != nil {
			t.Fatalf("new member: %v", err)
		}

		steps := rapid.IntRange(0, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "borrow") {
				m.IncrementLoanCount()
			} else {
				m.DecrementLoanCount()
			}
			if m.LoanCount < 0 || m.LoanCount > MaxLoanCount {
				t.Fatalf("loan count %d out of range", m.LoanCount)
			}
		}
	})
}

func TestBookCopyCheckOutAndReturn(t *testing.T) {
	c := newTestCopy(t, false)
	assert.Equal(t, CopyAvailable, c.Status)

	require.NoError(t, c.CheckOut())
	assert.Equal(t, CopyOnLoan, c.Status)

	err := c.CheckOut()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, c.Return())
	assert.Equal(t, CopyAvailable, c.Status)

	err = c.Return()
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestReferenceOnlyCopyNeverLends(t *testing.T) {
	c := newTestCopy(t, true)
	assert.Equal(t, CopyReferenceOnly, c.Status)

	err := c.CheckOut()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference-only")
}

func TestLostIsTerminal(t *testing.T) {
	c := newTestCopy(t, false)
	require.NoError(t, c.CheckOut())

	c.MarkAsLost()
	assert.Equal(t, CopyLost, c.Status)

	assert.Error(t, c.CheckOut())
	assert.Error(t, c.Return())
	assert.Equal(t, CopyLost, c.Status)
}

func TestNewLoanDueDate(t *testing.T) {
	loanDate := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	l, err := NewLoan(domain.NewMemberID(), domain.NewBookCopyID(), loanDate)
	require.NoError(t, err)

	assert.Equal(t, loanDate.AddDate(0, 0, LoanPeriodDays), l.DueDate)
	assert.False(t, l.IsReturned())
}

func TestNewLoanRejectsNilIDs(t *testing.T) {
	_, err := NewLoan(domain.MemberID{}, domain.NewBookCopyID(), testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NewLoan(domain.NewMemberID(), domain.BookCopyID{}, testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestIsOverdueBoundary(t *testing.T) {
	loanDate := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	l, err := NewLoan(domain.NewMemberID(), domain.NewBookCopyID(), loanDate)
	require.NoError(t, err)

	// The due date itself, even late in the evening, is not overdue.
	dueEvening := l.DueDate.Add(10 * time.Hour)
	assert.False(t, l.IsOverdue(dueEvening))

	// The next calendar day is.
	assert.True(t, l.IsOverdue(l.DueDate.AddDate(0, 0, 1)))
}

func TestReturnedLoanIsNotOverdue(t *testing.T) {
	l, err := NewLoan(domain.NewMemberID(), domain.NewBookCopyID(), testNow)
	require.NoError(t, err)
	require.NoError(t, l.Return(testNow.AddDate(0, 0, 30)))

	assert.False(t, l.IsOverdue(testNow.AddDate(0, 0, 60)))

	err = l.Return(testNow)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestExtend(t *testing.T) {
	l, err := NewLoan(domain.NewMemberID(), domain.NewBookCopyID(), testNow)
	require.NoError(t, err)
	originalDue := l.DueDate

	require.NoError(t, l.Extend(7, testNow))
	assert.Equal(t, originalDue.AddDate(0, 0, 7), l.DueDate)
}

func TestExtendRejections(t *testing.T) {
	l, err := NewLoan(domain.NewMemberID(), domain.NewBookCopyID(), testNow)
	require.NoError(t, err)
	originalDue := l.DueDate

	err = l.Extend(0, testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	err = l.Extend(-3, testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	// Overdue loans cannot be extended.
	err = l.Extend(7, l.DueDate.AddDate(0, 0, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, originalDue, l.DueDate)

	require.NoError(t, l.Return(testNow))
	err = l.Extend(7, testNow)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}
