// internal/lending/domain.go
package lending

import (
	"strings"
	"time"

	"lendhall/internal/domain"
)

const (
	// MaxLoanCount is the fixed per-member borrowing limit.
	MaxLoanCount = 5
	// LoanPeriodDays is the fixed loan term; the due date is set once at
	// creation and only moves through Extend.
	LoanPeriodDays = 14
)

const (
	failureReasonMemberInactive  = "member is not active"
	failureReasonLoanLimit       = "member has reached the loan limit"
	failureReasonNoOpenLoans     = "member has no open loans"
	failureReasonReferenceOnly   = "reference-only, not lendable"
	failureReasonAlreadyOnLoan   = "currently on loan"
	failureReasonCopyLost        = "copy is marked lost"
	failureReasonNotOnLoan       = "not currently on loan"
	failureReasonAlreadyReturned = "already returned"
	failureReasonOverdueExtend   = "cannot extend an overdue loan"
)

// Member is a library patron. It is deactivated, never deleted.
type Member struct {
	ID        domain.MemberID `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Barcode   string          `json:"barcode" db:"barcode"`
	LoanCount int             `json:"loan_count" db:"loan_count"`
	Active    bool            `json:"active" db:"active"`
	Version   int             `json:"version" db:"version"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// NewMember registers a new, active member with no open loans.
func NewMember(name, barcode string, now time.Time) (*Member, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.Validationf("member name must not be empty")
	}
	if strings.TrimSpace(barcode) == "" {
		return nil, domain.Validationf("member barcode must not be empty")
	}
	return &Member{
		ID:        domain.NewMemberID(),
		Name:      name,
		Barcode:   barcode,
		LoanCount: 0,
		Active:    true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanBorrow decides whether the member may take another loan.
func (m *Member) CanBorrow() domain.Decision {
	if !m.Active {
		return domain.Deny(failureReasonMemberInactive)
	}
	if m.LoanCount >= MaxLoanCount {
		return domain.Deny(failureReasonLoanLimit)
	}
	return domain.Allow()
}

// IncrementLoanCount records one more open loan. Fails without mutating when
// the member cannot borrow.
func (m *Member) IncrementLoanCount() error {
	if d := m.CanBorrow(); !d.Allowed {
		return d.Err()
	}
	m.LoanCount++
	return nil
}

// DecrementLoanCount records a returned loan. The count never goes negative.
func (m *Member) DecrementLoanCount() error {
	if m.LoanCount == 0 {
		return domain.Conflictf("%s", failureReasonNoOpenLoans)
	}
	m.LoanCount--
	return nil
}

// Deactivate turns the member inactive. Open loans keep their state; the
// member just cannot borrow or reserve anymore.
func (m *Member) Deactivate() {
	m.Active = false
}

// CopyStatus is the lending state of a physical book copy.
type CopyStatus string

const (
	CopyAvailable     CopyStatus = "Available"
	CopyOnLoan        CopyStatus = "OnLoan"
	CopyReferenceOnly CopyStatus = "ReferenceOnly"
	CopyLost          CopyStatus = "Lost"
)

// BookCopy is a physical lendable item.
//
// State machine: Available -> OnLoan -> Available via CheckOut/Return.
// ReferenceOnly never lends. Lost is reachable from any state and is a sink.
type BookCopy struct {
	ID        domain.BookCopyID `json:"id" db:"id"`
	Title     string            `json:"title" db:"title"`
	Barcode   string            `json:"barcode" db:"barcode"`
	Status    CopyStatus        `json:"status" db:"status"`
	Version   int               `json:"version" db:"version"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// NewBookCopy adds a copy to the collection, either lendable or reference-only.
func NewBookCopy(title, barcode string, referenceOnly bool, now time.Time) (*BookCopy, error) {
	if strings.TrimSpace(title) == "" {
		return nil, domain.Validationf("book title must not be empty")
	}
	if strings.TrimSpace(barcode) == "" {
		return nil, domain.Validationf("book barcode must not be empty")
	}
	status := CopyAvailable
	if referenceOnly {
		status = CopyReferenceOnly
	}
	return &BookCopy{
		ID:        domain.NewBookCopyID(),
		Title:     title,
		Barcode:   barcode,
		Status:    status,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CheckOut moves the copy to OnLoan.
func (c *BookCopy) CheckOut() error {
	switch c.Status {
	case CopyReferenceOnly:
		return domain.Conflictf("%s", failureReasonReferenceOnly)
	case CopyOnLoan:
		return domain.Conflictf("%s", failureReasonAlreadyOnLoan)
	case CopyLost:
		return domain.Conflictf("%s", failureReasonCopyLost)
	}
	c.Status = CopyOnLoan
	return nil
}

// Return moves the copy back to Available.
func (c *BookCopy) Return() error {
	if c.Status != CopyOnLoan {
		return domain.Conflictf("%s", failureReasonNotOnLoan)
	}
	c.Status = CopyAvailable
	return nil
}

// MarkAsLost is unconditional; there is no way back to Available from here.
func (c *BookCopy) MarkAsLost() {
	c.Status = CopyLost
}

// Loan is one lending transaction. The due date is fixed at creation
// (loan date + LoanPeriodDays) and only moves through Extend.
type Loan struct {
	ID         domain.LoanID     `json:"id" db:"id"`
	MemberID   domain.MemberID   `json:"member_id" db:"member_id"`
	BookCopyID domain.BookCopyID `json:"book_copy_id" db:"book_copy_id"`
	LoanDate   time.Time         `json:"loan_date" db:"loan_date"`
	DueDate    time.Time         `json:"due_date" db:"due_date"`
	ReturnedAt *time.Time        `json:"returned_at,omitempty" db:"returned_at"`
	Version    int               `json:"version" db:"version"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// NewLoan is pure construction. The caller is responsible for the matching
// Member.IncrementLoanCount and BookCopy.CheckOut in the same transaction.
func NewLoan(memberID domain.MemberID, bookCopyID domain.BookCopyID, loanDate time.Time) (*Loan, error) {
	if err := memberID.Validate(); err != nil {
		return nil, err
	}
	if err := bookCopyID.Validate(); err != nil {
		return nil, err
	}
	return &Loan{
		ID:         domain.NewLoanID(),
		MemberID:   memberID,
		BookCopyID: bookCopyID,
		LoanDate:   loanDate,
		DueDate:    loanDate.AddDate(0, 0, LoanPeriodDays),
		Version:    1,
		CreatedAt:  loanDate,
		UpdatedAt:  loanDate,
	}, nil
}

// IsReturned reports whether the loan has been closed.
func (l *Loan) IsReturned() bool {
	return l.ReturnedAt != nil
}

// IsOverdue derives overdue status from the calendar date: the due date itself
// is not overdue, the day after is.
func (l *Loan) IsOverdue(today time.Time) bool {
	return !l.IsReturned() && domain.DateOnly(today).After(domain.DateOnly(l.DueDate))
}

// Return closes the loan. A returned loan cannot be returned again.
func (l *Loan) Return(now time.Time) error {
	if l.IsReturned() {
		return domain.Conflictf("%s", failureReasonAlreadyReturned)
	}
	returned := now
	l.ReturnedAt = &returned
	return nil
}

// Extend pushes the due date out by the given number of days. Returned and
// overdue loans cannot be extended.
func (l *Loan) Extend(days int, today time.Time) error {
	if days <= 0 {
		return domain.Validationf("extension days must be positive, got %d", days)
	}
	if l.IsReturned() {
		return domain.Conflictf("%s", failureReasonAlreadyReturned)
	}
	if l.IsOverdue(today) {
		return domain.Conflictf("%s", failureReasonOverdueExtend)
	}
	l.DueDate = l.DueDate.AddDate(0, 0, days)
	return nil
}
