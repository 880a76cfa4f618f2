// internal/lending/events.go
package lending

import (
	"time"

	"lendhall/internal/domain"
)

const (
	MemberRegisteredEventType   = "MemberRegistered"
	MemberDeactivatedEventType  = "MemberDeactivated"
	BookCopyAddedEventType      = "BookCopyAdded"
	BookCopyMarkedLostEventType = "BookCopyMarkedLost"
	BookCheckedOutEventType     = "BookCheckedOut"
	BookReturnedEventType       = "BookReturned"
	LoanExtendedEventType       = "LoanExtended"
	LoanOverdueEventType        = "LoanOverdue"
)

// MemberRegisteredEvent is published when a new member registers.
type MemberRegisteredEvent struct {
	MemberID domain.MemberID `json:"member_id"`
	Name     string          `json:"name"`
	Barcode  string          `json:"barcode"`
}

// MemberDeactivatedEvent is published when a member is deactivated.
type MemberDeactivatedEvent struct {
	MemberID domain.MemberID `json:"member_id"`
}

// BookCopyAddedEvent is published when a copy joins the collection.
type BookCopyAddedEvent struct {
	BookCopyID domain.BookCopyID `json:"book_copy_id"`
	Title      string            `json:"title"`
	Status     CopyStatus        `json:"status"`
}

// BookCopyMarkedLostEvent is published when a copy is marked lost.
type BookCopyMarkedLostEvent struct {
	BookCopyID domain.BookCopyID `json:"book_copy_id"`
}

// BookCheckedOutEvent is published when a loan is created.
type BookCheckedOutEvent struct {
	LoanID     domain.LoanID     `json:"loan_id"`
	MemberID   domain.MemberID   `json:"member_id"`
	BookCopyID domain.BookCopyID `json:"book_copy_id"`
	DueDate    time.Time         `json:"due_date"`
}

// BookReturnedEvent is published when a loan is closed.
type BookReturnedEvent struct {
	LoanID     domain.LoanID     `json:"loan_id"`
	MemberID   domain.MemberID   `json:"member_id"`
	BookCopyID domain.BookCopyID `json:"book_copy_id"`
	ReturnedAt time.Time         `json:"returned_at"`
}

// LoanExtendedEvent is published when a due date moves.
type LoanExtendedEvent struct {
	LoanID     domain.LoanID `json:"loan_id"`
	NewDueDate time.Time     `json:"new_due_date"`
}

// LoanOverdueEvent is published by the overdue sweep, once per loan.
type LoanOverdueEvent struct {
	LoanID   domain.LoanID   `json:"loan_id"`
	MemberID domain.MemberID `json:"member_id"`
	DueDate  time.Time       `json:"due_date"`
}
