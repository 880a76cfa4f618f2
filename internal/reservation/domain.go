// internal/reservation/domain.go
package reservation

import (
	"time"

	"lendhall/internal/domain"
	"lendhall/internal/lending"
)

// MaxActiveReservationsPerMember is the fixed per-member reservation cap.
const MaxActiveReservationsPerMember = 3

const (
	failureReasonMemberInactive   = "member is not active"
	failureReasonReferenceOnly    = "reference-only copies are not reservable"
	failureReasonCopyAvailable    = "copy is currently available, borrow it directly"
	failureReasonDuplicate        = "member already has an active reservation for this copy"
	failureReasonReservationLimit = "member has reached the reservation limit"
	failureReasonAlreadyCancelled = "reservation is already cancelled"
	failureReasonAlreadyFulfilled = "reservation is already fulfilled"
)

// Status is the lifecycle state of a reservation. Cancelled and Fulfilled are
// terminal.
type Status string

const (
	StatusActive    Status = "Active"
	StatusCancelled Status = "Cancelled"
	StatusFulfilled Status = "Fulfilled"
)

// Reservation is a queued hold on a book copy. The queue position records
// arrival order and is never renumbered when earlier reservations cancel, so
// displayed positions can have gaps.
type Reservation struct {
	ID            domain.ReservationID `json:"id" db:"id"`
	MemberID      domain.MemberID      `json:"member_id" db:"member_id"`
	BookCopyID    domain.BookCopyID    `json:"book_copy_id" db:"book_copy_id"`
	ReservedAt    time.Time            `json:"reserved_at" db:"reserved_at"`
	QueuePosition int                  `json:"queue_position" db:"queue_position"`
	Status        Status               `json:"status" db:"status"`
	Version       int                  `json:"version" db:"version"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at" db:"updated_at"`
}

// NewReservation constructs an active reservation at the given queue position.
// Eligibility (CheckPlacement) and position counting are the caller's job;
// both must happen in the same transaction that inserts the row.
func NewReservation(memberID domain.MemberID, copyID domain.BookCopyID, queuePosition int, now time.Time) (*Reservation, error) {
	if err := memberID.Validate(); err != nil {
		return nil, err
	}
	if err := copyID.Validate(); err != nil {
		return nil, err
	}
	if queuePosition < 1 {
		return nil, domain.Validationf("queue position must be at least 1, got %d", queuePosition)
	}
	return &Reservation{
		ID:            domain.NewReservationID(),
		MemberID:      memberID,
		BookCopyID:    copyID,
		ReservedAt:    now,
		QueuePosition: queuePosition,
		Status:        StatusActive,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// NextQueuePosition derives the position for a new reservation from the number
// of currently active reservations for the copy.
func NextQueuePosition(activeCountForCopy int) int {
	return activeCountForCopy + 1
}

// PlacementContext is the state a placement decision depends on, gathered by
// the service inside the placement transaction.
type PlacementContext struct {
	MemberActive      bool
	CopyStatus        lending.CopyStatus
	MemberActiveCount int
	DuplicateExists   bool
}

// CheckPlacement decides whether a reservation may be placed. Rules, in order:
// the member must be active, the copy must not be reference-only, the copy
// must currently be unavailable for loan, the member must not already hold an
// active reservation for this copy, and the member must be under the cap.
func CheckPlacement(pc PlacementContext) domain.Decision {
	if !pc.MemberActive {
		return domain.Deny(failureReasonMemberInactive)
	}
	if pc.CopyStatus == lending.CopyReferenceOnly {
		return domain.Deny(failureReasonReferenceOnly)
	}
	if pc.CopyStatus == lending.CopyAvailable {
		return domain.Deny(failureReasonCopyAvailable)
	}
	if pc.DuplicateExists {
		return domain.Deny(failureReasonDuplicate)
	}
	if pc.MemberActiveCount >= MaxActiveReservationsPerMember {
		return domain.Deny(failureReasonReservationLimit)
	}
	return domain.Allow()
}

// CanCancel decides whether the reservation can still be cancelled.
func (r *Reservation) CanCancel() domain.Decision {
	switch r.Status {
	case StatusCancelled:
		return domain.Deny(failureReasonAlreadyCancelled)
	case StatusFulfilled:
		return domain.Deny(failureReasonAlreadyFulfilled)
	}
	return domain.Allow()
}

// Cancel sets the terminal Cancelled status unconditionally; callers check
// CanCancel first.
func (r *Reservation) Cancel() {
	r.Status = StatusCancelled
}

// Fulfill sets the terminal Fulfilled status unconditionally. Intended to be
// called when the reservation converts into a loan.
func (r *Reservation) Fulfill() {
	r.Status = StatusFulfilled
}
