// internal/reservation/events.go
package reservation

import (
	"time"

	"lendhall/internal/domain"
)

const (
	ReservationPlacedEventType    = "ReservationPlaced"
	ReservationCancelledEventType = "ReservationCancelled"
	ReservationFulfilledEventType = "ReservationFulfilled"
)

// ReservationPlacedEvent is published when a hold joins the queue.
type ReservationPlacedEvent struct {
	ReservationID domain.ReservationID `json:"reservation_id"`
	MemberID      domain.MemberID      `json:"member_id"`
	BookCopyID    domain.BookCopyID    `json:"book_copy_id"`
	QueuePosition int                  `json:"queue_position"`
	ReservedAt    time.Time            `json:"reserved_at"`
}

// ReservationCancelledEvent is published when a hold is cancelled.
type ReservationCancelledEvent struct {
	ReservationID domain.ReservationID `json:"reservation_id"`
	BookCopyID    domain.BookCopyID    `json:"book_copy_id"`
}

// ReservationFulfilledEvent is published when a hold converts into a loan.
type ReservationFulfilledEvent struct {
	ReservationID domain.ReservationID `json:"reservation_id"`
	MemberID      domain.MemberID      `json:"member_id"`
	BookCopyID    domain.BookCopyID    `json:"book_copy_id"`
}
