// internal/reservation/service.go
package reservation

import (
	"context"

	"lendhall/internal/domain"
)

// Service defines the interface for the reservation service.
type Service interface {
	PlaceReservation(ctx context.Context, memberID domain.MemberID, copyID domain.BookCopyID) (*Reservation, error)
	CancelReservation(ctx context.Context, id domain.ReservationID) error
	GetReservation(ctx context.Context, id domain.ReservationID) (*Reservation, error)
	ListReservationsForCopy(ctx context.Context, copyID domain.BookCopyID, activeOnly bool) ([]*Reservation, error)
	ListReservationsForMember(ctx context.Context, memberID domain.MemberID, activeOnly bool) ([]*Reservation, error)
}
