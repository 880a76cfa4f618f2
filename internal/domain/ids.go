// internal/domain/ids.go
package domain

import (
	"github.com/google/uuid"
)

// MemberID identifies a library member.
type MemberID struct{ uuid.UUID }

// BookCopyID identifies a physical book copy.
type BookCopyID struct{ uuid.UUID }

// LoanID identifies a single lending transaction.
type LoanID struct{ uuid.UUID }

// ReservationID identifies a queued hold on a book copy.
type ReservationID struct{ uuid.UUID }

// ApplicationID identifies an approval application.
type ApplicationID struct{ uuid.UUID }

// WorkflowID identifies a workflow definition.
type WorkflowID struct{ uuid.UUID }

func NewMemberID() MemberID           { return MemberID{uuid.New()} }
func NewBookCopyID() BookCopyID       { return BookCopyID{uuid.New()} }
func NewLoanID() LoanID               { return LoanID{uuid.New()} }
func NewReservationID() ReservationID { return ReservationID{uuid.New()} }
func NewApplicationID() ApplicationID { return ApplicationID{uuid.New()} }
func NewWorkflowID() WorkflowID       { return WorkflowID{uuid.New()} }

func (id MemberID) IsNil() bool      { return id.UUID == uuid.Nil }
func (id BookCopyID) IsNil() bool    { return id.UUID == uuid.Nil }
func (id LoanID) IsNil() bool        { return id.UUID == uuid.Nil }
func (id ReservationID) IsNil() bool { return id.UUID == uuid.Nil }
func (id ApplicationID) IsNil() bool { return id.UUID == uuid.Nil }
func (id WorkflowID) IsNil() bool    { return id.UUID == uuid.Nil }

// parseID rejects malformed input and the nil UUID, which is never a valid
// aggregate identifier.
func parseID(kind, s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, Validationf("invalid %s %q", kind, s)
	}
	if u == uuid.Nil {
		return uuid.Nil, Validationf("%s must not be the nil value", kind)
	}
	return u, nil
}

func ParseMemberID(s string) (MemberID, error) {
	u, err := parseID("member id", s)
	return MemberID{u}, err
}

func ParseBookCopyID(s string) (BookCopyID, error) {
	u, err := parseID("book copy id", s)
	return BookCopyID{u}, err
}

func ParseLoanID(s string) (LoanID, error) {
	u, err := parseID("loan id", s)
	return LoanID{u}, err
}

func ParseReservationID(s string) (ReservationID, error) {
	u, err := parseID("reservation id", s)
	return ReservationID{u}, err
}

func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseID("application id", s)
	return ApplicationID{u}, err
}

func ParseWorkflowID(s string) (WorkflowID, error) {
	u, err := parseID("workflow id", s)
	return WorkflowID{u}, err
}

func ensureNotNil(kind string, u uuid.UUID) error {
	if u == uuid.Nil {
		return Validationf("%s must not be the nil value", kind)
	}
	return nil
}

// Validate rejects nil identifiers that slipped in through zero values.
func (id MemberID) Validate() error      { return ensureNotNil("member id", id.UUID) }
func (id BookCopyID) Validate() error    { return ensureNotNil("book copy id", id.UUID) }
func (id LoanID) Validate() error        { return ensureNotNil("loan id", id.UUID) }
func (id ReservationID) Validate() error { return ensureNotNil("reservation id", id.UUID) }
func (id ApplicationID) Validate() error { return ensureNotNil("application id", id.UUID) }
func (id WorkflowID) Validate() error    { return ensureNotNil("workflow id", id.UUID) }
