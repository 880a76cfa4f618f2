// internal/lending/service.go
package lending

import (
	"context"
	"time"

	"lendhall/internal/domain"
)

// Service defines the interface for the lending service.
type Service interface {
	RegisterMember(ctx context.Context, name, barcode string) (*Member, error)
	DeactivateMember(ctx context.Context, id domain.MemberID) error
	GetMember(ctx context.Context, id domain.MemberID) (*Member, error)

	AddBookCopy(ctx context.Context, title, barcode string, referenceOnly bool) (*BookCopy, error)
	MarkCopyLost(ctx context.Context, id domain.BookCopyID) error
	GetBookCopy(ctx context.Context, id domain.BookCopyID) (*BookCopy, error)

	CheckoutBook(ctx context.Context, memberID domain.MemberID, copyID domain.BookCopyID) (*Loan, error)
	ReturnBook(ctx context.Context, loanID domain.LoanID) error
	ExtendLoan(ctx context.Context, loanID domain.LoanID, days int) (*Loan, error)
	GetLoan(ctx context.Context, id domain.LoanID) (*Loan, error)
	ListOverdueLoans(ctx context.Context, asOf time.Time) ([]*Loan, error)

	SweepOverdue(ctx context.Context) (int, error)
}
