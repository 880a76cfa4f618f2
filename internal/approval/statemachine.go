// internal/approval/statemachine.go
package approval

import "lendhall/internal/domain"

// Status is the lifecycle state of an approval application.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusInReview  Status = "InReview"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusReturned  Status = "Returned"
)

// AllStatuses lists every status, for exhaustive checks.
var AllStatuses = []Status{
	StatusDraft, StatusSubmitted, StatusInReview,
	StatusApproved, StatusRejected, StatusReturned,
}

// transitions is the full transition table. Approved and Rejected are
// terminal: they appear only as targets.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusInReview},
	StatusInReview:  {StatusApproved, StatusRejected, StatusReturned},
	StatusReturned:  {StatusSubmitted},
	StatusApproved:  {},
	StatusRejected:  {},
}

// ValidateTransition fails with a state-conflict error for any (from, to) pair
// not in the transition table. It validates status transitions only; whether
// the acting user may trigger the transition is decided separately by the
// boundary checks.
func ValidateTransition(from, to Status) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return domain.Conflictf("invalid status transition %s -> %s", from, to)
}
