// internal/approval/statemachine_test.go
package approval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"lendhall/internal/domain"
)

func TestValidateTransitionAllowed(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusDraft, StatusSubmitted},
		{StatusSubmitted, StatusInReview},
		{StatusInReview, StatusApproved},
		{StatusInReview, StatusRejected},
		{StatusInReview, StatusReturned},
		{StatusReturned, StatusSubmitted},
	}
	for _, tr := range allowed {
		assert.NoError(t, ValidateTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestValidateTransitionRejected(t *testing.T) {
	rejected := []struct{ from, to Status }{
		{StatusDraft, StatusInReview},
		{StatusDraft, StatusApproved},
		{StatusSubmitted, StatusApproved},
		{StatusApproved, StatusSubmitted},
		{StatusRejected, StatusSubmitted},
		{StatusReturned, StatusInReview},
		{StatusInReview, StatusInReview},
	}
	for _, tr := range rejected {
		err := ValidateTransition(tr.from, tr.to)
		assert.Error(t, err, "%s -> %s", tr.from, tr.to)
		assert.True(t, errors.Is(err, domain.ErrConflict))
	}
}

// The transition table is closed over AllStatuses: every pair is either in the
// table and valid, or not in the table and rejected. Terminal statuses allow
// nothing.
func TestTransitionTableClosure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		from := rapid.SampledFrom(AllStatuses).Draw(t, "from")
		to := rapid.SampledFrom(AllStatuses).Draw(t, "to")

		err := ValidateTransition(from, to)

		inTable := false
		for _, allowed := range transitions[from] {
			if allowed == to {
				inTable = true
			}
		}

		if inTable && err != nil {
			t.Fatalf("%s -> %s is in the table but was rejected: %v", from, to, err)
		}
		if !inTable && err == nil {
			t.Fatalf("%s -> %s is not in the table but was allowed", from, to)
		}
		if (from == StatusApproved || from == StatusRejected) && err == nil {
			t.Fatalf("terminal status %s allowed a transition to %s", from, to)
		}
	})
}
