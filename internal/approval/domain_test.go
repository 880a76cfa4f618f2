// internal/approval/domain_test.go
package approval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendhall/internal/domain"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	wfID := domain.NewWorkflowID()
	app, err := NewApplication(domain.NewMemberID(), "purchase", "new laptops", &wfID, testNow)
	require.NoError(t, err)
	return app
}

func TestNewApplication(t *testing.T) {
	app := newTestApplication(t)
	assert.Equal(t, StatusDraft, app.Status)
	assert.Equal(t, 0, app.CurrentStep)
	assert.Nil(t, app.SubmittedAt)
	assert.Empty(t, app.History)
}

func TestNewApplicationValidation(t *testing.T) {
	_, err := NewApplication(domain.MemberID{}, "purchase", "c", nil, testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NewApplication(domain.NewMemberID(), " ", "c", nil, testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestHappyPathThroughTwoSteps(t *testing.T) {
	app := newTestApplication(t)
	approver := domain.NewMemberID()

	require.NoError(t, app.Submit(testNow))
	assert.Equal(t, StatusSubmitted, app.Status)
	require.NotNil(t, app.SubmittedAt)

	require.NoError(t, app.StartReview())
	assert.Equal(t, StatusInReview, app.Status)
	assert.Equal(t, 1, app.CurrentStep)

	require.NoError(t, app.Approve(approver, "looks fine", 2, testNow))
	assert.Equal(t, StatusInReview, app.Status)
	assert.Equal(t, 2, app.CurrentStep)

	require.NoError(t, app.Approve(approver, "", 2, testNow))
	assert.Equal(t, StatusApproved, app.Status)

	require.Len(t, app.History, 2)
	assert.Equal(t, 1, app.History[0].StepNumber)
	assert.Equal(t, 2, app.History[1].StepNumber)
	assert.Equal(t, ActionApproved, app.History[0].Action)
}

func TestApproveOutsideReviewFails(t *testing.T) {
	app := newTestApplication(t)

	err := app.Approve(domain.NewMemberID(), "", 2, testNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Empty(t, app.History)
}

func TestRejectRequiresReason(t *testing.T) {
	app := newTestApplication(t)
	require.NoError(t, app.Submit(testNow))
	require.NoError(t, app.StartReview())

	err := app.Reject(domain.NewMemberID(), "  ", testNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, StatusInReview, app.Status)
	assert.Empty(t, app.History)

	require.NoError(t, app.Reject(domain.NewMemberID(), "over budget", testNow))
	assert.Equal(t, StatusRejected, app.Status)
	require.Len(t, app.History, 1)
	assert.Equal(t, "over budget", app.History[0].Comment)
}

func TestReturnAndResubmitRestartsReview(t *testing.T) {
	app := newTestApplication(t)
	require.NoError(t, app.Submit(testNow))
	require.NoError(t, app.StartReview())
	require.NoError(t, app.Approve(domain.NewMemberID(), "", 3, testNow))
	assert.Equal(t, 2, app.CurrentStep)

	require.NoError(t, app.ReturnToApplicant(domain.NewMemberID(), "needs quotes", testNow))
	assert.Equal(t, StatusReturned, app.Status)

	require.NoError(t, app.Resubmit(testNow.AddDate(0, 0, 1)))
	assert.Equal(t, StatusSubmitted, app.Status)

	// Review re-enters from the first step, not where it left off.
	require.NoError(t, app.StartReview())
	assert.Equal(t, 1, app.CurrentStep)

	// The history of the first pass is retained.
	require.Len(t, app.History, 2)
	assert.Equal(t, ActionApproved, app.History[0].Action)
	assert.Equal(t, ActionReturned, app.History[1].Action)
}

func TestReturnRequiresReason(t *testing.T) {
	app := newTestApplication(t)
	require.NoError(t, app.Submit(testNow))
	require.NoError(t, app.StartReview())

	err := app.ReturnToApplicant(domain.NewMemberID(), "", testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, StatusInReview, app.Status)
}

func TestTerminalStatusesAreFinal(t *testing.T) {
	app := newTestApplication(t)
	require.NoError(t, app.Submit(testNow))
	require.NoError(t, app.StartReview())
	require.NoError(t, app.Reject(domain.NewMemberID(), "no", testNow))

	assert.Error(t, app.Submit(testNow))
	assert.Error(t, app.StartReview())
	assert.Error(t, app.Approve(domain.NewMemberID(), "", 1, testNow))
	assert.Equal(t, StatusRejected, app.Status)
}

func TestFailedApproveLeavesHistoryUntouched(t *testing.T) {
	app := newTestApplication(t)
	require.NoError(t, app.Submit(testNow))
	require.NoError(t, app.StartReview())

	err := app.Approve(domain.MemberID{}, "", 2, testNow)
	require.Error(t, err)
	assert.Empty(t, app.History)
	assert.Equal(t, 1, app.CurrentStep)
}
