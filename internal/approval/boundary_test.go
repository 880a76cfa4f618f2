// internal/approval/boundary_test.go
package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendhall/internal/domain"
)

func TestCanEdit(t *testing.T) {
	app := newTestApplication(t)

	assert.True(t, CanEdit(app, app.ApplicantID).Allowed)

	d := CanEdit(app, domain.NewMemberID())
	assert.False(t, d.Allowed)
	assert.Equal(t, "only the applicant may do this", d.Reason)

	require.NoError(t, app.Submit(testNow))
	d = CanEdit(app, app.ApplicantID)
	assert.False(t, d.Allowed)
	assert.Equal(t, "application is not editable in its current status", d.Reason)
}

func TestCanEditAfterReturn(t *testing.T) {
	app := newTestApplication(t)
	require.NoError(t, app.Submit(testNow))
	require.NoError(t, app.StartReview())
	require.NoError(t, app.ReturnToApplicant(domain.NewMemberID(), "fix it", testNow))

	assert.True(t, CanEdit(app, app.ApplicantID).Allowed)
	assert.True(t, CanSubmit(app, app.ApplicantID).Allowed)
}

func TestCanSubmit(t *testing.T) {
	app := newTestApplication(t)

	assert.True(t, CanSubmit(app, app.ApplicantID).Allowed)
	assert.False(t, CanSubmit(app, domain.NewMemberID()).Allowed)

	require.NoError(t, app.Submit(testNow))
	d := CanSubmit(app, app.ApplicantID)
	assert.False(t, d.Allowed)
	assert.Equal(t, "application cannot be submitted in its current status", d.Reason)
}

func TestCanApproveAt(t *testing.T) {
	wf := newTestWorkflow(t)
	app := newTestApplication(t)
	require.NoError(t, app.Submit(testNow))
	require.NoError(t, app.StartReview())

	assert.True(t, CanApproveAt(app, wf, "lead").Allowed)

	d := CanApproveAt(app, wf, "manager")
	assert.False(t, d.Allowed)
	assert.Equal(t, "role is not assigned to the current step", d.Reason)

	d = CanApproveAt(app, nil, "lead")
	assert.False(t, d.Allowed)
	assert.Equal(t, "application has no workflow definition", d.Reason)

	wf.Active = false
	d = CanApproveAt(app, wf, "lead")
	assert.False(t, d.Allowed)
	assert.Equal(t, "workflow definition is not active", d.Reason)
}

func TestStepGateRequiresInReview(t *testing.T) {
	wf := newTestWorkflow(t)
	app := newTestApplication(t)

	d := CanRejectAt(app, wf, "lead")
	assert.False(t, d.Allowed)
	assert.Equal(t, "application is not in review", d.Reason)

	require.NoError(t, app.Submit(testNow))
	require.NoError(t, app.StartReview())
	assert.True(t, CanRejectAt(app, wf, "lead").Allowed)
	assert.True(t, CanReturnAt(app, wf, "lead").Allowed)
}

func TestRoleTracksCurrentStep(t *testing.T) {
	wf := newTestWorkflow(t)
	app := newTestApplication(t)
	require.NoError(t, app.Submit(testNow))
	require.NoError(t, app.StartReview())
	require.NoError(t, app.Approve(domain.NewMemberID(), "", wf.StepCount(), testNow))

	// Step 2 belongs to the manager now.
	assert.False(t, CanApproveAt(app, wf, "lead").Allowed)
	assert.True(t, CanApproveAt(app, wf, "manager").Allowed)
}
