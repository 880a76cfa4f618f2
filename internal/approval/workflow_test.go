// internal/approval/workflow_test.go
package approval

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendhall/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestWorkflow(t *testing.T, steps ...StepSpec) *WorkflowDefinition {
	t.Helper()
	if len(steps) == 0 {
		steps = []StepSpec{
			{Name: "Team lead review", Role: "lead"},
			{Name: "Manager sign-off", Role: "manager"},
		}
	}
	wf, err := NewWorkflowDefinition("purchase", steps, testNow)
	require.NoError(t, err)
	return wf
}

func TestNewWorkflowDefinition(t *testing.T) {
	wf := newTestWorkflow(t)
	assert.True(t, wf.Active)
	assert.Equal(t, 2, wf.StepCount())

	// Numbers are assigned contiguously from 1.
	for i, step := range wf.Steps {
		assert.Equal(t, i+1, step.Number)
	}
}

func TestNewWorkflowDefinitionValidation(t *testing.T) {
	_, err := NewWorkflowDefinition("", []StepSpec{{Name: "a", Role: "r"}}, testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NewWorkflowDefinition("purchase", nil, testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NewWorkflowDefinition("purchase", []StepSpec{{Name: "a", Role: "  "}}, testNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestAddStepAppendsAtTail(t *testing.T) {
	wf := newTestWorkflow(t)
	require.NoError(t, wf.AddStep("Director sign-off", "director"))

	step, ok := wf.StepAt(3)
	require.True(t, ok)
	assert.Equal(t, 3, step.Number)
	assert.Equal(t, "director", step.Role)
}

func TestRemoveLastStep(t *testing.T) {
	wf := newTestWorkflow(t)
	require.NoError(t, wf.RemoveLastStep())
	assert.Equal(t, 1, wf.StepCount())

	err := wf.RemoveLastStep()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, 1, wf.StepCount())
}

func TestStepAtOutOfRange(t *testing.T) {
	wf := newTestWorkflow(t)

	_, ok := wf.StepAt(0)
	assert.False(t, ok)
	_, ok = wf.StepAt(3)
	assert.False(t, ok)
}

func TestCanApproveAtStep(t *testing.T) {
	wf := newTestWorkflow(t)

	assert.True(t, wf.CanApproveAtStep(1, "lead"))
	assert.False(t, wf.CanApproveAtStep(1, "manager"))
	assert.True(t, wf.CanApproveAtStep(2, "manager"))
	assert.False(t, wf.CanApproveAtStep(3, "manager"))
	assert.False(t, wf.CanApproveAtStep(0, "lead"))
}
