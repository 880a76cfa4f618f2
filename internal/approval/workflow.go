// internal/approval/workflow.go
package approval

import (
	"strings"
	"time"

	"lendhall/internal/domain"
)

// WorkflowStep is one approval stage, naming the role that may act on it.
// Step numbers are contiguous starting at 1.
type WorkflowStep struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// StepSpec describes a step to be added; the number is assigned by the
// definition.
type StepSpec struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// WorkflowDefinition is the ordered list of approval steps for an application
// type. It always retains at least one step, and steps are appended or removed
// only at the tail.
type WorkflowDefinition struct {
	ID              domain.WorkflowID `json:"id" db:"id"`
	ApplicationType string            `json:"application_type" db:"application_type"`
	Steps           []WorkflowStep    `json:"steps" db:"-"`
	Active          bool              `json:"active" db:"active"`
	Version         int               `json:"version" db:"version"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// NewWorkflowDefinition creates an active definition with at least one step.
func NewWorkflowDefinition(applicationType string, steps []StepSpec, now time.Time) (*WorkflowDefinition, error) {
	if strings.TrimSpace(applicationType) == "" {
		return nil, domain.Validationf("application type must not be empty")
	}
	if len(steps) == 0 {
		return nil, domain.Validationf("a workflow requires at least one step")
	}

	wf := &WorkflowDefinition{
		ID:              domain.NewWorkflowID(),
		ApplicationType: applicationType,
		Active:          true,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, spec := range steps {
		if err := wf.AddStep(spec.Name, spec.Role); err != nil {
			return nil, err
		}
	}
	return wf, nil
}

// AddStep appends a step at position N+1.
func (wf *WorkflowDefinition) AddStep(name, role string) error {
	if strings.TrimSpace(role) == "" {
		return domain.Validationf("step role must not be empty")
	}
	wf.Steps = append(wf.Steps, WorkflowStep{
		Number: len(wf.Steps) + 1,
		Name:   name,
		Role:   role,
	})
	return nil
}

// RemoveLastStep removes the highest-numbered step. A workflow must always
// retain at least one step, and only tail removal is allowed.
func (wf *WorkflowDefinition) RemoveLastStep() error {
	if len(wf.Steps) <= 1 {
		return domain.Conflictf("a workflow must retain at least one step")
	}
	wf.Steps = wf.Steps[:len(wf.Steps)-1]
	return nil
}

// StepCount returns the number of steps.
func (wf *WorkflowDefinition) StepCount() int {
	return len(wf.Steps)
}

// StepAt returns the step with the given number, or false when out of range.
func (wf *WorkflowDefinition) StepAt(number int) (WorkflowStep, bool) {
	if number < 1 || number > len(wf.Steps) {
		return WorkflowStep{}, false
	}
	return wf.Steps[number-1], true
}

// CanApproveAtStep reports whether the step exists and its assigned role
// matches the given role.
func (wf *WorkflowDefinition) CanApproveAtStep(stepNumber int, role string) bool {
	step, ok := wf.StepAt(stepNumber)
	if !ok {
		return false
	}
	return step.Role == role
}
