// internal/approval/domain.go
package approval

import (
	"strings"
	"time"

	"lendhall/internal/domain"
)

const (
	failureReasonNotInReview   = "application is not in review"
	failureReasonReasonMissing = "a reason is required"
)

// Action is what an approver did at a step.
type Action string

const (
	ActionApproved Action = "Approved"
	ActionRejected Action = "Rejected"
	ActionReturned Action = "Returned"
)

// HistoryEntry is one immutable record in an application's approval history.
// Entries are only ever appended, never changed or removed.
type HistoryEntry struct {
	ApplicationID domain.ApplicationID `json:"application_id" db:"application_id"`
	StepNumber    int                  `json:"step_number" db:"step_number"`
	ApproverID    domain.MemberID      `json:"approver_id" db:"approver_id"`
	Action        Action               `json:"action" db:"action"`
	Comment       string               `json:"comment" db:"comment"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
}

// Application is a request moving through an approval workflow. It is never
// physically deleted.
type Application struct {
	ID          domain.ApplicationID `json:"id" db:"id"`
	ApplicantID domain.MemberID      `json:"applicant_id" db:"applicant_id"`
	Type        string               `json:"type" db:"type"`
	Content     string               `json:"content" db:"content"`
	Status      Status               `json:"status" db:"status"`
	CurrentStep int                  `json:"current_step" db:"current_step"`
	WorkflowID  *domain.WorkflowID   `json:"workflow_id,omitempty" db:"workflow_id"`
	History     []HistoryEntry       `json:"history" db:"-"`
	Version     int                  `json:"version" db:"version"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at" db:"updated_at"`
	SubmittedAt *time.Time           `json:"submitted_at,omitempty" db:"submitted_at"`
}

// NewApplication creates a Draft application for an applicant.
func NewApplication(applicantID domain.MemberID, appType, content string, workflowID *domain.WorkflowID, now time.Time) (*Application, error) {
	if err := applicantID.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(appType) == "" {
		return nil, domain.Validationf("application type must not be empty")
	}
	return &Application{
		ID:          domain.NewApplicationID(),
		ApplicantID: applicantID,
		Type:        appType,
		Content:     content,
		Status:      StatusDraft,
		CurrentStep: 0,
		WorkflowID:  workflowID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Submit moves Draft -> Submitted.
func (a *Application) Submit(now time.Time) error {
	if err := ValidateTransition(a.Status, StatusSubmitted); err != nil {
		return err
	}
	a.Status = StatusSubmitted
	submitted := now
	a.SubmittedAt = &submitted
	return nil
}

// Resubmit moves Returned -> Submitted after rework.
func (a *Application) Resubmit(now time.Time) error {
	if err := ValidateTransition(a.Status, StatusSubmitted); err != nil {
		return err
	}
	a.Status = StatusSubmitted
	submitted := now
	a.SubmittedAt = &submitted
	return nil
}

// StartReview moves Submitted -> InReview. Review always begins at step 1,
// also after a resubmission: a returned application re-enters the flow from
// the start.
func (a *Application) StartReview() error {
	if err := ValidateTransition(a.Status, StatusInReview); err != nil {
		return err
	}
	a.Status = StatusInReview
	a.CurrentStep = 1
	return nil
}

// Approve records an approval at the current step. On the final step the
// application transitions to Approved; on earlier steps it stays InReview and
// moves to the next step. The comment is optional.
//
// All validation happens before any mutation, so a failed call leaves both
// status and history unchanged.
func (a *Application) Approve(approverID domain.MemberID, comment string, totalSteps int, now time.Time) error {
	if err := approverID.Validate(); err != nil {
		return err
	}
	if a.Status != StatusInReview {
		return domain.Conflictf("%s", failureReasonNotInReview)
	}

	final := a.CurrentStep >= totalSteps
	if final {
		if err := ValidateTransition(a.Status, StatusApproved); err != nil {
			return err
		}
	}

	a.appendHistory(a.CurrentStep, approverID, ActionApproved, comment, now)
	if final {
		a.Status = StatusApproved
	} else {
		a.CurrentStep++
	}
	return nil
}

// Reject records a rejection with a mandatory reason and moves the
// application to the terminal Rejected status.
func (a *Application) Reject(approverID domain.MemberID, reason string, now time.Time) error {
	if err := approverID.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return domain.Validationf("%s", failureReasonReasonMissing)
	}
	if err := ValidateTransition(a.Status, StatusRejected); err != nil {
		return err
	}

	a.appendHistory(a.CurrentStep, approverID, ActionRejected, reason, now)
	a.Status = StatusRejected
	return nil
}

// ReturnToApplicant sends the application back for rework with a mandatory
// reason. The applicant can resubmit from Returned.
func (a *Application) ReturnToApplicant(approverID domain.MemberID, reason string, now time.Time) error {
	if err := approverID.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return domain.Validationf("%s", failureReasonReasonMissing)
	}
	if err := ValidateTransition(a.Status, StatusReturned); err != nil {
		return err
	}

	a.appendHistory(a.CurrentStep, approverID, ActionReturned, reason, now)
	a.Status = StatusReturned
	return nil
}

func (a *Application) appendHistory(step int, approverID domain.MemberID, action Action, comment string, now time.Time) {
	a.History = append(a.History, HistoryEntry{
		ApplicationID: a.ID,
		StepNumber:    step,
		ApproverID:    approverID,
		Action:        action,
		Comment:       comment,
		CreatedAt:     now,
	})
}
