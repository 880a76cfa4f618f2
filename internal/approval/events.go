// internal/approval/events.go
package approval

import (
	"time"

	"lendhall/internal/domain"
)

const (
	ApplicationCreatedEventType   = "ApplicationCreated"
	ApplicationSubmittedEventType = "ApplicationSubmitted"
	ApplicationApprovedEventType  = "ApplicationApproved"
	ApplicationRejectedEventType  = "ApplicationRejected"
	ApplicationReturnedEventType  = "ApplicationReturned"
	StepApprovedEventType         = "StepApproved"
	WorkflowDefinedEventType      = "WorkflowDefined"
)

// ApplicationCreatedEvent is published when a draft is created.
type ApplicationCreatedEvent struct {
	ApplicationID domain.ApplicationID `json:"application_id"`
	ApplicantID   domain.MemberID      `json:"applicant_id"`
	Type          string               `json:"type"`
}

// ApplicationSubmittedEvent is published on submit and resubmit.
type ApplicationSubmittedEvent struct {
	ApplicationID domain.ApplicationID `json:"application_id"`
	SubmittedAt   time.Time            `json:"submitted_at"`
}

// StepApprovedEvent is published when a non-final step is approved.
type StepApprovedEvent struct {
	ApplicationID domain.ApplicationID `json:"application_id"`
	StepNumber    int                  `json:"step_number"`
	ApproverID    domain.MemberID      `json:"approver_id"`
}

// ApplicationApprovedEvent is published when the final step approves.
type ApplicationApprovedEvent struct {
	ApplicationID domain.ApplicationID `json:"application_id"`
	ApproverID    domain.MemberID      `json:"approver_id"`
}

// ApplicationRejectedEvent is published on rejection.
type ApplicationRejectedEvent struct {
	ApplicationID domain.ApplicationID `json:"application_id"`
	ApproverID    domain.MemberID      `json:"approver_id"`
	Reason        string               `json:"reason"`
}

// ApplicationReturnedEvent is published when an application is sent back.
type ApplicationReturnedEvent struct {
	ApplicationID domain.ApplicationID `json:"application_id"`
	ApproverID    domain.MemberID      `json:"approver_id"`
	Reason        string               `json:"reason"`
}

// WorkflowDefinedEvent is published when a workflow definition is created.
type WorkflowDefinedEvent struct {
	WorkflowID      domain.WorkflowID `json:"workflow_id"`
	ApplicationType string            `json:"application_type"`
	StepCount       int               `json:"step_count"`
}
