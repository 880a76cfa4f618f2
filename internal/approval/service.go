// internal/approval/service.go
package approval

import (
	"context"

	"lendhall/internal/domain"
)

// Service defines the interface for the approvals service.
type Service interface {
	CreateWorkflowDefinition(ctx context.Context, applicationType string, steps []StepSpec) (*WorkflowDefinition, error)
	GetWorkflowDefinition(ctx context.Context, id domain.WorkflowID) (*WorkflowDefinition, error)
	AddWorkflowStep(ctx context.Context, id domain.WorkflowID, name, role string) (*WorkflowDefinition, error)
	RemoveLastWorkflowStep(ctx context.Context, id domain.WorkflowID) (*WorkflowDefinition, error)

	CreateApplication(ctx context.Context, applicantID domain.MemberID, appType, content string) (*Application, error)
	GetApplication(ctx context.Context, id domain.ApplicationID) (*Application, error)
	Submit(ctx context.Context, id domain.ApplicationID, actorID domain.MemberID) error
	StartReview(ctx context.Context, id domain.ApplicationID) error
	Approve(ctx context.Context, id domain.ApplicationID, actorID domain.MemberID, role, comment string) (*Application, error)
	Reject(ctx context.Context, id domain.ApplicationID, actorID domain.MemberID, role, reason string) error
	ReturnToApplicant(ctx context.Context, id domain.ApplicationID, actorID domain.MemberID, role, reason string) error
	Resubmit(ctx context.Context, id domain.ApplicationID, actorID domain.MemberID) error
}
