// internal/approval/boundary.go
package approval

import "lendhall/internal/domain"

// Boundary checks decide whether an actor may trigger an operation. They are
// deliberately separate from ValidateTransition: "is this status transition
// legal" and "is this actor allowed to trigger it" are independent questions
// with independent tests.

const (
	denyNotApplicant     = "only the applicant may do this"
	denyNotEditable      = "application is not editable in its current status"
	denyNotSubmittable   = "application cannot be submitted in its current status"
	denyNotInReview      = "application is not in review"
	denyRoleMismatch     = "role is not assigned to the current step"
	denyNoWorkflow       = "application has no workflow definition"
	denyWorkflowInactive = "workflow definition is not active"
)

// CanEdit allows the applicant to change content while the application is in
// Draft or Returned.
func CanEdit(app *Application, actorID domain.MemberID) domain.Decision {
	if actorID != app.ApplicantID {
		return domain.Deny(denyNotApplicant)
	}
	if app.Status != StatusDraft && app.Status != StatusReturned {
		return domain.Deny(denyNotEditable)
	}
	return domain.Allow()
}

// CanSubmit allows the applicant to submit from Draft or resubmit from
// Returned.
func CanSubmit(app *Application, actorID domain.MemberID) domain.Decision {
	if actorID != app.ApplicantID {
		return domain.Deny(denyNotApplicant)
	}
	if app.Status != StatusDraft && app.Status != StatusReturned {
		return domain.Deny(denyNotSubmittable)
	}
	return domain.Allow()
}

// stepGate is the shared structural part of the approve/reject/return checks:
// the application must be in review and the actor's role must be the one
// assigned to the current step.
func stepGate(app *Application, wf *WorkflowDefinition, role string) domain.Decision {
	if wf == nil {
		return domain.Deny(denyNoWorkflow)
	}
	if !wf.Active {
		return domain.Deny(denyWorkflowInactive)
	}
	if app.Status != StatusInReview {
		return domain.Deny(denyNotInReview)
	}
	if !wf.CanApproveAtStep(app.CurrentStep, role) {
		return domain.Deny(denyRoleMismatch)
	}
	return domain.Allow()
}

// CanApproveAt decides whether an actor with the given role may approve the
// current step.
func CanApproveAt(app *Application, wf *WorkflowDefinition, role string) domain.Decision {
	return stepGate(app, wf, role)
}

// CanRejectAt decides whether an actor with the given role may reject at the
// current step.
func CanRejectAt(app *Application, wf *WorkflowDefinition, role string) domain.Decision {
	return stepGate(app, wf, role)
}

// CanReturnAt decides whether an actor with the given role may return the
// application to the applicant at the current step.
func CanReturnAt(app *Application, wf *WorkflowDefinition, role string) domain.Decision {
	return stepGate(app, wf, role)
}
