// internal/approval/implementation.go
package approval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendhall/internal/clients"
	"lendhall/internal/domain"
	"lendhall/internal/outbox"
	"lendhall/internal/platform/cache"
)

const (
	aggregateTypeApplication = "application"
	aggregateTypeWorkflow    = "workflow"

	workflowCacheTTL = 5 * time.Minute
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// service implements the Service interface.
type service struct {
	db         *sqlx.DB
	outbox     *outbox.Store
	membership *clients.MembershipClient
	cache      *cache.Cache
	clock      domain.Clock
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewService creates a new approvals service instance. membership may be nil
// when applicant verification is not wired; cCache may be nil to disable
// caching.
func NewService(db *sqlx.DB, ob *outbox.Store, membership *clients.MembershipClient, cCache *cache.Cache, clock domain.Clock, logger zerolog.Logger) Service {
	return &service{
		db:         db,
		outbox:     ob,
		membership: membership,
		cache:      cCache,
		clock:      clock,
		logger:     logger,
		tracer:     otel.Tracer("lendhall/approval"),
	}
}

// workflowRow mirrors the workflow_definitions table; steps live in a JSONB
// column.
type workflowRow struct {
	ID              domain.WorkflowID `db:"id"`
	ApplicationType string            `db:"application_type"`
	Steps           []byte            `db:"steps"`
	Active          bool              `db:"active"`
	Version         int               `db:"version"`
	CreatedAt       time.Time         `db:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at"`
}

func (r workflowRow) toDomain() (*WorkflowDefinition, error) {
	wf := &WorkflowDefinition{
		ID:              r.ID,
		ApplicationType: r.ApplicationType,
		Active:          r.Active,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Steps, &wf.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal workflow steps: %w", err)
	}
	return wf, nil
}

func workflowCacheKey(id domain.WorkflowID) string {
	return "workflow:" + id.String()
}

// CreateWorkflowDefinition creates an active definition for an application
// type.
func (s *service) CreateWorkflowDefinition(ctx context.Context, applicationType string, steps []StepSpec) (*WorkflowDefinition, error) {
	wf, err := NewWorkflowDefinition(applicationType, steps, s.clock())
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertWorkflowTx(ctx, tx, wf); err != nil {
		return nil, err
	}

	record, err := outbox.NewRecord(aggregateTypeWorkflow, wf.ID.UUID, WorkflowDefinedEventType, WorkflowDefinedEvent{
		WorkflowID:      wf.ID,
		ApplicationType: wf.ApplicationType,
		StepCount:       wf.StepCount(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.outbox.Append(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return wf, nil
}

// GetWorkflowDefinition reads through the cache.
func (s *service) GetWorkflowDefinition(ctx context.Context, id domain.WorkflowID) (*WorkflowDefinition, error) {
	wf := &WorkflowDefinition{}
	if err := s.cache.GetJSON(ctx, workflowCacheKey(id), wf); err == nil {
		return wf, nil
	}

	wf, err := s.getWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(ctx, workflowCacheKey(id), wf, workflowCacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("workflow cache write failed")
	}
	return wf, nil
}

// AddWorkflowStep appends a step at the tail.
func (s *service) AddWorkflowStep(ctx context.Context, id domain.WorkflowID, name, role string) (*WorkflowDefinition, error) {
	return s.mutateWorkflow(ctx, id, func(wf *WorkflowDefinition) error {
		return wf.AddStep(name, role)
	})
}

// RemoveLastWorkflowStep removes the highest-numbered step.
func (s *service) RemoveLastWorkflowStep(ctx context.Context, id domain.WorkflowID) (*WorkflowDefinition, error) {
	return s.mutateWorkflow(ctx, id, func(wf *WorkflowDefinition) error {
		return wf.RemoveLastStep()
	})
}

func (s *service) mutateWorkflow(ctx context.Context, id domain.WorkflowID, mutate func(*WorkflowDefinition) error) (*WorkflowDefinition, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	wf, err := s.getWorkflowTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := mutate(wf); err != nil {
		return nil, err
	}

	if err := s.updateWorkflowTx(ctx, tx, wf); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if err := s.cache.Delete(ctx, workflowCacheKey(id)); err != nil {
		s.logger.Warn().Err(err).Msg("workflow cache invalidation failed")
	}
	wf.Version++
	return wf, nil
}

// CreateApplication creates a draft. The active workflow definition for the
// application type is bound at creation time if one exists.
func (s *service) CreateApplication(ctx context.Context, applicantID domain.MemberID, appType, content string) (*Application, error) {
	workflowID, err := s.findActiveWorkflowID(ctx, appType)
	if err != nil {
		return nil, err
	}

	app, err := NewApplication(applicantID, appType, content, workflowID, s.clock())
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO applications (id, applicant_id, type, content, status, current_step, workflow_id, version, created_at, updated_at, submitted_at)
		VALUES (:id, :applicant_id, :type, :content, :status, :current_step, :workflow_id, :version, :created_at, :updated_at, :submitted_at)
	`
	if _, err := tx.NamedExecContext(ctx, insert, app); err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}

	record, err := outbox.NewRecord(aggregateTypeApplication, app.ID.UUID, ApplicationCreatedEventType, ApplicationCreatedEvent{
		ApplicationID: app.ID,
		ApplicantID:   applicantID,
		Type:          appType,
	})
	if err != nil {
		return nil, err
	}
	if err := s.outbox.Append(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return app, nil
}

// GetApplication retrieves an application with its full approval history.
func (s *service) GetApplication(ctx context.Context, id domain.ApplicationID) (*Application, error) {
	app := &Application{}
	const query = `
		SELECT id, applicant_id, type, content, status, current_step, workflow_id, version, created_at, updated_at, submitted_at
		FROM applications
		WHERE id = $1
	`
	if err := s.db.GetContext(ctx, app, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("application %s", id)
		}
		return nil, fmt.Errorf("get application: %w", err)
	}

	const historyQuery = `
		SELECT application_id, step_number, approver_id, action, comment, created_at
		FROM approval_history
		WHERE application_id = $1
		ORDER BY id ASC
	`
	if err := s.db.SelectContext(ctx, &app.History, historyQuery, id); err != nil {
		return nil, fmt.Errorf("get approval history: %w", err)
	}

	return app, nil
}

// Submit moves a draft into Submitted after verifying the applicant is still
// an active member.
func (s *service) Submit(ctx context.Context, id domain.ApplicationID, actorID domain.MemberID) error {
	ctx, span := s.tracer.Start(ctx, "approval.submit",
		trace.WithAttributes(attribute.String("application.id", id.String())),
	)
	defer span.End()

	if err := s.verifyApplicantActive(ctx, actorID); err != nil {
		return err
	}

	return s.mutateApplication(ctx, id, func(app *Application) ([]outbox.Record, error) {
		if d := CanSubmit(app, actorID); !d.Allowed {
			return nil, d.Err()
		}
		if err := app.Submit(s.clock()); err != nil {
			return nil, err
		}
		record, err := outbox.NewRecord(aggregateTypeApplication, app.ID.UUID, ApplicationSubmittedEventType, ApplicationSubmittedEvent{
			ApplicationID: app.ID,
			SubmittedAt:   *app.SubmittedAt,
		})
		if err != nil {
			return nil, err
		}
		return []outbox.Record{record}, nil
	})
}

// StartReview moves Submitted -> InReview.
func (s *service) StartReview(ctx context.Context, id domain.ApplicationID) error {
	return s.mutateApplication(ctx, id, func(app *Application) ([]outbox.Record, error) {
		if err := app.StartReview(); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// Approve records an approval at the current step by an actor holding the
// given role.
func (s *service) Approve(ctx context.Context, id domain.ApplicationID, actorID domain.MemberID, role, comment string) (*Application, error) {
	ctx, span := s.tracer.Start(ctx, "approval.approve",
		trace.WithAttributes(
			attribute.String("application.id", id.String()),
			attribute.String("actor.role", role),
		),
	)
	defer span.End()

	var result *Application
	err := s.mutateApplication(ctx, id, func(app *Application) ([]outbox.Record, error) {
		wf, err := s.requireWorkflow(ctx, app)
		if err != nil {
			return nil, err
		}
		if d := CanApproveAt(app, wf, role); !d.Allowed {
			return nil, d.Err()
		}

		step := app.CurrentStep
		if err := app.Approve(actorID, comment, wf.StepCount(), s.clock()); err != nil {
			return nil, err
		}

		var record outbox.Record
		if app.Status == StatusApproved {
			record, err = outbox.NewRecord(aggregateTypeApplication, app.ID.UUID, ApplicationApprovedEventType, ApplicationApprovedEvent{
				ApplicationID: app.ID,
				ApproverID:    actorID,
			})
		} else {
			record, err = outbox.NewRecord(aggregateTypeApplication, app.ID.UUID, StepApprovedEventType, StepApprovedEvent{
				ApplicationID: app.ID,
				StepNumber:    step,
				ApproverID:    actorID,
			})
		}
		if err != nil {
			return nil, err
		}
		result = app
		return []outbox.Record{record}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reject moves the application to the terminal Rejected status.
func (s *service) Reject(ctx context.Context, id domain.ApplicationID, actorID domain.MemberID, role, reason string) error {
	return s.mutateApplication(ctx, id, func(app *Application) ([]outbox.Record, error) {
		wf, err := s.requireWorkflow(ctx, app)
		if err != nil {
			return nil, err
		}
		if d := CanRejectAt(app, wf, role); !d.Allowed {
			return nil, d.Err()
		}
		if err := app.Reject(actorID, reason, s.clock()); err != nil {
			return nil, err
		}
		record, err := outbox.NewRecord(aggregateTypeApplication, app.ID.UUID, ApplicationRejectedEventType, ApplicationRejectedEvent{
			ApplicationID: app.ID,
			ApproverID:    actorID,
			Reason:        reason,
		})
		if err != nil {
			return nil, err
		}
		return []outbox.Record{record}, nil
	})
}

// ReturnToApplicant sends the application back for rework.
func (s *service) ReturnToApplicant(ctx context.Context, id domain.ApplicationID, actorID domain.MemberID, role, reason string) error {
	return s.mutateApplication(ctx, id, func(app *Application) ([]outbox.Record, error) {
		wf, err := s.requireWorkflow(ctx, app)
		if err != nil {
			return nil, err
		}
		if d := CanReturnAt(app, wf, role); !d.Allowed {
			return nil, d.Err()
		}
		if err := app.ReturnToApplicant(actorID, reason, s.clock()); err != nil {
			return nil, err
		}
		record, err := outbox.NewRecord(aggregateTypeApplication, app.ID.UUID, ApplicationReturnedEventType, ApplicationReturnedEvent{
			ApplicationID: app.ID,
			ApproverID:    actorID,
			Reason:        reason,
		})
		if err != nil {
			return nil, err
		}
		return []outbox.Record{record}, nil
	})
}

// Resubmit moves Returned -> Submitted.
func (s *service) Resubmit(ctx context.Context, id domain.ApplicationID, actorID domain.MemberID) error {
	return s.mutateApplication(ctx, id, func(app *Application) ([]outbox.Record, error) {
		if d := CanSubmit(app, actorID); !d.Allowed {
			return nil, d.Err()
		}
		if err := app.Resubmit(s.clock()); err != nil {
			return nil, err
		}
		record, err := outbox.NewRecord(aggregateTypeApplication, app.ID.UUID, ApplicationSubmittedEventType, ApplicationSubmittedEvent{
			ApplicationID: app.ID,
			SubmittedAt:   *app.SubmittedAt,
		})
		if err != nil {
			return nil, err
		}
		return []outbox.Record{record}, nil
	})
}

// mutateApplication runs a mutation against a freshly loaded application in
// one transaction: load, mutate, persist, append any new history entries and
// outbox records.
func (s *service) mutateApplication(ctx context.Context, id domain.ApplicationID, mutate func(*Application) ([]outbox.Record, error)) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	app, err := s.getApplicationTx(ctx, tx, id)
	if err != nil {
		return err
	}

	historyBefore := len(app.History)
	records, err := mutate(app)
	if err != nil {
		return err
	}

	if err := s.updateApplicationTx(ctx, tx, app); err != nil {
		return err
	}

	// History rows are insert-only; existing entries are never touched.
	const insertHistory = `
		INSERT INTO approval_history (application_id, step_number, approver_id, action, comment, created_at)
		VALUES (:application_id, :step_number, :approver_id, :action, :comment, :created_at)
	`
	for _, entry := range app.History[historyBefore:] {
		if _, err := tx.NamedExecContext(ctx, insertHistory, entry); err != nil {
			return fmt.Errorf("insert approval history: %w", err)
		}
	}

	if len(records) > 0 {
		if err := s.outbox.Append(ctx, tx, records...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *service) verifyApplicantActive(ctx context.Context, applicantID domain.MemberID) error {
	if s.membership == nil {
		return nil
	}
	member, err := s.membership.GetMember(ctx, applicantID)
	if err != nil {
		return err
	}
	if !member.Active {
		return domain.Conflictf("applicant %s is not an active member", applicantID)
	}
	return nil
}

// requireWorkflow resolves the application's bound workflow definition.
func (s *service) requireWorkflow(ctx context.Context, app *Application) (*WorkflowDefinition, error) {
	if app.WorkflowID == nil || app.WorkflowID.IsNil() {
		return nil, domain.Conflictf("application %s has no workflow definition", app.ID)
	}
	return s.GetWorkflowDefinition(ctx, *app.WorkflowID)
}

func (s *service) findActiveWorkflowID(ctx context.Context, appType string) (*domain.WorkflowID, error) {
	var row workflowRow
	const query = `
		SELECT id, application_type, steps, active, version, created_at, updated_at
		FROM workflow_definitions
		WHERE application_type = $1 AND active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := s.db.GetContext(ctx, &row, query, appType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find workflow for type %q: %w", appType, err)
	}
	return &row.ID, nil
}

func (s *service) getWorkflow(ctx context.Context, id domain.WorkflowID) (*WorkflowDefinition, error) {
	var row workflowRow
	const query = `
		SELECT id, application_type, steps, active, version, created_at, updated_at
		FROM workflow_definitions
		WHERE id = $1
	`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("workflow definition %s", id)
		}
		return nil, fmt.Errorf("get workflow definition: %w", err)
	}
	return row.toDomain()
}

func (s *service) getWorkflowTx(ctx context.Context, tx *sqlx.Tx, id domain.WorkflowID) (*WorkflowDefinition, error) {
	var row workflowRow
	const query = `
		SELECT id, application_type, steps, active, version, created_at, updated_at
		FROM workflow_definitions
		WHERE id = $1
	`
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("workflow definition %s", id)
		}
		return nil, fmt.Errorf("get workflow definition: %w", err)
	}
	return row.toDomain()
}

func (s *service) insertWorkflowTx(ctx context.Context, tx *sqlx.Tx, wf *WorkflowDefinition) error {
	steps, err := json.Marshal(wf.Steps)
	if err != nil {
		return fmt.Errorf("marshal workflow steps: %w", err)
	}
	const query = `
		INSERT INTO workflow_definitions (id, application_type, steps, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(ctx, query, wf.ID, wf.ApplicationType, steps, wf.Active, wf.Version, wf.CreatedAt, wf.UpdatedAt); err != nil {
		return fmt.Errorf("insert workflow definition: %w", err)
	}
	return nil
}

func (s *service) updateWorkflowTx(ctx context.Context, tx *sqlx.Tx, wf *WorkflowDefinition) error {
	steps, err := json.Marshal(wf.Steps)
	if err != nil {
		return fmt.Errorf("marshal workflow steps: %w", err)
	}
	const query = `
		UPDATE workflow_definitions
		SET steps = $1, active = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5
	`
	res, err := tx.ExecContext(ctx, query, steps, wf.Active, s.clock(), wf.ID, wf.Version)
	if err != nil {
		return fmt.Errorf("update workflow definition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return domain.Conflictf("workflow definition %s was modified concurrently", wf.ID)
	}
	return nil
}

func (s *service) getApplicationTx(ctx context.Context, tx *sqlx.Tx, id domain.ApplicationID) (*Application, error) {
	app := &Application{}
	const query = `
		SELECT id, applicant_id, type, content, status, current_step, workflow_id, version, created_at, updated_at, submitted_at
		FROM applications
		WHERE id = $1
	`
	if err := tx.GetContext(ctx, app, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("application %s", id)
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (s *service) updateApplicationTx(ctx context.Context, tx *sqlx.Tx, app *Application) error {
	const query = `
		UPDATE applications
		SET content = $1, status = $2, current_step = $3, version = version + 1, updated_at = $4, submitted_at = $5
		WHERE id = $6 AND version = $7
	`
	res, err := tx.ExecContext(ctx, query, app.Content, app.Status, app.CurrentStep, s.clock(), app.SubmittedAt, app.ID, app.Version)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return domain.Conflictf("application %s was modified concurrently", app.ID)
	}
	return nil
}
