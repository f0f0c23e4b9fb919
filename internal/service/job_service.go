package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// JobService manages scheduled work.
type JobService struct {
	jobs        repository.JobRepository
	customers   repository.CustomerRepository
	memberships repository.MembershipRepository
	guard       *auth.Guard
	activity    *ActivityService
	tx          persistence.TxManager
	now         func() time.Time
}

// JobDependencies bundles collaborators for the job service.
type JobDependencies struct {
	JobRepo        repository.JobRepository
	CustomerRepo   repository.CustomerRepository
	MembershipRepo repository.MembershipRepository
	Guard          *auth.Guard
	Activity       *ActivityService
	Tx             persistence.TxManager
	Clock          func() time.Time
}

// JobInput describes a new job.
type JobInput struct {
	CustomerID   string
	Title        string
	Description  string
	AssigneeID   *string
	ScheduledFor *time.Time
}

// NewJobService constructs the service.
func NewJobService(deps JobDependencies) *JobService {
	return &JobService{
		jobs:        deps.JobRepo,
		customers:   deps.CustomerRepo,
		memberships: deps.MembershipRepo,
		guard:       deps.Guard,
		activity:    deps.Activity,
		tx:          deps.Tx,
		now:         clockOrDefault(deps.Clock),
	}
}

// Create stores a job. It starts SCHEDULED when a time is given, UNSCHEDULED otherwise.
func (s *JobService) Create(ctx context.Context, tenantID, userID string, input JobInput) (job *domain.Job, err error) {
	ctx, span := startSpan(ctx, "JobService.Create", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewInvalidInput("job title is required", nil)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		customer, err := s.customers.GetByID(ctx, tenantID, input.CustomerID)
		if err != nil {
			return apperrors.NotFoundOr(err, "customer", map[string]any{"id": input.CustomerID})
		}
		assigneeID := optionalString(input.AssigneeID)
		if err := checkAssignee(ctx, s.memberships, tenantID, assigneeID); err != nil {
			return err
		}

		job = &domain.Job{
			TenantID:     tenantID,
			CustomerID:   customer.ID,
			AssigneeID:   assigneeID,
			Title:        title,
			Description:  strings.TrimSpace(input.Description),
			Status:       domain.JobStatusUnscheduled,
			ScheduledFor: input.ScheduledFor,
		}
		if job.ScheduledFor != nil {
			job.Status = domain.JobStatusScheduled
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			return err
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityJob,
			EntityID:   job.ID,
			EventType:  domain.ActivityJobCreated,
			Message:    fmt.Sprintf("Job %q created for %s", job.Title, customer.Name),
			Metadata:   map[string]any{"customerId": customer.ID, "status": job.Status},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return job, nil
}

// UpdateStatus sets any known status. Any member may call it.
func (s *JobService) UpdateStatus(ctx context.Context, tenantID, userID, jobID string, status domain.JobStatus) (job *domain.Job, err error) {
	ctx, span := startSpan(ctx, "JobService.UpdateStatus", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperrors.NewInvalidInput("unknown job status", map[string]any{"status": status})
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err = s.load(ctx, tenantID, jobID)
		if err != nil {
			return err
		}
		from := job.Status
		if from == status {
			return nil
		}
		job.Status = status
		if err := s.jobs.Update(ctx, job); err != nil {
			return err
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityJob,
			EntityID:   job.ID,
			EventType:  domain.ActivityJobStatusChanged,
			Message:    fmt.Sprintf("Job moved from %s to %s", from, status),
			Metadata:   map[string]any{"from": from, "to": status},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return job, nil
}

// Archive hides the job. Archived jobs cannot receive new estimates.
func (s *JobService) Archive(ctx context.Context, tenantID, userID, jobID string) (err error) {
	ctx, span := startSpan(ctx, "JobService.Archive", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.ManagerRoles...); err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.load(ctx, tenantID, jobID)
		if err != nil {
			return err
		}
		now := s.now()
		job.ArchivedAt = &now
		if err := s.jobs.Update(ctx, job); err != nil {
			return err
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityJob,
			EntityID:   job.ID,
			EventType:  domain.ActivityJobArchived,
			Message:    fmt.Sprintf("Job %q archived", job.Title),
		})
		return err
	})
	return apperrors.MapError(err)
}

// Get returns one unarchived job.
func (s *JobService) Get(ctx context.Context, tenantID, userID, jobID string) (*domain.Job, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	return s.load(ctx, tenantID, jobID)
}

// List returns jobs matching the filter.
func (s *JobService) List(ctx context.Context, tenantID, userID string, filter repository.JobFilter) ([]domain.Job, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewInvalidInput("unknown job status", map[string]any{"status": st})
		}
	}
	filter.TenantID = tenantID
	jobs, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return jobs, nil
}

func (s *JobService) load(ctx context.Context, tenantID, jobID string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, tenantID, jobID)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "job", map[string]any{"id": jobID})
	}
	if job.ArchivedAt != nil {
		return nil, apperrors.NewNotFound("job", map[string]any{"id": jobID})
	}
	return job, nil
}
