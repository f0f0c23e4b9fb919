package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// LeadService manages the sales pipeline.
type LeadService struct {
	leads       repository.LeadRepository
	jobs        repository.JobRepository
	customers   repository.CustomerRepository
	memberships repository.MembershipRepository
	guard       *auth.Guard
	activity    *ActivityService
	tx          persistence.TxManager
}

// LeadDependencies bundles collaborators for the lead service.
type LeadDependencies struct {
	LeadRepo       repository.LeadRepository
	JobRepo        repository.JobRepository
	CustomerRepo   repository.CustomerRepository
	MembershipRepo repository.MembershipRepository
	Guard          *auth.Guard
	Activity       *ActivityService
	Tx             persistence.TxManager
}

// LeadInput describes a new lead.
type LeadInput struct {
	Title      string
	Source     string
	Notes      string
	CustomerID *string
	AssigneeID *string
}

// NewLeadService constructs the service.
func NewLeadService(deps LeadDependencies) *LeadService {
	return &LeadService{
		leads:       deps.LeadRepo,
		jobs:        deps.JobRepo,
		customers:   deps.CustomerRepo,
		memberships: deps.MembershipRepo,
		guard:       deps.Guard,
		activity:    deps.Activity,
		tx:          deps.Tx,
	}
}

// Create stores a NEW lead.
func (s *LeadService) Create(ctx context.Context, tenantID, userID string, input LeadInput) (lead *domain.Lead, err error) {
	ctx, span := startSpan(ctx, "LeadService.Create", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewInvalidInput("lead title is required", nil)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		customerID := optionalString(input.CustomerID)
		if customerID != nil {
			if _, err := s.customers.GetByID(ctx, tenantID, *customerID); err != nil {
				return apperrors.NotFoundOr(err, "customer", map[string]any{"id": *customerID})
			}
		}
		assigneeID := optionalString(input.AssigneeID)
		if err := checkAssignee(ctx, s.memberships, tenantID, assigneeID); err != nil {
			return err
		}

		lead = &domain.Lead{
			TenantID:   tenantID,
			CustomerID: customerID,
			AssigneeID: assigneeID,
			Title:      title,
			Source:     strings.TrimSpace(input.Source),
			Notes:      strings.TrimSpace(input.Notes),
			Status:     domain.LeadStatusNew,
		}
		if err := s.leads.Create(ctx, lead); err != nil {
			return err
		}
		_, err := s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityLead,
			EntityID:   lead.ID,
			EventType:  domain.ActivityLeadCreated,
			Message:    fmt.Sprintf("Lead %q created", lead.Title),
			Metadata:   map[string]any{"source": lead.Source},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return lead, nil
}

// UpdateStatus moves a lead to any known stage.
func (s *LeadService) UpdateStatus(ctx context.Context, tenantID, userID, leadID string, status domain.LeadStatus) (lead *domain.Lead, err error) {
	ctx, span := startSpan(ctx, "LeadService.UpdateStatus", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperrors.NewInvalidInput("unknown lead status", map[string]any{"status": status})
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lead, err = s.load(ctx, tenantID, leadID)
		if err != nil {
			return err
		}
		from := lead.Status
		if from == status {
			return nil
		}
		lead.Status = status
		if err := s.leads.Update(ctx, lead); err != nil {
			return err
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityLead,
			EntityID:   lead.ID,
			EventType:  domain.ActivityLeadStatusChanged,
			Message:    fmt.Sprintf("Lead moved from %s to %s", from, status),
			Metadata:   map[string]any{"from": from, "to": status},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return lead, nil
}

// ConvertToJob creates an UNSCHEDULED job from the lead and marks the lead WON.
func (s *LeadService) ConvertToJob(ctx context.Context, tenantID, userID, leadID string) (job *domain.Job, err error) {
	ctx, span := startSpan(ctx, "LeadService.ConvertToJob", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lead, err := s.load(ctx, tenantID, leadID)
		if err != nil {
			return err
		}
		if lead.ConvertedJobID != nil {
			return apperrors.NewConflict("lead already converted", map[string]any{"jobId": *lead.ConvertedJobID})
		}
		if lead.CustomerID == nil {
			return apperrors.NewInvalidInput("lead needs a customer before conversion", nil)
		}

		job = &domain.Job{
			TenantID:    tenantID,
			CustomerID:  *lead.CustomerID,
			LeadID:      &lead.ID,
			AssigneeID:  lead.AssigneeID,
			Title:       lead.Title,
			Description: lead.Notes,
			Status:      domain.JobStatusUnscheduled,
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			if apperrors.IsUniqueViolation(err) {
				return apperrors.NewConflict("lead already converted", nil)
			}
			return err
		}
		lead.ConvertedJobID = &job.ID
		lead.Status = domain.LeadStatusWon
		if err := s.leads.Update(ctx, lead); err != nil {
			return err
		}

		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityLead,
			EntityID:   lead.ID,
			EventType:  domain.ActivityLeadConverted,
			Message:    fmt.Sprintf("Lead %q converted to a job", lead.Title),
			Metadata:   map[string]any{"jobId": job.ID},
		})
		if err != nil {
			return err
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityJob,
			EntityID:   job.ID,
			EventType:  domain.ActivityJobCreated,
			Message:    fmt.Sprintf("Job %q created from lead", job.Title),
			Metadata:   map[string]any{"leadId": lead.ID},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return job, nil
}

// List returns leads matching the filter, newest first.
func (s *LeadService) List(ctx context.Context, tenantID, userID string, filter repository.LeadFilter) ([]domain.Lead, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewInvalidInput("unknown lead status", map[string]any{"status": st})
		}
	}
	filter.TenantID = tenantID
	leads, err := s.leads.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return leads, nil
}

func (s *LeadService) load(ctx context.Context, tenantID, leadID string) (*domain.Lead, error) {
	lead, err := s.leads.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "lead", map[string]any{"id": leadID})
	}
	if lead.ArchivedAt != nil {
		return nil, apperrors.NewNotFound("lead", map[string]any{"id": leadID})
	}
	return lead, nil
}

// checkAssignee requires a non-nil assignee to be an active member of the tenant.
func checkAssignee(ctx context.Context, memberships repository.MembershipRepository, tenantID string, assigneeID *string) error {
	if assigneeID == nil {
		return nil
	}
	m, err := memberships.Get(ctx, tenantID, *assigneeID)
	if err != nil {
		if apperrors.IsNoRows(err) {
			return apperrors.NewInvalidInput("assignee is not a member of this tenant", map[string]any{"assigneeId": *assigneeID})
		}
		return err
	}
	if !m.IsActive() {
		return apperrors.NewInvalidInput("assignee is not a member of this tenant", map[string]any{"assigneeId": *assigneeID})
	}
	return nil
}
