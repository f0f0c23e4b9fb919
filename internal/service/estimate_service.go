package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

const (
	defaultShareDays = 14
	maxShareDays     = 365
)

// EstimateService manages estimates on behalf of tenant members.
type EstimateService struct {
	estimates repository.EstimateRepository
	jobs      repository.JobRepository
	guard     *auth.Guard
	activity  *ActivityService
	tx        persistence.TxManager
	now       func() time.Time
	shareDays int
}

// EstimateDependencies bundles collaborators for the estimate service.
type EstimateDependencies struct {
	EstimateRepo     repository.EstimateRepository
	JobRepo          repository.JobRepository
	Guard            *auth.Guard
	Activity         *ActivityService
	Tx               persistence.TxManager
	Clock            func() time.Time
	DefaultShareDays int
}

// EstimateItemInput is one requested line.
type EstimateItemInput struct {
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// EstimateCreateInput describes a new estimate.
type EstimateCreateInput struct {
	JobID  string
	Items  []EstimateItemInput
	Status *domain.EstimateStatus
	Notes  *string
}

// EstimateUpdateInput carries a partial update; nil fields are left unchanged.
// A non-nil Items replaces every line.
type EstimateUpdateInput struct {
	Items  []EstimateItemInput
	Status *domain.EstimateStatus
	Notes  *string
}

// ShareResult is returned when an estimate is shared publicly.
type ShareResult struct {
	Token     string
	ExpiresAt time.Time
}

// NewEstimateService constructs the service.
func NewEstimateService(deps EstimateDependencies) *EstimateService {
	shareDays := deps.DefaultShareDays
	if shareDays < 1 || shareDays > maxShareDays {
		shareDays = defaultShareDays
	}
	return &EstimateService{
		estimates: deps.EstimateRepo,
		jobs:      deps.JobRepo,
		guard:     deps.Guard,
		activity:  deps.Activity,
		tx:        deps.Tx,
		now:       clockOrDefault(deps.Clock),
		shareDays: shareDays,
	}
}

// Create prices the items and stores a new estimate for the job.
func (s *EstimateService) Create(ctx context.Context, tenantID, userID string, input EstimateCreateInput) (est *domain.Estimate, err error) {
	ctx, span := startSpan(ctx, "EstimateService.Create", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}
	items, err := buildEstimateItems(input.Items)
	if err != nil {
		return nil, err
	}
	status := domain.EstimateStatusDraft
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewInvalidInput("unknown estimate status", map[string]any{"status": *input.Status})
		}
		status = *input.Status
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobs.GetByID(ctx, tenantID, input.JobID)
		if err != nil {
			return apperrors.NotFoundOr(err, "job", map[string]any{"id": input.JobID})
		}
		if job.ArchivedAt != nil {
			return apperrors.NewNotFound("job", map[string]any{"id": input.JobID})
		}

		next, err := s.estimates.NextNumber(ctx, tenantID)
		if err != nil {
			return err
		}
		est = &domain.Estimate{
			TenantID:  tenantID,
			JobID:     job.ID,
			Number:    fmt.Sprintf("EST-%06d", next),
			Status:    status,
			Items:     items,
			CreatedBy: &userID,
		}
		if input.Notes != nil {
			est.Notes = strings.TrimSpace(*input.Notes)
		}
		est.Recalculate()

		if err := s.estimates.Create(ctx, est); err != nil {
			if apperrors.IsUniqueViolation(err) {
				return apperrors.NewConflict("estimate number already taken, retry", map[string]any{"number": est.Number})
			}
			return err
		}

		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityEstimate,
			EntityID:   est.ID,
			EventType:  domain.ActivityEstimateCreated,
			Message:    fmt.Sprintf("Estimate %s created", est.Number),
			Metadata:   map[string]any{"number": est.Number, "jobId": est.JobID, "total": est.Total.StringFixed(2)},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return est, nil
}

// Update overwrites the supplied fields. Status is written as given; decision fields are never touched here.
func (s *EstimateService) Update(ctx context.Context, tenantID, userID, estimateID string, input EstimateUpdateInput) (est *domain.Estimate, err error) {
	ctx, span := startSpan(ctx, "EstimateService.Update", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}
	var items []domain.EstimateItem
	if input.Items != nil {
		if items, err = buildEstimateItems(input.Items); err != nil {
			return nil, err
		}
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewInvalidInput("unknown estimate status", map[string]any{"status": *input.Status})
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		est, err = s.load(ctx, tenantID, estimateID)
		if err != nil {
			return err
		}

		from := est.Status
		changed := []string{}
		if input.Notes != nil {
			est.Notes = strings.TrimSpace(*input.Notes)
			changed = append(changed, "notes")
		}
		if input.Status != nil {
			est.Status = *input.Status
			changed = append(changed, "status")
		}
		if items != nil {
			est.Items = items
			est.Recalculate()
			changed = append(changed, "items")
		}
		if err := s.update(ctx, est, from); err != nil {
			return err
		}
		if items != nil {
			if err := s.estimates.ReplaceItems(ctx, est); err != nil {
				return err
			}
		}

		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityEstimate,
			EntityID:   est.ID,
			EventType:  domain.ActivityEstimateUpdated,
			Message:    fmt.Sprintf("Estimate %s updated", est.Number),
			Metadata:   map[string]any{"fields": changed, "status": est.Status, "total": est.Total.StringFixed(2)},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return est, nil
}

// SetStatus overwrites the status for administrative transitions.
func (s *EstimateService) SetStatus(ctx context.Context, tenantID, userID, estimateID string, status domain.EstimateStatus) (est *domain.Estimate, err error) {
	ctx, span := startSpan(ctx, "EstimateService.SetStatus", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperrors.NewInvalidInput("unknown estimate status", map[string]any{"status": status})
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		est, err = s.load(ctx, tenantID, estimateID)
		if err != nil {
			return err
		}
		from := est.Status
		est.Status = status
		if err := s.update(ctx, est, from); err != nil {
			return err
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityEstimate,
			EntityID:   est.ID,
			EventType:  domain.ActivityEstimateStatus,
			Message:    fmt.Sprintf("Estimate %s moved from %s to %s", est.Number, from, status),
			Metadata:   map[string]any{"from": from, "to": status},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return est, nil
}

// Share issues a fresh public token, invalidating any previous one.
// expiresInDays of 0 selects the default.
func (s *EstimateService) Share(ctx context.Context, tenantID, userID, estimateID string, expiresInDays int) (result *ShareResult, err error) {
	ctx, span := startSpan(ctx, "EstimateService.Share", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}
	if expiresInDays == 0 {
		expiresInDays = s.shareDays
	}
	if expiresInDays < 1 || expiresInDays > maxShareDays {
		return nil, apperrors.NewInvalidInput("expiresInDays must be between 1 and 365", map[string]any{"expiresInDays": expiresInDays})
	}

	token, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		est, err := s.load(ctx, tenantID, estimateID)
		if err != nil {
			return err
		}
		now := s.now()
		expiresAt := now.Add(time.Duration(expiresInDays) * 24 * time.Hour)
		est.PublicToken = &token
		est.PublicEnabled = true
		est.PublicExpiresAt = &expiresAt
		est.LastSharedAt = &now
		if err := s.estimates.SharePublic(ctx, est); err != nil {
			return err
		}
		result = &ShareResult{Token: token, ExpiresAt: expiresAt}

		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityEstimate,
			EntityID:   est.ID,
			EventType:  domain.ActivityEstimateShared,
			Message:    fmt.Sprintf("Estimate %s shared for %d days", est.Number, expiresInDays),
			Metadata:   map[string]any{"expiresAt": expiresAt.UTC().Format(time.RFC3339)},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// RevokeShare disables public access and forgets the token.
func (s *EstimateService) RevokeShare(ctx context.Context, tenantID, userID, estimateID string) (est *domain.Estimate, err error) {
	ctx, span := startSpan(ctx, "EstimateService.RevokeShare", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		est, err = s.load(ctx, tenantID, estimateID)
		if err != nil {
			return err
		}
		if err := s.estimates.RevokePublic(ctx, tenantID, est.ID); err != nil {
			return err
		}
		est.PublicEnabled = false
		est.PublicToken = nil
		est.PublicExpiresAt = nil
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityEstimate,
			EntityID:   est.ID,
			EventType:  domain.ActivityEstimateShareRevoked,
			Message:    fmt.Sprintf("Public link for estimate %s revoked", est.Number),
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return est, nil
}

// Archive hides the estimate from listings and public access.
func (s *EstimateService) Archive(ctx context.Context, tenantID, userID, estimateID string) (err error) {
	ctx, span := startSpan(ctx, "EstimateService.Archive", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		est, err := s.load(ctx, tenantID, estimateID)
		if err != nil {
			return err
		}
		if err := s.estimates.Archive(ctx, tenantID, est.ID, s.now()); err != nil {
			return err
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityEstimate,
			EntityID:   est.ID,
			EventType:  domain.ActivityEstimateArchived,
			Message:    fmt.Sprintf("Estimate %s archived", est.Number),
		})
		return err
	})
	return apperrors.MapError(err)
}

// Get returns one estimate with its items.
func (s *EstimateService) Get(ctx context.Context, tenantID, userID, estimateID string) (*domain.Estimate, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	est, err := s.load(ctx, tenantID, estimateID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return est, nil
}

// List returns estimates matching the filter. TenantID on the filter is ignored.
func (s *EstimateService) List(ctx context.Context, tenantID, userID string, filter repository.EstimateFilter) ([]domain.Estimate, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewInvalidInput("unknown estimate status", map[string]any{"status": st})
		}
	}
	filter.TenantID = tenantID
	estimates, err := s.estimates.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return estimates, nil
}

// update writes est only if nobody moved its status since it was loaded.
func (s *EstimateService) update(ctx context.Context, est *domain.Estimate, from domain.EstimateStatus) error {
	applied, err := s.estimates.Update(ctx, est, from)
	if err != nil {
		return err
	}
	if !applied {
		return apperrors.NewConflict("estimate was modified concurrently", map[string]any{"id": est.ID, "status": from})
	}
	return nil
}

func (s *EstimateService) load(ctx context.Context, tenantID, estimateID string) (*domain.Estimate, error) {
	est, err := s.estimates.GetByID(ctx, tenantID, estimateID)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "estimate", map[string]any{"id": estimateID})
	}
	if est.ArchivedAt != nil {
		return nil, apperrors.NewNotFound("estimate", map[string]any{"id": estimateID})
	}
	return est, nil
}

func buildEstimateItems(inputs []EstimateItemInput) ([]domain.EstimateItem, error) {
	if len(inputs) == 0 {
		return nil, apperrors.NewInvalidInput("at least one item is required", nil)
	}
	items := make([]domain.EstimateItem, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, apperrors.NewInvalidInput("item name is required", map[string]any{"index": i})
		}
		if !in.Quantity.IsPositive() {
			return nil, apperrors.NewInvalidInput("item quantity must be positive", map[string]any{"index": i})
		}
		if in.UnitPrice.IsNegative() {
			return nil, apperrors.NewInvalidInput("item unit price cannot be negative", map[string]any{"index": i})
		}
		items[i] = domain.EstimateItem{Name: name, Quantity: in.Quantity, UnitPrice: in.UnitPrice}
	}
	return items, nil
}
