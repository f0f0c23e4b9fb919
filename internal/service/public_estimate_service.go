package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// PublicEstimateService serves customers holding a share link. No membership is involved.
type PublicEstimateService struct {
	estimates repository.EstimateRepository
	activity  *ActivityService
	tx        persistence.TxManager
	now       func() time.Time
}

// PublicEstimateDependencies bundles collaborators for the public flow.
type PublicEstimateDependencies struct {
	EstimateRepo repository.EstimateRepository
	Activity     *ActivityService
	Tx           persistence.TxManager
	Clock        func() time.Time
}

// EstimateViewItem is a line as shown to the customer.
type EstimateViewItem struct {
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// EstimateView is the customer-facing projection of an estimate.
type EstimateView struct {
	ID         string
	Number     string
	Status     domain.EstimateStatus
	Items      []EstimateViewItem
	Subtotal   decimal.Decimal
	Total      decimal.Decimal
	ExpiresAt  *time.Time
	DecidedAt  *time.Time
	SignerName *string
}

// DecisionInput is the customer's answer.
type DecisionInput struct {
	Decision    domain.EstimateStatus
	SignerName  string
	SignerEmail *string
}

// NewPublicEstimateService constructs the service.
func NewPublicEstimateService(deps PublicEstimateDependencies) *PublicEstimateService {
	return &PublicEstimateService{
		estimates: deps.EstimateRepo,
		activity:  deps.Activity,
		tx:        deps.Tx,
		now:       clockOrDefault(deps.Clock),
	}
}

// GetByToken returns the shared estimate.
func (s *PublicEstimateService) GetByToken(ctx context.Context, token string) (view *EstimateView, err error) {
	ctx, span := startSpan(ctx, "PublicEstimateService.GetByToken", "")
	defer func() { endSpan(span, err) }()

	est, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return newEstimateView(est), nil
}

// Decide records an accept or reject. Only the first decision wins.
func (s *PublicEstimateService) Decide(ctx context.Context, token string, input DecisionInput) (view *EstimateView, err error) {
	ctx, span := startSpan(ctx, "PublicEstimateService.Decide", "")
	defer func() { endSpan(span, err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		est, err := s.resolve(ctx, token)
		if err != nil {
			return err
		}
		if input.Decision != domain.EstimateStatusAccepted && input.Decision != domain.EstimateStatusRejected {
			return apperrors.NewInvalidInput("decision must be ACCEPTED or REJECTED", map[string]any{"decision": input.Decision})
		}
		signer := strings.TrimSpace(input.SignerName)
		if signer == "" {
			return apperrors.NewInvalidInput("signer name is required", nil)
		}
		if est.Status.Decided() || est.DecidedAt != nil {
			return apperrors.NewConflict("estimate already decided", map[string]any{"status": est.Status})
		}

		decision := repository.Decision{
			Status:      input.Decision,
			DecidedAt:   s.now(),
			SignerName:  signer,
			SignerEmail: optionalString(input.SignerEmail),
		}
		applied, err := s.estimates.Decide(ctx, est.TenantID, est.ID, decision)
		if err != nil {
			return err
		}
		if !applied {
			return apperrors.NewConflict("estimate already decided", nil)
		}
		est.Status = decision.Status
		est.DecidedAt = &decision.DecidedAt
		est.SignerName = &decision.SignerName
		est.SignerEmail = decision.SignerEmail

		eventType, verb := domain.ActivityEstimateAccepted, "accepted"
		if decision.Status == domain.EstimateStatusRejected {
			eventType, verb = domain.ActivityEstimateRejected, "rejected"
		}
		var signerEmail any
		if decision.SignerEmail != nil {
			signerEmail = *decision.SignerEmail
		}
		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   est.TenantID,
			EntityType: domain.EntityJob,
			EntityID:   est.JobID,
			EventType:  eventType,
			Message:    fmt.Sprintf("Estimate %s %s by %s", est.Number, verb, signer),
			Metadata: map[string]any{
				"estimateId":     est.ID,
				"estimateNumber": est.Number,
				"signerName":     signer,
				"signerEmail":    signerEmail,
			},
		})
		if err != nil {
			return err
		}
		view = newEstimateView(est)
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return view, nil
}

// resolve checks visibility before expiry so a disabled link never reports LinkExpired.
func (s *PublicEstimateService) resolve(ctx context.Context, token string) (*domain.Estimate, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperrors.NewNotFound("estimate", nil)
	}
	est, err := s.estimates.GetByToken(ctx, token)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "estimate", nil)
	}
	if !est.PublicEnabled || est.ArchivedAt != nil {
		return nil, apperrors.NewNotFound("estimate", nil)
	}
	if est.PublicLinkExpired(s.now()) {
		return nil, apperrors.NewLinkExpired("this estimate link has expired")
	}
	return est, nil
}

func newEstimateView(est *domain.Estimate) *EstimateView {
	items := make([]EstimateViewItem, len(est.Items))
	for i, it := range est.Items {
		items[i] = EstimateViewItem{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice, LineTotal: it.LineTotal}
	}
	return &EstimateView{
		ID:         est.ID,
		Number:     est.Number,
		Status:     est.Status,
		Items:      items,
		Subtotal:   est.Subtotal,
		Total:      est.Total,
		ExpiresAt:  est.PublicExpiresAt,
		DecidedAt:  est.DecidedAt,
		SignerName: est.SignerName,
	}
}
