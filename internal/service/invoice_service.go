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

// InvoiceService bills accepted estimates and drives the invoice lifecycle.
type InvoiceService struct {
	invoices  repository.InvoiceRepository
	estimates repository.EstimateRepository
	guard     *auth.Guard
	activity  *ActivityService
	tx        persistence.TxManager
	now       func() time.Time
}

// InvoiceDependencies bundles collaborators for the invoice service.
type InvoiceDependencies struct {
	InvoiceRepo  repository.InvoiceRepository
	EstimateRepo repository.EstimateRepository
	Guard        *auth.Guard
	Activity     *ActivityService
	Tx           persistence.TxManager
	Clock        func() time.Time
}

// InvoiceCreateInput selects the estimate to bill.
type InvoiceCreateInput struct {
	EstimateID string
	DueAt      *time.Time
	Notes      *string
}

// NewInvoiceService constructs the service.
func NewInvoiceService(deps InvoiceDependencies) *InvoiceService {
	return &InvoiceService{
		invoices:  deps.InvoiceRepo,
		estimates: deps.EstimateRepo,
		guard:     deps.Guard,
		activity:  deps.Activity,
		tx:        deps.Tx,
		now:       clockOrDefault(deps.Clock),
	}
}

// CreateFromEstimate snapshots an accepted estimate into a new draft invoice.
func (s *InvoiceService) CreateFromEstimate(ctx context.Context, tenantID, userID string, input InvoiceCreateInput) (inv *domain.Invoice, err error) {
	ctx, span := startSpan(ctx, "InvoiceService.CreateFromEstimate", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		est, err := s.estimates.GetByID(ctx, tenantID, input.EstimateID)
		if err != nil {
			return apperrors.NotFoundOr(err, "estimate", map[string]any{"id": input.EstimateID})
		}
		if est.Status != domain.EstimateStatusAccepted {
			return apperrors.NewConflict("only accepted estimates can be invoiced", map[string]any{"status": est.Status})
		}

		next, err := s.invoices.NextNumber(ctx, tenantID)
		if err != nil {
			return err
		}
		items := make([]domain.InvoiceItem, len(est.Items))
		for i, it := range est.Items {
			items[i] = domain.InvoiceItem{
				Name:      it.Name,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				LineTotal: it.LineTotal,
				SortOrder: i,
			}
		}
		inv = &domain.Invoice{
			TenantID:   tenantID,
			JobID:      est.JobID,
			EstimateID: est.ID,
			Number:     fmt.Sprintf("INV-%06d", next),
			Status:     domain.InvoiceStatusDraft,
			Items:      items,
			Subtotal:   est.Subtotal,
			Total:      est.Total,
			IssuedAt:   s.now(),
			DueAt:      input.DueAt,
			CreatedBy:  &userID,
		}
		if input.Notes != nil {
			inv.Notes = strings.TrimSpace(*input.Notes)
		}
		if err := s.invoices.Create(ctx, inv); err != nil {
			if apperrors.IsUniqueViolation(err) {
				return apperrors.NewConflict("invoice number already taken, retry", map[string]any{"number": inv.Number})
			}
			return err
		}

		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityJob,
			EntityID:   inv.JobID,
			EventType:  domain.ActivityInvoiceCreated,
			Message:    fmt.Sprintf("Invoice %s created from estimate %s", inv.Number, est.Number),
			Metadata: map[string]any{
				"invoiceId":     inv.ID,
				"invoiceNumber": inv.Number,
				"estimateId":    est.ID,
				"total":         inv.Total.StringFixed(2),
			},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return inv, nil
}

// UpdateStatus moves the invoice along the transition table. Any target outside the
// table, unknown values included, is a Conflict.
func (s *InvoiceService) UpdateStatus(ctx context.Context, tenantID, userID, invoiceID string, status domain.InvoiceStatus) (inv *domain.Invoice, err error) {
	ctx, span := startSpan(ctx, "InvoiceService.UpdateStatus", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inv, err = s.invoices.GetByID(ctx, tenantID, invoiceID)
		if err != nil {
			return apperrors.NotFoundOr(err, "invoice", map[string]any{"id": invoiceID})
		}
		from := inv.Status
		if from.Terminal() {
			return apperrors.NewConflict("invoice is closed", map[string]any{"status": from})
		}
		if !isValidTransition(from, status) {
			return apperrors.NewConflict("invalid status transition", map[string]any{"from": from, "to": status})
		}

		now := s.now()
		inv.Status = status
		if status == domain.InvoiceStatusSent && inv.SentAt == nil {
			inv.SentAt = &now
		}
		if status == domain.InvoiceStatusPaid && inv.PaidAt == nil {
			inv.PaidAt = &now
		}
		applied, err := s.invoices.UpdateStatus(ctx, inv, from)
		if err != nil {
			return err
		}
		if !applied {
			return apperrors.NewConflict("invoice changed concurrently", map[string]any{"from": from})
		}

		_, err = s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityJob,
			EntityID:   inv.JobID,
			EventType:  domain.ActivityInvoiceStatus,
			Message:    fmt.Sprintf("Invoice %s moved from %s to %s", inv.Number, from, status),
			Metadata:   map[string]any{"invoiceId": inv.ID, "from": from, "to": status},
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return inv, nil
}

// Get returns one invoice with its items.
func (s *InvoiceService) Get(ctx context.Context, tenantID, userID, invoiceID string) (*domain.Invoice, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	inv, err := s.invoices.GetByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "invoice", map[string]any{"id": invoiceID})
	}
	return inv, nil
}

// List returns invoices matching the filter. TenantID on the filter is ignored.
func (s *InvoiceService) List(ctx context.Context, tenantID, userID string, filter repository.InvoiceFilter) ([]domain.Invoice, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewInvalidInput("unknown invoice status", map[string]any{"status": st})
		}
	}
	filter.TenantID = tenantID
	invoices, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return invoices, nil
}

var allowedTransitions = map[domain.InvoiceStatus][]domain.InvoiceStatus{
	domain.InvoiceStatusDraft: {domain.InvoiceStatusSent, domain.InvoiceStatusVoid},
	domain.InvoiceStatusSent:  {domain.InvoiceStatusPaid, domain.InvoiceStatusVoid},
	domain.InvoiceStatusPaid:  {},
	domain.InvoiceStatusVoid:  {},
}

func isValidTransition(current, next domain.InvoiceStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
