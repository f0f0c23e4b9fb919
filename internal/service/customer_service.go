package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// CustomerService manages the tenant's clients.
type CustomerService struct {
	customers repository.CustomerRepository
	guard     *auth.Guard
	activity  *ActivityService
	tx        persistence.TxManager
}

// CustomerDependencies bundles collaborators for the customer service.
type CustomerDependencies struct {
	CustomerRepo repository.CustomerRepository
	Guard        *auth.Guard
	Activity     *ActivityService
	Tx           persistence.TxManager
}

// CustomerInput describes a new customer.
type CustomerInput struct {
	Name    string
	Email   *string
	Phone   *string
	Address *string
}

// NewCustomerService constructs the service.
func NewCustomerService(deps CustomerDependencies) *CustomerService {
	return &CustomerService{
		customers: deps.CustomerRepo,
		guard:     deps.Guard,
		activity:  deps.Activity,
		tx:        deps.Tx,
	}
}

// Create stores a customer.
func (s *CustomerService) Create(ctx context.Context, tenantID, userID string, input CustomerInput) (customer *domain.Customer, err error) {
	ctx, span := startSpan(ctx, "CustomerService.Create", tenantID)
	defer func() { endSpan(span, err) }()

	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.SalesRoles...); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewInvalidInput("customer name is required", nil)
	}
	email := optionalString(input.Email)
	if email != nil {
		normalized := normalizeEmail(*email)
		if _, perr := mail.ParseAddress(normalized); perr != nil {
			return nil, apperrors.NewInvalidInput("invalid customer email", map[string]any{"email": *email})
		}
		email = &normalized
	}

	customer = &domain.Customer{
		TenantID: tenantID,
		Name:     name,
		Email:    email,
		Phone:    optionalString(input.Phone),
		Address:  optionalString(input.Address),
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.customers.Create(ctx, customer); err != nil {
			return err
		}
		_, err := s.activity.Record(ctx, RecordInput{
			TenantID:   tenantID,
			ActorID:    &userID,
			EntityType: domain.EntityCustomer,
			EntityID:   customer.ID,
			EventType:  domain.ActivityCustomerCreated,
			Message:    fmt.Sprintf("Customer %s created", customer.Name),
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return customer, nil
}

// Get returns one customer.
func (s *CustomerService) Get(ctx context.Context, tenantID, userID, customerID string) (*domain.Customer, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	customer, err := s.customers.GetByID(ctx, tenantID, customerID)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "customer", map[string]any{"id": customerID})
	}
	return customer, nil
}

// List searches customers by name, email or phone.
func (s *CustomerService) List(ctx context.Context, tenantID, userID string, filter repository.CustomerFilter) ([]domain.Customer, error) {
	if _, err := s.guard.RequireRole(ctx, tenantID, userID, auth.AllRoles...); err != nil {
		return nil, err
	}
	filter.TenantID = tenantID
	customers, err := s.customers.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return customers, nil
}
