package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/events"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository/memstore"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

type recordingQueue struct {
	mu    sync.Mutex
	items []events.Notification
}

func (q *recordingQueue) Enqueue(n events.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	return true
}

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memstore.Store
	queue    *recordingQueue
	guard    *auth.Guard
	activity *ActivityService
	tx       *persistence.LocalTxManager
	now      time.Time
	tenantID string
	ownerID  string
	users    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		queue: &recordingQueue{},
		tx:    persistence.NewLocalTxManager(),
		now:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	store.SetClock(f.clock)
	f.guard = auth.NewGuard(store.Tenants(), store.Users(), store.Memberships())
	f.activity = NewActivityService(ActivityDependencies{
		ActivityRepo: store.Activity(),
		Guard:        f.guard,
		Queue:        f.queue,
	})

	tenant := &domain.Tenant{Name: "Acme Roofing", Slug: "acme"}
	if err := store.Tenants().Create(f.ctx, tenant); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	f.tenantID = tenant.ID
	f.ownerID = f.addMember(domain.RoleOwner)
	return f
}

func (f *fixture) clock() time.Time {
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) addUser(email string) string {
	f.t.Helper()
	user := &domain.User{Email: email, Name: email, PasswordHash: "x", Enabled: true}
	if err := f.store.Users().Create(f.ctx, user); err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	return user.ID
}

func (f *fixture) addMember(role domain.Role) string {
	f.t.Helper()
	f.users++
	userID := f.addUser(fmt.Sprintf("user%d@example.com", f.users))
	m := &domain.Membership{TenantID: f.tenantID, UserID: userID, Role: role}
	if err := f.store.Memberships().Create(f.ctx, m); err != nil {
		f.t.Fatalf("create membership: %v", err)
	}
	return userID
}

func (f *fixture) customer() *domain.Customer {
	f.t.Helper()
	c := &domain.Customer{TenantID: f.tenantID, Name: "Jane Doe"}
	if err := f.store.Customers().Create(f.ctx, c); err != nil {
		f.t.Fatalf("create customer: %v", err)
	}
	return c
}

func (f *fixture) job() *domain.Job {
	f.t.Helper()
	j := &domain.Job{TenantID: f.tenantID, CustomerID: f.customer().ID, Title: "Roof repair", Status: domain.JobStatusUnscheduled}
	if err := f.store.Jobs().Create(f.ctx, j); err != nil {
		f.t.Fatalf("create job: %v", err)
	}
	return j
}

func (f *fixture) estimates() *EstimateService {
	return NewEstimateService(EstimateDependencies{
		EstimateRepo: f.store.Estimates(),
		JobRepo:      f.store.Jobs(),
		Guard:        f.guard,
		Activity:     f.activity,
		Tx:           f.tx,
		Clock:        f.clock,
	})
}

func (f *fixture) public() *PublicEstimateService {
	return NewPublicEstimateService(PublicEstimateDependencies{
		EstimateRepo: f.store.Estimates(),
		Activity:     f.activity,
		Tx:           f.tx,
		Clock:        f.clock,
	})
}

func (f *fixture) invoices() *InvoiceService {
	return NewInvoiceService(InvoiceDependencies{
		InvoiceRepo:  f.store.Invoices(),
		EstimateRepo: f.store.Estimates(),
		Guard:        f.guard,
		Activity:     f.activity,
		Tx:           f.tx,
		Clock:        f.clock,
	})
}

func (f *fixture) team() *TeamService {
	return NewTeamService(TeamDependencies{
		InviteRepo:     f.store.Invites(),
		MembershipRepo: f.store.Memberships(),
		UserRepo:       f.store.Users(),
		Guard:          f.guard,
		Activity:       f.activity,
		Tx:             f.tx,
		Clock:          f.clock,
	})
}

func (f *fixture) leads() *LeadService {
	return NewLeadService(LeadDependencies{
		LeadRepo:       f.store.Leads(),
		JobRepo:        f.store.Jobs(),
		CustomerRepo:   f.store.Customers(),
		MembershipRepo: f.store.Memberships(),
		Guard:          f.guard,
		Activity:       f.activity,
		Tx:             f.tx,
	})
}

func (f *fixture) jobs() *JobService {
	return NewJobService(JobDependencies{
		JobRepo:        f.store.Jobs(),
		CustomerRepo:   f.store.Customers(),
		MembershipRepo: f.store.Memberships(),
		Guard:          f.guard,
		Activity:       f.activity,
		Tx:             f.tx,
		Clock:          f.clock,
	})
}

// acceptedEstimate creates, shares and accepts an estimate on a fresh job.
func (f *fixture) acceptedEstimate() *domain.Estimate {
	f.t.Helper()
	est, err := f.estimates().Create(f.ctx, f.tenantID, f.ownerID, EstimateCreateInput{
		JobID: f.job().ID,
		Items: []EstimateItemInput{{Name: "Labor", Quantity: dec("2"), UnitPrice: dec("50.00")}},
	})
	if err != nil {
		f.t.Fatalf("create estimate: %v", err)
	}
	share, err := f.estimates().Share(f.ctx, f.tenantID, f.ownerID, est.ID, 0)
	if err != nil {
		f.t.Fatalf("share: %v", err)
	}
	if _, err := f.public().Decide(f.ctx, share.Token, DecisionInput{Decision: domain.EstimateStatusAccepted, SignerName: "Jane"}); err != nil {
		f.t.Fatalf("decide: %v", err)
	}
	est, err = f.store.Estimates().GetByID(f.ctx, f.tenantID, est.ID)
	if err != nil {
		f.t.Fatalf("reload estimate: %v", err)
	}
	return est
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}
