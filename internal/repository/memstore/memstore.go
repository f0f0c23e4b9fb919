// Package memstore holds in-memory repository implementations for tests and local tooling.
// It mirrors the Postgres repositories closely enough for service-level behavior:
// missing rows yield pgx.ErrNoRows and unique constraints yield SQLSTATE 23505.
// Writes made inside a persistence unit of work are undone when it fails.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository"
)

var (
	_ repository.TenantRepository     = (*Tenants)(nil)
	_ repository.UserRepository       = (*Users)(nil)
	_ repository.MembershipRepository = (*Memberships)(nil)
	_ repository.CustomerRepository   = (*Customers)(nil)
	_ repository.LeadRepository       = (*Leads)(nil)
	_ repository.JobRepository        = (*Jobs)(nil)
	_ repository.EstimateRepository   = (*Estimates)(nil)
	_ repository.InvoiceRepository    = (*Invoices)(nil)
	_ repository.ActivityRepository   = (*Activity)(nil)
	_ repository.InviteRepository     = (*Invites)(nil)
)

// Store owns every table. The per-entity repositories share its lock.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	tenants     map[string]domain.Tenant
	users       map[string]domain.User
	memberships map[string]domain.Membership
	customers   map[string]domain.Customer
	leads       map[string]domain.Lead
	jobs        map[string]domain.Job
	estimates   map[string]domain.Estimate
	invoices    map[string]domain.Invoice
	activity    []domain.ActivityEvent
	invites     map[string]domain.TenantInvite
}

// New creates an empty store.
func New() *Store {
	return &Store{
		now:         time.Now,
		tenants:     map[string]domain.Tenant{},
		users:       map[string]domain.User{},
		memberships: map[string]domain.Membership{},
		customers:   map[string]domain.Customer{},
		leads:       map[string]domain.Lead{},
		jobs:        map[string]domain.Job{},
		estimates:   map[string]domain.Estimate{},
		invoices:    map[string]domain.Invoice{},
		invites:     map[string]domain.TenantInvite{},
	}
}

// SetClock overrides the timestamp source used for created/updated columns.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Tenants() *Tenants         { return &Tenants{s} }
func (s *Store) Users() *Users             { return &Users{s} }
func (s *Store) Memberships() *Memberships { return &Memberships{s} }
func (s *Store) Customers() *Customers     { return &Customers{s} }
func (s *Store) Leads() *Leads             { return &Leads{s} }
func (s *Store) Jobs() *Jobs               { return &Jobs{s} }
func (s *Store) Estimates() *Estimates     { return &Estimates{s} }
func (s *Store) Invoices() *Invoices       { return &Invoices{s} }
func (s *Store) Activity() *Activity       { return &Activity{s} }
func (s *Store) Invites() *Invites         { return &Invites{s} }

// journal remembers the current row under key so a failed unit of work restores it.
// Callers hold s.mu.
func journal[T any](ctx context.Context, s *Store, table map[string]T, key string) {
	prev, existed := table[key]
	persistence.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			table[key] = prev
		} else {
			delete(table, key)
		}
	})
}

// journalActivity undoes an append or archive of the event with id.
// Callers hold s.mu.
func journalActivity(ctx context.Context, s *Store, id string) {
	idx := slices.IndexFunc(s.activity, func(e domain.ActivityEvent) bool { return e.ID == id })
	var prev *domain.ActivityEvent
	if idx >= 0 {
		copied := s.activity[idx]
		prev = &copied
	}
	persistence.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		i := slices.IndexFunc(s.activity, func(e domain.ActivityEvent) bool { return e.ID == id })
		switch {
		case i < 0:
		case prev == nil:
			s.activity = slices.Delete(s.activity, i, i+1)
		default:
			s.activity[i] = *prev
		}
	})
}

func newID() string {
	return uuid.NewString()
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func membershipKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

func numberSuffix(number string) int {
	idx := strings.LastIndex(number, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(number[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func sortByCreatedDesc[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).After(created(items[j]))
	})
}

func containsStatus[T comparable](set []T, v T) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
