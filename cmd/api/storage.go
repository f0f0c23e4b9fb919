package main

import (
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/repository"
	"github.com/spec-kit/fieldops/internal/repository/memstore"
)

// storage bundles the repositories and the unit of work they share.
type storage struct {
	tenants     repository.TenantRepository
	users       repository.UserRepository
	memberships repository.MembershipRepository
	customers   repository.CustomerRepository
	leads       repository.LeadRepository
	jobs        repository.JobRepository
	estimates   repository.EstimateRepository
	invoices    repository.InvoiceRepository
	invites     repository.InviteRepository
	activity    repository.ActivityRepository
	tx          persistence.TxManager
}

// openStorage uses Postgres when a pool is configured and falls back to the
// in-memory store otherwise. The fallback keeps nothing across restarts.
func openStorage(pg *persistence.Postgres, logger *zap.Logger) storage {
	pool := pg.PoolHandle()
	if pool == nil {
		logger.Warn("running on in-memory storage; data is lost on exit")
		mem := memstore.New()
		return storage{
			tenants:     mem.Tenants(),
			users:       mem.Users(),
			memberships: mem.Memberships(),
			customers:   mem.Customers(),
			leads:       mem.Leads(),
			jobs:        mem.Jobs(),
			estimates:   mem.Estimates(),
			invoices:    mem.Invoices(),
			invites:     mem.Invites(),
			activity:    mem.Activity(),
			tx:          persistence.NewLocalTxManager(),
		}
	}
	return storage{
		tenants:     repository.NewTenantRepository(pool),
		users:       repository.NewUserRepository(pool),
		memberships: repository.NewMembershipRepository(pool),
		customers:   repository.NewCustomerRepository(pool),
		leads:       repository.NewLeadRepository(pool),
		jobs:        repository.NewJobRepository(pool),
		estimates:   repository.NewEstimateRepository(pool),
		invoices:    repository.NewInvoiceRepository(pool),
		invites:     repository.NewInviteRepository(pool),
		activity:    repository.NewActivityRepository(pool),
		tx:          persistence.NewTxManager(pool, logger),
	}
}
