package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBTX is the subset of pgx shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// TxManager runs a function inside a single unit of work.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type unitOfWorkKey struct{}

// UnitOfWork tracks the open transaction, the hooks to run once it commits
// and the undo steps for storage that cannot roll back on its own.
type UnitOfWork struct {
	tx    pgx.Tx
	mu    sync.Mutex
	hooks []func(context.Context)
	undo  []func()
	done  bool
}

// Begin attaches a new unit of work to ctx. tx may be nil for storage that has no transaction handle.
func Begin(ctx context.Context, tx pgx.Tx) (context.Context, *UnitOfWork) {
	uow := &UnitOfWork{tx: tx}
	return context.WithValue(ctx, unitOfWorkKey{}, uow), uow
}

// FromContext returns the unit of work bound to ctx, if any.
func FromContext(ctx context.Context) (*UnitOfWork, bool) {
	uow, ok := ctx.Value(unitOfWorkKey{}).(*UnitOfWork)
	return uow, ok && uow != nil
}

// AfterCommit registers fn to run once the surrounding unit of work commits.
// Without a unit of work the write has already been applied, so fn runs immediately.
// Hooks run on the committing goroutine: order holds within one unit of work,
// not across units that commit concurrently.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	uow, ok := FromContext(ctx)
	if !ok {
		fn(ctx)
		return
	}
	uow.mu.Lock()
	defer uow.mu.Unlock()
	if uow.done {
		return
	}
	uow.hooks = append(uow.hooks, fn)
}

// OnRollback registers fn to run if the surrounding unit of work fails.
// Steps run in reverse registration order. Without a unit of work it does nothing.
func OnRollback(ctx context.Context, fn func()) {
	uow, ok := FromContext(ctx)
	if !ok {
		return
	}
	uow.mu.Lock()
	defer uow.mu.Unlock()
	if uow.done {
		return
	}
	uow.undo = append(uow.undo, fn)
}

// Committed runs the registered hooks in registration order. It is a no-op after Committed or Discard.
func (u *UnitOfWork) Committed(ctx context.Context) {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return
	}
	u.done = true
	hooks := u.hooks
	u.hooks = nil
	u.undo = nil
	u.mu.Unlock()

	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range hooks {
		hook(hookCtx)
	}
}

// Discard drops the commit hooks and replays the undo steps, newest first.
func (u *UnitOfWork) Discard() {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return
	}
	u.done = true
	u.hooks = nil
	undo := u.undo
	u.undo = nil
	u.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// Conn returns the transaction bound to ctx, falling back to the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if uow, ok := FromContext(ctx); ok && uow.tx != nil {
		return uow.tx
	}
	return pool
}

// PgTxManager implements TxManager on top of a pgx pool.
type PgTxManager struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewTxManager builds a transaction manager for pool.
func NewTxManager(pool *pgxpool.Pool, logger *zap.Logger) *PgTxManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PgTxManager{pool: pool, logger: logger}
}

// WithinTx begins a transaction, runs fn and commits. Nested calls join the outer unit of work.
func (m *PgTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}
	if m.pool == nil {
		return errors.New("postgres pool not configured")
	}

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txCtx, uow := Begin(ctx, tx)
	if err := fn(txCtx); err != nil {
		uow.Discard()
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		uow.Discard()
		m.logger.Warn("transaction commit failed", zap.Error(err))
		return err
	}
	uow.Committed(ctx)
	return nil
}

// LocalTxManager provides unit-of-work semantics without a database.
// Storage used with it registers OnRollback steps to undo its writes.
type LocalTxManager struct{}

// NewLocalTxManager constructs a LocalTxManager.
func NewLocalTxManager() *LocalTxManager {
	return &LocalTxManager{}
}

// WithinTx runs fn and fires commit hooks only when fn succeeds.
func (LocalTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}
	txCtx, uow := Begin(ctx, nil)
	defer func() {
		if r := recover(); r != nil {
			uow.Discard()
			panic(r)
		}
	}()
	if err := fn(txCtx); err != nil {
		uow.Discard()
		return err
	}
	uow.Committed(ctx)
	return nil
}
