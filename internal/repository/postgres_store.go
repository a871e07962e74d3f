package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore runs units of work against a pgx pool. Reads go to the
// replica pool when one is configured.
type PostgresStore struct {
	primary     *pgxpool.Pool
	replica     *pgxpool.Pool
	lockTimeout time.Duration
}

// PostgresOptions tunes transaction behaviour.
type PostgresOptions struct {
	Replica     *pgxpool.Pool
	LockTimeout time.Duration
}

// NewPostgresStore builds a store over the primary pool.
func NewPostgresStore(primary *pgxpool.Pool, opts PostgresOptions) *PostgresStore {
	return &PostgresStore{
		primary:     primary,
		replica:     opts.Replica,
		lockTimeout: opts.LockTimeout,
	}
}

// WithinTx implements Store.
func (s *PostgresStore) WithinTx(ctx context.Context, fn TxFunc) (err error) {
	tx, err := s.primary.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError(err)
	}
	// Rollback after a successful commit is a no-op; this also frees the
	// connection when fn panics.
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return mapError(err)
		}
	}

	if err = fn(ctx, newRepositories(tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// Reader implements Store.
func (s *PostgresStore) Reader() Repositories {
	if s.replica != nil {
		return newRepositories(s.replica)
	}
	return newRepositories(s.primary)
}

func newRepositories(q Querier) Repositories {
	return Repositories{
		Tickets:       NewTicketRepository(q),
		WorkOrders:    NewWorkOrderRepository(q),
		Teams:         NewTeamRepository(q),
		Audit:         NewAuditRepository(q),
		Staff:         NewStaffRepository(q),
		Companies:     NewCompanyRepository(q),
		Notifications: NewNotificationRepository(q),
	}
}
