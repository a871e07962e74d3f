package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/persistence"
	"github.com/spec-kit/dispatch-service/internal/repository"
	"github.com/spec-kit/dispatch-service/internal/service"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

type pgFixture struct {
	pool      *pgxpool.Pool
	store     *repository.PostgresStore
	tickets   *service.TicketService
	orders    *service.WorkOrderService
	directory *service.DirectoryService
}

func setupPostgres(t *testing.T) *pgFixture {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is required for postgres integration tests")
	}
	ctx := context.Background()

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	require.NoError(t, execAdmin(ctx, dsn, "CREATE SCHEMA "+schema))

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Close()
		_ = execAdmin(context.Background(), dsn, "DROP SCHEMA "+schema+" CASCADE")
	})

	require.NoError(t, persistence.RunMigrations(ctx, pool, "../../migrations", zap.NewNop()))

	store := repository.NewPostgresStore(pool, repository.PostgresOptions{LockTimeout: 5 * time.Second})
	return &pgFixture{
		pool:      pool,
		store:     store,
		tickets:   service.NewTicketService(service.TicketDependencies{Store: store}),
		orders:    service.NewWorkOrderService(service.WorkOrderDependencies{Store: store}),
		directory: service.NewDirectoryService(store, zap.NewNop()),
	}
}

func execAdmin(ctx context.Context, dsn, stmt string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, stmt)
	return err
}

func (f *pgFixture) staff(t *testing.T, role domain.StaffRole, n int) []*domain.StaffMember {
	t.Helper()
	out := make([]*domain.StaffMember, 0, n)
	for i := 0; i < n; i++ {
		s, err := f.directory.RegisterStaff(context.Background(), service.StaffInput{
			Name:  fmt.Sprintf("%s %d", role, i),
			Email: fmt.Sprintf("%s-%d-%s@dispatch.test", strings.ToLower(string(role)), i, uuid.NewString()[:8]),
			Role:  role,
		})
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func (f *pgFixture) availableOrder(t *testing.T) (*domain.Ticket, *domain.WorkOrder, *domain.StaffMember) {
	t.Helper()
	ctx := context.Background()
	company, err := f.directory.RegisterCompany(ctx, service.CompanyInput{Name: "Acme", ContactEmail: "ops@acme.test"})
	require.NoError(t, err)
	agent := f.staff(t, domain.StaffRoleAgent, 1)[0]

	ticket, err := f.tickets.Create(ctx, domain.CompanyActor(company.ID), service.TicketCreateInput{
		CompanyID:   company.ID,
		Title:       "Leaking pipe",
		Description: "Basement flooding",
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	_, err = f.tickets.Assume(ctx, ticket.ID, agent.ID)
	require.NoError(t, err)
	order, err := f.orders.Create(ctx, ticket.ID, agent.ID)
	require.NoError(t, err)
	return ticket, order, agent
}

func TestPostgresConcurrentAcceptHasSingleWinner(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()
	ticket, order, _ := f.availableOrder(t)
	techs := f.staff(t, domain.StaffRoleTechnician, 8)

	var wg sync.WaitGroup
	errs := make(chan error, len(techs))
	for _, tech := range techs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.orders.Accept(ctx, order.ID, id)
			errs <- err
		}(tech.ID)
	}
	wg.Wait()
	close(errs)

	winners := 0
	for err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, apperrors.ErrAlreadyClaimed), errors.Is(err, apperrors.ErrBusy):
		default:
			t.Fatalf("unexpected accept error: %v", err)
		}
	}
	require.Equal(t, 1, winners)

	details, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.WorkOrderStatusInProgress, details.WorkOrder.Status)
	require.Len(t, details.Team, 1)
	require.Equal(t, domain.TechnicianRolePrimary, details.Team[0].Role)

	stored, err := f.store.Reader().Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusInProgress, stored.Status)
}

func TestPostgresCompletionResolvesTicket(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()
	ticket, order, agent := f.availableOrder(t)
	techs := f.staff(t, domain.StaffRoleTechnician, 2)

	_, err := f.orders.Accept(ctx, order.ID, techs[0].ID)
	require.NoError(t, err)
	_, err = f.orders.AddTechnician(ctx, order.ID, techs[1].ID, techs[0].ID)
	require.NoError(t, err)

	result, err := f.orders.CompleteTechnician(ctx, order.ID, techs[0].ID, "valve replaced")
	require.NoError(t, err)
	require.False(t, result.AllCompleted)

	result, err = f.orders.CompleteTechnician(ctx, order.ID, techs[1].ID, "floor dried")
	require.NoError(t, err)
	require.True(t, result.AllCompleted)

	stored, err := f.tickets.Get(ctx, domain.StaffActor(agent.ID), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, stored.Status)

	history, err := f.orders.History(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuditWorkOrderCompleted, history[len(history)-1].Action)
}

func TestPostgresRejectsSecondActiveWorkOrder(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()
	ticket, _, agent := f.availableOrder(t)

	_, err := f.orders.Create(ctx, ticket.ID, agent.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestPostgresMalformedIDsAreNotFound(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()
	ticket, order, agent := f.availableOrder(t)
	tech := f.staff(t, domain.StaffRoleTechnician, 1)[0]

	_, err := f.store.Reader().Tickets.GetByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.tickets.Get(ctx, domain.StaffActor(agent.ID), "not-a-uuid")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.orders.Accept(ctx, "abc", tech.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.orders.Accept(ctx, order.ID, "abc")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.orders.Create(ctx, "abc", agent.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	details, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.WorkOrderStatusAvailable, details.WorkOrder.Status)
	require.Equal(t, ticket.ID, details.WorkOrder.TicketID)
}

func TestPostgresPanicInsideTxReleasesConnection(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()

	require.Panics(t, func() {
		_ = f.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			_, err := repos.Companies.GetByID(ctx, uuid.NewString())
			require.ErrorIs(t, err, repository.ErrNotFound)
			panic("boom")
		})
	})
	require.Zero(t, f.pool.Stat().AcquiredConns())

	company, err := f.directory.RegisterCompany(ctx, service.CompanyInput{Name: "After", ContactEmail: "after@acme.test"})
	require.NoError(t, err)
	require.NotEmpty(t, company.ID)
}
