package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/repository/memory"
	"github.com/spec-kit/dispatch-service/internal/sla"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingChannel struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (r *recordingChannel) Name() string { return "recording" }

func (r *recordingChannel) Deliver(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingChannel) ofType(t events.EventType) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.sent {
		if n.Type == domain.NotificationType(t) {
			out = append(out, n)
		}
	}
	return out
}

func recipientsOf(items []domain.Notification) []domain.Recipient {
	out := make([]domain.Recipient, 0, len(items))
	for _, n := range items {
		out = append(out, n.Recipient)
	}
	return out
}

type fixture struct {
	store      *memory.Store
	tickets    *TicketService
	orders     *WorkOrderService
	sent       *recordingChannel
	company    *domain.Company
	agent      *domain.StaffMember
	dispatcher *domain.StaffMember
	admin      *domain.StaffMember
	techs      []*domain.StaffMember
}

type fixtureOptions struct {
	maxTeamSize int
	lockTimeout time.Duration
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, fixtureOptions{})
}

func newFixtureWith(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	st := memory.NewStore(memory.Options{Now: clock, LockTimeout: opts.lockTimeout})
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	sent := &recordingChannel{}
	NewNotificationService(dispatcher, st, zap.NewNop(), sent).RegisterHandlers()

	f := &fixture{
		store: st,
		sent:  sent,
		tickets: NewTicketService(TicketDependencies{
			Store:      st,
			Dispatcher: dispatcher,
			Clock:      clock,
		}),
		orders: NewWorkOrderService(WorkOrderDependencies{
			Store:       st,
			Dispatcher:  dispatcher,
			Policy:      sla.DefaultPolicy,
			MaxTeamSize: opts.maxTeamSize,
			Clock:       clock,
		}),
	}

	ctx := context.Background()
	repos := st.Reader()
	f.company = &domain.Company{Name: "Acme", ContactEmail: "ops@acme.test", IsActive: true}
	require.NoError(t, repos.Companies.Create(ctx, f.company))

	newStaff := func(name string, role domain.StaffRole) *domain.StaffMember {
		s := &domain.StaffMember{Name: name, Email: name + "@dispatch.test", Role: role, Active: true}
		require.NoError(t, repos.Staff.Create(ctx, s))
		return s
	}
	f.agent = newStaff("agent", domain.StaffRoleAgent)
	f.dispatcher = newStaff("dispatcher", domain.StaffRoleDispatcher)
	f.admin = newStaff("admin", domain.StaffRoleAdmin)
	for _, name := range []string{"tech-a", "tech-b", "tech-c", "tech-d"} {
		f.techs = append(f.techs, newStaff(name, domain.StaffRoleTechnician))
	}
	return f
}

func (f *fixture) createTicket(t *testing.T, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Create(context.Background(), domain.CompanyActor(f.company.ID), TicketCreateInput{
		CompanyID:   f.company.ID,
		Title:       "Air conditioning broken",
		Description: "Server room unit is leaking",
		Category:    "hvac",
		Priority:    priority,
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) assumedTicket(t *testing.T, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket := f.createTicket(t, priority)
	ticket, err := f.tickets.Assume(context.Background(), ticket.ID, f.agent.ID)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) availableOrder(t *testing.T) *domain.WorkOrder {
	t.Helper()
	ticket := f.assumedTicket(t, domain.TicketPriorityMedium)
	order, err := f.orders.Create(context.Background(), ticket.ID, f.agent.ID)
	require.NoError(t, err)
	return order
}

// acceptedOrder returns an IN_PROGRESS order whose primary is techs[0].
func (f *fixture) acceptedOrder(t *testing.T) *domain.WorkOrder {
	t.Helper()
	order := f.availableOrder(t)
	order, err := f.orders.Accept(context.Background(), order.ID, f.techs[0].ID)
	require.NoError(t, err)
	return order
}

func (f *fixture) ticket(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Reader().Tickets.GetByID(context.Background(), id)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) order(t *testing.T, id string) *domain.WorkOrder {
	t.Helper()
	order, err := f.store.Reader().WorkOrders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (f *fixture) team(t *testing.T, id string) []domain.WorkOrderTechnician {
	t.Helper()
	team, err := f.store.Reader().Teams.ListByWorkOrder(context.Background(), id)
	require.NoError(t, err)
	return team
}
