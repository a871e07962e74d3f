package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

func TestCreateTicketValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tickets.Create(ctx, domain.CompanyActor(f.company.ID), TicketCreateInput{CompanyID: f.company.ID, Title: "  "})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.tickets.Create(ctx, domain.CompanyActor(f.company.ID), TicketCreateInput{
		CompanyID: f.company.ID, Title: "t", Description: "d", Priority: "URGENT",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.tickets.Create(ctx, domain.CompanyActor(f.company.ID), TicketCreateInput{
		CompanyID: "missing", Title: "t", Description: "d",
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateTicketDefaultsAndNotifiesCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.Create(ctx, domain.StaffActor(f.agent.ID), TicketCreateInput{
		CompanyID: f.company.ID, Title: "Leak", Description: "Water on the floor",
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusCreated, ticket.Status)
	require.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	require.Regexp(t, `^TCK-[0-9A-F]{8}$`, ticket.ExternalKey)

	created := f.sent.ofType(events.EventTicketCreated)
	require.Len(t, created, 1)
	require.Equal(t, domain.CompanyRecipient(f.company.ID), created[0].Recipient)
}

func TestCreateTicketPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	input := TicketCreateInput{CompanyID: f.company.ID, Title: "t", Description: "d"}

	_, err := f.tickets.Create(ctx, domain.CompanyActor("other-company"), input)
	require.ErrorIs(t, err, apperrors.ErrPermission)

	_, err = f.tickets.Create(ctx, domain.StaffActor(f.techs[0].ID), input)
	require.ErrorIs(t, err, apperrors.ErrPermission)

	_, err = f.tickets.Create(ctx, domain.StaffActor("ghost"), input)
	require.ErrorIs(t, err, apperrors.ErrPermission)
}

func TestTicketManualLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.assumedTicket(t, domain.TicketPriorityLow)
	require.Equal(t, domain.TicketStatusAssumed, ticket.Status)
	require.Equal(t, f.agent.ID, *ticket.AssignedStaffID)
	require.Equal(t, fixedNow, *ticket.AssumedAt)

	ticket, err := f.tickets.Dispatch(ctx, ticket.ID, f.agent.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusDispatched, ticket.Status)

	ticket, err = f.tickets.MarkInProgress(ctx, ticket.ID, f.agent.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusInProgress, ticket.Status)

	ticket, err = f.tickets.Resolve(ctx, ticket.ID, f.agent.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, ticket.Status)

	ticket, err = f.tickets.Close(ctx, ticket.ID, domain.CompanyActor(f.company.ID))
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusClosed, ticket.Status)
	require.NotNil(t, ticket.ClosedAt)

	history, err := f.tickets.History(ctx, domain.StaffActor(f.agent.ID), ticket.ID)
	require.NoError(t, err)
	actions := make([]domain.AuditAction, 0, len(history))
	for _, entry := range history {
		actions = append(actions, entry.Action)
	}
	require.Equal(t, []domain.AuditAction{
		domain.AuditTicketCreated,
		domain.AuditTicketAssumed,
		domain.AuditTicketDispatched,
		domain.AuditTicketInProgress,
		domain.AuditTicketResolved,
		domain.AuditTicketClosed,
	}, actions)
	require.Equal(t, "status RESOLVED -> CLOSED", history[len(history)-1].Description)
}

func TestCloseByCompanyNotifiesAssignee(t *testing.T) {
	f := newFixture(t)
	ticket := f.assumedTicket(t, domain.TicketPriorityLow)

	_, err := f.tickets.Close(context.Background(), ticket.ID, domain.CompanyActor(f.company.ID))
	require.NoError(t, err)

	closed := f.sent.ofType(events.EventTicketClosed)
	require.Equal(t, []domain.Recipient{domain.StaffRecipient(f.agent.ID)}, recipientsOf(closed))
}

func TestTicketTransitionRejectsInvalidSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityLow)

	_, err := f.tickets.Resolve(ctx, ticket.ID, f.admin.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = f.tickets.Close(ctx, ticket.ID, domain.CompanyActor(f.company.ID))
	require.ErrorIs(t, err, apperrors.ErrInvalidState)

	require.Equal(t, domain.TicketStatusCreated, f.ticket(t, ticket.ID).Status)
}

func TestReopenFromCreatedIsRejected(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, domain.TicketPriorityLow)

	_, err := f.tickets.Reopen(context.Background(), ticket.ID, domain.CompanyActor(f.company.ID), "still broken")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)

	history, err := f.tickets.History(context.Background(), domain.CompanyActor(f.company.ID), ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Empty(t, f.sent.ofType(events.EventTicketReopened))
}

func TestReopenClearsAssigneeAndRequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.assumedTicket(t, domain.TicketPriorityLow)
	_, err := f.tickets.Close(ctx, ticket.ID, domain.StaffActor(f.agent.ID))
	require.NoError(t, err)

	_, err = f.tickets.Reopen(ctx, ticket.ID, domain.CompanyActor(f.company.ID), " ")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	ticket, err = f.tickets.Reopen(ctx, ticket.ID, domain.CompanyActor(f.company.ID), "still leaking")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusReopened, ticket.Status)
	require.Nil(t, ticket.AssignedStaffID)

	reopened := f.sent.ofType(events.EventTicketReopened)
	require.Len(t, reopened, 1)
	require.Contains(t, reopened[0].Message, "still leaking")

	ticket, err = f.tickets.Assume(ctx, ticket.ID, f.dispatcher.ID)
	require.NoError(t, err)
	require.Equal(t, f.dispatcher.ID, *ticket.AssignedStaffID)
}

func TestTicketChangesRequireAssignedStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.assumedTicket(t, domain.TicketPriorityLow)

	_, err := f.tickets.Dispatch(ctx, ticket.ID, f.dispatcher.ID)
	require.ErrorIs(t, err, apperrors.ErrPermission)

	_, err = f.tickets.Assume(ctx, f.createTicket(t, domain.TicketPriorityLow).ID, f.techs[0].ID)
	require.ErrorIs(t, err, apperrors.ErrPermission)

	ticket, err = f.tickets.Dispatch(ctx, ticket.ID, f.admin.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusDispatched, ticket.Status)
}

func TestAdminDispatchOfReopenedTicketTakesItOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.assumedTicket(t, domain.TicketPriorityHigh)
	_, err := f.tickets.Close(ctx, ticket.ID, domain.StaffActor(f.agent.ID))
	require.NoError(t, err)
	_, err = f.tickets.Reopen(ctx, ticket.ID, domain.CompanyActor(f.company.ID), "fault came back")
	require.NoError(t, err)

	_, err = f.tickets.Dispatch(ctx, ticket.ID, f.agent.ID)
	require.ErrorIs(t, err, apperrors.ErrPermission)

	ticket, err = f.tickets.Dispatch(ctx, ticket.ID, f.admin.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusDispatched, ticket.Status)
	require.NotNil(t, ticket.AssignedStaffID)
	require.Equal(t, f.admin.ID, *ticket.AssignedStaffID)

	order, err := f.orders.Create(ctx, ticket.ID, f.admin.ID)
	require.NoError(t, err)
	_, err = f.orders.Accept(ctx, order.ID, f.techs[0].ID)
	require.NoError(t, err)

	stored := f.ticket(t, ticket.ID)
	require.Equal(t, domain.TicketStatusInProgress, stored.Status)
	require.NotNil(t, stored.AssignedStaffID)
	require.Equal(t, f.admin.ID, *stored.AssignedStaffID)
}

func TestDispatchKeepsExistingAssignee(t *testing.T) {
	f := newFixture(t)
	ticket := f.assumedTicket(t, domain.TicketPriorityLow)

	ticket, err := f.tickets.Dispatch(context.Background(), ticket.ID, f.admin.ID)
	require.NoError(t, err)
	require.Equal(t, f.agent.ID, *ticket.AssignedStaffID)
}

func TestCompaniesCannotSeeOtherTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, domain.TicketPriorityLow)

	_, err := f.tickets.Get(ctx, domain.CompanyActor("someone-else"), ticket.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.tickets.Close(ctx, f.assumedTicket(t, domain.TicketPriorityLow).ID, domain.CompanyActor("someone-else"))
	require.ErrorIs(t, err, apperrors.ErrPermission)

	list, err := f.tickets.List(ctx, domain.CompanyActor("someone-else"), TicketListFilter{})
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = f.tickets.List(ctx, domain.CompanyActor(f.company.ID), TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestTicketTransitionRollsBackOnAuditFailure(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, domain.TicketPriorityLow)
	f.store.SetFault("audit.append", errors.New("disk full"))

	_, err := f.tickets.Assume(context.Background(), ticket.ID, f.agent.ID)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, apperrors.CodeInternal, domainErr.Code)
	require.False(t, apperrors.IsRetryable(err))

	stored := f.ticket(t, ticket.ID)
	require.Equal(t, domain.TicketStatusCreated, stored.Status)
	require.Nil(t, stored.AssignedStaffID)
	require.Empty(t, f.sent.ofType(events.EventTicketAssumed))
}

func TestUnknownTicketIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.tickets.Assume(context.Background(), "missing", f.agent.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
