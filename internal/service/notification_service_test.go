package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/notifier"
	"github.com/spec-kit/dispatch-service/internal/repository/memory"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

type failingChannel struct{ calls int }

func (f *failingChannel) Name() string { return "failing" }

func (f *failingChannel) Deliver(context.Context, domain.Notification) error {
	f.calls++
	return errors.New("smtp unavailable")
}

func TestNotificationFanOutSurvivesChannelFailure(t *testing.T) {
	store := memory.NewStore(memory.Options{})
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	failing := &failingChannel{}
	svc := NewNotificationService(dispatcher, store, zap.NewNop(), failing, notifier.NewInAppChannel(store))
	svc.RegisterHandlers()

	company := domain.CompanyRecipient("company-1")
	tech := domain.StaffRecipient("tech-1")
	err := dispatcher.Publish(context.Background(), events.Event{
		Type:       events.EventWorkOrderCancelled,
		TicketID:   "ticket-1",
		Recipients: []domain.Recipient{company, tech, company},
		Message:    "Work order cancelled: parts unavailable",
	})
	require.NoError(t, err)
	require.Equal(t, 2, failing.calls)

	items, err := svc.List(context.Background(), company, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, domain.NotificationType(events.EventWorkOrderCancelled), items[0].Type)
	require.Equal(t, "ticket-1", items[0].TicketID)

	require.ErrorIs(t, svc.MarkRead(context.Background(), tech, items[0].ID), apperrors.ErrNotFound)
	require.NoError(t, svc.MarkRead(context.Background(), company, items[0].ID))

	unread, err := svc.List(context.Background(), company, true, 10, 0)
	require.NoError(t, err)
	require.Empty(t, unread)
}

func TestNotificationsFollowCommittedTransitions(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, domain.TicketPriorityLow)
	f.store.SetFault("tickets.update", errors.New("boom"))

	_, err := f.tickets.Assume(context.Background(), ticket.ID, f.agent.ID)
	require.Error(t, err)
	require.Empty(t, f.sent.ofType(events.EventTicketAssumed))

	f.store.SetFault("tickets.update", nil)
	_, err = f.tickets.Assume(context.Background(), ticket.ID, f.agent.ID)
	require.NoError(t, err)
	require.Len(t, f.sent.ofType(events.EventTicketAssumed), 1)
}

func TestNotificationRecipientForActor(t *testing.T) {
	r, err := NotificationRecipient(domain.CompanyActor("c1"))
	require.NoError(t, err)
	require.Equal(t, domain.CompanyRecipient("c1"), r)

	r, err = NotificationRecipient(domain.StaffActor("s1"))
	require.NoError(t, err)
	require.Equal(t, domain.StaffRecipient("s1"), r)

	_, err = NotificationRecipient(domain.Actor{})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
