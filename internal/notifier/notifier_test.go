package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository/memory"
)

func sampleNotification(recipient domain.Recipient) domain.Notification {
	return domain.Notification{
		Recipient: recipient,
		TicketID:  "ticket-1",
		Type:      domain.NotificationType("work_order_cancelled"),
		Message:   "Work order cancelled: client cancelled",
		CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestInAppChannelStoresNotification(t *testing.T) {
	st := memory.NewStore(memory.Options{})
	ch := NewInAppChannel(st)
	recipient := domain.StaffRecipient("tech-1")

	require.NoError(t, ch.Deliver(context.Background(), sampleNotification(recipient)))

	items, err := st.Reader().Notifications.ListByRecipient(context.Background(), recipient, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Work order cancelled: client cancelled", items[0].Message)
	require.False(t, items[0].Read)
}

type fakePublisher struct {
	published map[string][]string
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if f.published == nil {
		f.published = map[string][]string{}
	}
	f.published[channel] = append(f.published[channel], string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func TestRedisChannelPublishesSharedAndRecipientChannels(t *testing.T) {
	pub := &fakePublisher{}
	ch := NewRedisChannel(pub, "dispatch:notifications")
	recipient := domain.CompanyRecipient("company-9")

	require.NoError(t, ch.Deliver(context.Background(), sampleNotification(recipient)))

	require.Len(t, pub.published["dispatch:notifications"], 1)
	perRecipient := pub.published["dispatch:notifications:company:company-9"]
	require.Len(t, perRecipient, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(perRecipient[0]), &decoded))
	require.Equal(t, "ticket-1", decoded["ticket_id"])
	require.Equal(t, "work_order_cancelled", decoded["type"])
}

func TestRedisChannelSurfacesPublishError(t *testing.T) {
	ch := NewRedisChannel(&fakePublisher{err: errors.New("connection refused")}, "n")
	err := ch.Deliver(context.Background(), sampleNotification(domain.StaffRecipient("s")))
	require.ErrorContains(t, err, "connection refused")
}

type sentMail struct {
	from string
	to   []string
	body string
}

type fakeSendCloser struct {
	sent   *[]sentMail
	closed *bool
}

func (f fakeSendCloser) Send(from string, to []string, msg io.WriterTo) error {
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return err
	}
	*f.sent = append(*f.sent, sentMail{from: from, to: to, body: buf.String()})
	return nil
}

func (f fakeSendCloser) Close() error {
	*f.closed = true
	return nil
}

type fakeDialer struct {
	sent   []sentMail
	closed bool
	err    error
}

func (d *fakeDialer) Dial() (gomail.SendCloser, error) {
	if d.err != nil {
		return nil, d.err
	}
	return fakeSendCloser{sent: &d.sent, closed: &d.closed}, nil
}

func TestEmailChannelMailsCompanyContact(t *testing.T) {
	st := memory.NewStore(memory.Options{})
	ctx := context.Background()
	company := &domain.Company{Name: "Acme", ContactEmail: "ops@acme.test", IsActive: true}
	require.NoError(t, st.Reader().Companies.Create(ctx, company))

	dialer := &fakeDialer{}
	ch := NewEmailChannelWithDialer(dialer, "noreply@dispatch.test", st)

	require.NoError(t, ch.Deliver(ctx, sampleNotification(domain.CompanyRecipient(company.ID))))
	require.Len(t, dialer.sent, 1)
	require.Equal(t, "noreply@dispatch.test", dialer.sent[0].from)
	require.Equal(t, []string{"ops@acme.test"}, dialer.sent[0].to)
	require.Contains(t, dialer.sent[0].body, "Subject: [Dispatch] Work Order Cancelled")
	require.True(t, dialer.closed)
}

func TestEmailChannelMailsStaffMember(t *testing.T) {
	st := memory.NewStore(memory.Options{})
	ctx := context.Background()
	tech := &domain.StaffMember{Name: "Tess", Email: "tess@dispatch.test", Role: domain.StaffRoleTechnician, Active: true}
	require.NoError(t, st.Reader().Staff.Create(ctx, tech))

	dialer := &fakeDialer{}
	ch := NewEmailChannelWithDialer(dialer, "noreply@dispatch.test", st)

	require.NoError(t, ch.Deliver(ctx, sampleNotification(domain.StaffRecipient(tech.ID))))
	require.Len(t, dialer.sent, 1)
	require.Equal(t, []string{"tess@dispatch.test"}, dialer.sent[0].to)
}

func TestEmailChannelErrors(t *testing.T) {
	st := memory.NewStore(memory.Options{})
	ctx := context.Background()

	ch := NewEmailChannelWithDialer(&fakeDialer{}, "", st)
	require.Error(t, ch.Deliver(ctx, sampleNotification(domain.StaffRecipient("x"))))

	ch = NewEmailChannelWithDialer(&fakeDialer{}, "noreply@dispatch.test", st)
	require.Error(t, ch.Deliver(ctx, sampleNotification(domain.StaffRecipient("missing"))))

	company := &domain.Company{Name: "Acme", ContactEmail: "ops@acme.test", IsActive: true}
	require.NoError(t, st.Reader().Companies.Create(ctx, company))
	ch = NewEmailChannelWithDialer(&fakeDialer{err: errors.New("no route")}, "noreply@dispatch.test", st)
	require.ErrorContains(t, ch.Deliver(ctx, sampleNotification(domain.CompanyRecipient(company.ID))), "no route")
}
