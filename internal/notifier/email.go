package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository"
)

// Dialer opens an SMTP session. *gomail.Dialer satisfies it.
type Dialer interface {
	Dial() (gomail.SendCloser, error)
}

// EmailChannel mails notifications to the company contact address or the
// staff member's address.
type EmailChannel struct {
	dialer Dialer
	from   string
	store  repository.Store
}

// NewEmailChannel builds a channel backed by an SMTP dialer from cfg.
func NewEmailChannel(cfg config.NotificationConfig, store repository.Store) *EmailChannel {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return NewEmailChannelWithDialer(dialer, cfg.EmailFrom, store)
}

// NewEmailChannelWithDialer builds a channel over a custom dialer.
func NewEmailChannelWithDialer(dialer Dialer, from string, store repository.Store) *EmailChannel {
	return &EmailChannel{dialer: dialer, from: strings.TrimSpace(from), store: store}
}

// Name implements service.NotificationChannel.
func (c *EmailChannel) Name() string { return "email" }

// Deliver implements service.NotificationChannel.
func (c *EmailChannel) Deliver(ctx context.Context, notification domain.Notification) error {
	if c.from == "" {
		return errors.New("email sender address not configured")
	}
	to, err := c.address(ctx, notification.Recipient)
	if err != nil {
		return err
	}
	if to == "" {
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", c.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subjectFor(notification.Type))
	msg.SetBody("text/plain", notification.Message)

	sender, err := c.dialer.Dial()
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer sender.Close()
	if err := gomail.Send(sender, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (c *EmailChannel) address(ctx context.Context, recipient domain.Recipient) (string, error) {
	reader := c.store.Reader()
	switch recipient.Type {
	case domain.RecipientCompany:
		company, err := reader.Companies.GetByID(ctx, recipient.ID)
		if err != nil {
			return "", fmt.Errorf("lookup company %s: %w", recipient.ID, err)
		}
		return strings.TrimSpace(company.ContactEmail), nil
	case domain.RecipientStaff:
		staff, err := reader.Staff.GetByID(ctx, recipient.ID)
		if err != nil {
			return "", fmt.Errorf("lookup staff %s: %w", recipient.ID, err)
		}
		return strings.TrimSpace(staff.Email), nil
	}
	return "", fmt.Errorf("unknown recipient type %q", recipient.Type)
}

func subjectFor(t domain.NotificationType) string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return "[Dispatch] " + strings.Join(words, " ")
}
