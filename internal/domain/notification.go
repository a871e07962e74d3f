package domain

import "time"

// RecipientType identifies who receives a notification.
type RecipientType string

const (
	RecipientCompany RecipientType = "COMPANY"
	RecipientStaff   RecipientType = "STAFF"
)

// Recipient addresses a company or staff member.
type Recipient struct {
	Type RecipientType `json:"type"`
	ID   string        `json:"id"`
}

// CompanyRecipient addresses a client company.
func CompanyRecipient(id string) Recipient {
	return Recipient{Type: RecipientCompany, ID: id}
}

// StaffRecipient addresses a staff member or technician.
func StaffRecipient(id string) Recipient {
	return Recipient{Type: RecipientStaff, ID: id}
}

// NotificationType tags the event a notification reports.
type NotificationType string

// Notification is an in-app message delivered to a recipient.
type Notification struct {
	ID        string
	Recipient Recipient
	TicketID  string
	Type      NotificationType
	Message   string
	Read      bool
	CreatedAt time.Time
}
