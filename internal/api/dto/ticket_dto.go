package dto

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// CreateTicketRequest payload. CompanyID may be omitted by company callers.
type CreateTicketRequest struct {
	CompanyID   string                `json:"company_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Address     *string               `json:"address"`
}

// ReasonRequest carries the reason required by reopen and cancel.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// TicketResponse describes a ticket.
type TicketResponse struct {
	ID              string                `json:"id"`
	ExternalKey     string                `json:"external_key"`
	CompanyID       string                `json:"company_id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Category        string                `json:"category,omitempty"`
	Address         *string               `json:"address,omitempty"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	AssignedStaffID *string               `json:"assigned_staff_id"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	AssumedAt       *time.Time            `json:"assumed_at,omitempty"`
	DispatchedAt    *time.Time            `json:"dispatched_at,omitempty"`
	InProgressAt    *time.Time            `json:"in_progress_at,omitempty"`
	ResolvedAt      *time.Time            `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time            `json:"closed_at,omitempty"`
	ReopenedAt      *time.Time            `json:"reopened_at,omitempty"`
}

// AuditEntryResponse is one audit trail line.
type AuditEntryResponse struct {
	ID          string             `json:"id"`
	ActorID     *string            `json:"actor_id"`
	Action      domain.AuditAction `json:"action"`
	Description string             `json:"description"`
	CreatedAt   time.Time          `json:"created_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		ExternalKey:     t.ExternalKey,
		CompanyID:       t.CompanyID,
		Title:           t.Title,
		Description:     t.Description,
		Category:        t.Category,
		Address:         t.Address,
		Status:          t.Status,
		Priority:        t.Priority,
		AssignedStaffID: t.AssignedStaffID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		AssumedAt:       t.AssumedAt,
		DispatchedAt:    t.DispatchedAt,
		InProgressAt:    t.InProgressAt,
		ResolvedAt:      t.ResolvedAt,
		ClosedAt:        t.ClosedAt,
		ReopenedAt:      t.ReopenedAt,
	}
}

// NewAuditEntries maps an audit trail.
func NewAuditEntries(entries []domain.AuditLogEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:          e.ID,
			ActorID:     e.ActorID,
			Action:      e.Action,
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}
