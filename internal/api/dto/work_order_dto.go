package dto

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// CreateWorkOrderRequest payload.
type CreateWorkOrderRequest struct {
	TicketID string `json:"ticket_id"`
}

// AddTechnicianRequest payload.
type AddTechnicianRequest struct {
	TechnicianID string `json:"technician_id"`
}

// CompleteTechnicianRequest payload.
type CompleteTechnicianRequest struct {
	Notes string `json:"notes"`
}

// WorkOrderResponse describes a work order.
type WorkOrderResponse struct {
	ID           string                 `json:"id"`
	TicketID     string                 `json:"ticket_id"`
	Status       domain.WorkOrderStatus `json:"status"`
	Priority     domain.TicketPriority  `json:"priority"`
	Deadline     time.Time              `json:"deadline"`
	Overdue      bool                   `json:"overdue"`
	CreatedBy    string                 `json:"created_by"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	CancelledAt  *time.Time             `json:"cancelled_at,omitempty"`
	CancelReason *string                `json:"cancel_reason,omitempty"`
	Team         []TeamMemberResponse   `json:"team,omitempty"`
}

// TeamMemberResponse describes one membership.
type TeamMemberResponse struct {
	TechnicianID string                  `json:"technician_id"`
	Role         domain.TechnicianRole   `json:"role"`
	Status       domain.TechnicianStatus `json:"status"`
	AcceptedAt   *time.Time              `json:"accepted_at,omitempty"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	Notes        string                  `json:"notes,omitempty"`
}

// CompletionResponse reports a membership change that may have completed the order.
type CompletionResponse struct {
	WorkOrder    WorkOrderResponse `json:"work_order"`
	AllCompleted bool              `json:"all_completed"`
}

// NewWorkOrderResponse maps a work order.
func NewWorkOrderResponse(w *domain.WorkOrder, overdue bool, team []domain.WorkOrderTechnician) WorkOrderResponse {
	resp := WorkOrderResponse{
		ID:           w.ID,
		TicketID:     w.TicketID,
		Status:       w.Status,
		Priority:     w.Priority,
		Deadline:     w.Deadline,
		Overdue:      overdue,
		CreatedBy:    w.CreatedBy,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
		CompletedAt:  w.CompletedAt,
		CancelledAt:  w.CancelledAt,
		CancelReason: w.CancelReason,
	}
	for i := range team {
		resp.Team = append(resp.Team, NewTeamMemberResponse(&team[i]))
	}
	return resp
}

// NewTeamMemberResponse maps a membership.
func NewTeamMemberResponse(m *domain.WorkOrderTechnician) TeamMemberResponse {
	return TeamMemberResponse{
		TechnicianID: m.TechnicianID,
		Role:         m.Role,
		Status:       m.Status,
		AcceptedAt:   m.AcceptedAt,
		CompletedAt:  m.CompletedAt,
		Notes:        m.Notes,
	}
}
