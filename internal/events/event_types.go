package events

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketAssumed    EventType = "ticket_assumed"
	EventTicketDispatched EventType = "ticket_dispatched"
	EventTicketInProgress EventType = "ticket_in_progress"
	EventTicketResolved   EventType = "ticket_resolved"
	EventTicketClosed     EventType = "ticket_closed"
	EventTicketReopened   EventType = "ticket_reopened"

	EventWorkOrderAvailable  EventType = "work_order_available"
	EventWorkOrderAccepted   EventType = "work_order_accepted"
	EventTechnicianAdded     EventType = "technician_added"
	EventTechnicianRemoved   EventType = "technician_removed"
	EventTechnicianCompleted EventType = "technician_completed"
	EventWorkOrderCompleted  EventType = "work_order_completed"
	EventWorkOrderCancelled  EventType = "work_order_cancelled"
)

// AllEventTypes lists every type a notifier may subscribe to.
func AllEventTypes() []EventType {
	return []EventType{
		EventTicketCreated,
		EventTicketAssumed,
		EventTicketDispatched,
		EventTicketInProgress,
		EventTicketResolved,
		EventTicketClosed,
		EventTicketReopened,
		EventWorkOrderAvailable,
		EventWorkOrderAccepted,
		EventTechnicianAdded,
		EventTechnicianRemoved,
		EventTechnicianCompleted,
		EventWorkOrderCompleted,
		EventWorkOrderCancelled,
	}
}

// Event represents a committed state change. Recipients lists who should be
// told about it; an empty list means nobody.
type Event struct {
	ID          string             `json:"id"`
	Type        EventType          `json:"type"`
	TicketID    string             `json:"ticket_id"`
	WorkOrderID string             `json:"work_order_id,omitempty"`
	ActorID     *string            `json:"actor_id,omitempty"`
	Recipients  []domain.Recipient `json:"recipients"`
	Message     string             `json:"message"`
	Timestamp   time.Time          `json:"timestamp"`
	Payload     any                `json:"payload,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// WorkOrderPayload payload.
type WorkOrderPayload struct {
	Status       domain.WorkOrderStatus `json:"status"`
	Priority     domain.TicketPriority  `json:"priority"`
	Deadline     time.Time              `json:"deadline"`
	TechnicianID string                 `json:"technician_id,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
}
