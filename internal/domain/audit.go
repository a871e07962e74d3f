package domain

import "time"

// AuditScope distinguishes ticket-scoped and work-order-scoped trails.
type AuditScope string

const (
	AuditScopeTicket    AuditScope = "TICKET"
	AuditScopeWorkOrder AuditScope = "WORK_ORDER"
)

// AuditAction tags what happened in an audit entry.
type AuditAction string

const (
	AuditTicketCreated    AuditAction = "ticket_created"
	AuditTicketAssumed    AuditAction = "ticket_assumed"
	AuditTicketDispatched AuditAction = "ticket_dispatched"
	AuditTicketInProgress AuditAction = "ticket_in_progress"
	AuditTicketResolved   AuditAction = "ticket_resolved"
	AuditTicketClosed     AuditAction = "ticket_closed"
	AuditTicketReopened   AuditAction = "ticket_reopened"

	AuditWorkOrderCreated    AuditAction = "work_order_created"
	AuditWorkOrderAccepted   AuditAction = "work_order_accepted"
	AuditTechnicianAdded     AuditAction = "technician_added"
	AuditTechnicianRemoved   AuditAction = "technician_removed"
	AuditTechnicianStarted   AuditAction = "technician_started"
	AuditTechnicianCompleted AuditAction = "technician_completed"
	AuditWorkOrderCompleted  AuditAction = "work_order_completed"
	AuditWorkOrderCancelled  AuditAction = "work_order_cancelled"
)

// AuditLogEntry is an immutable, append-only trail record. A nil ActorID
// means the system acted.
type AuditLogEntry struct {
	ID          string
	Scope       AuditScope
	SubjectID   string
	ActorID     *string
	Action      AuditAction
	Description string
	CreatedAt   time.Time
}
