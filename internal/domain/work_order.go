package domain

import "time"

// WorkOrderStatus enumerates lifecycle states for work orders.
type WorkOrderStatus string

const (
	WorkOrderStatusAvailable  WorkOrderStatus = "AVAILABLE"
	WorkOrderStatusInProgress WorkOrderStatus = "IN_PROGRESS"
	WorkOrderStatusCompleted  WorkOrderStatus = "COMPLETED"
	WorkOrderStatusCancelled  WorkOrderStatus = "CANCELLED"
)

var workOrderTransitions = map[WorkOrderStatus][]WorkOrderStatus{
	WorkOrderStatusAvailable:  {WorkOrderStatusInProgress, WorkOrderStatusCancelled},
	WorkOrderStatusInProgress: {WorkOrderStatusCompleted, WorkOrderStatusCancelled},
	WorkOrderStatusCompleted:  {},
	WorkOrderStatusCancelled:  {},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s WorkOrderStatus) CanTransitionTo(next WorkOrderStatus) bool {
	for _, candidate := range workOrderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Active reports whether the work order still occupies its ticket.
func (s WorkOrderStatus) Active() bool {
	return s == WorkOrderStatusAvailable || s == WorkOrderStatusInProgress
}

// WorkOrder is a dispatch unit derived from exactly one ticket.
type WorkOrder struct {
	ID           string
	TicketID     string
	Status       WorkOrderStatus
	Priority     TicketPriority
	Deadline     time.Time
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
}

// IsOverdue reports whether an active work order has passed its deadline.
func (w *WorkOrder) IsOverdue(now time.Time) bool {
	return w.Status.Active() && now.After(w.Deadline)
}

// TechnicianRole distinguishes the claim winner from added helpers.
type TechnicianRole string

const (
	TechnicianRolePrimary TechnicianRole = "PRIMARY"
	TechnicianRoleSupport TechnicianRole = "SUPPORT"
)

// TechnicianStatus tracks one technician's progress on a work order.
type TechnicianStatus string

const (
	TechnicianStatusPending    TechnicianStatus = "PENDING"
	TechnicianStatusAccepted   TechnicianStatus = "ACCEPTED"
	TechnicianStatusInProgress TechnicianStatus = "IN_PROGRESS"
	TechnicianStatusCompleted  TechnicianStatus = "COMPLETED"
)

// WorkOrderTechnician is a technician's membership on a work order team.
type WorkOrderTechnician struct {
	WorkOrderID  string
	TechnicianID string
	Role         TechnicianRole
	Status       TechnicianStatus
	AcceptedAt   *time.Time
	CompletedAt  *time.Time
	Notes        string
	CreatedAt    time.Time
}

// AllCompleted reports whether a non-empty team has every member completed.
func AllCompleted(team []WorkOrderTechnician) bool {
	if len(team) == 0 {
		return false
	}
	for _, member := range team {
		if member.Status != TechnicianStatusCompleted {
			return false
		}
	}
	return true
}

// FindMember returns the membership of technicianID within team.
func FindMember(team []WorkOrderTechnician, technicianID string) (*WorkOrderTechnician, bool) {
	for i := range team {
		if team[i].TechnicianID == technicianID {
			return &team[i], true
		}
	}
	return nil, false
}
