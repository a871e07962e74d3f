package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusCreated    TicketStatus = "CREATED"
	TicketStatusAssumed    TicketStatus = "ASSUMED"
	TicketStatusDispatched TicketStatus = "DISPATCHED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusReopened   TicketStatus = "REOPENED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// TicketAction names a guarded ticket transition.
type TicketAction string

const (
	TicketActionAssume   TicketAction = "assume"
	TicketActionDispatch TicketAction = "dispatch"
	TicketActionStart    TicketAction = "mark_in_progress"
	TicketActionResolve  TicketAction = "resolve"
	TicketActionClose    TicketAction = "close"
	TicketActionReopen   TicketAction = "reopen"

	// Transitions forced by the work order engine.
	TicketActionDispatchWork TicketAction = "dispatch_work"
	TicketActionStartWork    TicketAction = "start_work"
	TicketActionResolveWork  TicketAction = "resolve_work"
)

type ticketTransition struct {
	from []TicketStatus
	to   TicketStatus
}

var ticketTransitions = map[TicketAction]ticketTransition{
	TicketActionAssume:   {from: []TicketStatus{TicketStatusCreated, TicketStatusReopened}, to: TicketStatusAssumed},
	TicketActionDispatch: {from: []TicketStatus{TicketStatusAssumed, TicketStatusInProgress, TicketStatusReopened}, to: TicketStatusDispatched},
	TicketActionStart:    {from: []TicketStatus{TicketStatusDispatched}, to: TicketStatusInProgress},
	TicketActionResolve:  {from: []TicketStatus{TicketStatusInProgress}, to: TicketStatusResolved},
	TicketActionClose: {
		from: []TicketStatus{TicketStatusAssumed, TicketStatusDispatched, TicketStatusInProgress, TicketStatusResolved},
		to:   TicketStatusClosed,
	},
	TicketActionReopen:       {from: []TicketStatus{TicketStatusClosed, TicketStatusResolved}, to: TicketStatusReopened},
	TicketActionDispatchWork: {from: []TicketStatus{TicketStatusAssumed}, to: TicketStatusDispatched},
	TicketActionStartWork: {
		from: []TicketStatus{TicketStatusAssumed, TicketStatusDispatched, TicketStatusInProgress},
		to:   TicketStatusInProgress,
	},
	TicketActionResolveWork: {
		from: []TicketStatus{TicketStatusAssumed, TicketStatusDispatched, TicketStatusInProgress},
		to:   TicketStatusResolved,
	},
}

// NextTicketStatus returns the status reached by applying action from the given status.
func NextTicketStatus(action TicketAction, from TicketStatus) (TicketStatus, bool) {
	rule, ok := ticketTransitions[action]
	if !ok {
		return "", false
	}
	for _, candidate := range rule.from {
		if candidate == from {
			return rule.to, true
		}
	}
	return "", false
}

// WorkOrderEligible reports whether a work order may be opened for a ticket in status s.
func (s TicketStatus) WorkOrderEligible() bool {
	switch s {
	case TicketStatusAssumed, TicketStatusDispatched, TicketStatusInProgress:
		return true
	}
	return false
}

// Ticket is the aggregate for client-reported issues.
type Ticket struct {
	ID              string
	ExternalKey     string
	CompanyID       string
	Title           string
	Description     string
	Category        string
	Address         *string
	Priority        TicketPriority
	Status          TicketStatus
	AssignedStaffID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	AssumedAt       *time.Time
	DispatchedAt    *time.Time
	InProgressAt    *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	ReopenedAt      *time.Time
}

// Apply moves the ticket along action and stamps the matching timestamp.
// It reports false and leaves the ticket untouched when the action is not
// allowed from the current status.
func (t *Ticket) Apply(action TicketAction, at time.Time) bool {
	next, ok := NextTicketStatus(action, t.Status)
	if !ok {
		return false
	}
	t.Status = next
	t.UpdatedAt = at
	switch next {
	case TicketStatusAssumed:
		t.AssumedAt = &at
	case TicketStatusDispatched:
		t.DispatchedAt = &at
	case TicketStatusInProgress:
		t.InProgressAt = &at
	case TicketStatusResolved:
		t.ResolvedAt = &at
	case TicketStatusClosed:
		t.ClosedAt = &at
	case TicketStatusReopened:
		t.ReopenedAt = &at
		t.AssignedStaffID = nil
	}
	return true
}
