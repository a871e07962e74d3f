package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// TicketService owns the ticket state machine.
type TicketService struct {
	store  repository.Store
	pub    publisher
	inst   instrumentation
	logger *zap.Logger
	now    Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      Clock
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CompanyID   string
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
	Address     *string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	CompanyID       *string
	AssignedStaffID *string
	Statuses        []domain.TicketStatus
	Priorities      []domain.TicketPriority
	SearchTerm      *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = systemClock
	}
	return &TicketService{
		store:  deps.Store,
		pub:    publisher{dispatcher: deps.Dispatcher, logger: logger},
		inst:   newInstrumentation(logger, deps.Metrics),
		logger: logger,
		now:    clock,
	}
}

// Create files a new ticket in status CREATED.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, input TicketCreateInput) (ticket *domain.Ticket, err error) {
	ctx, end := s.inst.start(ctx, "ticket.create", attribute.String("company_id", input.CompanyID))
	defer end(&err)

	input.CompanyID = strings.TrimSpace(input.CompanyID)
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}

	var pending []events.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		pending = nil
		company, err := repos.Companies.GetByID(ctx, input.CompanyID)
		if err != nil {
			return notFoundAs(err, "company", "company_id", input.CompanyID)
		}
		if !company.IsActive {
			return apperrors.NewValidationError("company inactive", map[string]any{"company_id": company.ID})
		}
		switch actor.Type {
		case domain.SubjectTypeCompany:
			if actor.ID != company.ID {
				return apperrors.NewPermissionDenied("companies may only file their own tickets")
			}
		case domain.SubjectTypeStaff:
			staff, err := resolveStaff(ctx, repos, actor.ID)
			if err != nil {
				return err
			}
			if !staff.IsDesk() {
				return apperrors.NewPermissionDenied("technicians cannot file tickets")
			}
		default:
			return apperrors.NewPermissionDenied("unknown actor")
		}

		ticket = &domain.Ticket{
			ExternalKey: generateTicketKey(),
			CompanyID:   company.ID,
			Title:       input.Title,
			Description: input.Description,
			Category:    strings.TrimSpace(input.Category),
			Address:     input.Address,
			Priority:    input.Priority,
			Status:      domain.TicketStatusCreated,
		}
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeTicket, ticket.ID, strPtr(actor.ID), domain.AuditTicketCreated,
			fmt.Sprintf("ticket %s created with priority %s", ticket.ExternalKey, ticket.Priority)); err != nil {
			return err
		}
		pending = append(pending, events.Event{
			Type:       events.EventTicketCreated,
			TicketID:   ticket.ID,
			ActorID:    strPtr(actor.ID),
			Recipients: []domain.Recipient{domain.CompanyRecipient(company.ID)},
			Message:    fmt.Sprintf("Ticket %s has been registered.", ticket.ExternalKey),
			Timestamp:  s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("company_id", ticket.CompanyID))
	s.pub.publish(ctx, pending)
	return ticket, nil
}

func validateCreate(input TicketCreateInput) error {
	details := map[string]any{}
	if input.CompanyID == "" {
		details["company_id"] = "required"
	}
	if input.Title == "" {
		details["title"] = "required"
	}
	if input.Description == "" {
		details["description"] = "required"
	}
	if input.Priority != "" && !input.Priority.Valid() {
		details["priority"] = "must be LOW, MEDIUM or HIGH"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket", details)
	}
	return nil
}

// Assume takes ownership of a CREATED or REOPENED ticket.
func (s *TicketService) Assume(ctx context.Context, ticketID, staffID string) (*domain.Ticket, error) {
	return s.transition(ctx, ticketTransition{
		op:       "ticket.assume",
		action:   domain.TicketActionAssume,
		audit:    domain.AuditTicketAssumed,
		event:    events.EventTicketAssumed,
		ticketID: ticketID,
		actor:    domain.StaffActor(staffID),
		authorize: func(_ *domain.Ticket, staff *domain.StaffMember, _ *domain.Company) error {
			if staff == nil || !staff.IsDesk() {
				return apperrors.NewPermissionDenied("only service desk staff may assume tickets")
			}
			return nil
		},
		mutate: func(t *domain.Ticket) {
			t.AssignedStaffID = strPtr(staffID)
		},
		message: "Your ticket %s has been picked up by our support team.",
	})
}

// Dispatch marks the ticket as handed to the field. A REOPENED ticket has no
// assignee, so the admin dispatching it takes it over.
func (s *TicketService) Dispatch(ctx context.Context, ticketID, staffID string) (*domain.Ticket, error) {
	return s.transition(ctx, ticketTransition{
		op:        "ticket.dispatch",
		action:    domain.TicketActionDispatch,
		audit:     domain.AuditTicketDispatched,
		event:     events.EventTicketDispatched,
		ticketID:  ticketID,
		actor:     domain.StaffActor(staffID),
		authorize: requireAssignedStaff,
		mutate: func(t *domain.Ticket) {
			if t.AssignedStaffID == nil {
				t.AssignedStaffID = strPtr(staffID)
			}
		},
		message: "Ticket %s has been dispatched.",
	})
}

// MarkInProgress records that work on the ticket has started.
func (s *TicketService) MarkInProgress(ctx context.Context, ticketID, staffID string) (*domain.Ticket, error) {
	return s.transition(ctx, ticketTransition{
		op:        "ticket.mark_in_progress",
		action:    domain.TicketActionStart,
		audit:     domain.AuditTicketInProgress,
		event:     events.EventTicketInProgress,
		ticketID:  ticketID,
		actor:     domain.StaffActor(staffID),
		authorize: requireAssignedStaff,
		message:   "Work on ticket %s is in progress.",
	})
}

// Resolve marks the ticket as solved.
func (s *TicketService) Resolve(ctx context.Context, ticketID, staffID string) (*domain.Ticket, error) {
	return s.transition(ctx, ticketTransition{
		op:        "ticket.resolve",
		action:    domain.TicketActionResolve,
		audit:     domain.AuditTicketResolved,
		event:     events.EventTicketResolved,
		ticketID:  ticketID,
		actor:     domain.StaffActor(staffID),
		authorize: requireAssignedStaff,
		message:   "Ticket %s has been resolved.",
	})
}

// Close closes the ticket. The assigned staff member, an admin or the owning
// company may close it.
func (s *TicketService) Close(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error) {
	return s.transition(ctx, ticketTransition{
		op:       "ticket.close",
		action:   domain.TicketActionClose,
		audit:    domain.AuditTicketClosed,
		event:    events.EventTicketClosed,
		ticketID: ticketID,
		actor:    actor,
		authorize: func(t *domain.Ticket, staff *domain.StaffMember, company *domain.Company) error {
			if company != nil {
				if company.ID != t.CompanyID {
					return apperrors.NewPermissionDenied("ticket belongs to another company")
				}
				return nil
			}
			return requireAssignedStaff(t, staff, nil)
		},
		message:        "Ticket %s has been closed.",
		notifyAssignee: true,
	})
}

// Reopen brings a RESOLVED or CLOSED ticket back to the desk queue and clears
// its assignee.
func (s *TicketService) Reopen(ctx context.Context, ticketID string, actor domain.Actor, reason string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reopen reason is required", map[string]any{"reason": "required"})
	}
	return s.transition(ctx, ticketTransition{
		op:       "ticket.reopen",
		action:   domain.TicketActionReopen,
		audit:    domain.AuditTicketReopened,
		event:    events.EventTicketReopened,
		ticketID: ticketID,
		actor:    actor,
		reason:   reason,
		authorize: func(t *domain.Ticket, staff *domain.StaffMember, company *domain.Company) error {
			if company != nil {
				if company.ID != t.CompanyID {
					return apperrors.NewPermissionDenied("ticket belongs to another company")
				}
				return nil
			}
			if staff == nil || !staff.IsDesk() {
				return apperrors.NewPermissionDenied("only service desk staff may reopen tickets")
			}
			return nil
		},
		message:        "Ticket %s has been reopened.",
		notifyAssignee: true,
	})
}

type ticketAuthorizer func(t *domain.Ticket, staff *domain.StaffMember, company *domain.Company) error

type ticketTransition struct {
	op        string
	action    domain.TicketAction
	audit     domain.AuditAction
	event     events.EventType
	ticketID  string
	actor     domain.Actor
	reason    string
	authorize ticketAuthorizer
	mutate    func(t *domain.Ticket)
	message   string

	// notifyAssignee also tells the previously assigned staff member.
	notifyAssignee bool
}

func requireAssignedStaff(t *domain.Ticket, staff *domain.StaffMember, _ *domain.Company) error {
	if staff == nil {
		return apperrors.NewPermissionDenied("staff actor required")
	}
	if staff.Role == domain.StaffRoleAdmin {
		return nil
	}
	if t.AssignedStaffID == nil || *t.AssignedStaffID != staff.ID {
		return apperrors.NewPermissionDenied("only the assigned staff member may change this ticket")
	}
	return nil
}

func (s *TicketService) transition(ctx context.Context, tr ticketTransition) (ticket *domain.Ticket, err error) {
	ctx, end := s.inst.start(ctx, tr.op,
		attribute.String("ticket_id", tr.ticketID),
		attribute.String("actor_id", tr.actor.ID))
	defer end(&err)

	var pending []events.Event
	var from domain.TicketStatus
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		pending = nil
		current, err := repos.Tickets.LockByID(ctx, tr.ticketID)
		if err != nil {
			return notFoundAs(err, "ticket", "ticket_id", tr.ticketID)
		}

		var staff *domain.StaffMember
		var company *domain.Company
		switch tr.actor.Type {
		case domain.SubjectTypeStaff:
			if staff, err = resolveStaff(ctx, repos, tr.actor.ID); err != nil {
				return err
			}
		case domain.SubjectTypeCompany:
			if company, err = repos.Companies.GetByID(ctx, tr.actor.ID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperrors.NewPermissionDenied("unknown company")
				}
				return err
			}
		default:
			return apperrors.NewPermissionDenied("unknown actor")
		}

		from = current.Status
		if _, ok := domain.NextTicketStatus(tr.action, from); !ok {
			return apperrors.NewInvalidTransition("ticket", string(from), string(tr.action))
		}
		if err := tr.authorize(current, staff, company); err != nil {
			return err
		}

		previousAssignee := current.AssignedStaffID
		current.Apply(tr.action, s.now())
		if tr.mutate != nil {
			tr.mutate(current)
		}
		if err := repos.Tickets.Update(ctx, current); err != nil {
			return err
		}

		description := fmt.Sprintf("status %s -> %s", from, current.Status)
		if tr.reason != "" {
			description += ": " + tr.reason
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeTicket, current.ID, strPtr(tr.actor.ID), tr.audit, description); err != nil {
			return err
		}

		recipients := []domain.Recipient{}
		if company == nil {
			recipients = append(recipients, domain.CompanyRecipient(current.CompanyID))
		}
		if tr.notifyAssignee && previousAssignee != nil && (staff == nil || staff.ID != *previousAssignee) {
			recipients = append(recipients, domain.StaffRecipient(*previousAssignee))
		}
		message := fmt.Sprintf(tr.message, current.ExternalKey)
		if tr.reason != "" {
			message += " Reason: " + tr.reason
		}
		pending = append(pending, events.Event{
			Type:       tr.event,
			TicketID:   current.ID,
			ActorID:    strPtr(tr.actor.ID),
			Recipients: recipients,
			Message:    message,
			Timestamp:  s.now(),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: from,
				NewStatus: current.Status,
				Reason:    tr.reason,
			},
		})
		ticket = current
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("ticket transitioned",
		zap.String("ticket_id", ticket.ID),
		zap.String("actor_id", tr.actor.ID),
		zap.String("from", string(from)),
		zap.String("to", string(ticket.Status)))
	s.pub.publish(ctx, pending)
	return ticket, nil
}

// Get returns a ticket. Companies only see their own tickets.
func (s *TicketService) Get(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Reader().Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(notFoundAs(err, "ticket", "ticket_id", ticketID))
	}
	if actor.Type == domain.SubjectTypeCompany && ticket.CompanyID != actor.ID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// List returns tickets matching filter. Company actors are scoped to their own tickets.
func (s *TicketService) List(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		CompanyID:       filter.CompanyID,
		AssignedStaffID: filter.AssignedStaffID,
		Statuses:        filter.Statuses,
		Priorities:      filter.Priorities,
		SearchTerm:      filter.SearchTerm,
		CreatedFrom:     filter.CreatedFrom,
		CreatedTo:       filter.CreatedTo,
		Limit:           filter.Limit,
		Offset:          filter.Offset,
	}
	if actor.Type == domain.SubjectTypeCompany {
		repoFilter.CompanyID = strPtr(actor.ID)
	}
	tickets, err := s.store.Reader().Tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return tickets, nil
}

// History returns the ticket's audit trail in commit order.
func (s *TicketService) History(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.AuditLogEntry, error) {
	if _, err := s.Get(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.store.Reader().Audit.ListBySubject(ctx, domain.AuditScopeTicket, ticketID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return entries, nil
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
