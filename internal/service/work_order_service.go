package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/repository"
	"github.com/spec-kit/dispatch-service/internal/sla"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// DefaultMaxTeamSize caps a work order team when nothing is configured.
const DefaultMaxTeamSize = 5

// broadcastLimit bounds the technician fan-out for new work orders.
const broadcastLimit = 1000

// WorkOrderService is the work order assignment engine: creation, claim
// arbitration, team composition and aggregate completion.
type WorkOrderService struct {
	store       repository.Store
	policy      sla.Policy
	maxTeamSize int
	pub         publisher
	inst        instrumentation
	logger      *zap.Logger
	now         Clock
}

// WorkOrderDependencies bundles collaborators for the engine.
type WorkOrderDependencies struct {
	Store       repository.Store
	Dispatcher  events.Dispatcher
	Policy      sla.Policy
	MaxTeamSize int
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Clock       Clock
}

// WorkOrderListFilter describes listing filters.
type WorkOrderListFilter struct {
	TicketID     *string
	TechnicianID *string
	Statuses     []domain.WorkOrderStatus
	Limit        int
	Offset       int
}

// WorkOrderDetails is a work order with its team.
type WorkOrderDetails struct {
	WorkOrder domain.WorkOrder
	Team      []domain.WorkOrderTechnician
	Overdue   bool
}

// CompletionResult reports the outcome of a membership change that may have
// completed the work order.
type CompletionResult struct {
	WorkOrder    *domain.WorkOrder
	AllCompleted bool
}

// NewWorkOrderService constructs the engine. A zero policy falls back to
// sla.DefaultPolicy.
func NewWorkOrderService(deps WorkOrderDependencies) *WorkOrderService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = systemClock
	}
	policy := deps.Policy
	if policy == (sla.Policy{}) {
		policy = sla.DefaultPolicy
	}
	maxTeam := deps.MaxTeamSize
	if maxTeam <= 0 {
		maxTeam = DefaultMaxTeamSize
	}
	return &WorkOrderService{
		store:       deps.Store,
		policy:      policy,
		maxTeamSize: maxTeam,
		pub:         publisher{dispatcher: deps.Dispatcher, logger: logger},
		inst:        newInstrumentation(logger, deps.Metrics),
		logger:      logger,
		now:         clock,
	}
}

// Create opens an AVAILABLE work order for a ticket and broadcasts it to every
// active technician.
func (s *WorkOrderService) Create(ctx context.Context, ticketID, staffID string) (order *domain.WorkOrder, err error) {
	ctx, end := s.inst.start(ctx, "work_order.create",
		attribute.String("ticket_id", ticketID),
		attribute.String("actor_id", staffID))
	defer end(&err)

	var pending []events.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		pending = nil
		ticket, err := repos.Tickets.LockByID(ctx, ticketID)
		if err != nil {
			return notFoundAs(err, "ticket", "ticket_id", ticketID)
		}
		staff, err := resolveStaff(ctx, repos, staffID)
		if err != nil {
			return err
		}
		assigned := ticket.AssignedStaffID != nil && *ticket.AssignedStaffID == staff.ID
		if !assigned && !staff.CanDispatch() {
			return apperrors.NewPermissionDenied("only the assigned staff member or a dispatcher may create work orders")
		}
		if !ticket.Status.WorkOrderEligible() {
			return apperrors.NewInvalidTransition("ticket", string(ticket.Status), "create_work_order")
		}
		if existing, err := repos.WorkOrders.FindActiveByTicket(ctx, ticket.ID); err == nil {
			return activeWorkOrderExists(ticket.ID, existing.ID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := s.now()
		order = &domain.WorkOrder{
			TicketID:  ticket.ID,
			Status:    domain.WorkOrderStatusAvailable,
			Priority:  ticket.Priority,
			Deadline:  s.policy.Deadline(ticket.Priority, now),
			CreatedBy: staff.ID,
		}
		if err := repos.WorkOrders.Create(ctx, order); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return activeWorkOrderExists(ticket.ID, "")
			}
			return err
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeWorkOrder, order.ID, strPtr(staff.ID), domain.AuditWorkOrderCreated,
			fmt.Sprintf("work order created for ticket %s, priority %s, deadline %s", ticket.ExternalKey, order.Priority, order.Deadline.Format(time.RFC3339))); err != nil {
			return err
		}

		from := ticket.Status
		if ticket.Apply(domain.TicketActionDispatchWork, now) {
			if err := repos.Tickets.Update(ctx, ticket); err != nil {
				return err
			}
			if err := appendAudit(ctx, repos, domain.AuditScopeTicket, ticket.ID, strPtr(staff.ID), domain.AuditTicketDispatched,
				fmt.Sprintf("status %s -> %s: work order %s created", from, ticket.Status, order.ID)); err != nil {
				return err
			}
		}

		technicians, err := repos.Staff.List(ctx, repository.StaffFilter{
			Role:   rolePtr(domain.StaffRoleTechnician),
			Active: ptrBool(true),
			Limit:  broadcastLimit,
		})
		if err != nil {
			return err
		}
		recipients := make([]domain.Recipient, 0, len(technicians))
		for _, tech := range technicians {
			recipients = append(recipients, domain.StaffRecipient(tech.ID))
		}
		pending = append(pending, events.Event{
			Type:        events.EventWorkOrderAvailable,
			TicketID:    ticket.ID,
			WorkOrderID: order.ID,
			ActorID:     strPtr(staff.ID),
			Recipients:  recipients,
			Message: fmt.Sprintf("New %s priority work order available for ticket %s (deadline %s).",
				strings.ToLower(string(order.Priority)), ticket.ExternalKey, order.Deadline.Format(time.RFC3339)),
			Timestamp: now,
			Payload:   workOrderPayload(order, "", ""),
		})
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("work order created",
		zap.String("work_order_id", order.ID),
		zap.String("ticket_id", order.TicketID),
		zap.String("actor_id", staffID),
		zap.Time("deadline", order.Deadline))
	s.pub.publish(ctx, pending)
	return order, nil
}

func activeWorkOrderExists(ticketID, workOrderID string) error {
	details := map[string]any{"ticket_id": ticketID}
	if workOrderID != "" {
		details["work_order_id"] = workOrderID
	}
	return apperrors.NewDomainError(apperrors.CodeInvalidState, "ticket already has an active work order", http.StatusConflict, details)
}

// Accept claims an AVAILABLE work order for technicianID. Exactly one of any
// number of concurrent callers wins; the others get ALREADY_CLAIMED and leave
// no trace.
func (s *WorkOrderService) Accept(ctx context.Context, workOrderID, technicianID string) (order *domain.WorkOrder, err error) {
	ctx, end := s.inst.start(ctx, "work_order.accept",
		attribute.String("work_order_id", workOrderID),
		attribute.String("actor_id", technicianID))
	defer end(&err)

	var pending []events.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		pending = nil
		if _, err := resolveTechnician(ctx, repos, technicianID); err != nil {
			return err
		}
		current, err := repos.WorkOrders.LockByID(ctx, workOrderID)
		if err != nil {
			return notFoundAs(err, "work order", "work_order_id", workOrderID)
		}
		if current.Status != domain.WorkOrderStatusAvailable {
			return apperrors.NewAlreadyClaimed(workOrderID)
		}
		claimed, err := repos.WorkOrders.TryClaim(ctx, workOrderID, domain.WorkOrderStatusAvailable, domain.WorkOrderStatusInProgress)
		if err != nil {
			return err
		}
		if !claimed {
			return apperrors.NewAlreadyClaimed(workOrderID)
		}

		now := s.now()
		current.Status = domain.WorkOrderStatusInProgress
		current.UpdatedAt = now
		if err := repos.Teams.Add(ctx, &domain.WorkOrderTechnician{
			WorkOrderID:  current.ID,
			TechnicianID: technicianID,
			Role:         domain.TechnicianRolePrimary,
			Status:       domain.TechnicianStatusAccepted,
			AcceptedAt:   &now,
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewAlreadyClaimed(workOrderID)
			}
			return err
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeWorkOrder, current.ID, strPtr(technicianID), domain.AuditWorkOrderAccepted,
			fmt.Sprintf("claimed by technician %s as primary", technicianID)); err != nil {
			return err
		}

		ticket, err := repos.Tickets.LockByID(ctx, current.TicketID)
		if err != nil {
			return notFoundAs(err, "ticket", "ticket_id", current.TicketID)
		}
		from := ticket.Status
		if !ticket.Apply(domain.TicketActionStartWork, now) {
			return apperrors.NewInvalidTransition("ticket", string(from), string(domain.TicketActionStartWork))
		}
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeTicket, ticket.ID, strPtr(technicianID), domain.AuditTicketInProgress,
			fmt.Sprintf("status %s -> %s: work order %s accepted", from, ticket.Status, current.ID)); err != nil {
			return err
		}

		pending = append(pending, events.Event{
			Type:        events.EventWorkOrderAccepted,
			TicketID:    ticket.ID,
			WorkOrderID: current.ID,
			ActorID:     strPtr(technicianID),
			Recipients: []domain.Recipient{
				domain.CompanyRecipient(ticket.CompanyID),
				domain.StaffRecipient(current.CreatedBy),
			},
			Message:   fmt.Sprintf("A technician is on the way for ticket %s.", ticket.ExternalKey),
			Timestamp: now,
			Payload:   workOrderPayload(current, technicianID, ""),
		})
		order = current
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyClaimed) {
			s.logger.Debug("work order claim lost",
				zap.String("work_order_id", workOrderID),
				zap.String("technician_id", technicianID))
		}
		return nil, mapStoreError(err)
	}

	s.logger.Info("work order accepted",
		zap.String("work_order_id", order.ID),
		zap.String("ticket_id", order.TicketID),
		zap.String("actor_id", technicianID))
	s.pub.publish(ctx, pending)
	return order, nil
}

// AddTechnician adds a SUPPORT member to an IN_PROGRESS work order. The
// requester must have dispatch permission or be the primary technician.
func (s *WorkOrderService) AddTechnician(ctx context.Context, workOrderID, technicianID, requesterID string) (member *domain.WorkOrderTechnician, err error) {
	ctx, end := s.inst.start(ctx, "work_order.add_technician",
		attribute.String("work_order_id", workOrderID),
		attribute.String("technician_id", technicianID),
		attribute.String("actor_id", requesterID))
	defer end(&err)

	var pending []events.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		pending = nil
		order, team, err := s.lockTeamForChange(ctx, repos, workOrderID, requesterID, "add_technician")
		if err != nil {
			return err
		}
		if _, err := resolveTechnician(ctx, repos, technicianID); err != nil {
			return err
		}
		if _, exists := domain.FindMember(team, technicianID); exists {
			return apperrors.NewDuplicateMember(workOrderID, technicianID)
		}
		if len(team)+1 > s.maxTeamSize {
			return apperrors.NewCapacityExceeded(workOrderID, s.maxTeamSize)
		}

		now := s.now()
		member = &domain.WorkOrderTechnician{
			WorkOrderID:  order.ID,
			TechnicianID: technicianID,
			Role:         domain.TechnicianRoleSupport,
			Status:       domain.TechnicianStatusAccepted,
			AcceptedAt:   &now,
		}
		if err := repos.Teams.Add(ctx, member); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewDuplicateMember(workOrderID, technicianID)
			}
			return err
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeWorkOrder, order.ID, strPtr(requesterID), domain.AuditTechnicianAdded,
			fmt.Sprintf("technician %s added as support", technicianID)); err != nil {
			return err
		}
		pending = append(pending, events.Event{
			Type:        events.EventTechnicianAdded,
			TicketID:    order.TicketID,
			WorkOrderID: order.ID,
			ActorID:     strPtr(requesterID),
			Recipients:  []domain.Recipient{domain.StaffRecipient(technicianID)},
			Message:     fmt.Sprintf("You have been added to work order %s.", order.ID),
			Timestamp:   now,
			Payload:     workOrderPayload(order, technicianID, ""),
		})
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("technician added",
		zap.String("work_order_id", workOrderID),
		zap.String("technician_id", technicianID),
		zap.String("actor_id", requesterID))
	s.pub.publish(ctx, pending)
	return member, nil
}

// RemoveTechnician drops a SUPPORT member. The team never shrinks below one
// member and the primary stays. When every remaining member has completed,
// the work order completes in the same transaction.
func (s *WorkOrderService) RemoveTechnician(ctx context.Context, workOrderID, technicianID, requesterID string) (result *CompletionResult, err error) {
	ctx, end := s.inst.start(ctx, "work_order.remove_technician",
		attribute.String("work_order_id", workOrderID),
		attribute.String("technician_id", technicianID),
		attribute.String("actor_id", requesterID))
	defer end(&err)

	var pending []events.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		pending = nil
		order, team, err := s.lockTeamForChange(ctx, repos, workOrderID, requesterID, "remove_technician")
		if err != nil {
			return err
		}
		member, ok := domain.FindMember(team, technicianID)
		if !ok {
			return apperrors.NewNotFound("technician membership", map[string]any{
				"work_order_id": workOrderID,
				"technician_id": technicianID,
			})
		}
		if len(team) <= 1 {
			return apperrors.NewLastMember(workOrderID)
		}
		if member.Role == domain.TechnicianRolePrimary {
			return apperrors.NewValidationError("the primary technician cannot be removed",
				map[string]any{"technician_id": technicianID})
		}

		if err := repos.Teams.Remove(ctx, order.ID, technicianID); err != nil {
			return err
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeWorkOrder, order.ID, strPtr(requesterID), domain.AuditTechnicianRemoved,
			fmt.Sprintf("technician %s removed", technicianID)); err != nil {
			return err
		}

		now := s.now()
		pending = append(pending, events.Event{
			Type:        events.EventTechnicianRemoved,
			TicketID:    order.TicketID,
			WorkOrderID: order.ID,
			ActorID:     strPtr(requesterID),
			Recipients:  []domain.Recipient{domain.StaffRecipient(technicianID)},
			Message:     fmt.Sprintf("You have been removed from work order %s.", order.ID),
			Timestamp:   now,
			Payload:     workOrderPayload(order, technicianID, ""),
		})

		remaining := withoutMember(team, technicianID)
		result = &CompletionResult{WorkOrder: order}
		if domain.AllCompleted(remaining) {
			completion, err := s.completeLocked(ctx, repos, order, remaining, nil, now)
			if err != nil {
				return err
			}
			pending = append(pending, completion...)
			result.AllCompleted = true
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("technician removed",
		zap.String("work_order_id", workOrderID),
		zap.String("technician_id", technicianID),
		zap.String("actor_id", requesterID),
		zap.Bool("work_order_completed", result.AllCompleted))
	s.pub.publish(ctx, pending)
	return result, nil
}

// lockTeamForChange locks the work order, checks the requester may manage
// its team and that the order is IN_PROGRESS, and returns the current team.
func (s *WorkOrderService) lockTeamForChange(ctx context.Context, repos repository.Repositories, workOrderID, requesterID, action string) (*domain.WorkOrder, []domain.WorkOrderTechnician, error) {
	order, err := repos.WorkOrders.LockByID(ctx, workOrderID)
	if err != nil {
		return nil, nil, notFoundAs(err, "work order", "work_order_id", workOrderID)
	}
	requester, err := resolveStaff(ctx, repos, requesterID)
	if err != nil {
		return nil, nil, err
	}
	team, err := repos.Teams.ListByWorkOrder(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	if !requester.CanDispatch() {
		member, ok := domain.FindMember(team, requester.ID)
		if !ok || member.Role != domain.TechnicianRolePrimary {
			return nil, nil, apperrors.NewPermissionDenied("only dispatchers or the primary technician may manage the team")
		}
	}
	if order.Status != domain.WorkOrderStatusInProgress {
		return nil, nil, apperrors.NewInvalidTransition("work order", string(order.Status), action)
	}
	return order, team, nil
}

// StartTechnician records that a team member has begun work on site. It does
// not check who is calling: callers must allow only the technician themself
// or staff with dispatch permission.
func (s *WorkOrderService) StartTechnician(ctx context.Context, workOrderID, technicianID string) (member *domain.WorkOrderTechnician, err error) {
	ctx, end := s.inst.start(ctx, "work_order.start_technician",
		attribute.String("work_order_id", workOrderID),
		attribute.String("actor_id", technicianID))
	defer end(&err)

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		order, team, err := s.lockMembership(ctx, repos, workOrderID, technicianID, "start_technician")
		if err != nil {
			return err
		}
		current, _ := domain.FindMember(team, technicianID)
		if current.Status != domain.TechnicianStatusAccepted {
			return apperrors.NewInvalidTransition("technician", string(current.Status), "start")
		}
		current.Status = domain.TechnicianStatusInProgress
		if err := repos.Teams.Update(ctx, current); err != nil {
			return err
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeWorkOrder, order.ID, strPtr(technicianID), domain.AuditTechnicianStarted,
			fmt.Sprintf("technician %s started work", technicianID)); err != nil {
			return err
		}
		member = current
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("technician started",
		zap.String("work_order_id", workOrderID),
		zap.String("actor_id", technicianID))
	return member, nil
}

// CompleteTechnician marks the technician's membership completed. When every
// member has completed, the work order completes and its ticket resolves in
// the same transaction. Like StartTechnician it trusts technicianID; callers
// must allow only that technician or staff with dispatch permission.
func (s *WorkOrderService) CompleteTechnician(ctx context.Context, workOrderID, technicianID, notes string) (result *CompletionResult, err error) {
	ctx, end := s.inst.start(ctx, "work_order.complete_technician",
		attribute.String("work_order_id", workOrderID),
		attribute.String("actor_id", technicianID))
	defer end(&err)

	var pending []events.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		pending = nil
		order, team, err := s.lockMembership(ctx, repos, workOrderID, technicianID, "complete_technician")
		if err != nil {
			return err
		}
		current, _ := domain.FindMember(team, technicianID)
		if current.Status == domain.TechnicianStatusCompleted {
			return apperrors.NewInvalidTransition("technician", string(current.Status), "complete")
		}

		now := s.now()
		current.Status = domain.TechnicianStatusCompleted
		current.CompletedAt = &now
		current.Notes = strings.TrimSpace(notes)
		if err := repos.Teams.Update(ctx, current); err != nil {
			return err
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeWorkOrder, order.ID, strPtr(technicianID), domain.AuditTechnicianCompleted,
			fmt.Sprintf("technician %s completed: %s", technicianID, current.Notes)); err != nil {
			return err
		}

		result = &CompletionResult{WorkOrder: order}
		if domain.AllCompleted(team) {
			completion, err := s.completeLocked(ctx, repos, order, team, strPtr(technicianID), now)
			if err != nil {
				return err
			}
			pending = append(pending, completion...)
			result.AllCompleted = true
			return nil
		}

		pending = append(pending, events.Event{
			Type:        events.EventTechnicianCompleted,
			TicketID:    order.TicketID,
			WorkOrderID: order.ID,
			ActorID:     strPtr(technicianID),
			Recipients:  teamRecipients(team, technicianID),
			Message:     fmt.Sprintf("A teammate finished their part of work order %s.", order.ID),
			Timestamp:   now,
			Payload:     workOrderPayload(order, technicianID, ""),
		})
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("technician completed",
		zap.String("work_order_id", workOrderID),
		zap.String("actor_id", technicianID),
		zap.Bool("all_completed", result.AllCompleted))
	s.pub.publish(ctx, pending)
	return result, nil
}

// lockMembership locks an IN_PROGRESS work order and checks technicianID is on its team.
func (s *WorkOrderService) lockMembership(ctx context.Context, repos repository.Repositories, workOrderID, technicianID, action string) (*domain.WorkOrder, []domain.WorkOrderTechnician, error) {
	order, err := repos.WorkOrders.LockByID(ctx, workOrderID)
	if err != nil {
		return nil, nil, notFoundAs(err, "work order", "work_order_id", workOrderID)
	}
	if order.Status != domain.WorkOrderStatusInProgress {
		return nil, nil, apperrors.NewInvalidTransition("work order", string(order.Status), action)
	}
	team, err := repos.Teams.ListByWorkOrder(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := domain.FindMember(team, technicianID); !ok {
		return nil, nil, apperrors.NewNotFound("technician membership", map[string]any{
			"work_order_id": workOrderID,
			"technician_id": technicianID,
		})
	}
	return order, team, nil
}

// Complete closes an IN_PROGRESS work order on behalf of staff. A single
// member team is marked completed along the way; larger teams must already
// have every member completed.
func (s *WorkOrderService) Complete(ctx context.Context, workOrderID, staffID string) (order *domain.WorkOrder, err error) {
	ctx, end := s.inst.start(ctx, "work_order.complete",
		attribute.String("work_order_id", workOrderID),
		attribute.String("actor_id", staffID))
	defer end(&err)

	var pending []events.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		pending = nil
		current, err := repos.WorkOrders.LockByID(ctx, workOrderID)
		if err != nil {
			return notFoundAs(err, "work order", "work_order_id", workOrderID)
		}
		staff, err := resolveStaff(ctx, repos, staffID)
		if err != nil {
			return err
		}
		if !staff.CanDispatch() && current.CreatedBy != staff.ID {
			return apperrors.NewPermissionDenied("only dispatchers or the work order creator may complete it")
		}
		if current.Status != domain.WorkOrderStatusInProgress {
			return apperrors.NewInvalidTransition("work order", string(current.Status), "complete")
		}
		team, err := repos.Teams.ListByWorkOrder(ctx, current.ID)
		if err != nil {
			return err
		}

		now := s.now()
		switch {
		case len(team) == 1 && team[0].Status != domain.TechnicianStatusCompleted:
			team[0].Status = domain.TechnicianStatusCompleted
			team[0].CompletedAt = &now
			if err := repos.Teams.Update(ctx, &team[0]); err != nil {
				return err
			}
			if err := appendAudit(ctx, repos, domain.AuditScopeWorkOrder, current.ID, strPtr(staff.ID), domain.AuditTechnicianCompleted,
				fmt.Sprintf("technician %s completed by staff", team[0].TechnicianID)); err != nil {
				return err
			}
		case !domain.AllCompleted(team):
			return apperrors.NewDomainError(apperrors.CodeInvalidState,
				"work order team members are still working", http.StatusConflict,
				map[string]any{"status": string(current.Status), "action": "complete"})
		}

		completion, err := s.completeLocked(ctx, repos, current, team, strPtr(staff.ID), now)
		if err != nil {
			return err
		}
		pending = append(pending, completion...)
		order = current
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("work order completed by staff",
		zap.String("work_order_id", order.ID),
		zap.String("actor_id", staffID))
	s.pub.publish(ctx, pending)
	return order, nil
}

// completeLocked moves a locked work order to COMPLETED and resolves its
// ticket unless the ticket is already RESOLVED or CLOSED. Callers hold the
// work order lock.
func (s *WorkOrderService) completeLocked(ctx context.Context, repos repository.Repositories, order *domain.WorkOrder, team []domain.WorkOrderTechnician, actorID *string, now time.Time) ([]events.Event, error) {
	if !order.Status.CanTransitionTo(domain.WorkOrderStatusCompleted) {
		return nil, apperrors.NewInvalidTransition("work order", string(order.Status), "complete")
	}
	order.Status = domain.WorkOrderStatusCompleted
	order.CompletedAt = &now
	if err := repos.WorkOrders.Update(ctx, order); err != nil {
		return nil, err
	}
	if err := appendAudit(ctx, repos, domain.AuditScopeWorkOrder, order.ID, actorID, domain.AuditWorkOrderCompleted,
		fmt.Sprintf("work order completed by a team of %d", len(team))); err != nil {
		return nil, err
	}

	ticket, err := repos.Tickets.LockByID(ctx, order.TicketID)
	if err != nil {
		return nil, notFoundAs(err, "ticket", "ticket_id", order.TicketID)
	}
	from := ticket.Status
	if ticket.Apply(domain.TicketActionResolveWork, now) {
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return nil, err
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeTicket, ticket.ID, actorID, domain.AuditTicketResolved,
			fmt.Sprintf("status %s -> %s: work order %s completed", from, ticket.Status, order.ID)); err != nil {
			return nil, err
		}
	} else {
		s.logger.Info("ticket left unchanged on work order completion",
			zap.String("ticket_id", ticket.ID),
			zap.String("status", string(from)))
	}

	return []events.Event{{
		Type:        events.EventWorkOrderCompleted,
		TicketID:    ticket.ID,
		WorkOrderID: order.ID,
		ActorID:     actorID,
		Recipients: []domain.Recipient{
			domain.CompanyRecipient(ticket.CompanyID),
			domain.StaffRecipient(order.CreatedBy),
		},
		Message:   fmt.Sprintf("The field work for ticket %s is complete.", ticket.ExternalKey),
		Timestamp: now,
		Payload:   workOrderPayload(order, "", ""),
	}}, nil
}

// Cancel withdraws an AVAILABLE or IN_PROGRESS work order. The ticket keeps
// its status so a new work order may be opened later.
func (s *WorkOrderService) Cancel(ctx context.Context, workOrderID, actorID, reason string) (order *domain.WorkOrder, err error) {
	ctx, end := s.inst.start(ctx, "work_order.cancel",
		attribute.String("work_order_id", workOrderID),
		attribute.String("actor_id", actorID))
	defer end(&err)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("cancel reason is required", map[string]any{"reason": "required"})
	}

	var pending []events.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		pending = nil
		current, err := repos.WorkOrders.LockByID(ctx, workOrderID)
		if err != nil {
			return notFoundAs(err, "work order", "work_order_id", workOrderID)
		}
		staff, err := resolveStaff(ctx, repos, actorID)
		if err != nil {
			return err
		}
		if !staff.CanDispatch() && current.CreatedBy != staff.ID {
			return apperrors.NewPermissionDenied("only dispatchers or the work order creator may cancel it")
		}
		if !current.Status.CanTransitionTo(domain.WorkOrderStatusCancelled) {
			return apperrors.NewInvalidTransition("work order", string(current.Status), "cancel")
		}

		now := s.now()
		current.Status = domain.WorkOrderStatusCancelled
		current.CancelledAt = &now
		current.CancelReason = &reason
		if err := repos.WorkOrders.Update(ctx, current); err != nil {
			return err
		}
		if err := appendAudit(ctx, repos, domain.AuditScopeWorkOrder, current.ID, strPtr(actorID), domain.AuditWorkOrderCancelled,
			"cancelled: "+reason); err != nil {
			return err
		}

		ticket, err := repos.Tickets.GetByID(ctx, current.TicketID)
		if err != nil {
			return notFoundAs(err, "ticket", "ticket_id", current.TicketID)
		}
		team, err := repos.Teams.ListByWorkOrder(ctx, current.ID)
		if err != nil {
			return err
		}
		recipients := teamRecipients(team, "")
		recipients = append(recipients, domain.CompanyRecipient(ticket.CompanyID))
		pending = append(pending, events.Event{
			Type:        events.EventWorkOrderCancelled,
			TicketID:    ticket.ID,
			WorkOrderID: current.ID,
			ActorID:     strPtr(actorID),
			Recipients:  recipients,
			Message:     fmt.Sprintf("Work order for ticket %s was cancelled: %s", ticket.ExternalKey, reason),
			Timestamp:   now,
			Payload:     workOrderPayload(current, "", reason),
		})
		order = current
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("work order cancelled",
		zap.String("work_order_id", order.ID),
		zap.String("actor_id", actorID))
	s.pub.publish(ctx, pending)
	return order, nil
}

// Get returns a work order with its team and overdue flag.
func (s *WorkOrderService) Get(ctx context.Context, workOrderID string) (*WorkOrderDetails, error) {
	reader := s.store.Reader()
	order, err := reader.WorkOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, mapStoreError(notFoundAs(err, "work order", "work_order_id", workOrderID))
	}
	team, err := reader.Teams.ListByWorkOrder(ctx, order.ID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &WorkOrderDetails{
		WorkOrder: *order,
		Team:      team,
		Overdue:   order.IsOverdue(s.now()),
	}, nil
}

// List returns work orders ordered by deadline.
func (s *WorkOrderService) List(ctx context.Context, filter WorkOrderListFilter) ([]domain.WorkOrder, error) {
	orders, err := s.store.Reader().WorkOrders.ListWithFilter(ctx, repository.WorkOrderFilter{
		TicketID:     filter.TicketID,
		TechnicianID: filter.TechnicianID,
		Statuses:     filter.Statuses,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return orders, nil
}

// History returns the work order's audit trail in commit order.
func (s *WorkOrderService) History(ctx context.Context, workOrderID string) ([]domain.AuditLogEntry, error) {
	reader := s.store.Reader()
	if _, err := reader.WorkOrders.GetByID(ctx, workOrderID); err != nil {
		return nil, mapStoreError(notFoundAs(err, "work order", "work_order_id", workOrderID))
	}
	entries, err := reader.Audit.ListBySubject(ctx, domain.AuditScopeWorkOrder, workOrderID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return entries, nil
}

// IsOverdue reports whether the order is active past its deadline.
func (s *WorkOrderService) IsOverdue(order *domain.WorkOrder) bool {
	return order.IsOverdue(s.now())
}

func withoutMember(team []domain.WorkOrderTechnician, technicianID string) []domain.WorkOrderTechnician {
	out := make([]domain.WorkOrderTechnician, 0, len(team))
	for _, member := range team {
		if member.TechnicianID != technicianID {
			out = append(out, member)
		}
	}
	return out
}

func teamRecipients(team []domain.WorkOrderTechnician, exclude string) []domain.Recipient {
	out := make([]domain.Recipient, 0, len(team))
	for _, member := range team {
		if member.TechnicianID == exclude {
			continue
		}
		out = append(out, domain.StaffRecipient(member.TechnicianID))
	}
	return out
}

func workOrderPayload(order *domain.WorkOrder, technicianID, reason string) events.WorkOrderPayload {
	return events.WorkOrderPayload{
		Status:       order.Status,
		Priority:     order.Priority,
		Deadline:     order.Deadline,
		TechnicianID: technicianID,
		Reason:       reason,
	}
}

func rolePtr(role domain.StaffRole) *domain.StaffRole {
	return &role
}
