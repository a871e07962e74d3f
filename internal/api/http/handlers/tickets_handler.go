package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// TicketsHandler exposes the ticket state machine.
type TicketsHandler struct {
	service *service.TicketService
	retry   RetryPolicy
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, retry RetryPolicy) *TicketsHandler {
	return &TicketsHandler{service: ticketService, retry: retry}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.CompanyID == "" && principal.Actor.Type == domain.SubjectTypeCompany {
		req.CompanyID = principal.Actor.ID
	}

	input := service.TicketCreateInput{
		CompanyID:   req.CompanyID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Address:     req.Address,
	}
	ticket, err := retryBusy(c.UserContext(), h.retry, func() (*domain.Ticket, error) {
		return h.service.Create(c.UserContext(), principal.Actor, input)
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	limit, offset := parsePage(c)
	filter := service.TicketListFilter{
		CompanyID:       optionalString(c.Query("company_id")),
		AssignedStaffID: optionalString(c.Query("assigned_staff_id")),
		Statuses:        parseList[domain.TicketStatus](c.Query("status")),
		Priorities:      parseList[domain.TicketPriority](c.Query("priority")),
		SearchTerm:      optionalString(c.Query("q")),
		CreatedFrom:     parseTime(c.Query("created_from")),
		CreatedTo:       parseTime(c.Query("created_to")),
		Limit:           limit,
		Offset:          offset,
	}
	tickets, err := h.service.List(c.UserContext(), principal.Actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), principal.Actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), principal.Actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuditEntries(entries)})
}

type staffTransition func(ctx context.Context, ticketID, staffID string) (*domain.Ticket, error)

func (h *TicketsHandler) staffAction(fn staffTransition) fiber.Handler {
	return func(c *fiber.Ctx) error {
		staff, err := staffFrom(c)
		if err != nil {
			return err
		}
		ticket, err := retryBusy(c.UserContext(), h.retry, func() (*domain.Ticket, error) {
			return fn(c.UserContext(), c.Params("id"), staff.ID)
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
	}
}

// Assume POST /tickets/:id/assume.
func (h *TicketsHandler) Assume(c *fiber.Ctx) error {
	return h.staffAction(h.service.Assume)(c)
}

// Dispatch POST /tickets/:id/dispatch.
func (h *TicketsHandler) Dispatch(c *fiber.Ctx) error {
	return h.staffAction(h.service.Dispatch)(c)
}

// Start POST /tickets/:id/start.
func (h *TicketsHandler) Start(c *fiber.Ctx) error {
	return h.staffAction(h.service.MarkInProgress)(c)
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	return h.staffAction(h.service.Resolve)(c)
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	ticket, err := retryBusy(c.UserContext(), h.retry, func() (*domain.Ticket, error) {
		return h.service.Close(c.UserContext(), c.Params("id"), principal.Actor)
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Reopen POST /tickets/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := retryBusy(c.UserContext(), h.retry, func() (*domain.Ticket, error) {
		return h.service.Reopen(c.UserContext(), c.Params("id"), principal.Actor, req.Reason)
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
