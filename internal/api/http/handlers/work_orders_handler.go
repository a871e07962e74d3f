package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/service"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// WorkOrdersHandler exposes the work order engine.
type WorkOrdersHandler struct {
	service *service.WorkOrderService
	retry   RetryPolicy
}

// NewWorkOrdersHandler constructs handler.
func NewWorkOrdersHandler(workOrders *service.WorkOrderService, retry RetryPolicy) *WorkOrdersHandler {
	return &WorkOrdersHandler{service: workOrders, retry: retry}
}

func (h *WorkOrdersHandler) render(c *fiber.Ctx, status int, order *domain.WorkOrder) error {
	return c.Status(status).JSON(fiber.Map{"data": dto.NewWorkOrderResponse(order, h.service.IsOverdue(order), nil)})
}

// Create POST /work-orders.
func (h *WorkOrdersHandler) Create(c *fiber.Ctx) error {
	staff, err := staffFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateWorkOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.TicketID == "" {
		return apperrors.NewValidationError("ticket_id required", map[string]any{"ticket_id": "required"})
	}
	order, err := retryBusy(c.UserContext(), h.retry, func() (*domain.WorkOrder, error) {
		return h.service.Create(c.UserContext(), req.TicketID, staff.ID)
	})
	if err != nil {
		return err
	}
	return h.render(c, fiber.StatusCreated, order)
}

// List GET /work-orders.
func (h *WorkOrdersHandler) List(c *fiber.Ctx) error {
	if _, err := staffFrom(c); err != nil {
		return err
	}
	limit, offset := parsePage(c)
	orders, err := h.service.List(c.UserContext(), service.WorkOrderListFilter{
		TicketID:     optionalString(c.Query("ticket_id")),
		TechnicianID: optionalString(c.Query("technician_id")),
		Statuses:     parseList[domain.WorkOrderStatus](c.Query("status")),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return err
	}
	items := make([]dto.WorkOrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, dto.NewWorkOrderResponse(&orders[i], h.service.IsOverdue(&orders[i]), nil))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /work-orders/:id.
func (h *WorkOrdersHandler) Get(c *fiber.Ctx) error {
	if _, err := staffFrom(c); err != nil {
		return err
	}
	details, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkOrderResponse(&details.WorkOrder, details.Overdue, details.Team)})
}

// History GET /work-orders/:id/history.
func (h *WorkOrdersHandler) History(c *fiber.Ctx) error {
	if _, err := staffFrom(c); err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuditEntries(entries)})
}

// Accept POST /work-orders/:id/accept. The caller claims the order for itself.
func (h *WorkOrdersHandler) Accept(c *fiber.Ctx) error {
	staff, err := staffFrom(c)
	if err != nil {
		return err
	}
	order, err := retryBusy(c.UserContext(), h.retry, func() (*domain.WorkOrder, error) {
		return h.service.Accept(c.UserContext(), c.Params("id"), staff.ID)
	})
	if err != nil {
		return err
	}
	return h.render(c, fiber.StatusOK, order)
}

// AddTechnician POST /work-orders/:id/technicians.
func (h *WorkOrdersHandler) AddTechnician(c *fiber.Ctx) error {
	staff, err := staffFrom(c)
	if err != nil {
		return err
	}
	var req dto.AddTechnicianRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.TechnicianID == "" {
		return apperrors.NewValidationError("technician_id required", map[string]any{"technician_id": "required"})
	}
	member, err := retryBusy(c.UserContext(), h.retry, func() (*domain.WorkOrderTechnician, error) {
		return h.service.AddTechnician(c.UserContext(), c.Params("id"), req.TechnicianID, staff.ID)
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTeamMemberResponse(member)})
}

// RemoveTechnician DELETE /work-orders/:id/technicians/:technicianId.
func (h *WorkOrdersHandler) RemoveTechnician(c *fiber.Ctx) error {
	staff, err := staffFrom(c)
	if err != nil {
		return err
	}
	result, err := retryBusy(c.UserContext(), h.retry, func() (*service.CompletionResult, error) {
		return h.service.RemoveTechnician(c.UserContext(), c.Params("id"), c.Params("technicianId"), staff.ID)
	})
	if err != nil {
		return err
	}
	return h.renderCompletion(c, result)
}

// StartTechnician POST /work-orders/:id/technicians/:technicianId/start.
func (h *WorkOrdersHandler) StartTechnician(c *fiber.Ctx) error {
	technicianID, err := h.selfOrDispatcher(c)
	if err != nil {
		return err
	}
	member, err := retryBusy(c.UserContext(), h.retry, func() (*domain.WorkOrderTechnician, error) {
		return h.service.StartTechnician(c.UserContext(), c.Params("id"), technicianID)
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTeamMemberResponse(member)})
}

// CompleteTechnician POST /work-orders/:id/technicians/:technicianId/complete.
func (h *WorkOrdersHandler) CompleteTechnician(c *fiber.Ctx) error {
	technicianID, err := h.selfOrDispatcher(c)
	if err != nil {
		return err
	}
	var req dto.CompleteTechnicianRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := retryBusy(c.UserContext(), h.retry, func() (*service.CompletionResult, error) {
		return h.service.CompleteTechnician(c.UserContext(), c.Params("id"), technicianID, req.Notes)
	})
	if err != nil {
		return err
	}
	return h.renderCompletion(c, result)
}

// Complete POST /work-orders/:id/complete.
func (h *WorkOrdersHandler) Complete(c *fiber.Ctx) error {
	staff, err := staffFrom(c)
	if err != nil {
		return err
	}
	order, err := retryBusy(c.UserContext(), h.retry, func() (*domain.WorkOrder, error) {
		return h.service.Complete(c.UserContext(), c.Params("id"), staff.ID)
	})
	if err != nil {
		return err
	}
	return h.render(c, fiber.StatusOK, order)
}

// Cancel POST /work-orders/:id/cancel.
func (h *WorkOrdersHandler) Cancel(c *fiber.Ctx) error {
	staff, err := staffFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	order, err := retryBusy(c.UserContext(), h.retry, func() (*domain.WorkOrder, error) {
		return h.service.Cancel(c.UserContext(), c.Params("id"), staff.ID, req.Reason)
	})
	if err != nil {
		return err
	}
	return h.render(c, fiber.StatusOK, order)
}

// selfOrDispatcher lets technicians act on their own membership and
// dispatchers act for any technician.
func (h *WorkOrdersHandler) selfOrDispatcher(c *fiber.Ctx) (string, error) {
	staff, err := staffFrom(c)
	if err != nil {
		return "", err
	}
	technicianID := c.Params("technicianId")
	if technicianID != staff.ID && !staff.CanDispatch() {
		return "", apperrors.NewPermissionDenied("technicians may only report their own progress")
	}
	return technicianID, nil
}

func (h *WorkOrdersHandler) renderCompletion(c *fiber.Ctx, result *service.CompletionResult) error {
	return c.JSON(fiber.Map{"data": dto.CompletionResponse{
		WorkOrder:    dto.NewWorkOrderResponse(result.WorkOrder, h.service.IsOverdue(result.WorkOrder), nil),
		AllCompleted: result.AllCompleted,
	}})
}
