package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// StaffHandler manages the staff and company directory.
type StaffHandler struct {
	directory *service.DirectoryService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(directory *service.DirectoryService) *StaffHandler {
	return &StaffHandler{directory: directory}
}

// CreateStaff POST /staff.
func (h *StaffHandler) CreateStaff(c *fiber.Ctx) error {
	actor, err := staffFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateStaffRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	staff, err := h.directory.CreateStaffMember(c.UserContext(), actor, service.StaffInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  domain.StaffRole(req.Role),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewStaffResponse(staff)})
}

// ListStaff GET /staff.
func (h *StaffHandler) ListStaff(c *fiber.Ctx) error {
	actor, err := staffFrom(c)
	if err != nil {
		return err
	}
	limit, offset := parsePage(c)
	filters := service.StaffListFilters{Limit: limit, Offset: offset}
	if role := c.Query("role"); role != "" {
		r := domain.StaffRole(role)
		filters.Role = &r
	}
	if active := c.Query("active"); active != "" {
		v := c.QueryBool("active")
		filters.Active = &v
	}
	staff, err := h.directory.ListStaffMembers(c.UserContext(), actor, filters)
	if err != nil {
		return err
	}
	items := make([]dto.StaffResponse, 0, len(staff))
	for i := range staff {
		items = append(items, dto.NewStaffResponse(&staff[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetStaff GET /staff/:id.
func (h *StaffHandler) GetStaff(c *fiber.Ctx) error {
	actor, err := staffFrom(c)
	if err != nil {
		return err
	}
	staff, err := h.directory.GetStaffMemberByID(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffResponse(staff)})
}

// CreateCompany POST /companies.
func (h *StaffHandler) CreateCompany(c *fiber.Ctx) error {
	actor, err := staffFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateCompanyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	company, err := h.directory.CreateCompany(c.UserContext(), actor, service.CompanyInput{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewCompanyResponse(company)})
}

// GetCompany GET /companies/:id.
func (h *StaffHandler) GetCompany(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	company, err := h.directory.GetCompany(c.UserContext(), principal.Actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCompanyResponse(company)})
}
