package dto

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// CreateStaffRequest payload.
type CreateStaffRequest struct {
	Name  string           `json:"name"`
	Email string           `json:"email"`
	Role  domain.StaffRole `json:"role"`
}

// StaffResponse describes a staff member.
type StaffResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Role      domain.StaffRole `json:"role"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"created_at"`
}

// CreateCompanyRequest payload.
type CreateCompanyRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
}

// CompanyResponse describes a client company.
type CompanyResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ContactEmail string    `json:"contact_email"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewStaffResponse maps a staff member.
func NewStaffResponse(s *domain.StaffMember) StaffResponse {
	return StaffResponse{ID: s.ID, Name: s.Name, Email: s.Email, Role: s.Role, Active: s.Active, CreatedAt: s.CreatedAt}
}

// NewCompanyResponse maps a company.
func NewCompanyResponse(c *domain.Company) CompanyResponse {
	return CompanyResponse{ID: c.ID, Name: c.Name, ContactEmail: c.ContactEmail, IsActive: c.IsActive, CreatedAt: c.CreatedAt}
}
