package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// DirectoryService manages staff members and client companies.
type DirectoryService struct {
	store  repository.Store
	logger *zap.Logger
}

// StaffInput describes a new staff member.
type StaffInput struct {
	Name  string
	Email string
	Role  domain.StaffRole
}

// CompanyInput describes a new client company.
type CompanyInput struct {
	Name         string
	ContactEmail string
}

// StaffListFilters define listing parameters.
type StaffListFilters struct {
	Role   *domain.StaffRole
	Active *bool
	Limit  int
	Offset int
}

// NewDirectoryService constructs the service.
func NewDirectoryService(store repository.Store, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{store: store, logger: logger}
}

func requireAdmin(actor *domain.StaffMember) error {
	if actor == nil || !actor.Active || actor.Role != domain.StaffRoleAdmin {
		return apperrors.NewPermissionDenied("admin role required")
	}
	return nil
}

// CreateStaffMember adds a staff account on behalf of an admin.
func (s *DirectoryService) CreateStaffMember(ctx context.Context, actor *domain.StaffMember, input StaffInput) (*domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.RegisterStaff(ctx, input)
}

// RegisterStaff adds a staff account without an acting admin. Operators use
// it to bootstrap the first administrator.
func (s *DirectoryService) RegisterStaff(ctx context.Context, input StaffInput) (*domain.StaffMember, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	details := map[string]any{}
	if input.Name == "" {
		details["name"] = "required"
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		details["email"] = "must be a valid address"
	}
	if !input.Role.Valid() {
		details["role"] = "must be AGENT, DISPATCHER, TECHNICIAN or ADMIN"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid staff member", details)
	}

	staff := &domain.StaffMember{Name: input.Name, Email: input.Email, Role: input.Role, Active: true}
	if err := s.store.Reader().Staff.Create(ctx, staff); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewValidationError("staff email already exists", map[string]any{"email": input.Email})
		}
		return nil, mapStoreError(err)
	}
	s.logger.Info("staff member registered", zap.String("staff_id", staff.ID), zap.String("role", string(staff.Role)))
	return staff, nil
}

// ListStaffMembers lists staff with filters.
func (s *DirectoryService) ListStaffMembers(ctx context.Context, actor *domain.StaffMember, filters StaffListFilters) ([]domain.StaffMember, error) {
	if !actor.CanDispatch() {
		return nil, apperrors.NewPermissionDenied("dispatch permission required")
	}
	staff, err := s.store.Reader().Staff.List(ctx, repository.StaffFilter{
		Role:   filters.Role,
		Active: filters.Active,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return staff, nil
}

// GetStaffMemberByID fetches staff.
func (s *DirectoryService) GetStaffMemberByID(ctx context.Context, actor *domain.StaffMember, id string) (*domain.StaffMember, error) {
	if actor == nil || (actor.ID != id && !actor.CanDispatch()) {
		return nil, apperrors.NewPermissionDenied("dispatch permission required")
	}
	staff, err := s.store.Reader().Staff.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(notFoundAs(err, "staff member", "staff_id", id))
	}
	return staff, nil
}

// CreateCompany registers a client company on behalf of an admin.
func (s *DirectoryService) CreateCompany(ctx context.Context, actor *domain.StaffMember, input CompanyInput) (*domain.Company, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.RegisterCompany(ctx, input)
}

// RegisterCompany registers a client company without an acting admin.
func (s *DirectoryService) RegisterCompany(ctx context.Context, input CompanyInput) (*domain.Company, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.ContactEmail = strings.ToLower(strings.TrimSpace(input.ContactEmail))
	details := map[string]any{}
	if input.Name == "" {
		details["name"] = "required"
	}
	if _, err := mail.ParseAddress(input.ContactEmail); err != nil {
		details["contact_email"] = "must be a valid address"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid company", details)
	}

	company := &domain.Company{Name: input.Name, ContactEmail: input.ContactEmail, IsActive: true}
	if err := s.store.Reader().Companies.Create(ctx, company); err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.Info("company registered", zap.String("company_id", company.ID))
	return company, nil
}

// GetCompany fetches a company. Companies may only read themselves.
func (s *DirectoryService) GetCompany(ctx context.Context, actor domain.Actor, id string) (*domain.Company, error) {
	if actor.Type == domain.SubjectTypeCompany && actor.ID != id {
		return nil, apperrors.NewNotFound("company", map[string]any{"company_id": id})
	}
	company, err := s.store.Reader().Companies.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(notFoundAs(err, "company", "company_id", id))
	}
	return company, nil
}
