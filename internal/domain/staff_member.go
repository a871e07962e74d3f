package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent      StaffRole = "AGENT"
	StaffRoleDispatcher StaffRole = "DISPATCHER"
	StaffRoleTechnician StaffRole = "TECHNICIAN"
	StaffRoleAdmin      StaffRole = "ADMIN"
)

// StaffMember models a support agent, dispatcher, field technician or administrator.
type StaffMember struct {
	ID        string
	Name      string
	Email     string
	Role      StaffRole
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanDispatch reports whether the member may manage work orders and teams.
func (s *StaffMember) CanDispatch() bool {
	return s != nil && s.Active && (s.Role == StaffRoleDispatcher || s.Role == StaffRoleAdmin)
}

// IsTechnician reports whether the member works in the field.
func (s *StaffMember) IsTechnician() bool {
	return s != nil && s.Active && s.Role == StaffRoleTechnician
}

// IsDesk reports whether the member handles tickets from the service desk.
func (s *StaffMember) IsDesk() bool {
	return s != nil && s.Active && s.Role != StaffRoleTechnician
}

// Valid reports whether r is a known role.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleAgent, StaffRoleDispatcher, StaffRoleTechnician, StaffRoleAdmin:
		return true
	}
	return false
}
