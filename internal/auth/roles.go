package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/domain"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// RequireStaff ensures a staff member is authenticated.
func RequireStaff() fiber.Handler {
	return RequireStaffRole()
}

// RequireStaffRole ensures the staff principal has one of the allowed roles.
// No roles means any staff member.
func RequireStaffRole(allowed ...domain.StaffRole) fiber.Handler {
	allowedSet := make(map[domain.StaffRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || !principal.IsStaff() {
			return apperrors.NewPermissionDenied("staff role required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Staff.Role]; !exists {
			return apperrors.NewPermissionDenied("insufficient role")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated (company or staff).
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
