package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Actor   domain.Actor
	Company *domain.Company
	Staff   *domain.StaffMember
}

// IsStaff reports whether the caller is a staff member.
func (p *Principal) IsStaff() bool {
	return p != nil && p.Actor.Type == domain.SubjectTypeStaff && p.Staff != nil
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	store  repository.Store
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, store repository.Store) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, store: store}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{Actor: claims.Actor()}
	repos := m.store.Reader()

	switch claims.Subject {
	case domain.SubjectTypeCompany:
		company, err := repos.Companies.GetByID(c.UserContext(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("company not found")
			}
			return apperrors.MapError(err)
		}
		if !company.IsActive {
			return apperrors.NewUnauthorized("company inactive")
		}
		principal.Company = company
	case domain.SubjectTypeStaff:
		staff, err := repos.Staff.GetByID(c.UserContext(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("staff not found")
			}
			return apperrors.MapError(err)
		}
		if !staff.Active {
			return apperrors.NewUnauthorized("staff inactive")
		}
		principal.Staff = staff
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
