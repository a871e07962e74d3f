package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/domain"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// RetryPolicy bounds how often a handler retries an operation that came back BUSY.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
}

// DefaultRetryPolicy is used when nothing is configured.
var DefaultRetryPolicy = RetryPolicy{MaxTries: 3, InitialInterval: 50 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxTries == 0 {
		p.MaxTries = DefaultRetryPolicy.MaxTries
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultRetryPolicy.InitialInterval
	}
	return p
}

// retryBusy runs op and retries it with exponential backoff while it fails
// with a retryable error. Every other error is returned on the first try.
func retryBusy[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	policy = policy.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval

	res, err := backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err != nil && !apperrors.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(policy.MaxTries))
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return res, apperrors.NewBusy(err)
	}
	return res, err
}

func principalFrom(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func staffFrom(c *fiber.Ctx) (*domain.StaffMember, error) {
	principal, err := principalFrom(c)
	if err != nil {
		return nil, err
	}
	if !principal.IsStaff() {
		return nil, apperrors.NewPermissionDenied("staff role required")
	}
	return principal.Staff, nil
}

func parsePage(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	return pageSize, (page - 1) * pageSize
}

func parseList[T ~string](val string) []T {
	if val == "" {
		return nil
	}
	var out []T
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, T(strings.ToUpper(part)))
		}
	}
	return out
}

func optionalString(val string) *string {
	if val = strings.TrimSpace(val); val == "" {
		return nil
	}
	return &val
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}
