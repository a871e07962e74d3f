package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

const tracerName = "github.com/spec-kit/dispatch-service/internal/service"

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// instrumentation wraps every engine operation in a span and an outcome counter.
type instrumentation struct {
	tracer  trace.Tracer
	metrics *observability.Metrics
	logger  *zap.Logger
}

func newInstrumentation(logger *zap.Logger, metrics *observability.Metrics) instrumentation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return instrumentation{
		tracer:  otel.Tracer(tracerName),
		metrics: metrics,
		logger:  logger,
	}
}

// start opens a span for op. The returned func must be deferred with a
// pointer to the operation's named error.
func (in instrumentation) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := in.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		outcome := "OK"
		if errp != nil && *errp != nil {
			domainErr := apperrors.ToDomainError(*errp)
			outcome = domainErr.Code
			span.SetAttributes(attribute.String("error.code", domainErr.Code))
			span.SetStatus(codes.Error, domainErr.Message)
			if domainErr.HTTPStatus >= 500 && domainErr.Code != apperrors.CodeBusy {
				span.RecordError(*errp)
			}
		}
		in.metrics.RecordOperation(op, outcome)
		span.End()
	}
}

// publisher delivers events gathered inside a transaction once it has committed.
type publisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func (p publisher) publish(ctx context.Context, pending []events.Event) {
	if p.dispatcher == nil {
		return
	}
	for _, event := range pending {
		if err := p.dispatcher.Publish(ctx, event); err != nil {
			p.logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}
}

// mapStoreError converts storage failures into domain errors. Domain errors
// raised inside a transaction pass through unchanged.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, repository.ErrBusy):
		return apperrors.NewBusy(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.NewBusy(err)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("record", nil)
	}
	return apperrors.NewInternalError(err)
}

// notFoundAs names the missing resource when err is a storage miss.
func notFoundAs(err error, resource, key, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{key: id})
	}
	return err
}

// resolveStaff loads an active staff member acting on an operation. Unknown
// or inactive actors are refused.
func resolveStaff(ctx context.Context, repos repository.Repositories, staffID string) (*domain.StaffMember, error) {
	if staffID == "" {
		return nil, apperrors.NewPermissionDenied("staff actor required")
	}
	staff, err := repos.Staff.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewPermissionDenied("unknown staff member")
		}
		return nil, err
	}
	if !staff.Active {
		return nil, apperrors.NewPermissionDenied("staff member inactive")
	}
	return staff, nil
}

// resolveTechnician loads an active technician referenced by an operation.
func resolveTechnician(ctx context.Context, repos repository.Repositories, technicianID string) (*domain.StaffMember, error) {
	staff, err := repos.Staff.GetByID(ctx, technicianID)
	if err != nil {
		return nil, notFoundAs(err, "technician", "technician_id", technicianID)
	}
	if !staff.IsTechnician() {
		return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
	}
	return staff, nil
}

func appendAudit(ctx context.Context, repos repository.Repositories, scope domain.AuditScope, subjectID string, actorID *string, action domain.AuditAction, description string) error {
	return repos.Audit.Append(ctx, &domain.AuditLogEntry{
		Scope:       scope,
		SubjectID:   subjectID,
		ActorID:     actorID,
		Action:      action,
		Description: description,
	})
}

func strPtr(v string) *string {
	return &v
}

func ptrBool(v bool) *bool {
	return &v
}
