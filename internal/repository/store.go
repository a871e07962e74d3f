package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles the repositories bound to one unit of work.
type Repositories struct {
	Tickets       TicketRepository
	WorkOrders    WorkOrderRepository
	Teams         TeamRepository
	Audit         AuditRepository
	Staff         StaffRepository
	Companies     CompanyRepository
	Notifications NotificationRepository
}

// TxFunc runs inside a transaction. Returning an error rolls back every write
// made through repos.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store hands out transactional and snapshot repositories.
type Store interface {
	// WithinTx runs fn in one transaction and commits when fn returns nil.
	WithinTx(ctx context.Context, fn TxFunc) error
	// Reader returns lock-free repositories for listing and lookups.
	Reader() Repositories
}

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	CompanyID       *string
	AssignedStaffID *string
	Statuses        []domain.TicketStatus
	Priorities      []domain.TicketPriority
	SearchTerm      *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// LockByID reads the ticket and holds its row lock until the transaction ends.
	LockByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

// WorkOrderFilter captures work order search parameters.
type WorkOrderFilter struct {
	TicketID     *string
	TechnicianID *string
	Statuses     []domain.WorkOrderStatus
	Limit        int
	Offset       int
}

// WorkOrderRepository encapsulates work order persistence.
type WorkOrderRepository interface {
	Create(ctx context.Context, order *domain.WorkOrder) error
	Update(ctx context.Context, order *domain.WorkOrder) error
	GetByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	// LockByID reads the work order and holds its row lock until the transaction ends.
	LockByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	// TryClaim moves the order from expected to next and reports whether this
	// call performed the move. Concurrent callers serialize on the row; at most
	// one of them observes true.
	TryClaim(ctx context.Context, id string, expected, next domain.WorkOrderStatus) (bool, error)
	FindActiveByTicket(ctx context.Context, ticketID string) (*domain.WorkOrder, error)
	ListWithFilter(ctx context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error)
}

// TeamRepository manages work order team memberships.
type TeamRepository interface {
	Add(ctx context.Context, member *domain.WorkOrderTechnician) error
	Update(ctx context.Context, member *domain.WorkOrderTechnician) error
	Remove(ctx context.Context, workOrderID, technicianID string) error
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]domain.WorkOrderTechnician, error)
}

// AuditRepository stores append-only audit entries.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
	ListBySubject(ctx context.Context, scope domain.AuditScope, subjectID string) ([]domain.AuditLogEntry, error)
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Role   *domain.StaffRole
	Active *bool
	Limit  int
	Offset int
}

// StaffRepository handles persistence for staff members.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffMember) error
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error)
}

// CompanyRepository handles persistence for client companies.
type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	GetByID(ctx context.Context, id string) (*domain.Company, error)
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListByRecipient(ctx context.Context, recipient domain.Recipient, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string, recipient domain.Recipient) error
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func stringSlice[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
