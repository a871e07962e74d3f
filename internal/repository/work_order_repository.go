package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

const workOrderColumns = `w.id, w.ticket_id, w.status, w.priority, w.deadline, w.created_by, w.created_at, w.updated_at,
               w.completed_at, w.cancelled_at, w.cancel_reason`

type workOrderRepository struct {
	db Querier
}

// NewWorkOrderRepository instantiates repository.
func NewWorkOrderRepository(db Querier) WorkOrderRepository {
	return &workOrderRepository{db: db}
}

func (r *workOrderRepository) Create(ctx context.Context, order *domain.WorkOrder) error {
	const query = `
        INSERT INTO work_orders (ticket_id, status, priority, deadline, created_by)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		order.TicketID,
		order.Status,
		order.Priority,
		order.Deadline,
		order.CreatedBy,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	return mapError(err)
}

// Update never touches ticket_id; the ticket reference is fixed at creation.
func (r *workOrderRepository) Update(ctx context.Context, order *domain.WorkOrder) error {
	const query = `
        UPDATE work_orders SET status=$1, deadline=$2, completed_at=$3, cancelled_at=$4, cancel_reason=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		order.Status,
		order.Deadline,
		order.CompletedAt,
		order.CancelledAt,
		order.CancelReason,
		order.ID,
	).Scan(&order.UpdatedAt)
	return mapError(err)
}

func (r *workOrderRepository) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders w WHERE w.id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *workOrderRepository) LockByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders w WHERE w.id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *workOrderRepository) TryClaim(ctx context.Context, id string, expected, next domain.WorkOrderStatus) (bool, error) {
	const query = `UPDATE work_orders SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`
	cmd, err := r.db.Exec(ctx, query, id, expected, next)
	if err != nil {
		return false, mapError(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *workOrderRepository) FindActiveByTicket(ctx context.Context, ticketID string) (*domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders w
        WHERE w.ticket_id=$1 AND w.status IN ('AVAILABLE','IN_PROGRESS')
        ORDER BY w.created_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, ticketID)
}

func (r *workOrderRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.WorkOrder, error) {
	order, err := scanWorkOrder(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return order, nil
}

func (r *workOrderRepository) ListWithFilter(ctx context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("w.ticket_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM work_order_technicians t WHERE t.work_order_id=w.id AND t.technician_id=$%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, stringSlice(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("w.status = ANY($%d)", len(args)))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM work_orders w WHERE %s ORDER BY w.deadline ASC LIMIT $%d OFFSET $%d`,
		workOrderColumns, strings.Join(clauses, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.WorkOrder
	for rows.Next() {
		order, err := scanWorkOrder(rows)
		if err != nil {
			return nil, mapError(err)
		}
		result = append(result, *order)
	}
	return result, mapError(rows.Err())
}

func scanWorkOrder(row pgx.Row) (*domain.WorkOrder, error) {
	var order domain.WorkOrder
	if err := row.Scan(
		&order.ID,
		&order.TicketID,
		&order.Status,
		&order.Priority,
		&order.Deadline,
		&order.CreatedBy,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.CompletedAt,
		&order.CancelledAt,
		&order.CancelReason,
	); err != nil {
		return nil, err
	}
	return &order, nil
}
