package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

const ticketColumns = `id, external_key, company_id, title, description, category, address, priority, status,
               assigned_staff_id, created_at, updated_at, assumed_at, dispatched_at, in_progress_at,
               resolved_at, closed_at, reopened_at`

type ticketRepository struct {
	db Querier
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db Querier) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, company_id, title, description, category, address, priority, status, assigned_staff_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.CompanyID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Address,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedStaffID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	return mapError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, category=$3, address=$4, priority=$5, status=$6,
            assigned_staff_id=$7, assumed_at=$8, dispatched_at=$9, in_progress_at=$10, resolved_at=$11,
            closed_at=$12, reopened_at=$13, updated_at=NOW()
        WHERE id=$14
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Address,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedStaffID,
		ticket.AssumedAt,
		ticket.DispatchedAt,
		ticket.InProgressAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ReopenedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return mapError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) LockByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CompanyID != nil {
		args = append(args, *filter.CompanyID)
		clauses = append(clauses, fmt.Sprintf("company_id=$%d", len(args)))
	}
	if filter.AssignedStaffID != nil {
		args = append(args, *filter.AssignedStaffID)
		clauses = append(clauses, fmt.Sprintf("assigned_staff_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, stringSlice(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Priorities) > 0 {
		args = append(args, stringSlice(filter.Priorities))
		clauses = append(clauses, fmt.Sprintf("priority = ANY($%d)", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		ticketColumns, strings.Join(clauses, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, mapError(err)
		}
		result = append(result, *ticket)
	}
	return result, mapError(rows.Err())
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.CompanyID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Address,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedStaffID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AssumedAt,
		&ticket.DispatchedAt,
		&ticket.InProgressAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.ReopenedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
