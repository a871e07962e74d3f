package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type staffRepository struct {
	db Querier
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(db Querier) StaffRepository {
	return &staffRepository{db: db}
}

func (r *staffRepository) Create(ctx context.Context, staff *domain.StaffMember) error {
	const query = `
        INSERT INTO staff_members (name, email, role, active_flag)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		staff.Name,
		staff.Email,
		staff.Role,
		staff.Active,
	).Scan(&staff.ID, &staff.CreatedAt, &staff.UpdatedAt)
	return mapError(err)
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	const query = `
        SELECT id, name, email, role, active_flag, created_at, updated_at
        FROM staff_members WHERE id=$1`

	staff, err := scanStaff(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return staff, nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	query := `
        SELECT id, name, email, role, active_flag, created_at, updated_at
        FROM staff_members`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, string(*filter.Role))
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.StaffMember
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, mapError(err)
		}
		result = append(result, *staff)
	}
	return result, mapError(rows.Err())
}

func scanStaff(row pgx.Row) (*domain.StaffMember, error) {
	var staff domain.StaffMember
	if err := row.Scan(
		&staff.ID,
		&staff.Name,
		&staff.Email,
		&staff.Role,
		&staff.Active,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}
