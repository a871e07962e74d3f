package repository

import (
	"context"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type teamRepository struct {
	db Querier
}

// NewTeamRepository constructs repository.
func NewTeamRepository(db Querier) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) Add(ctx context.Context, member *domain.WorkOrderTechnician) error {
	const query = `
        INSERT INTO work_order_technicians (work_order_id, technician_id, role, status, accepted_at, completed_at, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		member.WorkOrderID,
		member.TechnicianID,
		member.Role,
		member.Status,
		member.AcceptedAt,
		member.CompletedAt,
		member.Notes,
	).Scan(&member.CreatedAt)
	return mapError(err)
}

func (r *teamRepository) Update(ctx context.Context, member *domain.WorkOrderTechnician) error {
	const query = `
        UPDATE work_order_technicians SET status=$1, accepted_at=$2, completed_at=$3, notes=$4
        WHERE work_order_id=$5 AND technician_id=$6`
	cmd, err := r.db.Exec(ctx, query,
		member.Status,
		member.AcceptedAt,
		member.CompletedAt,
		member.Notes,
		member.WorkOrderID,
		member.TechnicianID,
	)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *teamRepository) Remove(ctx context.Context, workOrderID, technicianID string) error {
	const query = `DELETE FROM work_order_technicians WHERE work_order_id=$1 AND technician_id=$2`
	cmd, err := r.db.Exec(ctx, query, workOrderID, technicianID)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *teamRepository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]domain.WorkOrderTechnician, error) {
	const query = `
        SELECT work_order_id, technician_id, role, status, accepted_at, completed_at, notes, created_at
        FROM work_order_technicians WHERE work_order_id=$1
        ORDER BY (role = 'PRIMARY') DESC, created_at ASC`
	rows, err := r.db.Query(ctx, query, workOrderID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.WorkOrderTechnician
	for rows.Next() {
		var member domain.WorkOrderTechnician
		if err := rows.Scan(
			&member.WorkOrderID,
			&member.TechnicianID,
			&member.Role,
			&member.Status,
			&member.AcceptedAt,
			&member.CompletedAt,
			&member.Notes,
			&member.CreatedAt,
		); err != nil {
			return nil, mapError(err)
		}
		result = append(result, member)
	}
	return result, mapError(rows.Err())
}
