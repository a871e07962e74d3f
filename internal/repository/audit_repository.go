package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type auditRepository struct {
	db Querier
}

// NewAuditRepository builds repository.
func NewAuditRepository(db Querier) AuditRepository {
	return &auditRepository{db: db}
}

func auditTable(scope domain.AuditScope) (table, subjectColumn string, err error) {
	switch scope {
	case domain.AuditScopeTicket:
		return "ticket_audit_log", "ticket_id", nil
	case domain.AuditScopeWorkOrder:
		return "work_order_audit_log", "work_order_id", nil
	}
	return "", "", fmt.Errorf("unknown audit scope %q", scope)
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	table, column, err := auditTable(entry.Scope)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
        INSERT INTO %s (%s, actor_id, action, description)
        VALUES ($1,$2,$3,$4)
        RETURNING id::text, created_at`, table, column)
	err = r.db.QueryRow(ctx, query,
		entry.SubjectID,
		entry.ActorID,
		entry.Action,
		entry.Description,
	).Scan(&entry.ID, &entry.CreatedAt)
	return mapError(err)
}

// ListBySubject returns entries in insertion order. Writers hold the
// subject's row lock, so insertion order matches commit order.
func (r *auditRepository) ListBySubject(ctx context.Context, scope domain.AuditScope, subjectID string) ([]domain.AuditLogEntry, error) {
	table, column, err := auditTable(scope)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
        SELECT id::text, %s, actor_id, action, description, created_at
        FROM %s WHERE %s=$1 ORDER BY id ASC`, column, table, column)
	rows, err := r.db.Query(ctx, query, subjectID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.AuditLogEntry
	for rows.Next() {
		entry := domain.AuditLogEntry{Scope: scope}
		if err := rows.Scan(
			&entry.ID,
			&entry.SubjectID,
			&entry.ActorID,
			&entry.Action,
			&entry.Description,
			&entry.CreatedAt,
		); err != nil {
			return nil, mapError(err)
		}
		result = append(result, entry)
	}
	return result, mapError(rows.Err())
}
