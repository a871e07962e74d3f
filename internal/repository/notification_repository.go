package repository

import (
	"context"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type notificationRepository struct {
	db Querier
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(db Querier) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_type, recipient_id, ticket_id, type, message)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, read_flag, created_at`
	err := r.db.QueryRow(ctx, query,
		n.Recipient.Type,
		n.Recipient.ID,
		n.TicketID,
		n.Type,
		n.Message,
	).Scan(&n.ID, &n.Read, &n.CreatedAt)
	return mapError(err)
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipient domain.Recipient, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	const query = `
        SELECT id, recipient_type, recipient_id, ticket_id, type, message, read_flag, created_at
        FROM notifications
        WHERE recipient_type=$1 AND recipient_id=$2 AND ($3 = FALSE OR read_flag = FALSE)
        ORDER BY created_at DESC LIMIT $4 OFFSET $5`
	limit, offset = normalizePage(limit, offset)
	rows, err := r.db.Query(ctx, query, recipient.Type, recipient.ID, unreadOnly, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.Recipient.Type,
			&n.Recipient.ID,
			&n.TicketID,
			&n.Type,
			&n.Message,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, mapError(err)
		}
		result = append(result, n)
	}
	return result, mapError(rows.Err())
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string, recipient domain.Recipient) error {
	const query = `
        UPDATE notifications SET read_flag=TRUE
        WHERE id=$1 AND recipient_type=$2 AND recipient_id=$3`
	cmd, err := r.db.Exec(ctx, query, id, recipient.Type, recipient.ID)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
