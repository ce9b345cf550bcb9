package repository

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// MessageRepository manages the append-only ticket conversation.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetView(ctx context.Context, id int64) (*domain.MessageView, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.MessageView, error)
}

type messageRepository struct {
	db DBTX
}

// NewMessageRepository builds repository.
func NewMessageRepository(db DBTX) MessageRepository {
	return &messageRepository{db: db}
}

const messageViewSelect = `
        SELECT m.id, m.content, m.ticket_id, m.sender_id, m.created_at, u.email, u.role
        FROM messages m
        JOIN users u ON m.sender_id = u.id`

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (content, ticket_id, sender_id)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, msg.Content, msg.TicketID, msg.SenderID).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *messageRepository) GetView(ctx context.Context, id int64) (*domain.MessageView, error) {
	var view domain.MessageView
	if err := r.db.QueryRow(ctx, messageViewSelect+` WHERE m.id=$1`, id).Scan(messageDest(&view)...); err != nil {
		return nil, err
	}
	return &view, nil
}

// ListByTicket returns the conversation ordered by creation time, ties broken by id.
func (r *messageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.MessageView, error) {
	rows, err := r.db.Query(ctx, messageViewSelect+` WHERE m.ticket_id=$1 ORDER BY m.created_at ASC, m.id ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MessageView
	for rows.Next() {
		var view domain.MessageView
		if err := rows.Scan(messageDest(&view)...); err != nil {
			return nil, err
		}
		result = append(result, view)
	}
	return result, rows.Err()
}

func messageDest(v *domain.MessageView) []any {
	return []any{&v.ID, &v.Content, &v.TicketID, &v.SenderID, &v.CreatedAt, &v.SenderEmail, &v.SenderRole}
}
