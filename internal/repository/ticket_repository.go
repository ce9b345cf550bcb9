package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketFilter captures list parameters. OwnerUserID scopes the list to one
// owner and is always set for ORG_USER callers.
type TicketFilter struct {
	OwnerUserID *int64
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetDetail(ctx context.Context, id int64) (*domain.TicketDetail, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.TicketDetail, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, adminID int64) error
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `t.id, t.title, t.description, t.status, t.priority, t.user_id,
               t.organization_id, t.assigned_admin_id, t.created_at, t.updated_at`

const detailSelect = `SELECT ` + ticketColumns + `, u.email, o.name, a.email
        FROM tickets t
        JOIN users u ON t.user_id = u.id
        LEFT JOIN organizations o ON t.organization_id = o.id
        LEFT JOIN users a ON t.assigned_admin_id = a.id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, priority, user_id, organization_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.OwnerUserID,
		ticket.OrgID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, id).Scan(ticketDest(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) GetDetail(ctx context.Context, id int64) (*domain.TicketDetail, error) {
	var detail domain.TicketDetail
	if err := r.db.QueryRow(ctx, detailSelect+` WHERE t.id=$1`, id).Scan(detailDest(&detail)...); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.TicketDetail, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerUserID != nil {
		args = append(args, *filter.OwnerUserID)
		clauses = append(clauses, fmt.Sprintf("t.user_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at DESC, t.id DESC LIMIT %d OFFSET %d`,
		detailSelect, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketDetail
	for rows.Next() {
		var detail domain.TicketDetail
		if err := rows.Scan(detailDest(&detail)...); err != nil {
			return nil, err
		}
		result = append(result, detail)
	}
	return result, rows.Err()
}

// UpdateStatus sets the status, records the acting admin and refreshes updated_at.
func (r *ticketRepository) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, adminID int64) error {
	const query = `
        UPDATE tickets SET status=$1, assigned_admin_id=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.db.Exec(ctx, query, status, adminID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func ticketDest(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.OwnerUserID,
		&t.OrgID,
		&t.AssignedAdminID,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}

func detailDest(d *domain.TicketDetail) []any {
	return append(ticketDest(&d.Ticket), &d.OwnerEmail, &d.OrganizationName, &d.AssignedAdminEmail)
}
