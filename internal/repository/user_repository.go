package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	CreateWithOrganization(ctx context.Context, org *domain.Organization, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.UserSummary, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type userRepository struct {
	db TxBeginner
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db TxBeginner) UserRepository {
	return &userRepository{db: db}
}

const insertUser = `
        INSERT INTO users (email, password_hash, role, organization_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return createUser(ctx, r.db, user)
}

func createUser(ctx context.Context, db DBTX, user *domain.User) error {
	return db.QueryRow(ctx, insertUser,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.OrgID,
	).Scan(&user.ID, &user.CreatedAt)
}

// CreateWithOrganization inserts the organization and its first user atomically.
func (r *userRepository) CreateWithOrganization(ctx context.Context, org *domain.Organization, user *domain.User) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := createOrganization(ctx, tx, org); err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	orgID := org.ID
	user.OrgID = &orgID
	if err := createUser(ctx, tx, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
        SELECT id, email, password_hash, role, organization_id, created_at
        FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, email, password_hash, role, organization_id, created_at
        FROM users WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.OrgID,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]domain.UserSummary, error) {
	const query = `
        SELECT u.id, u.email, u.role, u.organization_id, o.name, COUNT(t.id), u.created_at
        FROM users u
        LEFT JOIN organizations o ON u.organization_id = o.id
        LEFT JOIN tickets t ON t.user_id = u.id
        GROUP BY u.id, o.name
        ORDER BY u.created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UserSummary
	for rows.Next() {
		var summary domain.UserSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.Email,
			&summary.Role,
			&summary.OrgID,
			&summary.OrganizationName,
			&summary.TicketCount,
			&summary.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const query = `UPDATE users SET password_hash=$1 WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func createOrganization(ctx context.Context, db DBTX, org *domain.Organization) error {
	const query = `
        INSERT INTO organizations (name, contact_email)
        VALUES ($1, $2)
        RETURNING id, created_at`
	return db.QueryRow(ctx, query, org.Name, org.ContactEmail).Scan(&org.ID, &org.CreatedAt)
}
