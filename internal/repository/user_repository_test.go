package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

func TestCreateWithOrganizationCommits(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO organizations (name, contact_email)")).
		WithArgs("Acme", "it@acme.io").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (email, password_hash, role, organization_id)")).
		WithArgs("owner@acme.io", "hash", domain.RoleOrgUser, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
	mock.ExpectCommit()

	org := &domain.Organization{Name: "Acme", ContactEmail: "it@acme.io"}
	user := &domain.User{Email: "owner@acme.io", PasswordHash: "hash", Role: domain.RoleOrgUser}
	require.NoError(t, repo.CreateWithOrganization(context.Background(), org, user))

	assert.Equal(t, int64(1), user.ID)
	require.NotNil(t, user.OrgID)
	assert.Equal(t, int64(3), *user.OrgID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithOrganizationRollsBack(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO organizations")).
		WithArgs("Acme", "it@acme.io").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("owner@acme.io", "hash", domain.RoleOrgUser, pgxmock.AnyArg()).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	err := repo.CreateWithOrganization(context.Background(),
		&domain.Organization{Name: "Acme", ContactEmail: "it@acme.io"},
		&domain.User{Email: "owner@acme.io", PasswordHash: "hash", Role: domain.RoleOrgUser})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert user")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=$1")).
		WithArgs("admin@desk.io").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "role", "organization_id", "created_at"}).
			AddRow(int64(2), "admin@desk.io", "hash", domain.RoleAdmin, (*int64)(nil), now))

	user, err := repo.GetByEmail(context.Background(), "admin@desk.io")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
	assert.Nil(t, user.OrgID)
	assert.True(t, user.Identity().IsAdmin())
}

func TestUpdatePasswordMissingUser(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=$1 WHERE id=$2")).
		WithArgs("hash", int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, repo.UpdatePassword(context.Background(), 5, "hash"), pgx.ErrNoRows)
}

func TestListUsersWithTicketCounts(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(t.id)")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "role", "organization_id", "name", "count", "created_at"}).
			AddRow(int64(1), "owner@acme.io", domain.RoleOrgUser, int64Ptr(3), strPtr("Acme"), int64(4), now))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(4), users[0].TicketCount)
	assert.Equal(t, "Acme", *users[0].OrganizationName)
}
