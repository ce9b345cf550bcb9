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

var detailColumns = []string{
	"id", "title", "description", "status", "priority", "user_id", "organization_id",
	"assigned_admin_id", "created_at", "updated_at", "email", "name", "email",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

func TestTicketCreateReturnsGeneratedFields(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)
	now := time.Now().UTC()

	ticket := &domain.Ticket{
		Title:       "Printer jam",
		Description: "Tray 2",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityHigh,
		OwnerUserID: 1,
		OrgID:       int64Ptr(3),
	}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tickets")).
		WithArgs("Printer jam", "Tray 2", domain.TicketStatusOpen, domain.TicketPriorityHigh, int64(1), ticket.OrgID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	require.NoError(t, repo.Create(context.Background(), ticket))
	assert.Equal(t, int64(7), ticket.ID)
	assert.Equal(t, now, ticket.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketGetDetailJoinsDisplayFields(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN users a ON t.assigned_admin_id = a.id WHERE t.id=$1")).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(detailColumns).AddRow(
			int64(7), "Printer jam", "Tray 2", domain.TicketStatusInProgress, domain.TicketPriorityHigh,
			int64(1), int64Ptr(3), int64Ptr(2), now, now, "owner@acme.io", strPtr("Acme"), strPtr("admin@desk.io"),
		))

	detail, err := repo.GetDetail(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, detail.Status)
	assert.Equal(t, "owner@acme.io", detail.OwnerEmail)
	require.NotNil(t, detail.AssignedAdminEmail)
	assert.Equal(t, "admin@desk.io", *detail.AssignedAdminEmail)
	require.NotNil(t, detail.AssignedAdminID)
	assert.Equal(t, int64(2), *detail.AssignedAdminID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketGetByIDMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets t WHERE t.id=$1")).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketListBuildsOwnerAndStatusFilter(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)
	now := time.Now().UTC()
	owner := int64(1)

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE 1=1 AND t.user_id=$1 AND t.status IN ($2,$3) AND t.priority IN ($4) ORDER BY t.created_at DESC, t.id DESC LIMIT 100 OFFSET 0")).
		WithArgs(owner, domain.TicketStatusOpen, domain.TicketStatusResolved, domain.TicketPriorityLow).
		WillReturnRows(pgxmock.NewRows(detailColumns).
			AddRow(int64(8), "b", "d", domain.TicketStatusOpen, domain.TicketPriorityLow, owner, (*int64)(nil), (*int64)(nil),
				now, now, "owner@acme.io", (*string)(nil), (*string)(nil)).
			AddRow(int64(7), "a", "d", domain.TicketStatusResolved, domain.TicketPriorityLow, owner, (*int64)(nil), int64Ptr(2),
				now, now, "owner@acme.io", (*string)(nil), strPtr("admin@desk.io")))

	tickets, err := repo.List(context.Background(), TicketFilter{
		OwnerUserID: &owner,
		Statuses:    []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusResolved},
		Priorities:  []domain.TicketPriority{domain.TicketPriorityLow},
	})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(8), tickets[0].ID)
	assert.Nil(t, tickets[0].AssignedAdminEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketUpdateStatusSetsAdmin(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status=$1, assigned_admin_id=$2, updated_at=NOW()")).
		WithArgs(domain.TicketStatusResolved, int64(2), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), 7, domain.TicketStatusResolved, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketUpdateStatusMissingRow(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets")).
		WithArgs(domain.TicketStatusResolved, int64(2), int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), 99, domain.TicketStatusResolved, 2)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestTicketUpdateStatusStoreFailure(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)
	boom := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets")).
		WithArgs(domain.TicketStatusOpen, int64(2), int64(7)).
		WillReturnError(boom)

	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), 7, domain.TicketStatusOpen, 2), boom)
}
