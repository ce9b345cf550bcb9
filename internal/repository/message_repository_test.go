package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

var messageColumns = []string{"id", "content", "ticket_id", "sender_id", "created_at", "email", "role"}

func TestMessageCreateAndView(t *testing.T) {
	mock := newMock(t)
	repo := NewMessageRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages (content, ticket_id, sender_id)")).
		WithArgs("hello", int64(7), int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))
	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON m.sender_id = u.id WHERE m.id=$1")).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows(messageColumns).AddRow(int64(11), "hello", int64(7), int64(1), now, "owner@acme.io", domain.RoleOrgUser))

	msg := &domain.Message{Content: "hello", TicketID: 7, SenderID: 1}
	require.NoError(t, repo.Create(context.Background(), msg))
	assert.Equal(t, int64(11), msg.ID)

	view, err := repo.GetView(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.io", view.SenderEmail)
	assert.Equal(t, domain.RoleOrgUser, view.SenderRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageListOrdersByCreationThenID(t *testing.T) {
	mock := newMock(t)
	repo := NewMessageRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE m.ticket_id=$1 ORDER BY m.created_at ASC, m.id ASC")).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(messageColumns).
			AddRow(int64(11), "first", int64(7), int64(1), now, "owner@acme.io", domain.RoleOrgUser).
			AddRow(int64(12), "second", int64(7), int64(2), now, "admin@desk.io", domain.RoleAdmin))

	msgs, err := repo.ListByTicket(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, domain.RoleAdmin, msgs[1].SenderRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}
