package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	var seen []string
	d.Subscribe(EventTicketMessageAdded, func(_ context.Context, e Event) error {
		seen = append(seen, "first:"+e.Payload.(string))
		return errors.New("ignored")
	})
	d.Subscribe(EventTicketMessageAdded, func(_ context.Context, e Event) error {
		seen = append(seen, "second:"+e.Payload.(string))
		return nil
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		t.Fatal("unexpected handler")
		return nil
	})

	actor := domain.Identity{UserID: 1, Role: domain.RoleOrgUser}
	require.NoError(t, d.Publish(context.Background(), NewEvent(EventTicketMessageAdded, 7, actor, "m1")))
	require.NoError(t, d.Publish(context.Background(), NewEvent(EventTicketMessageAdded, 7, actor, "m2")))

	assert.Equal(t, []string{"first:m1", "second:m1", "first:m2", "second:m2"}, seen)
}

func TestNewEventStampsIdentity(t *testing.T) {
	e := NewEvent(EventTicketCreated, 3, domain.Identity{UserID: 9}, nil)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, int64(3), e.TicketID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestDispatcherSurvivesPanickingHandler(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	delivered := 0
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		panic("boom")
	})
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		delivered++
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventTicketStatusChanged, 1, domain.Identity{UserID: 2}, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}
