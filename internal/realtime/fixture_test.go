package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/testutil"
	"github.com/spec-kit/support-desk/internal/wire"
)

type fixture struct {
	store   *testutil.Store
	router  *Router
	server  *Server
	tickets *service.TicketService
	owner   domain.Identity
	other   domain.Identity
	admin   domain.Identity
	ticket  domain.Ticket
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	org := store.AddOrganization("acme")
	owner := store.AddUser(domain.User{Email: "owner@acme.io", Role: domain.RoleOrgUser, OrgID: &org.ID})
	other := store.AddUser(domain.User{Email: "other@acme.io", Role: domain.RoleOrgUser, OrgID: &org.ID})
	admin := store.AddUser(domain.User{Email: "admin@desk.io", Role: domain.RoleAdmin})
	ticket := store.AddTicket(domain.Ticket{Title: "VPN down", Description: "since 9am", OwnerUserID: owner.ID, OrgID: &org.ID})

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store.Tickets(),
		MessageRepo: store.Messages(),
		Dispatcher:  dispatcher,
	})
	router := NewRouter(zap.NewNop(), nil)
	NewBroadcaster(router, zap.NewNop(), nil).Register(dispatcher)
	server := NewServer(router, tickets, nil, config.RealtimeConfig{SendBufferSize: 64}, zap.NewNop(), nil)

	return &fixture{
		store:   store,
		router:  router,
		server:  server,
		tickets: tickets,
		owner:   owner.Identity(),
		other:   other.Identity(),
		admin:   admin.Identity(),
		ticket:  ticket,
	}
}

func (f *fixture) connect(identity domain.Identity) *Client {
	c := NewClient(identity, 64, 0, 0)
	f.router.Register(c)
	return c
}

func (f *fixture) send(t *testing.T, c *Client, event string, payload any) {
	t.Helper()
	frame, err := wire.Encode(event, payload)
	require.NoError(t, err)
	f.server.HandleFrame(c, frame)
}

// drain returns every frame currently queued on c.
func drain(t *testing.T, c *Client) []wire.Envelope {
	t.Helper()
	var out []wire.Envelope
	for {
		select {
		case frame := <-c.Frames():
			env, err := wire.Decode(frame)
			require.NoError(t, err)
			out = append(out, env)
		default:
			return out
		}
	}
}

func eventNames(envs []wire.Envelope) []string {
	names := make([]string, 0, len(envs))
	for _, e := range envs {
		names = append(names, e.Event)
	}
	return names
}

func decodeData[T any](t *testing.T, env wire.Envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}
