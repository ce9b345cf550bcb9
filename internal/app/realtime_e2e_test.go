package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/wire"
)

func (h *harness) listen() string {
	h.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(h.t, err)
	go func() { _ = h.app.Fiber.Listener(ln) }()
	return ln.Addr().String()
}

func dial(t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws?token="+token, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	frame, err := wire.Encode(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// expect reads frames until one named event arrives and decodes its data.
func expect[T any](t *testing.T, conn *websocket.Conn, event string) T {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		env, err := wire.Decode(frame)
		require.NoError(t, err)
		if env.Event != event {
			continue
		}
		var out T
		require.NoError(t, json.Unmarshal(env.Data, &out))
		return out
	}
}

func TestStatusChangeReachesOwnerEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.store.AddTicket(domain.Ticket{ID: 6, Title: "older", Description: "d", OwnerUserID: h.owner.ID})
	addr := h.listen()

	userConn := dial(t, addr, h.token(h.owner))
	connected := expect[wire.Connected](t, userConn, wire.EventConnected)
	assert.Equal(t, []string{"user:1"}, connected.Rooms)

	adminConn := dial(t, addr, h.token(h.admin))
	adminConnected := expect[wire.Connected](t, adminConn, wire.EventConnected)
	assert.ElementsMatch(t, []string{"user:2", "role:ADMIN"}, adminConnected.Rooms)

	status, raw := h.do(http.MethodPost, "/api/tickets", h.token(h.owner), dto.CreateTicketRequest{Title: "VPN down", Description: "since 9am"})
	require.Equal(t, http.StatusCreated, status, string(raw))
	created := decode[dto.TicketResponse](t, raw)
	require.Equal(t, int64(7), created.ID)
	assert.Equal(t, domain.TicketStatusOpen, created.Status)

	assert.Equal(t, int64(7), expect[dto.TicketResponse](t, adminConn, wire.EventTicketCreated).ID)

	send(t, adminConn, wire.EventJoinTicket, 7)
	assert.Equal(t, int64(7), expect[wire.TicketRef](t, adminConn, wire.EventTicketJoined).TicketID)

	send(t, adminConn, wire.EventUpdateTicketStatus, wire.UpdateTicketStatus{TicketID: 7, Status: "IN_PROGRESS"})

	updated := expect[dto.TicketResponse](t, adminConn, wire.EventTicketStatusUpdated)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	note := expect[wire.StatusNotification](t, userConn, wire.EventTicketStatusNotification)
	assert.Equal(t, int64(7), note.TicketID)
	assert.Equal(t, domain.TicketStatusInProgress, note.NewStatus)
	assert.Equal(t, "admin@desk.io", note.UpdatedBy)

	stored, ok := h.store.Ticket(7)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)
	require.NotNil(t, stored.AssignedAdminID)
	assert.Equal(t, int64(2), *stored.AssignedAdminID)
}

func TestDeniedStatusChangeEndToEnd(t *testing.T) {
	h := newHarness(t)
	ticket := h.store.AddTicket(domain.Ticket{Title: "VPN down", Description: "d", OwnerUserID: h.owner.ID})
	addr := h.listen()

	conn := dial(t, addr, h.token(h.owner))
	expect[wire.Connected](t, conn, wire.EventConnected)

	send(t, conn, wire.EventUpdateTicketStatus, wire.UpdateTicketStatus{TicketID: ticket.ID, Status: "RESOLVED"})
	errFrame := expect[wire.Error](t, conn, wire.EventError)
	assert.Equal(t, "FORBIDDEN", errFrame.Code)

	stored, _ := h.store.Ticket(ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)

	// The connection stays usable after a denial.
	send(t, conn, wire.EventJoinTicket, ticket.ID)
	expect[wire.TicketRef](t, conn, wire.EventTicketJoined)
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	h := newHarness(t)
	addr := h.listen()

	conn := dial(t, addr, "not-a-token")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.True(t, strings.HasPrefix(closeErr.Text, "authentication error"))
	assert.Equal(t, 0, h.app.Router.Connections())
}

func TestDisconnectLeavesRooms(t *testing.T) {
	h := newHarness(t)
	ticket := h.store.AddTicket(domain.Ticket{Title: "VPN down", Description: "d", OwnerUserID: h.owner.ID})
	addr := h.listen()

	conn := dial(t, addr, h.token(h.owner))
	expect[wire.Connected](t, conn, wire.EventConnected)
	send(t, conn, wire.EventJoinTicket, ticket.ID)
	expect[wire.TicketRef](t, conn, wire.EventTicketJoined)
	require.Equal(t, 1, h.app.Router.Connections())

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return h.app.Router.Connections() == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, h.app.Router.Members(realtime.TicketRoom(ticket.ID)))
}

func TestMessagesThroughRedisBackplane(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	cfg.Realtime.Backplane = config.BackplaneRedis
	h := newHarnessWith(t, cfg, Options{Redis: client})
	ticket := h.store.AddTicket(domain.Ticket{Title: "VPN down", Description: "d", OwnerUserID: h.owner.ID})
	addr := h.listen()

	adminConn := dial(t, addr, h.token(h.admin))
	expect[wire.Connected](t, adminConn, wire.EventConnected)
	send(t, adminConn, wire.EventJoinTicket, ticket.ID)
	expect[wire.TicketRef](t, adminConn, wire.EventTicketJoined)

	_, err := h.app.Tickets.PostMessage(context.Background(), h.owner.Identity(), ticket.ID, "hello")
	require.NoError(t, err)

	msg := expect[dto.MessageResponse](t, adminConn, wire.EventNewMessage)
	assert.Equal(t, "hello", msg.Content)
	note := expect[wire.TicketMessageNotification](t, adminConn, wire.EventNewTicketMessage)
	assert.Equal(t, msg.ID, note.Message.ID)
}

func TestRedisBackplaneRequiresClient(t *testing.T) {
	cfg := testConfig()
	cfg.Realtime.Backplane = config.BackplaneRedis
	_, err := New(context.Background(), Options{Config: cfg})
	assert.Error(t, err)
}
