package app

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
)

func TestLoginAndRegister(t *testing.T) {
	h := newHarness(t)

	status, raw := h.do(http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "owner@acme.io", Password: "secret1"})
	require.Equal(t, http.StatusOK, status, string(raw))
	login := decode[dto.AuthResponse](t, raw)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, h.owner.ID, login.User.ID)

	status, raw = h.do(http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "owner@acme.io", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errorResponse{Error: "Invalid credentials", Code: "UNAUTHORIZED"}, decode[errorResponse](t, raw))

	status, raw = h.do(http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Email: "new@globex.io", Password: "secret1", OrganizationName: "globex", ContactEmail: "it@globex.io",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	registered := decode[dto.AuthResponse](t, raw)
	assert.Equal(t, domain.RoleOrgUser, registered.User.Role)
	assert.NotNil(t, registered.User.OrgID)

	status, raw = h.do(http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Email: "new@globex.io", Password: "secret1", OrganizationName: "globex", ContactEmail: "it@globex.io",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User already exists", decode[errorResponse](t, raw).Error)
}

func TestAdminRegistrationKey(t *testing.T) {
	h := newHarness(t)

	status, raw := h.do(http.MethodPost, "/api/auth/admin/register", "", dto.AdminRegisterRequest{Email: "boss@desk.io", Password: "secret1", AdminKey: "nope"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", decode[errorResponse](t, raw).Code)

	status, raw = h.do(http.MethodPost, "/api/auth/admin/register", "", dto.AdminRegisterRequest{Email: "boss@desk.io", Password: "secret1", AdminKey: "admin-key"})
	require.Equal(t, http.StatusCreated, status, string(raw))
	assert.Equal(t, domain.RoleAdmin, decode[dto.AuthResponse](t, raw).User.Role)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h := newHarness(t)

	status, raw := h.do(http.MethodGet, "/api/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errorResponse{Error: "Access token required", Code: "UNAUTHORIZED"}, decode[errorResponse](t, raw))

	status, raw = h.do(http.MethodGet, "/api/tickets", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", decode[errorResponse](t, raw).Error)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	ownerToken, adminToken, otherToken := h.token(h.owner), h.token(h.admin), h.token(h.other)

	status, raw := h.do(http.MethodPost, "/api/tickets", ownerToken, dto.CreateTicketRequest{Title: "VPN down", Description: "since 9am"})
	require.Equal(t, http.StatusCreated, status, string(raw))
	created := decode[dto.TicketResponse](t, raw)
	assert.Equal(t, domain.TicketStatusOpen, created.Status)
	assert.Equal(t, domain.TicketPriorityMedium, created.Priority)
	assert.Equal(t, "owner@acme.io", created.UserEmail)
	path := "/api/tickets/" + strconv.FormatInt(created.ID, 10)

	status, raw = h.do(http.MethodPost, "/api/tickets", ownerToken, dto.CreateTicketRequest{Title: "", Description: "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Title and description are required", decode[errorResponse](t, raw).Error)

	status, _ = h.do(http.MethodGet, path, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = h.do(http.MethodGet, "/api/tickets/999", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = h.do(http.MethodGet, "/api/tickets/abc", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = h.do(http.MethodGet, "/api/tickets", otherToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]dto.TicketResponse](t, raw))
	status, raw = h.do(http.MethodGet, "/api/tickets?status=open", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]dto.TicketResponse](t, raw), 1)
	status, _ = h.do(http.MethodGet, "/api/tickets?status=CLOSED", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = h.do(http.MethodPatch, path+"/status", ownerToken, dto.UpdateTicketStatusRequest{Status: "RESOLVED"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Access denied", decode[errorResponse](t, raw).Error)

	status, raw = h.do(http.MethodPatch, path+"/status", adminToken, dto.UpdateTicketStatusRequest{Status: "BOGUS"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATUS", decode[errorResponse](t, raw).Code)

	status, raw = h.do(http.MethodPatch, path+"/status", adminToken, dto.UpdateTicketStatusRequest{Status: "RESOLVED"})
	require.Equal(t, http.StatusOK, status, string(raw))
	updated := decode[dto.TicketResponse](t, raw)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
	require.NotNil(t, updated.AssignedAdminID)
	assert.Equal(t, h.admin.ID, *updated.AssignedAdminID)

	status, raw = h.do(http.MethodPatch, path+"/status", adminToken, dto.UpdateTicketStatusRequest{Status: "OPEN"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", decode[errorResponse](t, raw).Code)
}

func TestMessagesOverHTTP(t *testing.T) {
	h := newHarness(t)
	ticket := h.store.AddTicket(domain.Ticket{Title: "VPN down", Description: "d", OwnerUserID: h.owner.ID, OrgID: h.owner.OrgID})
	ownerToken, otherToken := h.token(h.owner), h.token(h.other)

	status, raw := h.do(http.MethodPost, "/api/messages", ownerToken, dto.CreateMessageRequest{TicketID: ticket.ID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Content and ticketId are required", decode[errorResponse](t, raw).Error)

	status, _ = h.do(http.MethodPost, "/api/messages", otherToken, dto.CreateMessageRequest{TicketID: ticket.ID, Content: "me too"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.do(http.MethodPost, "/api/messages", ownerToken, dto.CreateMessageRequest{TicketID: 999, Content: "hi"})
	assert.Equal(t, http.StatusNotFound, status)

	for _, content := range []string{"first", "second"} {
		status, raw = h.do(http.MethodPost, "/api/messages", ownerToken, dto.CreateMessageRequest{TicketID: ticket.ID, Content: content})
		require.Equal(t, http.StatusCreated, status, string(raw))
		msg := decode[dto.MessageResponse](t, raw)
		assert.Equal(t, "owner@acme.io", msg.SenderEmail)
	}

	status, raw = h.do(http.MethodGet, "/api/messages/ticket/"+strconv.FormatInt(ticket.ID, 10), ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
	msgs := decode[[]dto.MessageResponse](t, raw)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)

	status, _ = h.do(http.MethodGet, "/api/messages/ticket/"+strconv.FormatInt(ticket.ID, 10), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestUsersEndpoints(t *testing.T) {
	h := newHarness(t)
	ownerToken, adminToken := h.token(h.owner), h.token(h.admin)

	status, _ := h.do(http.MethodGet, "/api/users", ownerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, raw := h.do(http.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]dto.UserSummaryResponse](t, raw), 3)

	status, raw = h.do(http.MethodGet, "/api/users/settings", ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
	settings := decode[dto.SettingsPayload](t, raw)
	assert.True(t, settings.EmailNotifications)
	assert.Equal(t, "UTC", settings.Timezone)

	status, raw = h.do(http.MethodPut, "/api/users/settings", ownerToken, map[string]any{"theme": "dark", "weeklyDigest": true})
	require.Equal(t, http.StatusOK, status, string(raw))
	settings = decode[dto.SettingsPayload](t, raw)
	assert.Equal(t, "dark", settings.Theme)
	assert.True(t, settings.WeeklyDigest)
	assert.True(t, settings.NewMessages)

	status, _ = h.do(http.MethodPut, "/api/users/settings", ownerToken, map[string]any{"timezone": "Mars/Olympus"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, raw = h.do(http.MethodPut, "/api/users/password", ownerToken, dto.ChangePasswordRequest{CurrentPassword: "wrong1", NewPassword: "secret2"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Current password is incorrect", decode[errorResponse](t, raw).Error)

	status, _ = h.do(http.MethodPut, "/api/users/password", ownerToken, dto.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"})
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "owner@acme.io", Password: "secret2"})
	assert.Equal(t, http.StatusOK, status)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	status, raw := h.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"status":"OK"`)

	status, raw = h.do(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"postgres":"disabled"`)

	status, raw = h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(string(raw), "support_desk_http_requests_total"))
}

func TestUnknownRouteIsJSON(t *testing.T) {
	h := newHarness(t)
	status, raw := h.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decode[errorResponse](t, raw).Code)
}

func TestWebsocketEndpointRequiresUpgrade(t *testing.T) {
	h := newHarness(t)
	status, _ := h.do(http.MethodGet, "/ws", "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}
