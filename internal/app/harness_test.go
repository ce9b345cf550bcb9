package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/testutil"
)

type harness struct {
	t     *testing.T
	store *testutil.Store
	app   *App
	owner domain.User
	other domain.User
	admin domain.User
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Name: "support-desk", Version: "test", ClientURL: "*"},
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: bcrypt.MinCost, AdminRegistrationKey: "admin-key"},
		Realtime: config.RealtimeConfig{
			Backplane:       config.BackplaneLocal,
			RedisChannel:    "support-desk:test",
			SendBufferSize:  64,
			MaxMessageBytes: 64 * 1024,
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, testConfig(), Options{})
}

func newHarnessWith(t *testing.T, cfg *config.Config, opts Options) *harness {
	t.Helper()
	store := testutil.NewStore()
	org := store.AddOrganization("acme")
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	owner := store.AddUser(domain.User{ID: 1, Email: "owner@acme.io", PasswordHash: string(hash), Role: domain.RoleOrgUser, OrgID: &org.ID})
	admin := store.AddUser(domain.User{ID: 2, Email: "admin@desk.io", PasswordHash: string(hash), Role: domain.RoleAdmin})
	other := store.AddUser(domain.User{ID: 3, Email: "other@acme.io", PasswordHash: string(hash), Role: domain.RoleOrgUser, OrgID: &org.ID})

	opts.Config = cfg
	opts.Logger = zap.NewNop()
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}
	opts.Repos = Repositories{
		Users:    store.Users(),
		Tickets:  store.Tickets(),
		Messages: store.Messages(),
		Settings: store.Settings(),
	}
	a, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(time.Second) })

	return &harness{t: t, store: store, app: a, owner: owner, other: other, admin: admin}
}

func (h *harness) token(u domain.User) string {
	h.t.Helper()
	token, _, err := h.app.Auth.TokenManager().GenerateToken(u.Identity())
	require.NoError(h.t, err)
	return token
}

func (h *harness) do(method, path, token string, body any) (int, []byte) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Fiber.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

