package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

func TestVerifyRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	orgID := int64(4)
	token, exp, err := tm.GenerateToken(domain.Identity{UserID: 1, Email: "user@acme.io", Role: domain.RoleOrgUser, OrgID: &orgID})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	identity, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), identity.UserID)
	assert.Equal(t, "user@acme.io", identity.Email)
	assert.Equal(t, domain.RoleOrgUser, identity.Role)
	require.NotNil(t, identity.OrgID)
	assert.Equal(t, orgID, *identity.OrgID)
}

func TestVerifyMissingToken(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	_, err := tm.Verify("   ")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer := NewTokenManager("other-secret", time.Hour)
	token, _, err := issuer.GenerateToken(domain.Identity{UserID: 1, Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := tm.GenerateToken(domain.Identity{UserID: 1, Role: domain.RoleAdmin})
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewTokenManager("secret", time.Hour).Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, _, err := tm.GenerateToken(domain.Identity{UserID: 1, Role: domain.Role("ROOT")})
	require.NoError(t, err)
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("abc"))
	assert.Equal(t, "", BearerToken(""))
}
