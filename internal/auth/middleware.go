package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// AuthMiddleware validates bearer tokens and loads identities.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	identity, err := m.Authenticate(c, BearerToken(c.Get(fiber.HeaderAuthorization)))
	if err != nil {
		return err
	}
	c.Locals(identityKey, identity)
	return c.Next()
}

// Authenticate verifies the token and confirms the account still exists.
func (m *AuthMiddleware) Authenticate(c *fiber.Ctx, token string) (domain.Identity, error) {
	identity, err := m.tokens.Verify(token)
	switch {
	case errors.Is(err, ErrMissingToken):
		return domain.Identity{}, apperrors.NewUnauthorized("Access token required")
	case err != nil:
		return domain.Identity{}, apperrors.NewUnauthorized("Invalid or expired token")
	}

	user, err := m.users.GetByID(c.UserContext(), identity.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Identity{}, apperrors.NewUnauthorized("user not found")
		}
		return domain.Identity{}, apperrors.MapError(err)
	}
	return user.Identity(), nil
}

// IdentityFromContext retrieves the authenticated identity.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok
}

// WithIdentity stores an identity on the request context.
func WithIdentity(c *fiber.Ctx, identity domain.Identity) {
	c.Locals(identityKey, identity)
}
