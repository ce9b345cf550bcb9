package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// UsersHandler exposes account endpoints for authenticated callers.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// List handles GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	users, err := h.auth.ListUsers(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserSummaryResponses(users))
}

// GetSettings handles GET /api/users/settings.
func (h *UsersHandler) GetSettings(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	settings, err := h.auth.GetSettings(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSettingsPayload(settings))
}

// UpdateSettings handles PUT /api/users/settings. Fields missing from the
// body keep their current value.
func (h *UsersHandler) UpdateSettings(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	current, err := h.auth.GetSettings(c.UserContext(), identity)
	if err != nil {
		return err
	}
	payload := dto.NewSettingsPayload(current)
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationError("Invalid payload", nil)
	}
	updated, err := h.auth.UpdateSettings(c.UserContext(), identity, payload.ToDomain(identity.UserID))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSettingsPayload(updated))
}

// ChangePassword handles PUT /api/users/password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload", nil)
	}
	if err := h.auth.ChangePassword(c.UserContext(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Password updated successfully"})
}
