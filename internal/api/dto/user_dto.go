package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest payload for organization sign-up.
type RegisterRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organizationName"`
	ContactEmail     string `json:"contactEmail"`
}

// AdminRegisterRequest payload for admin sign-up.
type AdminRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	AdminKey string `json:"adminKey"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UserResponse is an account without its password hash.
type UserResponse struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	OrgID     *int64      `json:"orgId,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// UserSummaryResponse is the admin listing row.
type UserSummaryResponse struct {
	UserResponse
	OrganizationName *string `json:"organizationName,omitempty"`
	TicketCount      int64   `json:"ticketCount"`
}

// SettingsPayload is used for both reading and writing settings.
type SettingsPayload struct {
	EmailNotifications bool   `json:"emailNotifications"`
	PushNotifications  bool   `json:"pushNotifications"`
	WeeklyDigest       bool   `json:"weeklyDigest"`
	TicketUpdates      bool   `json:"ticketUpdates"`
	NewMessages        bool   `json:"newMessages"`
	Theme              string `json:"theme"`
	Language           string `json:"language"`
	Timezone           string `json:"timezone"`
}

// NewUserResponse maps an account.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Role: u.Role, OrgID: u.OrgID, CreatedAt: u.CreatedAt}
}

// NewUserSummaryResponses maps the admin listing.
func NewUserSummaryResponses(list []domain.UserSummary) []UserSummaryResponse {
	out := make([]UserSummaryResponse, 0, len(list))
	for _, s := range list {
		out = append(out, UserSummaryResponse{
			UserResponse:     UserResponse{ID: s.ID, Email: s.Email, Role: s.Role, OrgID: s.OrgID, CreatedAt: s.CreatedAt},
			OrganizationName: s.OrganizationName,
			TicketCount:      s.TicketCount,
		})
	}
	return out
}

// NewSettingsPayload maps stored settings.
func NewSettingsPayload(s domain.UserSettings) SettingsPayload {
	return SettingsPayload{
		EmailNotifications: s.EmailNotifications,
		PushNotifications:  s.PushNotifications,
		WeeklyDigest:       s.WeeklyDigest,
		TicketUpdates:      s.TicketUpdates,
		NewMessages:        s.NewMessages,
		Theme:              s.Theme,
		Language:           s.Language,
		Timezone:           s.Timezone,
	}
}

// ToDomain converts the payload for the given user.
func (p SettingsPayload) ToDomain(userID int64) domain.UserSettings {
	return domain.UserSettings{
		UserID:             userID,
		EmailNotifications: p.EmailNotifications,
		PushNotifications:  p.PushNotifications,
		WeeklyDigest:       p.WeeklyDigest,
		TicketUpdates:      p.TicketUpdates,
		NewMessages:        p.NewMessages,
		Theme:              p.Theme,
		Language:           p.Language,
		Timezone:           p.Timezone,
	}
}
