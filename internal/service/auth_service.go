package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AuthService coordinates registration, login and account settings.
type AuthService struct {
	users      repository.UserRepository
	settings   repository.SettingsRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	adminKey   string
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	SettingsRepo repository.SettingsRepository
	TokenManager *auth.TokenManager
	Logger       *zap.Logger
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// RegisterInput describes an organization sign-up.
type RegisterInput struct {
	Email            string
	Password         string
	OrganizationName string
	ContactEmail     string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	tokens := deps.TokenManager
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL())
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		settings:   deps.SettingsRepo,
		tokenMgr:   tokens,
		bcryptCost: cfg.BcryptCost,
		adminKey:   cfg.AdminRegistrationKey,
		logger:     logger,
	}
}

// Login authenticates an account by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("Email and password are required", nil)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("Invalid credentials")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperrors.NewUnauthorized("Invalid credentials")
		}
		s.logger.Error("unusable password hash", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return s.issue(user)
}

// RegisterOrgUser creates an organization together with its first ORG_USER.
func (s *AuthService) RegisterOrgUser(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	orgName := strings.TrimSpace(input.OrganizationName)
	contact := normalizeEmail(input.ContactEmail)
	if email == "" || input.Password == "" || orgName == "" || contact == "" {
		return nil, apperrors.NewValidationError("All fields are required", nil)
	}
	if err := validateCredentials(email, input.Password); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	org := &domain.Organization{Name: orgName, ContactEmail: contact}
	user := &domain.User{Email: email, PasswordHash: hash, Role: domain.RoleOrgUser}
	if err := s.users.CreateWithOrganization(ctx, org, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("organization registered", zap.Int64("org_id", org.ID), zap.Int64("user_id", user.ID))
	return s.issue(user)
}

// RegisterAdmin creates an ADMIN account when the registration key matches.
func (s *AuthService) RegisterAdmin(ctx context.Context, email, password, adminKey string) (*AuthResult, error) {
	if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(adminKey), []byte(s.adminKey)) != 1 {
		return nil, apperrors.NewForbidden("Invalid admin registration key")
	}
	user, err := s.CreateAdmin(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateAdmin seeds an ADMIN account without a registration key.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("Email and password are required", nil)
	}
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{Email: email, PasswordHash: hash, Role: domain.RoleAdmin}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("admin created", zap.Int64("user_id", user.ID))
	return user, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, identity domain.Identity, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return apperrors.NewValidationError("Current password and new password are required", nil)
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return passwordRuleError(err)
	}
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("User", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if err := auth.CheckPassword(user.PasswordHash, currentPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperrors.NewValidationError("Current password is incorrect", nil)
		}
		return apperrors.NewInternalError(err)
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return apperrors.MapError(s.users.UpdatePassword(ctx, user.ID, hash))
}

// ListUsers returns every account with organization name and ticket count.
func (s *AuthService) ListUsers(ctx context.Context, identity domain.Identity) ([]domain.UserSummary, error) {
	if !identity.IsAdmin() {
		return nil, apperrors.NewAccessDenied()
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if users == nil {
		users = []domain.UserSummary{}
	}
	return users, nil
}

// GetSettings returns the caller's settings.
func (s *AuthService) GetSettings(ctx context.Context, identity domain.Identity) (domain.UserSettings, error) {
	settings, err := s.settings.Get(ctx, identity.UserID)
	if err != nil {
		return domain.UserSettings{}, apperrors.NewInternalError(err)
	}
	return settings, nil
}

// UpdateSettings stores the caller's settings.
func (s *AuthService) UpdateSettings(ctx context.Context, identity domain.Identity, settings domain.UserSettings) (domain.UserSettings, error) {
	settings.UserID = identity.UserID
	if strings.TrimSpace(settings.Theme) == "" {
		settings.Theme = "system"
	}
	if strings.TrimSpace(settings.Language) == "" {
		settings.Language = "en"
	}
	if strings.TrimSpace(settings.Timezone) == "" {
		settings.Timezone = "UTC"
	} else if _, err := time.LoadLocation(settings.Timezone); err != nil {
		return domain.UserSettings{}, apperrors.NewValidationError("Invalid timezone", map[string]any{"timezone": settings.Timezone})
	}
	if err := s.settings.Upsert(ctx, settings); err != nil {
		return domain.UserSettings{}, apperrors.NewInternalError(err)
	}
	return settings, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.Identity())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return apperrors.NewValidationError("User already exists", nil)
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	default:
		return apperrors.NewInternalError(err)
	}
}

func validateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.NewValidationError("Invalid email address", nil)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return passwordRuleError(err)
	}
	return nil
}

func passwordRuleError(err error) error {
	msg := err.Error()
	return apperrors.NewValidationError(strings.ToUpper(msg[:1])+msg[1:], nil)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
