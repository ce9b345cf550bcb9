package domain

import "time"

// User is an account that can authenticate against the service.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         Role
	OrgID        *int64
	CreatedAt    time.Time
}

// Identity projects the stored account into a verified identity.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role, OrgID: u.OrgID}
}

// UserSummary is the admin listing view of a user.
type UserSummary struct {
	ID               int64
	Email            string
	Role             Role
	OrgID            *int64
	OrganizationName *string
	TicketCount      int64
	CreatedAt        time.Time
}
