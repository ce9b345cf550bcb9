package domain

import "time"

// Organization groups ORG_USER accounts.
type Organization struct {
	ID           int64
	Name         string
	ContactEmail string
	CreatedAt    time.Time
}
