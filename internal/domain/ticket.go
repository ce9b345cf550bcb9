package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
)

var statusRank = map[TicketStatus]int{
	TicketStatusOpen:       0,
	TicketStatusInProgress: 1,
	TicketStatusResolved:   2,
}

// Valid reports whether the status is one of the known values.
func (s TicketStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsBackward reports whether moving from s to next goes back in the lifecycle.
func (s TicketStatus) IsBackward(next TicketStatus) bool {
	return statusRank[next] < statusRank[s]
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// Valid reports whether the priority is one of the known values.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              int64
	Title           string
	Description     string
	Status          TicketStatus
	Priority        TicketPriority
	OwnerUserID     int64
	OrgID           *int64
	AssignedAdminID *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TicketDetail is a ticket joined with owner, organization and admin display fields.
type TicketDetail struct {
	Ticket
	OwnerEmail         string
	OrganizationName   *string
	AssignedAdminEmail *string
}
