package auth

import "github.com/spec-kit/support-desk/internal/domain"

// CanViewTicket reports whether the identity may read the ticket and join its room.
func CanViewTicket(identity domain.Identity, ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	return identity.IsAdmin() || ticket.OwnerUserID == identity.UserID
}

// CanPostMessage follows the same rule as CanViewTicket.
func CanPostMessage(identity domain.Identity, ticket *domain.Ticket) bool {
	return CanViewTicket(identity, ticket)
}

// CanMutateStatus reports whether the identity may change ticket status.
func CanMutateStatus(identity domain.Identity) bool {
	return identity.IsAdmin()
}
