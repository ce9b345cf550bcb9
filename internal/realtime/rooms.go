package realtime

import (
	"strconv"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AdminRoom is joined by every ADMIN connection on connect.
const AdminRoom = "role:" + string(domain.RoleAdmin)

// UserRoom is the personal notification room of a user.
func UserRoom(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// TicketRoom is the conversation room of a ticket.
func TicketRoom(ticketID int64) string {
	return "ticket:" + strconv.FormatInt(ticketID, 10)
}
