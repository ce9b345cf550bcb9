package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketMessageAdded  EventType = "ticket_message_added"
)

// Event represents a domain event published after a write was confirmed.
type Event struct {
	ID        string
	Type      EventType
	TicketID  int64
	Actor     domain.Identity
	Timestamp time.Time
	Payload   interface{}
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType EventType, ticketID int64, actor domain.Identity, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload carries the enriched ticket.
type TicketCreatedPayload struct {
	Ticket domain.TicketDetail
}

// TicketStatusChangedPayload carries the enriched ticket after the transition.
type TicketStatusChangedPayload struct {
	Ticket    domain.TicketDetail
	OldStatus domain.TicketStatus
	NewStatus domain.TicketStatus
}

// TicketMessageAddedPayload carries the enriched message and its ticket.
type TicketMessageAddedPayload struct {
	Message     domain.MessageView
	TicketTitle string
	OwnerUserID int64
}
