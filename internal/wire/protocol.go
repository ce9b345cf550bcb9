// Package wire defines the realtime frame format shared by the server and
// Go clients. Every frame is a JSON envelope {"event": name, "data": payload}.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
)

// Client to server events.
const (
	EventJoinTicket         = "join-ticket"
	EventLeaveTicket        = "leave-ticket"
	EventSendMessage        = "send-message"
	EventUpdateTicketStatus = "update-ticket-status"
)

// Server to client events.
const (
	EventConnected                = "connected"
	EventTicketJoined             = "ticket-joined"
	EventTicketLeft               = "ticket-left"
	EventNewMessage               = "new-message"
	EventNewTicketMessage         = "new-ticket-message"
	EventTicketStatusUpdated      = "ticket-status-updated"
	EventTicketStatusNotification = "ticket-status-notification"
	EventTicketCreated            = "ticket-created"
	EventError                    = "error"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an event and its payload into a frame.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode parses a frame.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, errors.New("missing event name")
	}
	return env, nil
}

// TicketRef names a ticket in join/leave frames and their acknowledgements.
type TicketRef struct {
	TicketID int64 `json:"ticketId"`
}

// ParseTicketID accepts either a bare number or {"ticketId": n}.
func ParseTicketID(data json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0, errors.New("ticket id is required")
	}
	var id int64
	if trimmed[0] == '{' {
		var ref TicketRef
		if err := json.Unmarshal(trimmed, &ref); err != nil {
			return 0, err
		}
		id = ref.TicketID
	} else if err := json.Unmarshal(trimmed, &id); err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("ticket id must be positive")
	}
	return id, nil
}

// SendMessage is the send-message body.
type SendMessage = dto.CreateMessageRequest

// UpdateTicketStatus is the update-ticket-status body.
type UpdateTicketStatus struct {
	TicketID int64  `json:"ticketId"`
	Status   string `json:"status"`
}

// Connected is sent once automatic room membership is in place.
type Connected struct {
	UserID int64       `json:"userId"`
	Role   domain.Role `json:"role"`
	Rooms  []string    `json:"rooms"`
}

// TicketMessageNotification is the admin-facing new-ticket-message body.
type TicketMessageNotification struct {
	TicketID    int64               `json:"ticketId"`
	TicketTitle string              `json:"ticketTitle"`
	Message     dto.MessageResponse `json:"message"`
}

// StatusNotification is the owner-facing ticket-status-notification body.
type StatusNotification struct {
	TicketID    int64               `json:"ticketId"`
	TicketTitle string              `json:"ticketTitle"`
	NewStatus   domain.TicketStatus `json:"newStatus"`
	UpdatedBy   string              `json:"updatedBy"`
}

// Error is the error frame body.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Event   string `json:"event,omitempty"`
}
