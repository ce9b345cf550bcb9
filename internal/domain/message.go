package domain

import "time"

// Message is an append-only entry in a ticket conversation.
type Message struct {
	ID        int64
	Content   string
	TicketID  int64
	SenderID  int64
	CreatedAt time.Time
}

// MessageView is a message joined with the sender's email and role.
type MessageView struct {
	Message
	SenderEmail string
	SenderRole  Role
}
