package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketStatusRequest payload.
type UpdateTicketStatusRequest struct {
	Status string `json:"status"`
}

// TicketResponse is the enriched ticket sent over HTTP and realtime frames.
type TicketResponse struct {
	ID                 int64                 `json:"id"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	Status             domain.TicketStatus   `json:"status"`
	Priority           domain.TicketPriority `json:"priority"`
	UserID             int64                 `json:"userId"`
	OrgID              *int64                `json:"orgId,omitempty"`
	AssignedAdminID    *int64                `json:"assignedAdminId,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
	UserEmail          string                `json:"userEmail"`
	OrganizationName   *string               `json:"organizationName,omitempty"`
	AssignedAdminEmail *string               `json:"assignedAdminEmail,omitempty"`
}

// CreateMessageRequest payload. It is also the send-message frame body.
type CreateMessageRequest struct {
	Content  string `json:"content"`
	TicketID int64  `json:"ticketId"`
}

// MessageResponse is a message joined with its sender.
type MessageResponse struct {
	ID          int64       `json:"id"`
	Content     string      `json:"content"`
	TicketID    int64       `json:"ticketId"`
	SenderID    int64       `json:"senderId"`
	CreatedAt   time.Time   `json:"createdAt"`
	SenderEmail string      `json:"senderEmail"`
	SenderRole  domain.Role `json:"senderRole"`
}

// NewTicketResponse maps an enriched ticket.
func NewTicketResponse(d domain.TicketDetail) TicketResponse {
	return TicketResponse{
		ID:                 d.ID,
		Title:              d.Title,
		Description:        d.Description,
		Status:             d.Status,
		Priority:           d.Priority,
		UserID:             d.OwnerUserID,
		OrgID:              d.OrgID,
		AssignedAdminID:    d.AssignedAdminID,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		UserEmail:          d.OwnerEmail,
		OrganizationName:   d.OrganizationName,
		AssignedAdminEmail: d.AssignedAdminEmail,
	}
}

// NewTicketResponses maps a list of tickets.
func NewTicketResponses(list []domain.TicketDetail) []TicketResponse {
	out := make([]TicketResponse, 0, len(list))
	for _, d := range list {
		out = append(out, NewTicketResponse(d))
	}
	return out
}

// NewMessageResponse maps an enriched message.
func NewMessageResponse(v domain.MessageView) MessageResponse {
	return MessageResponse{
		ID:          v.ID,
		Content:     v.Content,
		TicketID:    v.TicketID,
		SenderID:    v.SenderID,
		CreatedAt:   v.CreatedAt,
		SenderEmail: v.SenderEmail,
		SenderRole:  v.SenderRole,
	}
}

// NewMessageResponses maps a conversation.
func NewMessageResponses(list []domain.MessageView) []MessageResponse {
	out := make([]MessageResponse, 0, len(list))
	for _, v := range list {
		out = append(out, NewMessageResponse(v))
	}
	return out
}
