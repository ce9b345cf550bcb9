package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// MessagesHandler is the HTTP path for ticket conversations. Messages posted
// here are broadcast exactly like those sent over a realtime connection.
type MessagesHandler struct {
	service *service.TicketService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(ticketService *service.TicketService) *MessagesHandler {
	return &MessagesHandler{service: ticketService}
}

// CreateMessage POST /api/messages.
func (h *MessagesHandler) CreateMessage(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid payload", nil)
	}
	if strings.TrimSpace(req.Content) == "" || req.TicketID <= 0 {
		return apperrors.NewValidationError("Content and ticketId are required", nil)
	}
	msg, err := h.service.PostMessage(c.UserContext(), identity, req.TicketID, req.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewMessageResponse(*msg))
}

// ListMessages GET /api/messages/ticket/:id.
func (h *MessagesHandler) ListMessages(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	msgs, err := h.service.ListMessages(c.UserContext(), identity, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewMessageResponses(msgs))
}
