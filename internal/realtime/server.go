package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/wire"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	localIdentity  = "ws_identity"
	localAuthError = "ws_auth_error"
)

// TicketActions is the subset of the ticket workflow reachable from a
// realtime connection.
type TicketActions interface {
	AuthorizeView(ctx context.Context, identity domain.Identity, ticketID int64) (*domain.Ticket, error)
	PostMessage(ctx context.Context, identity domain.Identity, ticketID int64, content string) (*domain.MessageView, error)
	UpdateStatus(ctx context.Context, identity domain.Identity, ticketID int64, status string) (*domain.TicketDetail, error)
}

// IdentityVerifier turns a handshake credential into an identity.
type IdentityVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// Server accepts realtime connections and executes their requests.
type Server struct {
	router   *Router
	actions  TicketActions
	verifier IdentityVerifier
	cfg      config.RealtimeConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewServer wires the realtime endpoint.
func NewServer(router *Router, actions TicketActions, verifier IdentityVerifier, cfg config.RealtimeConfig, logger *zap.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		router:   router,
		actions:  actions,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Authenticate runs before the upgrade. The credential comes from the token
// query parameter or the Authorization header. A failed verification is kept
// so the connection can be closed with a reason once upgraded.
func (s *Server) Authenticate(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		c.Locals(localAuthError, err)
	} else {
		c.Locals(localIdentity, identity)
	}
	return c.Next()
}

// Handler returns the upgrade handler. Origins restricts browser origins; use
// "*" to accept any. Clients that send no Origin header are always accepted.
func (s *Server) Handler(origins []string) fiber.Handler {
	if len(origins) > 0 && origins[0] != "*" {
		origins = append(append([]string{}, origins...), "")
	}
	return websocket.New(s.serve, websocket.Config{Origins: origins})
}

func (s *Server) serve(conn *websocket.Conn) {
	identity, ok := conn.Locals(localIdentity).(domain.Identity)
	if !ok {
		reason := "authentication error"
		if err, _ := conn.Locals(localAuthError).(error); err != nil {
			reason = "authentication error: " + err.Error()
		}
		s.metrics.HandshakeRejected()
		s.logger.Warn("realtime handshake rejected", zap.String("reason", reason))
		deadline := time.Now().Add(s.cfg.WriteWait())
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
		return
	}

	client := NewClient(identity, s.cfg.SendBufferSize, s.cfg.MessagesPerSecond, s.cfg.MessageBurst)
	rooms := s.router.Register(client)
	s.reply(client, wire.EventConnected, wire.Connected{UserID: identity.UserID, Role: identity.Role, Rooms: rooms})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(conn, client)
	}()

	s.readPump(conn, client)
	s.router.Unregister(client)
	<-writerDone
}

func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(s.cfg.PingInterval())
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame := <-client.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait()))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("write failed", zap.String("client_id", client.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait())); err != nil {
				return
			}
		case <-client.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteWait()))
			return
		}
	}
}

func (s *Server) readPump(conn *websocket.Conn, client *Client) {
	if s.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(int64(s.cfg.MaxMessageBytes))
	}
	pongWait := s.cfg.PongWait()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read failed", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if !client.Allow() {
			s.replyError(client, "", apperrors.NewDomainError("RATE_LIMITED", "Too many messages", fiber.StatusTooManyRequests, nil))
			continue
		}
		s.HandleFrame(client, frame)
	}
}

// HandleFrame executes one inbound frame for a connection. Malformed frames
// and failed actions produce an error frame; the connection stays open.
func (s *Server) HandleFrame(client *Client, frame []byte) {
	env, err := wire.Decode(frame)
	if err != nil {
		s.replyError(client, "", apperrors.NewValidationError("Malformed frame", nil))
		return
	}

	// Actions are detached from the connection: once started they complete
	// even if the client goes away.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ActionTimeout())
	defer cancel()

	switch env.Event {
	case wire.EventJoinTicket:
		s.joinTicket(ctx, client, env.Data)
	case wire.EventLeaveTicket:
		s.leaveTicket(client, env.Data)
	case wire.EventSendMessage:
		s.sendMessage(ctx, client, env.Data)
	case wire.EventUpdateTicketStatus:
		s.updateStatus(ctx, client, env.Data)
	default:
		s.replyError(client, env.Event, apperrors.NewValidationError("Unknown event", nil))
	}
}

func (s *Server) joinTicket(ctx context.Context, client *Client, data json.RawMessage) {
	ticketID, err := wire.ParseTicketID(data)
	if err != nil {
		s.replyError(client, wire.EventJoinTicket, apperrors.NewValidationError("Invalid ticket id", nil))
		return
	}

	if _, err := s.actions.AuthorizeView(ctx, client.Identity, ticketID); err != nil {
		switch {
		case apperrors.HasCode(err, apperrors.CodeNotFound):
			s.logger.Info("join for unknown ticket",
				zap.String("client_id", client.ID), zap.Int64("ticket_id", ticketID))
			s.replyError(client, wire.EventJoinTicket, apperrors.NewNotFound("Ticket", nil))
		case apperrors.HasCode(err, apperrors.CodeForbidden):
			s.metrics.ActionDenied(wire.EventJoinTicket)
			s.logger.Warn("join denied",
				zap.String("client_id", client.ID),
				zap.Int64("user_id", client.Identity.UserID),
				zap.Int64("ticket_id", ticketID))
			s.replyError(client, wire.EventJoinTicket, err)
		default:
			s.replyError(client, wire.EventJoinTicket, err)
		}
		return
	}

	s.router.Join(client, TicketRoom(ticketID))
	s.reply(client, wire.EventTicketJoined, wire.TicketRef{TicketID: ticketID})
}

func (s *Server) leaveTicket(client *Client, data json.RawMessage) {
	ticketID, err := wire.ParseTicketID(data)
	if err != nil {
		s.replyError(client, wire.EventLeaveTicket, apperrors.NewValidationError("Invalid ticket id", nil))
		return
	}
	s.router.Leave(client, TicketRoom(ticketID))
	s.reply(client, wire.EventTicketLeft, wire.TicketRef{TicketID: ticketID})
}

func (s *Server) sendMessage(ctx context.Context, client *Client, data json.RawMessage) {
	var req wire.SendMessage
	if err := json.Unmarshal(data, &req); err != nil || req.TicketID <= 0 {
		s.replyError(client, wire.EventSendMessage, apperrors.NewValidationError("Invalid message payload", nil))
		return
	}
	if _, err := s.actions.PostMessage(ctx, client.Identity, req.TicketID, req.Content); err != nil {
		s.actionFailed(client, wire.EventSendMessage, req.TicketID, err, "Failed to send message")
	}
}

func (s *Server) updateStatus(ctx context.Context, client *Client, data json.RawMessage) {
	var req wire.UpdateTicketStatus
	if err := json.Unmarshal(data, &req); err != nil || req.TicketID <= 0 {
		s.replyError(client, wire.EventUpdateTicketStatus, apperrors.NewValidationError("Invalid status payload", nil))
		return
	}
	if _, err := s.actions.UpdateStatus(ctx, client.Identity, req.TicketID, req.Status); err != nil {
		s.actionFailed(client, wire.EventUpdateTicketStatus, req.TicketID, err, "Failed to update ticket status")
	}
}

func (s *Server) actionFailed(client *Client, event string, ticketID int64, err error, internalMessage string) {
	domainErr := apperrors.ToDomainError(err)
	fields := []zap.Field{
		zap.String("client_id", client.ID),
		zap.Int64("user_id", client.Identity.UserID),
		zap.Int64("ticket_id", ticketID),
		zap.String("event", event),
		zap.String("code", domainErr.Code),
	}
	switch domainErr.Code {
	case apperrors.CodeInternal:
		s.logger.Error("realtime action failed", append(fields, zap.Error(err))...)
		domainErr = apperrors.NewDomainError(apperrors.CodeInternal, internalMessage, fiber.StatusInternalServerError, nil)
	case apperrors.CodeForbidden:
		s.metrics.ActionDenied(event)
		s.logger.Warn("realtime action denied", fields...)
	default:
		s.logger.Info("realtime action rejected", fields...)
	}
	s.replyError(client, event, domainErr)
}

func (s *Server) reply(client *Client, event string, payload any) {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		s.logger.Error("encode reply", zap.String("event", event), zap.Error(err))
		return
	}
	if !client.Send(frame) {
		s.logger.Debug("reply dropped", zap.String("client_id", client.ID), zap.String("event", event))
	}
}

func (s *Server) replyError(client *Client, event string, err error) {
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		domainErr = apperrors.ToDomainError(err)
	}
	s.reply(client, wire.EventError, wire.Error{Message: domainErr.Message, Code: domainErr.Code, Event: event})
}
