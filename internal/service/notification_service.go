package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Notification channels.
const (
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

// Notification is an out-of-band message about ticket activity.
type Notification struct {
	Channel     string
	RecipientID int64
	TicketID    int64
	EventType   events.EventType
	Subject     string
}

// NotificationSender delivers a notification over one channel.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}

// NotificationService turns domain events into email and webhook notifications
// honoring each recipient's settings.
type NotificationService struct {
	settings repository.SettingsRepository
	email    NotificationSender
	webhook  NotificationSender
	logger   *zap.Logger
	cfg      config.NotificationConfig
}

// NewNotificationService creates the service with logging senders.
func NewNotificationService(settings repository.SettingsRepository, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		settings: settings,
		email:    &logSender{logger: logger, target: cfg.EmailFrom, channel: ChannelEmail},
		webhook:  &logSender{logger: logger, target: cfg.WebhookURL, channel: ChannelWebhook},
		logger:   logger,
		cfg:      cfg,
	}
}

// WithSenders replaces the delivery channels.
func (n *NotificationService) WithSenders(email, webhook NotificationSender) *NotificationService {
	n.email = email
	n.webhook = webhook
	return n
}

// EventTypes lists the events the service reacts to.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketMessageAdded,
	}
}

// Handle delivers the notifications for one event.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		n.sendWebhook(ctx, event, fmt.Sprintf("New ticket: %s", payload.Ticket.Title))
	case events.TicketStatusChangedPayload:
		subject := fmt.Sprintf("Ticket %q is now %s", payload.Ticket.Title, payload.NewStatus)
		n.sendWebhook(ctx, event, subject)
		if payload.Ticket.OwnerUserID != event.Actor.UserID {
			return n.sendEmail(ctx, event, payload.Ticket.OwnerUserID, subject, func(s domain.UserSettings) bool {
				return s.TicketUpdates
			})
		}
	case events.TicketMessageAddedPayload:
		subject := fmt.Sprintf("New message on %q", payload.TicketTitle)
		n.sendWebhook(ctx, event, subject)
		if payload.OwnerUserID != event.Actor.UserID {
			return n.sendEmail(ctx, event, payload.OwnerUserID, subject, func(s domain.UserSettings) bool {
				return s.NewMessages
			})
		}
	default:
		n.logger.Debug("ignoring event", zap.String("event_type", string(event.Type)))
	}
	return nil
}

func (n *NotificationService) sendEmail(ctx context.Context, event events.Event, recipient int64, subject string, wants func(domain.UserSettings) bool) error {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return nil
	}
	settings, err := n.settings.Get(ctx, recipient)
	if err != nil {
		return fmt.Errorf("load settings for %d: %w", recipient, err)
	}
	if !settings.EmailNotifications || !wants(settings) {
		return nil
	}
	return n.email.Send(ctx, Notification{
		Channel:     ChannelEmail,
		RecipientID: recipient,
		TicketID:    event.TicketID,
		EventType:   event.Type,
		Subject:     subject,
	})
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event, subject string) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	if err := n.webhook.Send(ctx, Notification{
		Channel:   ChannelWebhook,
		TicketID:  event.TicketID,
		EventType: event.Type,
		Subject:   subject,
	}); err != nil {
		n.logger.Warn("webhook notification failed", zap.Int64("ticket_id", event.TicketID), zap.Error(err))
	}
}

// logSender records notifications in the log; there is no mail transport.
type logSender struct {
	logger  *zap.Logger
	target  string
	channel string
}

func (s *logSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("notification",
		zap.String("channel", s.channel),
		zap.String("target", s.target),
		zap.Int64("recipient_id", n.RecipientID),
		zap.Int64("ticket_id", n.TicketID),
		zap.String("event_type", string(n.EventType)),
		zap.String("subject", n.Subject))
	return nil
}
