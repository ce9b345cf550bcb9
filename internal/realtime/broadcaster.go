package realtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/wire"
)

// Broadcaster turns confirmed domain events into room emits. It only ever
// sees events published after the store acknowledged the write.
type Broadcaster struct {
	emitter Emitter
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewBroadcaster creates a broadcaster on top of an emitter.
func NewBroadcaster(emitter Emitter, logger *zap.Logger, metrics *observability.Metrics) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{emitter: emitter, logger: logger, metrics: metrics}
}

// Register subscribes the broadcaster to ticket events.
func (b *Broadcaster) Register(d events.Dispatcher) {
	d.Subscribe(events.EventTicketMessageAdded, b.onMessageAdded)
	d.Subscribe(events.EventTicketStatusChanged, b.onStatusChanged)
	d.Subscribe(events.EventTicketCreated, b.onTicketCreated)
}

func (b *Broadcaster) onMessageAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	msg := dto.NewMessageResponse(payload.Message)
	if err := b.emit(ctx, TicketRoom(event.TicketID), wire.EventNewMessage, msg); err != nil {
		return err
	}
	if payload.Message.SenderRole != domain.RoleOrgUser {
		return nil
	}
	return b.emit(ctx, AdminRoom, wire.EventNewTicketMessage, wire.TicketMessageNotification{
		TicketID:    event.TicketID,
		TicketTitle: payload.TicketTitle,
		Message:     msg,
	})
}

func (b *Broadcaster) onStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	ticket := payload.Ticket
	if err := b.emit(ctx, TicketRoom(ticket.ID), wire.EventTicketStatusUpdated, dto.NewTicketResponse(ticket)); err != nil {
		return err
	}
	return b.emit(ctx, UserRoom(ticket.OwnerUserID), wire.EventTicketStatusNotification, wire.StatusNotification{
		TicketID:    ticket.ID,
		TicketTitle: ticket.Title,
		NewStatus:   payload.NewStatus,
		UpdatedBy:   event.Actor.Email,
	})
}

func (b *Broadcaster) onTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	return b.emit(ctx, AdminRoom, wire.EventTicketCreated, dto.NewTicketResponse(payload.Ticket))
}

func (b *Broadcaster) emit(ctx context.Context, room, event string, payload any) error {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		return err
	}
	if err := b.emitter.Emit(ctx, room, frame); err != nil {
		b.logger.Error("emit failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
		return fmt.Errorf("emit %s to %s: %w", event, room, err)
	}
	b.metrics.FrameEmitted(event)
	b.logger.Debug("emitted", zap.String("room", room), zap.String("event", event))
	return nil
}
