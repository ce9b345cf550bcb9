package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/clientsync"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/wire"
)

// DefaultReconcileInterval is how often a Watcher refetches regardless of pushes.
const DefaultReconcileInterval = 30 * time.Second

// Watcher keeps a TicketView in sync with one ticket. Pushed frames update
// the view immediately; a fetch on join and on a fixed interval repairs
// anything a push missed.
type Watcher struct {
	api      *Client
	socket   *Socket
	view     *clientsync.TicketView
	interval time.Duration
	logger   *zap.Logger
	onChange func(*clientsync.TicketView)
}

// NewWatcher creates a watcher for ticketID over an open socket.
func NewWatcher(api *Client, socket *Socket, ticketID int64, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		api:      api,
		socket:   socket,
		view:     clientsync.NewTicketView(ticketID),
		interval: interval,
		logger:   logger,
	}
}

// View returns the synchronized view.
func (w *Watcher) View() *clientsync.TicketView {
	return w.view
}

// OnChange registers a callback run after every view change. Set it before Run.
func (w *Watcher) OnChange(fn func(*clientsync.TicketView)) {
	w.onChange = fn
}

// Run joins the ticket room and processes frames until ctx ends or the
// connection drops.
func (w *Watcher) Run(ctx context.Context) error {
	ticketID := w.view.TicketID()
	if err := w.socket.JoinTicket(ticketID); err != nil {
		return err
	}
	if err := w.Reconcile(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.socket.LeaveTicket(ticketID)
			return ctx.Err()
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				w.logger.Warn("reconcile failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
			}
		case env, ok := <-w.socket.Frames():
			if !ok {
				if err := w.socket.Err(); err != nil {
					return err
				}
				return errors.New("connection closed")
			}
			w.handle(ctx, env)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, env wire.Envelope) {
	ticketID := w.view.TicketID()
	switch env.Event {
	case wire.EventTicketJoined:
		var ref wire.TicketRef
		if json.Unmarshal(env.Data, &ref) == nil && ref.TicketID == ticketID {
			if err := w.Reconcile(ctx); err != nil {
				w.logger.Warn("reconcile failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
			}
		}
	case wire.EventNewMessage:
		var msg dto.MessageResponse
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			w.logger.Warn("bad message frame", zap.Error(err))
			return
		}
		if w.view.ApplyMessage(msg) {
			w.changed()
		}
	case wire.EventTicketStatusUpdated:
		var ticket dto.TicketResponse
		if err := json.Unmarshal(env.Data, &ticket); err != nil {
			w.logger.Warn("bad ticket frame", zap.Error(err))
			return
		}
		if w.view.ApplyTicket(ticket) {
			w.changed()
		}
	case wire.EventError:
		var body wire.Error
		_ = json.Unmarshal(env.Data, &body)
		w.logger.Warn("server error", zap.String("event", body.Event), zap.String("code", body.Code), zap.String("message", body.Message))
		if body.Event == wire.EventSendMessage && w.view.DropOldestLocalEcho() {
			w.changed()
		}
	}
}

// Reconcile refetches the ticket and its messages.
func (w *Watcher) Reconcile(ctx context.Context) error {
	ticketID := w.view.TicketID()
	ticket, err := w.api.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	messages, err := w.api.ListMessages(ctx, ticketID)
	if err != nil {
		return err
	}
	w.view.Reconcile(ticket, messages)
	w.changed()
	return nil
}

// Send shows the message locally at once and sends it over the socket.
func (w *Watcher) Send(sender domain.Identity, content string) error {
	localID := w.view.AddLocalEcho(sender, content)
	w.changed()
	if err := w.socket.SendMessage(w.view.TicketID(), content); err != nil {
		w.view.DropLocalEcho(localID)
		w.changed()
		return err
	}
	return nil
}

func (w *Watcher) changed() {
	if w.onChange != nil {
		w.onChange(w.view)
	}
}
