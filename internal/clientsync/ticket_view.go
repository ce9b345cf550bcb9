// Package clientsync keeps a client's copy of one ticket consistent with the
// server. Pushed frames are delivered at least once and may race the initial
// fetch, so every update is idempotent and a reconciliation fetch merges into
// what the view already holds.
package clientsync

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
)

// LocalIDPrefix marks ids of messages not yet confirmed by the server.
const LocalIDPrefix = "local-"

// Entry is one message as shown to the user.
type Entry struct {
	dto.MessageResponse
	// LocalID is set while the message is a local echo awaiting confirmation.
	LocalID string
}

// Pending reports whether the entry is an unconfirmed local echo.
func (e Entry) Pending() bool {
	return e.LocalID != ""
}

type echo struct {
	localID  string
	senderID int64
	content  string
	entry    Entry
}

// TicketView holds the ticket and its conversation as a client sees them.
type TicketView struct {
	mu       sync.Mutex
	ticketID int64
	ticket   *dto.TicketResponse
	messages map[int64]dto.MessageResponse
	pending  []echo
	now      func() time.Time
}

// NewTicketView creates an empty view for one ticket.
func NewTicketView(ticketID int64) *TicketView {
	return &TicketView{
		ticketID: ticketID,
		messages: make(map[int64]dto.MessageResponse),
		now:      time.Now,
	}
}

// TicketID returns the ticket this view follows.
func (v *TicketView) TicketID() int64 {
	return v.ticketID
}

// Load installs an initial snapshot. It is the same operation as Reconcile.
func (v *TicketView) Load(ticket dto.TicketResponse, messages []dto.MessageResponse) {
	v.Reconcile(&ticket, messages)
}

// ApplyTicket overwrites the ticket with a pushed snapshot. Snapshots of
// other tickets are ignored.
func (v *TicketView) ApplyTicket(ticket dto.TicketResponse) bool {
	if ticket.ID != v.ticketID {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	t := ticket
	v.ticket = &t
	return true
}

// ApplyMessage adds a pushed message. Redelivery of a known id changes
// nothing; a new message confirms the oldest matching local echo.
func (v *TicketView) ApplyMessage(msg dto.MessageResponse) bool {
	if msg.TicketID != v.ticketID {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, known := v.messages[msg.ID]; known {
		v.messages[msg.ID] = msg
		return false
	}
	v.messages[msg.ID] = msg
	v.confirmLocked(msg)
	return true
}

// AddLocalEcho shows a message before the server confirms it and returns its
// temporary id.
func (v *TicketView) AddLocalEcho(sender domain.Identity, content string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	localID := LocalIDPrefix + uuid.NewString()
	v.pending = append(v.pending, echo{
		localID:  localID,
		senderID: sender.UserID,
		content:  strings.TrimSpace(content),
		entry: Entry{
			LocalID: localID,
			MessageResponse: dto.MessageResponse{
				Content:     content,
				TicketID:    v.ticketID,
				SenderID:    sender.UserID,
				SenderEmail: sender.Email,
				SenderRole:  sender.Role,
				CreatedAt:   v.now(),
			},
		},
	})
	return localID
}

// DropLocalEcho removes an echo whose send failed.
func (v *TicketView) DropLocalEcho(localID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, e := range v.pending {
		if e.localID == localID {
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			return true
		}
	}
	return false
}

// DropOldestLocalEcho removes the oldest echo. Used when the server rejects a
// send, since rejections are answered in the order sends were made.
func (v *TicketView) DropOldestLocalEcho() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.pending) == 0 {
		return false
	}
	v.pending = v.pending[1:]
	return true
}

// Reconcile merges a fresh fetch into the view. Messages are append-only, so
// a fetch never removes a confirmed message: a snapshot taken before a push
// landed may arrive after it. A fetched ticket older than the stored one is
// ignored. Messages the view had not seen yet confirm matching local echoes.
func (v *TicketView) Reconcile(ticket *dto.TicketResponse, messages []dto.MessageResponse) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ticket != nil && ticket.ID == v.ticketID {
		if v.ticket == nil || !ticket.UpdatedAt.Before(v.ticket.UpdatedAt) {
			t := *ticket
			v.ticket = &t
		}
	}
	for _, msg := range sortedMessages(messages) {
		if msg.TicketID != v.ticketID {
			continue
		}
		_, seen := v.messages[msg.ID]
		v.messages[msg.ID] = msg
		if !seen {
			v.confirmLocked(msg)
		}
	}
}

func (v *TicketView) confirmLocked(msg dto.MessageResponse) {
	content := strings.TrimSpace(msg.Content)
	for i, e := range v.pending {
		if e.senderID == msg.SenderID && e.content == content {
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			return
		}
	}
}

// Ticket returns the last known ticket snapshot.
func (v *TicketView) Ticket() (dto.TicketResponse, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ticket == nil {
		return dto.TicketResponse{}, false
	}
	return *v.ticket, true
}

// Messages returns confirmed messages ordered by creation time and id,
// followed by pending echoes in the order they were added.
func (v *TicketView) Messages() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	confirmed := make([]dto.MessageResponse, 0, len(v.messages))
	for _, msg := range v.messages {
		confirmed = append(confirmed, msg)
	}
	out := make([]Entry, 0, len(confirmed)+len(v.pending))
	for _, msg := range sortedMessages(confirmed) {
		out = append(out, Entry{MessageResponse: msg})
	}
	for _, e := range v.pending {
		out = append(out, e.entry)
	}
	return out
}

// PendingCount reports how many local echoes await confirmation.
func (v *TicketView) PendingCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}

func sortedMessages(in []dto.MessageResponse) []dto.MessageResponse {
	out := append([]dto.MessageResponse(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
