package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	maxMessageLength = 10000

	// afterWriteTimeout bounds the enriched re-read and publish that follow a
	// successful write.
	afterWriteTimeout = 10 * time.Second
)

// TicketService coordinates ticket workflows. Every mutation is persisted,
// re-read in its enriched form and only then published, all while holding the
// ticket's lock, so subscribers observe changes in persistence order. Once a
// write succeeds the caller's cancellation no longer applies: a committed
// change is always re-read and published.
type TicketService struct {
	tickets     repository.TicketRepository
	messages    repository.MessageRepository
	dispatcher  events.Dispatcher
	locks       *ticketLocks
	allowReopen bool
	logger      *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	Dispatcher  events.Dispatcher
	AllowReopen bool
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		dispatcher:  deps.Dispatcher,
		locks:       newTicketLocks(),
		allowReopen: deps.AllowReopen,
		logger:      logger,
	}
}

// CreateTicket opens a ticket owned by the caller.
func (s *TicketService) CreateTicket(ctx context.Context, identity domain.Identity, input TicketCreateInput) (*domain.TicketDetail, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("Title and description are required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("Invalid priority", map[string]any{"priority": priority})
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		OwnerUserID: identity.UserID,
	}
	if identity.Role == domain.RoleOrgUser {
		ticket.OrgID = identity.OrgID
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, s.storeFailure("create ticket", err)
	}

	unlock := s.locks.Lock(ticket.ID)
	defer unlock()

	ctx, cancel := afterWrite(ctx)
	defer cancel()
	detail, err := s.tickets.GetDetail(ctx, ticket.ID)
	if err != nil {
		return nil, s.storeFailure("load ticket", err)
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, detail.ID, identity, events.TicketCreatedPayload{
		Ticket: *detail,
	}))
	return detail, nil
}

// ListTickets returns all tickets for admins and own tickets otherwise.
func (s *TicketService) ListTickets(ctx context.Context, identity domain.Identity, filter TicketListFilter) ([]domain.TicketDetail, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewInvalidStatus(string(st))
		}
	}
	for _, pr := range filter.Priorities {
		if !pr.Valid() {
			return nil, apperrors.NewValidationError("Invalid priority", map[string]any{"priority": pr})
		}
	}
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if !identity.IsAdmin() {
		owner := identity.UserID
		repoFilter.OwnerUserID = &owner
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, s.storeFailure("list tickets", err)
	}
	if tickets == nil {
		tickets = []domain.TicketDetail{}
	}
	return tickets, nil
}

// AuthorizeView loads a ticket and applies the view policy.
func (s *TicketService) AuthorizeView(ctx context.Context, identity domain.Identity, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanViewTicket(identity, ticket) {
		return nil, apperrors.NewAccessDenied()
	}
	return ticket, nil
}

// GetTicket returns the enriched ticket when the caller may view it.
func (s *TicketService) GetTicket(ctx context.Context, identity domain.Identity, ticketID int64) (*domain.TicketDetail, error) {
	if _, err := s.AuthorizeView(ctx, identity, ticketID); err != nil {
		return nil, err
	}
	detail, err := s.tickets.GetDetail(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("Ticket", nil)
		}
		return nil, s.storeFailure("load ticket", err)
	}
	return detail, nil
}

// UpdateStatus moves a ticket to a new status on behalf of an admin.
func (s *TicketService) UpdateStatus(ctx context.Context, identity domain.Identity, ticketID int64, status string) (*domain.TicketDetail, error) {
	if !auth.CanMutateStatus(identity) {
		return nil, apperrors.NewAccessDenied()
	}
	newStatus := domain.TicketStatus(status)
	if !newStatus.Valid() {
		return nil, apperrors.NewInvalidStatus(status)
	}

	unlock := s.locks.Lock(ticketID)
	defer unlock()

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	oldStatus := ticket.Status
	if oldStatus.IsBackward(newStatus) && !s.allowReopen {
		return nil, apperrors.NewConflict("Ticket cannot move back to "+status, map[string]any{
			"from": oldStatus,
			"to":   newStatus,
		})
	}

	if err := s.tickets.UpdateStatus(ctx, ticketID, newStatus, identity.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("Ticket", nil)
		}
		return nil, s.storeFailure("update ticket status", err)
	}

	ctx, cancel := afterWrite(ctx)
	defer cancel()
	detail, err := s.tickets.GetDetail(ctx, ticketID)
	if err != nil {
		return nil, s.storeFailure("load ticket", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, ticketID, identity, events.TicketStatusChangedPayload{
		Ticket:    *detail,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}))
	return detail, nil
}

// PostMessage appends a message to a ticket conversation.
func (s *TicketService) PostMessage(ctx context.Context, identity domain.Identity, ticketID int64, content string) (*domain.MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("Content is required", nil)
	}
	if len(content) > maxMessageLength {
		return nil, apperrors.NewValidationError("Message is too long", map[string]any{"max": maxMessageLength})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanPostMessage(identity, ticket) {
		return nil, apperrors.NewAccessDenied()
	}

	unlock := s.locks.Lock(ticketID)
	defer unlock()

	msg := &domain.Message{Content: content, TicketID: ticketID, SenderID: identity.UserID}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, s.storeFailure("create message", err)
	}

	ctx, cancel := afterWrite(ctx)
	defer cancel()
	view, err := s.messages.GetView(ctx, msg.ID)
	if err != nil {
		return nil, s.storeFailure("load message", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketMessageAdded, ticketID, identity, events.TicketMessageAddedPayload{
		Message:     *view,
		TicketTitle: ticket.Title,
		OwnerUserID: ticket.OwnerUserID,
	}))
	return view, nil
}

// ListMessages returns the ticket conversation when the caller may view it.
func (s *TicketService) ListMessages(ctx context.Context, identity domain.Identity, ticketID int64) ([]domain.MessageView, error) {
	if _, err := s.AuthorizeView(ctx, identity, ticketID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, s.storeFailure("list messages", err)
	}
	if msgs == nil {
		msgs = []domain.MessageView{}
	}
	return msgs, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("Ticket", map[string]any{"ticketId": ticketID})
		}
		return nil, s.storeFailure("load ticket", err)
	}
	return ticket, nil
}

// afterWrite detaches ctx from the caller's deadline and cancellation while
// keeping its values.
func afterWrite(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), afterWriteTimeout)
}

func (s *TicketService) storeFailure(op string, err error) error {
	s.logger.Error("store failure", zap.String("op", op), zap.Error(err))
	return apperrors.NewInternalError(err)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
