// Package testutil provides in-memory repository doubles with failure
// injection for service, realtime and HTTP tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Operation names accepted by FailOn.
const (
	OpTicketCreate       = "tickets.Create"
	OpTicketGet          = "tickets.GetByID"
	OpTicketDetail       = "tickets.GetDetail"
	OpTicketList         = "tickets.List"
	OpTicketUpdateStatus = "tickets.UpdateStatus"
	OpMessageCreate      = "messages.Create"
	OpMessageView        = "messages.GetView"
	OpMessageList        = "messages.ListByTicket"
	OpUserCreate         = "users.Create"
	OpUserGet            = "users.GetByID"
	OpSettingsGet        = "settings.Get"
	OpSettingsUpsert     = "settings.Upsert"
)

// Store is an in-memory ticket store.
type Store struct {
	mu       sync.Mutex
	seq      int64
	tick     int64
	base     time.Time
	orgs     map[int64]domain.Organization
	users    map[int64]domain.User
	tickets  map[int64]domain.Ticket
	messages []domain.Message
	settings map[int64]domain.UserSettings
	failures map[string]error
	calls    map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		base:     time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		orgs:     make(map[int64]domain.Organization),
		users:    make(map[int64]domain.User),
		tickets:  make(map[int64]domain.Ticket),
		settings: make(map[int64]domain.UserSettings),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailOn makes every later call of op return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// ClearFailures removes every injected failure.
func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]error)
}

// Calls reports how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter records a call and returns the injected failure. Caller holds mu.
func (s *Store) enter(op string) error {
	s.calls[op]++
	return s.failures[op]
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Store) now() time.Time {
	s.tick++
	return s.base.Add(time.Duration(s.tick) * time.Millisecond)
}

// Tickets returns the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Messages returns the message repository view.
func (s *Store) Messages() repository.MessageRepository { return messageRepo{s} }

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Settings returns the settings repository view.
func (s *Store) Settings() repository.SettingsRepository { return settingsRepo{s} }

// AddOrganization seeds an organization.
func (s *Store) AddOrganization(name string) domain.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	org := domain.Organization{ID: s.nextID(), Name: name, ContactEmail: "contact@" + name, CreatedAt: s.now()}
	s.orgs[org.ID] = org
	return org
}

// AddUser seeds a user; ID and CreatedAt are assigned when zero.
func (s *Store) AddUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID()
	} else if u.ID > s.seq {
		s.seq = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
	return u
}

// AddTicket seeds an OPEN ticket; ID is assigned when zero.
func (s *Store) AddTicket(t domain.Ticket) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID()
	} else if t.ID > s.seq {
		s.seq = t.ID
	}
	if t.Status == "" {
		t.Status = domain.TicketStatusOpen
	}
	if t.Priority == "" {
		t.Priority = domain.TicketPriorityMedium
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
		t.UpdatedAt = t.CreatedAt
	}
	s.tickets[t.ID] = t
	return t
}

// Ticket returns the stored ticket.
func (s *Store) Ticket(id int64) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	return t, ok
}

// MessageCount reports how many messages are stored for a ticket.
func (s *Store) MessageCount(ticketID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			n++
		}
	}
	return n
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, t *domain.Ticket) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTicketCreate); err != nil {
		return err
	}
	t.ID = s.nextID()
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	s.tickets[t.ID] = *t
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTicketGet); err != nil {
		return nil, err
	}
	t, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r ticketRepo) GetDetail(_ context.Context, id int64) (*domain.TicketDetail, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTicketDetail); err != nil {
		return nil, err
	}
	t, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	d := s.detail(t)
	return &d, nil
}

func (s *Store) detail(t domain.Ticket) domain.TicketDetail {
	d := domain.TicketDetail{Ticket: t, OwnerEmail: s.users[t.OwnerUserID].Email}
	if t.OrgID != nil {
		if org, ok := s.orgs[*t.OrgID]; ok {
			name := org.Name
			d.OrganizationName = &name
		}
	}
	if t.AssignedAdminID != nil {
		if admin, ok := s.users[*t.AssignedAdminID]; ok {
			email := admin.Email
			d.AssignedAdminEmail = &email
		}
	}
	return d
}

func (r ticketRepo) List(_ context.Context, f repository.TicketFilter) ([]domain.TicketDetail, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTicketList); err != nil {
		return nil, err
	}
	var out []domain.TicketDetail
	for _, t := range s.tickets {
		if f.OwnerUserID != nil && t.OwnerUserID != *f.OwnerUserID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
			continue
		}
		if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
			continue
		}
		out = append(out, s.detail(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r ticketRepo) UpdateStatus(_ context.Context, id int64, status domain.TicketStatus, adminID int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTicketUpdateStatus); err != nil {
		return err
	}
	t, ok := s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	admin := adminID
	t.AssignedAdminID = &admin
	t.UpdatedAt = s.now()
	s.tickets[id] = t
	return nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, m *domain.Message) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpMessageCreate); err != nil {
		return err
	}
	m.ID = s.nextID()
	m.CreatedAt = s.now()
	s.messages = append(s.messages, *m)
	return nil
}

func (r messageRepo) GetView(_ context.Context, id int64) (*domain.MessageView, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpMessageView); err != nil {
		return nil, err
	}
	for _, m := range s.messages {
		if m.ID == id {
			v := s.view(m)
			return &v, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *Store) view(m domain.Message) domain.MessageView {
	sender := s.users[m.SenderID]
	return domain.MessageView{Message: m, SenderEmail: sender.Email, SenderRole: sender.Role}
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.MessageView, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpMessageList); err != nil {
		return nil, err
	}
	var out []domain.MessageView
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			out = append(out, s.view(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUserCreate); err != nil {
		return err
	}
	u.ID = s.nextID()
	u.CreatedAt = s.now()
	s.users[u.ID] = *u
	return nil
}

func (r userRepo) CreateWithOrganization(_ context.Context, org *domain.Organization, u *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUserCreate); err != nil {
		return err
	}
	org.ID = s.nextID()
	org.CreatedAt = s.now()
	s.orgs[org.ID] = *org
	orgID := org.ID
	u.OrgID = &orgID
	u.ID = s.nextID()
	u.CreatedAt = s.now()
	s.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUserGet); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r userRepo) List(_ context.Context) ([]domain.UserSummary, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserSummary, 0, len(s.users))
	for _, u := range s.users {
		summary := domain.UserSummary{ID: u.ID, Email: u.Email, Role: u.Role, OrgID: u.OrgID, CreatedAt: u.CreatedAt}
		if u.OrgID != nil {
			if org, ok := s.orgs[*u.OrgID]; ok {
				name := org.Name
				summary.OrganizationName = &name
			}
		}
		for _, t := range s.tickets {
			if t.OwnerUserID == u.ID {
				summary.TicketCount++
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r userRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) Get(_ context.Context, userID int64) (domain.UserSettings, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSettingsGet); err != nil {
		return domain.UserSettings{}, err
	}
	if st, ok := s.settings[userID]; ok {
		return st, nil
	}
	return domain.DefaultUserSettings(userID), nil
}

func (r settingsRepo) Upsert(_ context.Context, st domain.UserSettings) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSettingsUpsert); err != nil {
		return err
	}
	s.settings[st.UserID] = st
	return nil
}

func containsStatus(list []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, p := range list {
		if p == v {
			return true
		}
	}
	return false
}
