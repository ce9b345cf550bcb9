package realtime

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/observability"
)

// Router owns room membership for the connections of this process. It is the
// only component that mutates membership; emitters read it at delivery time.
type Router struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger, metrics *observability.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]map[string]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a connection and subscribes it to its personal room, plus the
// admin room for ADMIN identities. It returns the rooms joined.
func (r *Router) Register(c *Client) []string {
	rooms := []string{UserRoom(c.Identity.UserID)}
	if c.Identity.IsAdmin() {
		rooms = append(rooms, AdminRoom)
	}

	r.mu.Lock()
	if _, ok := r.clients[c]; !ok {
		r.clients[c] = make(map[string]struct{})
		r.metrics.ConnectionOpened()
	}
	for _, room := range rooms {
		r.joinLocked(c, room)
	}
	r.mu.Unlock()

	r.logger.Info("client connected",
		zap.String("client_id", c.ID),
		zap.Int64("user_id", c.Identity.UserID),
		zap.String("role", string(c.Identity.Role)))
	return rooms
}

// Join subscribes a registered connection to a room. Joining twice is a no-op;
// it reports whether membership changed.
func (r *Router) Join(c *Client, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; !ok {
		return false
	}
	return r.joinLocked(c, room)
}

func (r *Router) joinLocked(c *Client, room string) bool {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[room] = members
	}
	if _, already := members[c]; already {
		return false
	}
	members[c] = struct{}{}
	r.clients[c][room] = struct{}{}
	return true
}

// Leave removes a connection from a room. No authorization is needed to leave.
func (r *Router) Leave(c *Client, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(c, room)
}

func (r *Router) leaveLocked(c *Client, room string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[c]; !ok {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	if joined, ok := r.clients[c]; ok {
		delete(joined, room)
	}
	return true
}

// Unregister removes a connection from every room and closes it.
func (r *Router) Unregister(c *Client) {
	r.mu.Lock()
	joined, ok := r.clients[c]
	if ok {
		for room := range joined {
			r.leaveLocked(c, room)
		}
		delete(r.clients, c)
		r.metrics.ConnectionClosed()
	}
	r.mu.Unlock()
	c.Close()

	if ok {
		r.logger.Info("client disconnected",
			zap.String("client_id", c.ID),
			zap.Int64("user_id", c.Identity.UserID))
	}
}

// Deliver queues frame on every member of room and returns how many accepted
// it. Members whose buffer is full are disconnected.
func (r *Router) Deliver(room string, frame []byte) int {
	var delivered int
	var slow []*Client

	r.mu.RLock()
	for c := range r.rooms[room] {
		if c.Send(frame) {
			delivered++
		} else {
			slow = append(slow, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range slow {
		r.logger.Warn("dropping slow client",
			zap.String("client_id", c.ID),
			zap.Int64("user_id", c.Identity.UserID),
			zap.String("room", room))
		r.metrics.SlowConsumerDropped()
		r.Unregister(c)
	}
	return delivered
}

// Emit delivers in-process. Router is the local Emitter.
func (r *Router) Emit(_ context.Context, room string, frame []byte) error {
	r.Deliver(room, frame)
	return nil
}

// CloseAll disconnects every registered connection.
func (r *Router) CloseAll() {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()
	for _, c := range clients {
		r.Unregister(c)
	}
}

// Rooms lists the rooms a connection belongs to, sorted.
func (r *Router) Rooms(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.clients[c]))
	for room := range r.clients[c] {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Members reports how many connections are in a room.
func (r *Router) Members(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Connections reports how many connections are registered.
func (r *Router) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
