package realtime

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Client is one live connection. Frames are queued on a bounded buffer and
// written by the connection's writer goroutine.
type Client struct {
	ID       string
	Identity domain.Identity

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter
}

// NewClient creates a client with the given send buffer and inbound rate.
func NewClient(identity domain.Identity, buffer int, perSecond float64, burst int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		ID:       uuid.NewString(),
		Identity: identity,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Send queues a frame without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Frames exposes queued frames to the writer.
func (c *Client) Frames() <-chan []byte {
	return c.send
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client closed. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Allow reports whether another inbound frame fits the rate limit.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}
