package client

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spec-kit/support-desk/internal/wire"
)

const (
	socketWriteWait = 10 * time.Second
	socketBuffer    = 256
)

// Socket is a realtime connection. Incoming frames are decoded and queued on
// Frames until the connection ends.
type Socket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	frames  chan wire.Envelope
	done    chan struct{}
	closing sync.Once

	errMu sync.Mutex
	err   error
}

// Dial opens the realtime endpoint of the server at baseURL.
func Dial(ctx context.Context, baseURL, token string) (*Socket, error) {
	endpoint, err := socketURL(baseURL, token)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	s := &Socket{conn: conn, frames: make(chan wire.Envelope, socketBuffer), done: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

func socketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Socket) readLoop() {
	defer close(s.frames)
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(err)
			return
		}
		env, err := wire.Decode(frame)
		if err != nil {
			continue
		}
		select {
		case s.frames <- env:
		case <-s.done:
			return
		}
	}
}

func (s *Socket) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err returns why the connection ended, nil while it is open.
func (s *Socket) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Frames yields incoming frames; it is closed when the connection ends.
func (s *Socket) Frames() <-chan wire.Envelope {
	return s.frames
}

// Send writes one frame.
func (s *Socket) Send(event string, payload any) error {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// JoinTicket subscribes to a ticket's room.
func (s *Socket) JoinTicket(ticketID int64) error {
	return s.Send(wire.EventJoinTicket, ticketID)
}

// LeaveTicket unsubscribes from a ticket's room.
func (s *Socket) LeaveTicket(ticketID int64) error {
	return s.Send(wire.EventLeaveTicket, ticketID)
}

// SendMessage posts a message through the realtime connection.
func (s *Socket) SendMessage(ticketID int64, content string) error {
	return s.Send(wire.EventSendMessage, wire.SendMessage{TicketID: ticketID, Content: content})
}

// UpdateStatus changes a ticket's status through the realtime connection.
func (s *Socket) UpdateStatus(ticketID int64, status string) error {
	return s.Send(wire.EventUpdateTicketStatus, wire.UpdateTicketStatus{TicketID: ticketID, Status: status})
}

// Close ends the connection with a normal closure.
func (s *Socket) Close() error {
	s.closing.Do(func() { close(s.done) })
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(socketWriteWait))
	s.writeMu.Unlock()
	err := s.conn.Close()
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// IsAuthRejected reports whether err is the server refusing the credential.
func IsAuthRejected(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation
}
