// Package client talks to the support desk from Go: a REST client for the
// conventional endpoints and a websocket client for realtime frames.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Client is the REST client.
type Client struct {
	http    *resty.Client
	baseURL string

	mu    sync.RWMutex
	token string
}

// New creates a client for the server at baseURL, e.g. http://localhost:3001.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return &Client{http: httpClient, baseURL: baseURL}
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken sets the credential sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current credential.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*dto.AuthResponse, error) {
	var out dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", dto.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// CreateTicket opens a ticket.
func (c *Client) CreateTicket(ctx context.Context, req dto.CreateTicketRequest) (*dto.TicketResponse, error) {
	var out dto.TicketResponse
	if err := c.do(ctx, http.MethodPost, "/api/tickets", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTickets lists the tickets visible to the caller.
func (c *Client) ListTickets(ctx context.Context) ([]dto.TicketResponse, error) {
	var out []dto.TicketResponse
	if err := c.do(ctx, http.MethodGet, "/api/tickets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTicket fetches one ticket.
func (c *Client) GetTicket(ctx context.Context, id int64) (*dto.TicketResponse, error) {
	var out dto.TicketResponse
	if err := c.do(ctx, http.MethodGet, "/api/tickets/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus changes a ticket's status. Admin only.
func (c *Client) UpdateStatus(ctx context.Context, id int64, status string) (*dto.TicketResponse, error) {
	var out dto.TicketResponse
	path := "/api/tickets/" + strconv.FormatInt(id, 10) + "/status"
	if err := c.do(ctx, http.MethodPatch, path, dto.UpdateTicketStatusRequest{Status: status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostMessage adds a message over HTTP.
func (c *Client) PostMessage(ctx context.Context, ticketID int64, content string) (*dto.MessageResponse, error) {
	var out dto.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/api/messages", dto.CreateMessageRequest{TicketID: ticketID, Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages fetches a ticket's conversation.
func (c *Client) ListMessages(ctx context.Context, ticketID int64) ([]dto.MessageResponse, error) {
	var out []dto.MessageResponse
	if err := c.do(ctx, http.MethodGet, "/api/messages/ticket/"+strconv.FormatInt(ticketID, 10), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Message: resp.Status()}
		if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
			apiErr.Message = body.Error
			apiErr.Code = body.Code
		}
		return apiErr
	}
	return nil
}
