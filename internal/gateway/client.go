// Package gateway implements the HTTP client for the remote helpdesk
// API: authentication, chamado listing/creation and the chat operations
// the sync core consumes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

// defaultTimeout is generous on purpose: creating a chamado and sending
// a message both wait for AI generation on the backend side.
const defaultTimeout = 30 * time.Second

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, strings.ToLower(http.StatusText(e.StatusCode)))
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the helpdesk backend. The bearer token is attached to
// every request once set; a 401 response clears it and fires the
// OnUnauthorized hook so the app can force a fresh login.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// OnUnauthorized, when set, runs once per 401 response.
	OnUnauthorized func()

	mu    sync.RWMutex
	token string
}

// NewClient builds a client for the given API base URL, e.g.
// "http://localhost:8000/api".
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SetToken installs the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token, empty when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// doRequest performs one API call. A non-nil body is JSON-encoded; a
// non-nil out receives the decoded response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Token invalid, expired, or the user was deleted. Session
		// invalidation is handled by the hook; the caller just sees the
		// operation fail.
		c.SetToken("")
		if c.OnUnauthorized != nil {
			c.OnUnauthorized()
		}
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// User is the authenticated account profile.
type User struct {
	ID       string `json:"Id"`
	Email    string `json:"Email"`
	FullName string `json:"FullName"`
}

// AuthSession is the result of a successful login or registration.
type AuthSession struct {
	Token string `json:"Token"`
	User  User   `json:"User"`
}

// Login authenticates and installs the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (AuthSession, error) {
	payload := struct {
		Email    string `json:"Email"`
		Password string `json:"Password"`
	}{Email: email, Password: password}

	var session AuthSession
	if err := c.doRequest(ctx, http.MethodPost, "/auth/login", payload, &session); err != nil {
		return AuthSession{}, err
	}
	c.SetToken(session.Token)
	return session, nil
}

// Register creates an account and installs the returned token.
func (c *Client) Register(ctx context.Context, email, password, confirmPassword, fullName string) (AuthSession, error) {
	payload := struct {
		Email           string `json:"Email"`
		Password        string `json:"Password"`
		ConfirmPassword string `json:"ConfirmPassword"`
		FullName        string `json:"FullName"`
	}{Email: email, Password: password, ConfirmPassword: confirmPassword, FullName: fullName}

	var session AuthSession
	if err := c.doRequest(ctx, http.MethodPost, "/auth/register", payload, &session); err != nil {
		return AuthSession{}, err
	}
	c.SetToken(session.Token)
	return session, nil
}

// Logout invalidates the token server-side and drops it locally. The
// local token is cleared even when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doRequest(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

// minTicketDescription mirrors the creation form's validation rule.
const minTicketDescription = 10

// CreateTicket opens a chamado from an initial problem description. The
// backend generates the first AI reply before answering, hence the
// generous client timeout.
func (c *Client) CreateTicket(ctx context.Context, description string) (ticket.Ticket, []ticket.Message, error) {
	description = strings.TrimSpace(description)
	if len([]rune(description)) < minTicketDescription {
		return ticket.Ticket{}, nil, fmt.Errorf("a descrição deve ter no mínimo %d caracteres", minTicketDescription)
	}

	payload := struct {
		MensagemInicial string `json:"MensagemInicial"`
	}{MensagemInicial: description}

	var wire wireTicket
	if err := c.doRequest(ctx, http.MethodPost, "/chamados", payload, &wire); err != nil {
		return ticket.Ticket{}, nil, err
	}
	t, msgs := wire.toDomain()
	return t, msgs, nil
}

// ListTickets returns the caller's chamados.
func (c *Client) ListTickets(ctx context.Context) ([]ticket.Ticket, error) {
	var wires []wireTicket
	if err := c.doRequest(ctx, http.MethodGet, "/chamados", nil, &wires); err != nil {
		return nil, err
	}
	out := make([]ticket.Ticket, 0, len(wires))
	for _, w := range wires {
		t, _ := w.toDomain()
		out = append(out, t)
	}
	return out, nil
}

// FetchTicket returns the chamado and its full message list.
func (c *Client) FetchTicket(ctx context.Context, ticketID int64) (ticket.Ticket, []ticket.Message, error) {
	var wire wireTicket
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/chamados/%d", ticketID), nil, &wire); err != nil {
		return ticket.Ticket{}, nil, err
	}
	t, msgs := wire.toDomain()
	return t, msgs, nil
}

// FetchNewMessages returns messages with id > afterID, ascending.
func (c *Client) FetchNewMessages(ctx context.Context, ticketID, afterID int64) ([]ticket.Message, error) {
	var wires []wireMessage
	path := fmt.Sprintf("/chamados/%d/mensagens/novas?afterId=%d", ticketID, afterID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &wires); err != nil {
		return nil, err
	}
	msgs := make([]ticket.Message, 0, len(wires))
	for _, w := range wires {
		msgs = append(msgs, w.toDomain())
	}
	return msgs, nil
}

// SendMessage posts a user message and returns the stored message plus
// the agent's paired reply when one was generated in the same turn.
func (c *Client) SendMessage(ctx context.Context, ticketID int64, text string) (ticket.SendOutcome, error) {
	payload := struct {
		Message string `json:"Message"`
	}{Message: text}

	var resp struct {
		UserMessage wireMessage  `json:"UserMessage"`
		BotMessage  *wireMessage `json:"BotMessage"`
	}
	path := fmt.Sprintf("/chamados/%d/mensagens", ticketID)
	if err := c.doRequest(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return ticket.SendOutcome{}, err
	}

	outcome := ticket.SendOutcome{UserMessage: resp.UserMessage.toDomain()}
	if resp.BotMessage != nil {
		bot := resp.BotMessage.toDomain()
		outcome.BotMessage = &bot
	}
	return outcome, nil
}

// SetStatus updates the chamado status. The endpoint takes the bare
// status label as a JSON string body and is idempotent.
func (c *Client) SetStatus(ctx context.Context, ticketID int64, status ticket.Status) error {
	path := fmt.Sprintf("/chamados/%d/status", ticketID)
	return c.doRequest(ctx, http.MethodPatch, path, status.Label(), nil)
}

// Escalate hands the chamado to a technician. The response may already
// include an injected system message.
func (c *Client) Escalate(ctx context.Context, ticketID int64) (ticket.Ticket, []ticket.Message, error) {
	var wire wireTicket
	if err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/chamados/%d/escalar", ticketID), nil, &wire); err != nil {
		return ticket.Ticket{}, nil, err
	}
	t, msgs := wire.toDomain()
	return t, msgs, nil
}
