// Package devserver is a local, in-memory fake of the remote helpdesk
// backend. It exists so the client can be developed and integration
// tested without the production API; it is a test double, not the
// backend.
package devserver

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

var (
	ErrEmailTaken         = errors.New("email já cadastrado")
	ErrInvalidCredentials = errors.New("email ou senha inválidos")
	ErrTicketNotFound     = errors.New("chamado não encontrado")
)

// User is a registered account.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash []byte
}

// StoredMessage is one persisted chat message. IDs are assigned from a
// store-wide counter, so they increase monotonically within any ticket.
type StoredMessage struct {
	ID         int64
	Text       string
	IsUser     bool
	SenderType ticket.SenderKind
	CreatedAt  time.Time
}

// StoredTicket is one persisted chamado with its full message history.
type StoredTicket struct {
	ID                   int64
	OwnerID              string
	Title                string
	Status               ticket.Status
	AssignedToTechnician bool
	TechnicianName       string
	CreatedAt            time.Time
	Messages             []StoredMessage
}

// Store holds all dev-server state behind one RWMutex.
type Store struct {
	mu           sync.RWMutex
	users        map[string]*User // keyed by lowercase email
	tickets      map[int64]*StoredTicket
	nextTicketID int64
	nextMsgID    int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:   make(map[string]*User),
		tickets: make(map[int64]*StoredTicket),
	}
}

// CreateUser registers an account with a bcrypt-hashed password.
func (s *Store) CreateUser(email, fullName, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	key := strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[key]; exists {
		return nil, ErrEmailTaken
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        key,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
	}
	s.users[key] = user
	return user, nil
}

// Authenticate verifies an email/password pair.
func (s *Store) Authenticate(email, password string) (*User, error) {
	s.mu.RLock()
	user, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateTicket opens a chamado seeded with the user's initial message.
func (s *Store) CreateTicket(ownerID, description string) *StoredTicket {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTicketID++
	t := &StoredTicket{
		ID:        s.nextTicketID,
		OwnerID:   ownerID,
		Title:     ticketTitle(description),
		Status:    ticket.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.tickets[t.ID] = t
	s.appendLocked(t, description, true, ticket.SenderUser)
	return t.clone()
}

// ticketTitle derives the list title from the opening description.
func ticketTitle(description string) string {
	const limit = 60
	runes := []rune(strings.TrimSpace(description))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-3]) + "..."
}

// AppendMessage stores a message on the ticket and returns it.
func (s *Store) AppendMessage(ticketID int64, text string, isUser bool, sender ticket.SenderKind) (StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return StoredMessage{}, ErrTicketNotFound
	}
	return s.appendLocked(t, text, isUser, sender), nil
}

func (s *Store) appendLocked(t *StoredTicket, text string, isUser bool, sender ticket.SenderKind) StoredMessage {
	s.nextMsgID++
	msg := StoredMessage{
		ID:         s.nextMsgID,
		Text:       text,
		IsUser:     isUser,
		SenderType: sender,
		CreatedAt:  time.Now().UTC(),
	}
	t.Messages = append(t.Messages, msg)
	return msg
}

// Ticket returns a copy of the chamado.
func (s *Store) Ticket(ticketID int64) (*StoredTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return t.clone(), nil
}

// TicketsByOwner lists a user's chamados in creation order.
func (s *Store) TicketsByOwner(ownerID string) []*StoredTicket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*StoredTicket
	for id := int64(1); id <= s.nextTicketID; id++ {
		if t, ok := s.tickets[id]; ok && t.OwnerID == ownerID {
			out = append(out, t.clone())
		}
	}
	return out
}

// MessagesAfter returns messages with id > afterID, ascending.
func (s *Store) MessagesAfter(ticketID, afterID int64) ([]StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}

	var out []StoredMessage
	for _, m := range t.Messages {
		if m.ID > afterID {
			out = append(out, m)
		}
	}
	return out, nil
}

// SetStatus updates the chamado status; idempotent.
func (s *Store) SetStatus(ticketID int64, status ticket.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return ErrTicketNotFound
	}
	t.Status = status
	return nil
}

// Escalate hands the chamado to the on-call technician and injects the
// handover message.
func (s *Store) Escalate(ticketID int64, technicianName string) (*StoredTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}

	t.Status = ticket.StatusEscalated
	t.AssignedToTechnician = true
	t.TechnicianName = technicianName
	s.appendLocked(t,
		"Olá! Sou o técnico "+technicianName+" e assumi o seu chamado. Vou analisar o histórico e retorno em instantes.",
		false, ticket.SenderTechnician)
	return t.clone(), nil
}

func (t *StoredTicket) clone() *StoredTicket {
	c := *t
	c.Messages = make([]StoredMessage, len(t.Messages))
	copy(c.Messages, t.Messages)
	return &c
}
