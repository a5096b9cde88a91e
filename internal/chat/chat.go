// Package chat implements the synchronization core that keeps a local
// chamado timeline consistent with the remote backend under polling,
// concurrent sends and unilateral remote status changes.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

// Gateway is the slice of the remote helpdesk API the sync core
// consumes. Token handling, timeouts and 401 invalidation live below
// this interface; the core only sees operations failing.
type Gateway interface {
	FetchTicket(ctx context.Context, ticketID int64) (ticket.Ticket, []ticket.Message, error)
	FetchNewMessages(ctx context.Context, ticketID, afterID int64) ([]ticket.Message, error)
	SendMessage(ctx context.Context, ticketID int64, text string) (ticket.SendOutcome, error)
	SetStatus(ctx context.Context, ticketID int64, status ticket.Status) error
	Escalate(ctx context.Context, ticketID int64) (ticket.Ticket, []ticket.Message, error)
}

// NoticeKind classifies user-facing notices emitted by the core.
type NoticeKind int

const (
	// NoticeResolved: the chamado is resolved and refuses new messages.
	NoticeResolved NoticeKind = iota
	// NoticeSendFailed: a transient failure, the user may retry.
	NoticeSendFailed
	// NoticeEscalated: the chamado was handed to a technician.
	NoticeEscalated
)

// Listener receives UI-facing events from the core. Implementations run
// on the caller's goroutine and must not block.
type Listener interface {
	TimelineChanged()
	StatusChanged(t ticket.Ticket)
	TypingChanged(active bool)
	Notice(kind NoticeKind, text string)
}

// NopListener discards all events.
type NopListener struct{}

func (NopListener) TimelineChanged() {}

func (NopListener) StatusChanged(ticket.Ticket) {}

func (NopListener) TypingChanged(bool) {}

func (NopListener) Notice(NoticeKind, string) {}

var (
	// ErrEmptyMessage rejects a send whose text is empty after trimming.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrMessageTooLong rejects a send above the composer limit.
	ErrMessageTooLong = errors.New("message text exceeds limit")
	// ErrTicketResolved rejects a send against a resolved chamado.
	ErrTicketResolved = errors.New("chamado is resolved and refuses new messages")
	// ErrSessionClosed rejects operations on a torn-down session.
	ErrSessionClosed = errors.New("chat session is closed")
)

// isResolvedError inspects a backend error for the resolved/blocked
// indicator, the post-flight half of the resolved gate. The backend
// reports this condition in Portuguese error text.
func isResolvedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resolvido") || strings.Contains(msg, "bloqueado")
}
