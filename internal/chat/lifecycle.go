package chat

import (
	"sync"

	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

// Lifecycle tracks the last-known chamado snapshot and gates the send
// path. It is written by both the poll loop (passive mirror) and the
// explicit resolve/escalate actions.
type Lifecycle struct {
	mu      sync.RWMutex
	current ticket.Ticket
}

// NewLifecycle starts tracking from an initial snapshot.
func NewLifecycle(t ticket.Ticket) *Lifecycle {
	return &Lifecycle{current: t}
}

// Ticket returns the last-known snapshot.
func (l *Lifecycle) Ticket() ticket.Ticket {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// CanSend reports whether the composer is open. Only Resolved closes it;
// an escalated chamado still accepts messages.
func (l *Lifecycle) CanSend() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.current.Status.Closed()
}

// Apply folds in a fresh remote snapshot and reports whether anything
// the UI cares about (status, technician assignment) changed.
func (l *Lifecycle) Apply(fresh ticket.Ticket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed := l.current.Changed(fresh)
	l.current = fresh
	return changed
}

// SetStatus updates the local status optimistically, ahead of the
// confirming refetch after a resolve action.
func (l *Lifecycle) SetStatus(s ticket.Status) {
	l.mu.Lock()
	l.current.Status = s
	l.mu.Unlock()
}
