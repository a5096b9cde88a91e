package chat_test

import (
	"context"
	"sync"

	"github.com/smartcall/helpdesk-go/internal/chat"
	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

// fakeGateway is an in-memory chat.Gateway with per-operation call
// counters and failure injection.
type fakeGateway struct {
	mu       sync.Mutex
	ticket   ticket.Ticket
	messages []ticket.Message

	fetchTicketErr error
	fetchNewErr    error
	sendErr        error
	setStatusErr   error
	escalateErr    error

	sendOutcome ticket.SendOutcome
	onSend      func(f *fakeGateway)
	onEscalate  func(f *fakeGateway)

	fetchTicketCalls int
	fetchNewCalls    int
	sendCalls        int
	setStatusCalls   int
	escalateCalls    int
}

func (f *fakeGateway) FetchTicket(_ context.Context, _ int64) (ticket.Ticket, []ticket.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchTicketCalls++
	if f.fetchTicketErr != nil {
		return ticket.Ticket{}, nil, f.fetchTicketErr
	}
	msgs := make([]ticket.Message, len(f.messages))
	copy(msgs, f.messages)
	return f.ticket, msgs, nil
}

func (f *fakeGateway) FetchNewMessages(_ context.Context, _ int64, afterID int64) ([]ticket.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchNewCalls++
	if f.fetchNewErr != nil {
		return nil, f.fetchNewErr
	}
	var out []ticket.Message
	for _, m := range f.messages {
		if m.ID > afterID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeGateway) SendMessage(_ context.Context, _ int64, _ string) (ticket.SendOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.onSend != nil {
		f.onSend(f)
	}
	if f.sendErr != nil {
		return ticket.SendOutcome{}, f.sendErr
	}
	return f.sendOutcome, nil
}

func (f *fakeGateway) SetStatus(_ context.Context, _ int64, status ticket.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setStatusCalls++
	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	f.ticket.Status = status
	return nil
}

func (f *fakeGateway) Escalate(_ context.Context, _ int64) (ticket.Ticket, []ticket.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalateCalls++
	if f.escalateErr != nil {
		return ticket.Ticket{}, nil, f.escalateErr
	}
	if f.onEscalate != nil {
		f.onEscalate(f)
	}
	msgs := make([]ticket.Message, len(f.messages))
	copy(msgs, f.messages)
	return f.ticket, msgs, nil
}

func (f *fakeGateway) calls() (fetchTicket, fetchNew, send int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchTicketCalls, f.fetchNewCalls, f.sendCalls
}

// recordingListener captures core events for assertions.
type recordingListener struct {
	mu             sync.Mutex
	timelineEvents int
	statuses       []ticket.Ticket
	typing         []bool
	notices        []chat.NoticeKind
}

func (l *recordingListener) TimelineChanged() {
	l.mu.Lock()
	l.timelineEvents++
	l.mu.Unlock()
}

func (l *recordingListener) StatusChanged(t ticket.Ticket) {
	l.mu.Lock()
	l.statuses = append(l.statuses, t)
	l.mu.Unlock()
}

func (l *recordingListener) TypingChanged(active bool) {
	l.mu.Lock()
	l.typing = append(l.typing, active)
	l.mu.Unlock()
}

func (l *recordingListener) Notice(kind chat.NoticeKind, _ string) {
	l.mu.Lock()
	l.notices = append(l.notices, kind)
	l.mu.Unlock()
}

func (l *recordingListener) lastStatus() (ticket.Ticket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.statuses) == 0 {
		return ticket.Ticket{}, false
	}
	return l.statuses[len(l.statuses)-1], true
}

func (l *recordingListener) noticeKinds() []chat.NoticeKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]chat.NoticeKind, len(l.notices))
	copy(out, l.notices)
	return out
}

func (l *recordingListener) typingSequence() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]bool, len(l.typing))
	copy(out, l.typing)
	return out
}

func (l *recordingListener) timelineEventCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timelineEvents
}
