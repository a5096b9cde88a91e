package chat

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

// Options tunes a chat session. Zero values pick the defaults the mobile
// origin shipped with.
type Options struct {
	WarmupDelay  time.Duration // delay before the first poll cycle
	PollInterval time.Duration // fixed poll period
	Listener     Listener      // UI event sink, may be nil
}

const (
	defaultWarmupDelay  = 2 * time.Second
	defaultPollInterval = 2 * time.Second
)

// Session owns the timeline of one chamado for the duration of a chat.
// The timeline is rebuilt from scratch on every Open; nothing is cached
// across sessions.
type Session struct {
	gw        Gateway
	ticketID  int64
	timeline  *Timeline
	lifecycle *Lifecycle
	sender    *Sender
	listener  Listener

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Open loads the chamado, seeds the timeline and starts the poll loop.
// The supplied context bounds the initial load; the poll loop runs until
// Close.
func Open(ctx context.Context, gw Gateway, ticketID int64, opts Options) (*Session, error) {
	if opts.WarmupDelay <= 0 {
		opts.WarmupDelay = defaultWarmupDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Listener == nil {
		opts.Listener = NopListener{}
	}

	t, msgs, err := gw.FetchTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load chamado %d: %w", ticketID, err)
	}

	s := &Session{
		gw:        gw,
		ticketID:  ticketID,
		timeline:  NewTimeline(),
		lifecycle: NewLifecycle(t),
		done:      make(chan struct{}),
	}
	// Events pass through the liveness guard so callbacks landing after
	// teardown become no-ops.
	s.listener = guardedListener{s: s, inner: opts.Listener}
	s.sender = NewSender(gw, s.timeline, s.lifecycle, ticketID, s.listener)
	s.timeline.ReplaceAll(msgs)

	pollCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	poller := NewPoller(opts.WarmupDelay, opts.PollInterval,
		Check{Name: "new-messages", Run: s.pollMessages},
		Check{Name: "ticket-status", Run: s.pollTicket},
	)
	go func() {
		defer close(s.done)
		poller.Run(pollCtx)
	}()

	log.Printf("[chat] session opened for chamado %d (%d messages, status %s)",
		ticketID, len(msgs), t.Status)
	return s, nil
}

// Messages returns the current timeline in arrival order.
func (s *Session) Messages() []ticket.Message { return s.timeline.Messages() }

// Ticket returns the last-known chamado snapshot.
func (s *Session) Ticket() ticket.Ticket { return s.lifecycle.Ticket() }

// CanSend reports whether the composer is open.
func (s *Session) CanSend() bool { return s.lifecycle.CanSend() }

// Send runs the optimistic-send protocol for one message.
func (s *Session) Send(ctx context.Context, text string) error {
	if !s.alive() {
		return ErrSessionClosed
	}
	return s.sender.Send(ctx, text)
}

// Resolve marks the chamado resolved: remote set-status, optimistic
// local update, then a confirming refetch.
func (s *Session) Resolve(ctx context.Context) error {
	if !s.alive() {
		return ErrSessionClosed
	}
	if err := s.gw.SetStatus(ctx, s.ticketID, ticket.StatusResolved); err != nil {
		return fmt.Errorf("resolve chamado %d: %w", s.ticketID, err)
	}
	s.lifecycle.SetStatus(ticket.StatusResolved)
	s.listener.StatusChanged(s.lifecycle.Ticket())

	if fresh, _, err := s.gw.FetchTicket(ctx, s.ticketID); err != nil {
		log.Printf("[chat] confirming refetch after resolve: %v", err)
	} else if s.lifecycle.Apply(fresh) {
		s.listener.StatusChanged(fresh)
	}
	return nil
}

// Escalate hands the chamado to a human technician. Escalation may
// inject a system message, so the timeline is fully reloaded instead of
// waiting for the incremental poll.
func (s *Session) Escalate(ctx context.Context) error {
	if !s.alive() {
		return ErrSessionClosed
	}
	if _, _, err := s.gw.Escalate(ctx, s.ticketID); err != nil {
		return fmt.Errorf("escalate chamado %d: %w", s.ticketID, err)
	}

	fresh, msgs, err := s.gw.FetchTicket(ctx, s.ticketID)
	if err != nil {
		return fmt.Errorf("reload chamado %d after escalation: %w", s.ticketID, err)
	}
	s.timeline.ReplaceAll(msgs)
	s.listener.TimelineChanged()
	if s.lifecycle.Apply(fresh) {
		s.listener.StatusChanged(fresh)
	}
	s.listener.Notice(NoticeEscalated, "Seu chamado foi encaminhado para um técnico especializado.")
	return nil
}

// Close tears the session down: the poll loop stops and late callbacks
// from in-flight calls become no-ops. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	log.Printf("[chat] session closed for chamado %d", s.ticketID)
}

func (s *Session) alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// pollMessages is poll check (a): pull messages past the watermark and
// fold them in.
func (s *Session) pollMessages(ctx context.Context) error {
	msgs, err := s.gw.FetchNewMessages(ctx, s.ticketID, s.timeline.LastSeenID())
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if added := s.timeline.MergeIncoming(msgs); added > 0 {
		s.listener.TimelineChanged()
	}
	return nil
}

// pollTicket is poll check (b): mirror remote status and technician
// assignment changes.
func (s *Session) pollTicket(ctx context.Context) error {
	fresh, _, err := s.gw.FetchTicket(ctx, s.ticketID)
	if err != nil {
		return err
	}
	if s.lifecycle.Apply(fresh) {
		log.Printf("[chat] chamado %d changed remotely: status=%s technician=%q",
			s.ticketID, fresh.Status, fresh.TechnicianName)
		s.listener.StatusChanged(fresh)
	}
	return nil
}

// guardedListener drops events once the session is closed.
type guardedListener struct {
	s     *Session
	inner Listener
}

func (g guardedListener) TimelineChanged() {
	if g.s.alive() {
		g.inner.TimelineChanged()
	}
}

func (g guardedListener) StatusChanged(t ticket.Ticket) {
	if g.s.alive() {
		g.inner.StatusChanged(t)
	}
}

func (g guardedListener) TypingChanged(active bool) {
	if g.s.alive() {
		g.inner.TypingChanged(active)
	}
}

func (g guardedListener) Notice(kind NoticeKind, text string) {
	if g.s.alive() {
		g.inner.Notice(kind, text)
	}
}
