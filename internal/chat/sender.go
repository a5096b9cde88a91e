package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

// maxMessageLen mirrors the composer's input cap.
const maxMessageLen = 500

// Sender executes the optimistic-send protocol: provisional insert,
// gateway call, reconcile or rollback. Whatever happens, the protocol
// settles with no provisional entry left standing.
type Sender struct {
	gw        Gateway
	timeline  *Timeline
	lifecycle *Lifecycle
	ticketID  int64
	listener  Listener
}

// NewSender wires a sender for one chamado.
func NewSender(gw Gateway, tl *Timeline, lc *Lifecycle, ticketID int64, listener Listener) *Sender {
	if listener == nil {
		listener = NopListener{}
	}
	return &Sender{gw: gw, timeline: tl, lifecycle: lc, ticketID: ticketID, listener: listener}
}

// Send runs the protocol for one message. The returned error is
// ErrTicketResolved when the chamado refuses messages (pre- or
// post-flight), a validation sentinel for bad input, or a wrapped
// transport error the user may retry.
func (s *Sender) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return ErrMessageTooLong
	}

	// Cheap local gate first: once the session knows the chamado is
	// resolved, refuse without touching the network.
	if !s.lifecycle.CanSend() {
		return ErrTicketResolved
	}

	// Authoritative pre-flight check. Status can change between renders,
	// so the decision is made on a fresh snapshot, not the polled one. A
	// failed check does not block the send; the backend re-validates.
	if fresh, _, err := s.gw.FetchTicket(ctx, s.ticketID); err != nil {
		log.Printf("[chat] pre-send status check failed: %v", err)
	} else if fresh.Status.Closed() {
		s.applySnapshot(fresh)
		s.listener.Notice(NoticeResolved, "Este chamado já foi resolvido e não aceita mais mensagens.")
		return ErrTicketResolved
	}

	prov := s.timeline.InsertProvisional(text)
	s.listener.TimelineChanged()
	s.listener.TypingChanged(true)
	defer s.listener.TypingChanged(false)

	outcome, err := s.gw.SendMessage(ctx, s.ticketID, text)
	if err != nil {
		s.timeline.RemoveProvisional(prov.LocalID)
		s.listener.TimelineChanged()
		return s.settleFailure(ctx, err)
	}

	s.timeline.ReconcileProvisional(prov.LocalID, outcome.Messages())
	s.listener.TimelineChanged()
	return nil
}

func (s *Sender) settleFailure(ctx context.Context, err error) error {
	if isResolvedError(err) {
		if fresh, _, ferr := s.gw.FetchTicket(ctx, s.ticketID); ferr != nil {
			log.Printf("[chat] refresh after resolved send failure: %v", ferr)
		} else {
			s.applySnapshot(fresh)
		}
		s.listener.Notice(NoticeResolved, "Este chamado já foi resolvido e não aceita mais mensagens.")
		return ErrTicketResolved
	}
	s.listener.Notice(NoticeSendFailed, "Não foi possível enviar a mensagem. Tente novamente.")
	return fmt.Errorf("send message: %w", err)
}

func (s *Sender) applySnapshot(fresh ticket.Ticket) {
	if s.lifecycle.Apply(fresh) {
		s.listener.StatusChanged(fresh)
	}
}
