package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smartcall/helpdesk-go/internal/chat"
	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

func newSenderHarness(gw *fakeGateway, current ticket.Ticket) (*chat.Sender, *chat.Timeline, *chat.Lifecycle, *recordingListener) {
	tl := chat.NewTimeline()
	lc := chat.NewLifecycle(current)
	listener := &recordingListener{}
	return chat.NewSender(gw, tl, lc, current.ID, listener), tl, lc, listener
}

func TestSendRejectsInvalidInput(t *testing.T) {
	gw := &fakeGateway{}
	snd, _, _, _ := newSenderHarness(gw, ticket.Ticket{ID: 1, Status: ticket.StatusInProgress})

	if err := snd.Send(context.Background(), "   "); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("blank text: err = %v, want ErrEmptyMessage", err)
	}
	if err := snd.Send(context.Background(), strings.Repeat("a", 501)); !errors.Is(err, chat.ErrMessageTooLong) {
		t.Fatalf("oversized text: err = %v, want ErrMessageTooLong", err)
	}
	if ft, _, sends := gw.calls(); ft != 0 || sends != 0 {
		t.Fatalf("validation failures hit the gateway: fetches=%d sends=%d", ft, sends)
	}
}

func TestSendRefusedLocallyWhenResolved(t *testing.T) {
	gw := &fakeGateway{}
	snd, tl, _, _ := newSenderHarness(gw, ticket.Ticket{ID: 1, Status: ticket.StatusResolved})

	if err := snd.Send(context.Background(), "oi"); !errors.Is(err, chat.ErrTicketResolved) {
		t.Fatalf("err = %v, want ErrTicketResolved", err)
	}
	if ft, _, sends := gw.calls(); ft != 0 || sends != 0 {
		t.Fatalf("resolved gate must not touch the network: fetches=%d sends=%d", ft, sends)
	}
	if tl.Len() != 0 {
		t.Fatalf("timeline gained %d entries", tl.Len())
	}
}

func TestSendAbortsOnFreshResolvedSnapshot(t *testing.T) {
	gw := &fakeGateway{ticket: ticket.Ticket{ID: 1, Status: ticket.StatusResolved}}
	snd, tl, lc, listener := newSenderHarness(gw, ticket.Ticket{ID: 1, Status: ticket.StatusInProgress})

	if err := snd.Send(context.Background(), "oi"); !errors.Is(err, chat.ErrTicketResolved) {
		t.Fatalf("err = %v, want ErrTicketResolved", err)
	}
	if _, _, sends := gw.calls(); sends != 0 {
		t.Fatalf("message was sent despite resolved pre-flight: sends=%d", sends)
	}
	if tl.Len() != 0 {
		t.Fatal("provisional entry inserted before the pre-flight check settled")
	}
	if lc.CanSend() {
		t.Fatal("lifecycle did not absorb the resolved snapshot")
	}
	if kinds := listener.noticeKinds(); len(kinds) != 1 || kinds[0] != chat.NoticeResolved {
		t.Fatalf("notices = %v, want [NoticeResolved]", kinds)
	}
}

func TestSendSuccessUserMessageOnly(t *testing.T) {
	gw := &fakeGateway{
		ticket: ticket.Ticket{ID: 1, Status: ticket.StatusInProgress},
		sendOutcome: ticket.SendOutcome{
			UserMessage: ticket.Message{ID: 5, Sender: ticket.SenderUser, Text: "oi", CreatedAt: time.Now().UTC()},
		},
	}
	snd, tl, _, listener := newSenderHarness(gw, ticket.Ticket{ID: 1, Status: ticket.StatusInProgress})

	if err := snd.Send(context.Background(), "oi"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs := tl.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != 5 || msgs[0].Provisional() {
		t.Fatalf("surviving entry is not the authoritative echo: %+v", msgs[0])
	}
	if got := tl.LastSeenID(); got != 5 {
		t.Fatalf("LastSeenID = %d, want 5", got)
	}
	if seq := listener.typingSequence(); len(seq) != 2 || !seq[0] || seq[1] {
		t.Fatalf("typing sequence = %v, want [true false]", seq)
	}
}

func TestSendSuccessWithBotReply(t *testing.T) {
	bot := ticket.Message{ID: 6, Sender: ticket.SenderAI, Text: "vou verificar", CreatedAt: time.Now().UTC()}
	gw := &fakeGateway{
		ticket: ticket.Ticket{ID: 1, Status: ticket.StatusInProgress},
		sendOutcome: ticket.SendOutcome{
			UserMessage: ticket.Message{ID: 5, Sender: ticket.SenderUser, Text: "sem internet", CreatedAt: time.Now().UTC()},
			BotMessage:  &bot,
		},
	}
	snd, tl, _, _ := newSenderHarness(gw, ticket.Ticket{ID: 1, Status: ticket.StatusInProgress})

	if err := snd.Send(context.Background(), "sem internet"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := tl.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
	if got := tl.LastSeenID(); got != 6 {
		t.Fatalf("LastSeenID = %d, want 6", got)
	}
}

func TestSendFailureRollsBackProvisional(t *testing.T) {
	gw := &fakeGateway{
		ticket:  ticket.Ticket{ID: 1, Status: ticket.StatusInProgress},
		sendErr: errors.New("api error 503: servidor indisponível"),
	}
	snd, tl, lc, listener := newSenderHarness(gw, ticket.Ticket{ID: 1, Status: ticket.StatusInProgress})

	err := snd.Send(context.Background(), "oi")
	if err == nil || errors.Is(err, chat.ErrTicketResolved) {
		t.Fatalf("err = %v, want wrapped transport error", err)
	}
	if tl.Len() != 0 {
		t.Fatalf("provisional entry survived the rollback, Len = %d", tl.Len())
	}
	if !lc.CanSend() {
		t.Fatal("transient failure must leave the composer open")
	}
	if kinds := listener.noticeKinds(); len(kinds) != 1 || kinds[0] != chat.NoticeSendFailed {
		t.Fatalf("notices = %v, want [NoticeSendFailed]", kinds)
	}
}

func TestSendFailureWithResolvedText(t *testing.T) {
	gw := &fakeGateway{
		ticket:  ticket.Ticket{ID: 1, Status: ticket.StatusInProgress},
		sendErr: errors.New("api error 409: chamado resolvido e bloqueado para novas mensagens"),
	}
	// The backend resolved the chamado behind our back; the refresh after
	// the failure observes it.
	gw.onSend = func(f *fakeGateway) { f.ticket.Status = ticket.StatusResolved }
	snd, tl, lc, listener := newSenderHarness(gw, ticket.Ticket{ID: 1, Status: ticket.StatusInProgress})

	if err := snd.Send(context.Background(), "oi"); !errors.Is(err, chat.ErrTicketResolved) {
		t.Fatalf("err = %v, want ErrTicketResolved", err)
	}
	if tl.Len() != 0 {
		t.Fatalf("provisional entry survived, Len = %d", tl.Len())
	}
	if lc.CanSend() {
		t.Fatal("composer still open after resolved send failure")
	}
	if kinds := listener.noticeKinds(); len(kinds) != 1 || kinds[0] != chat.NoticeResolved {
		t.Fatalf("notices = %v, want [NoticeResolved]", kinds)
	}

	// Subsequent sends are refused without a network round trip.
	before, _, _ := gw.calls()
	if err := snd.Send(context.Background(), "ainda aí?"); !errors.Is(err, chat.ErrTicketResolved) {
		t.Fatalf("follow-up err = %v, want ErrTicketResolved", err)
	}
	if after, _, _ := gw.calls(); after != before {
		t.Fatalf("follow-up send fetched the chamado %d more times", after-before)
	}
}

func TestSendProceedsWhenPreflightFails(t *testing.T) {
	gw := &fakeGateway{
		fetchTicketErr: errors.New("timeout"),
		sendOutcome: ticket.SendOutcome{
			UserMessage: ticket.Message{ID: 5, Sender: ticket.SenderUser, Text: "oi", CreatedAt: time.Now().UTC()},
		},
	}
	snd, tl, _, _ := newSenderHarness(gw, ticket.Ticket{ID: 1, Status: ticket.StatusInProgress})

	if err := snd.Send(context.Background(), "oi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, _, sends := gw.calls(); sends != 1 {
		t.Fatalf("sends = %d, want 1", sends)
	}
	if tl.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tl.Len())
	}
}
