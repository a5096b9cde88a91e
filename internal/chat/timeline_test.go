package chat_test

import (
	"sync"
	"testing"
	"time"

	"github.com/smartcall/helpdesk-go/internal/chat"
	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

func authoritative(id int64, text string, sender ticket.SenderKind) ticket.Message {
	return ticket.Message{ID: id, Sender: sender, Text: text, CreatedAt: time.Now().UTC()}
}

func TestReplaceAllSetsWatermark(t *testing.T) {
	tl := chat.NewTimeline()
	tl.ReplaceAll([]ticket.Message{
		authoritative(1, "oi", ticket.SenderUser),
		authoritative(2, "olá, como posso ajudar?", ticket.SenderAI),
	})

	if got := tl.LastSeenID(); got != 2 {
		t.Fatalf("LastSeenID = %d, want 2", got)
	}
	msgs := tl.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != 1 || msgs[1].ID != 2 {
		t.Fatalf("messages out of order: %v, %v", msgs[0].ID, msgs[1].ID)
	}
}

func TestReplaceAllEmptyResetsWatermark(t *testing.T) {
	tl := chat.NewTimeline()
	tl.MergeIncoming([]ticket.Message{authoritative(5, "x", ticket.SenderAI)})

	tl.ReplaceAll(nil)
	if got := tl.LastSeenID(); got != 0 {
		t.Fatalf("LastSeenID = %d, want 0 after empty ReplaceAll", got)
	}
}

func TestMergeIncomingIsIdempotent(t *testing.T) {
	tl := chat.NewTimeline()
	msg := authoritative(3, "já reiniciou o roteador?", ticket.SenderAI)
	tl.ReplaceAll([]ticket.Message{authoritative(1, "oi", ticket.SenderUser), msg})

	if added := tl.MergeIncoming([]ticket.Message{msg}); added != 0 {
		t.Fatalf("merge of existing message appended %d entries", added)
	}
	if got := tl.Len(); got != 2 {
		t.Fatalf("store size changed: %d, want 2", got)
	}
	if msgs := tl.Messages(); msgs[1].ID != 3 {
		t.Fatalf("existing message moved, position 1 now holds id %d", msgs[1].ID)
	}
}

func TestMergeIncomingSkipsDuplicatesWithinBatch(t *testing.T) {
	tl := chat.NewTimeline()
	msg := authoritative(1, "oi", ticket.SenderUser)

	if added := tl.MergeIncoming([]ticket.Message{msg, msg}); added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
}

func TestWatermarkMonotonic(t *testing.T) {
	tl := chat.NewTimeline()
	tl.MergeIncoming([]ticket.Message{authoritative(10, "a", ticket.SenderAI)})
	tl.MergeIncoming([]ticket.Message{authoritative(4, "b", ticket.SenderAI)})

	if got := tl.LastSeenID(); got != 10 {
		t.Fatalf("LastSeenID regressed to %d, want 10", got)
	}

	// A full reload always carries the complete history, so the
	// recomputed watermark covers the previous one.
	tl.ReplaceAll([]ticket.Message{
		authoritative(4, "b", ticket.SenderAI),
		authoritative(10, "a", ticket.SenderAI),
		authoritative(12, "c", ticket.SenderTechnician),
	})
	if got := tl.LastSeenID(); got != 12 {
		t.Fatalf("LastSeenID = %d, want 12", got)
	}
}

func TestProvisionalDoesNotAdvanceWatermark(t *testing.T) {
	tl := chat.NewTimeline()
	tl.MergeIncoming([]ticket.Message{authoritative(2, "a", ticket.SenderAI)})

	prov := tl.InsertProvisional("minha impressora parou")
	if got := tl.LastSeenID(); got != 2 {
		t.Fatalf("provisional insert moved watermark to %d", got)
	}
	if tl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tl.Len())
	}
	if !tl.RemoveProvisional(prov.LocalID) {
		t.Fatal("provisional entry not found for removal")
	}
	if tl.RemoveProvisional(prov.LocalID) {
		t.Fatal("provisional entry removed twice")
	}
}

func TestReconcileProvisional(t *testing.T) {
	tl := chat.NewTimeline()
	prov := tl.InsertProvisional("sem internet aqui")
	auth := authoritative(7, "sem internet aqui", ticket.SenderUser)

	tl.ReconcileProvisional(prov.LocalID, []ticket.Message{auth})

	msgs := tl.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != 7 || msgs[0].Provisional() {
		t.Fatalf("unexpected surviving entry: %+v", msgs[0])
	}
	if got := tl.LastSeenID(); got != 7 {
		t.Fatalf("LastSeenID = %d, want 7", got)
	}
}

func TestReconcileAfterConcurrentPollMerge(t *testing.T) {
	tl := chat.NewTimeline()
	prov := tl.InsertProvisional("sem internet aqui")
	auth := authoritative(7, "sem internet aqui", ticket.SenderUser)

	// A poll cycle pulls the authoritative message before the send path
	// reconciles it.
	tl.MergeIncoming([]ticket.Message{auth})
	tl.ReconcileProvisional(prov.LocalID, []ticket.Message{auth})

	count := 0
	for _, m := range tl.Messages() {
		if m.ID == 7 {
			count++
		}
		if m.Provisional() {
			t.Fatalf("provisional entry survived reconciliation: %+v", m)
		}
	}
	if count != 1 {
		t.Fatalf("authoritative message appears %d times, want 1", count)
	}
}

func TestConcurrentMergesNeverDuplicate(t *testing.T) {
	tl := chat.NewTimeline()
	batch := []ticket.Message{
		authoritative(1, "a", ticket.SenderUser),
		authoritative(2, "b", ticket.SenderAI),
		authoritative(3, "c", ticket.SenderAI),
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tl.MergeIncoming(batch)
		}()
	}
	wg.Wait()

	if got := tl.Len(); got != 3 {
		t.Fatalf("Len = %d after concurrent merges, want 3", got)
	}
	if got := tl.LastSeenID(); got != 3 {
		t.Fatalf("LastSeenID = %d, want 3", got)
	}
}
