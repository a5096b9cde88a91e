package chat

import (
	"sync"

	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

// Timeline is the ordered, identity-deduplicated message sequence of one
// chamado. Entries keep arrival order, not id order: a provisional
// message is appended eagerly and sits ahead of the authoritative
// messages that later replace it.
//
// All mutations serialize on one mutex, so a reconcile is atomic with
// respect to concurrent merges from the poll loop: an authoritative
// message can never appear twice and the provisional entry is removed
// exactly once.
type Timeline struct {
	mu         sync.RWMutex
	entries    []ticket.Message
	seen       map[int64]struct{}
	lastSeenID int64
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[int64]struct{})}
}

// ReplaceAll resets the timeline to the given authoritative sequence and
// recomputes the polling watermark. Used on initial load and after a
// full reload (escalation).
func (t *Timeline) ReplaceAll(msgs []ticket.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make([]ticket.Message, 0, len(msgs))
	t.seen = make(map[int64]struct{}, len(msgs))
	t.lastSeenID = 0
	for _, m := range msgs {
		if m.Provisional() {
			continue
		}
		if _, dup := t.seen[m.ID]; dup {
			continue
		}
		t.entries = append(t.entries, m)
		t.seen[m.ID] = struct{}{}
		if m.ID > t.lastSeenID {
			t.lastSeenID = m.ID
		}
	}
}

// MergeIncoming folds authoritative messages into the timeline, skipping
// any id already present. The merge is idempotent and commutative, which
// is what lets poll-driven and send-driven updates interleave freely.
// Returns how many messages were actually appended.
func (t *Timeline) MergeIncoming(msgs []ticket.Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mergeLocked(msgs)
}

func (t *Timeline) mergeLocked(msgs []ticket.Message) int {
	added := 0
	for _, m := range msgs {
		if m.Provisional() {
			continue
		}
		if _, dup := t.seen[m.ID]; dup {
			continue
		}
		t.entries = append(t.entries, m)
		t.seen[m.ID] = struct{}{}
		added++
		if m.ID > t.lastSeenID {
			t.lastSeenID = m.ID
		}
	}
	return added
}

// InsertProvisional appends a placeholder user message and returns it.
// Provisional entries never advance the watermark.
func (t *Timeline) InsertProvisional(text string) ticket.Message {
	msg := ticket.NewProvisional(text)
	t.mu.Lock()
	t.entries = append(t.entries, msg)
	t.mu.Unlock()
	return msg
}

// ReconcileProvisional removes the placeholder identified by localID and
// merges the authoritative messages that replace it, in one critical
// section. Messages already pulled in by a concurrent poll are skipped.
// Returns how many messages were appended.
func (t *Timeline) ReconcileProvisional(localID string, msgs []ticket.Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeProvisionalLocked(localID)
	return t.mergeLocked(msgs)
}

// RemoveProvisional deletes the placeholder identified by localID, the
// rollback half of a failed send. Reports whether it was present.
func (t *Timeline) RemoveProvisional(localID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeProvisionalLocked(localID)
}

func (t *Timeline) removeProvisionalLocked(localID string) bool {
	for i, m := range t.entries {
		if m.LocalID == localID {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Messages returns a copy of the timeline in arrival order.
func (t *Timeline) Messages() []ticket.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ticket.Message, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries, provisional included.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// LastSeenID returns the highest authoritative message id folded in so
// far, the watermark for incremental polling.
func (t *Timeline) LastSeenID() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSeenID
}
