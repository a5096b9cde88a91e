package ticket_test

import (
	"testing"

	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		label string
		want  ticket.Status
		ok    bool
	}{
		{"Pendente", ticket.StatusPending, true},
		{"Em Andamento", ticket.StatusInProgress, true},
		{"Resolvido", ticket.StatusResolved, true},
		{"Escalado", ticket.StatusEscalated, true},
		{"Cancelado", ticket.StatusUnknown, false},
		{"", ticket.StatusUnknown, false},
	}

	for _, tc := range cases {
		got, ok := ticket.ParseStatus(tc.label)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseStatus(%q) = %v, %v; want %v, %v", tc.label, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStatusFromCode(t *testing.T) {
	for code, want := range map[int]ticket.Status{
		0: ticket.StatusPending,
		1: ticket.StatusInProgress,
		2: ticket.StatusResolved,
		3: ticket.StatusEscalated,
	} {
		got, ok := ticket.StatusFromCode(code)
		if !ok || got != want {
			t.Fatalf("StatusFromCode(%d) = %v, %v; want %v, true", code, got, ok, want)
		}
	}

	if _, ok := ticket.StatusFromCode(7); ok {
		t.Fatal("expected unknown status for out-of-range code")
	}
}

func TestStatusClosed(t *testing.T) {
	if !ticket.StatusResolved.Closed() {
		t.Fatal("resolved must close the composer")
	}
	for _, s := range []ticket.Status{ticket.StatusPending, ticket.StatusInProgress, ticket.StatusEscalated} {
		if s.Closed() {
			t.Fatalf("status %v must stay writable", s)
		}
	}
}

func TestNewProvisionalDistinctIDs(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		m := ticket.NewProvisional("oi")
		if !m.Provisional() {
			t.Fatal("expected provisional message")
		}
		if m.ID != 0 {
			t.Fatalf("provisional message must not carry an authoritative id, got %d", m.ID)
		}
		if _, dup := seen[m.LocalID]; dup {
			t.Fatalf("duplicate local id %q", m.LocalID)
		}
		seen[m.LocalID] = struct{}{}
	}
}

func TestTicketChanged(t *testing.T) {
	base := ticket.Ticket{ID: 1, Status: ticket.StatusPending}

	if base.Changed(base) {
		t.Fatal("identical snapshot must not report a change")
	}
	if !base.Changed(ticket.Ticket{ID: 1, Status: ticket.StatusResolved}) {
		t.Fatal("status change must be reported")
	}
	if !base.Changed(ticket.Ticket{ID: 1, Status: ticket.StatusPending, AssignedToTechnician: true, TechnicianName: "Carlos"}) {
		t.Fatal("technician assignment must be reported")
	}
}
