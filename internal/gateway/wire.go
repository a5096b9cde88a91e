package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

// The backend speaks PascalCase JSON and is loose in two places: status
// arrives as either a Portuguese label or a bare enum code depending on
// the endpoint, and timestamps are UTC but not always suffixed with a
// zone. Both quirks are normalized here, once, at the wire boundary.

type wireStatus struct {
	value ticket.Status
}

func (s *wireStatus) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		if parsed, ok := ticket.ParseStatus(label); ok {
			s.value = parsed
		} else {
			s.value = ticket.StatusUnknown
		}
		return nil
	}

	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		if parsed, ok := ticket.StatusFromCode(code); ok {
			s.value = parsed
		} else {
			s.value = ticket.StatusUnknown
		}
		return nil
	}

	s.value = ticket.StatusUnknown
	return nil
}

func (s wireStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value.Label())
}

// parseBackendTime decodes a backend timestamp, treating zone-less
// values as UTC.
func parseBackendTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if !strings.HasSuffix(raw, "Z") && !hasZoneOffset(raw) {
		raw += "Z"
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// hasZoneOffset reports whether the timestamp already carries an
// explicit offset such as "-03:00" or "+00:00".
func hasZoneOffset(raw string) bool {
	if len(raw) < 6 {
		return false
	}
	tail := raw[len(raw)-6:]
	return (tail[0] == '+' || tail[0] == '-') && tail[3] == ':'
}

type wireMessage struct {
	ID         int64  `json:"Id"`
	Message    string `json:"Message"`
	IsUser     bool   `json:"IsUser"`
	SenderType string `json:"SenderType"`
	CreatedAt  string `json:"CreatedAt"`
}

func (w wireMessage) toDomain() ticket.Message {
	return ticket.Message{
		ID:        w.ID,
		Sender:    senderKind(w.IsUser, w.SenderType),
		Text:      w.Message,
		CreatedAt: parseBackendTime(w.CreatedAt),
	}
}

// senderKind resolves the backend's dual sender encoding (an IsUser flag
// plus a free-form SenderType) into one kind. Anything that is neither
// the user nor a technician is the AI agent.
func senderKind(isUser bool, senderType string) ticket.SenderKind {
	switch {
	case isUser || senderType == string(ticket.SenderUser):
		return ticket.SenderUser
	case senderType == string(ticket.SenderTechnician):
		return ticket.SenderTechnician
	default:
		return ticket.SenderAI
	}
}

type wireTicket struct {
	ID                   int64         `json:"Id"`
	Title                string        `json:"Titulo"`
	Status               wireStatus    `json:"Status"`
	AssignedToTechnician bool          `json:"AtribuidoATecnico"`
	TechnicianName       string        `json:"TecnicoNome"`
	CreatedAt            string        `json:"CriadoEm"`
	Messages             []wireMessage `json:"Mensagens"`
}

func (w wireTicket) toDomain() (ticket.Ticket, []ticket.Message) {
	t := ticket.Ticket{
		ID:                   w.ID,
		Title:                w.Title,
		Status:               w.Status.value,
		AssignedToTechnician: w.AssignedToTechnician,
		TechnicianName:       w.TechnicianName,
		CreatedAt:            parseBackendTime(w.CreatedAt),
	}
	msgs := make([]ticket.Message, 0, len(w.Messages))
	for _, m := range w.Messages {
		msgs = append(msgs, m.toDomain())
	}
	return t, msgs
}
