package ticket

import (
	"time"

	"github.com/google/uuid"
)

// SenderKind identifies who authored a message, using the backend's
// sender type labels.
type SenderKind string

const (
	SenderUser       SenderKind = "user"
	SenderAI         SenderKind = "ai"
	SenderTechnician SenderKind = "tecnico"
)

// Message is one entry of a chamado timeline.
//
// Authoritative messages carry the backend-assigned ID and an empty
// LocalID. Provisional messages (inserted optimistically while a send is
// in flight) carry an opaque LocalID and a zero ID; they are identified
// by LocalID, never by ID, so backend identity and local identity cannot
// collide.
type Message struct {
	ID        int64      `json:"id"`
	LocalID   string     `json:"localId,omitempty"`
	Sender    SenderKind `json:"sender"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Provisional reports whether the message is a local placeholder that
// has not been confirmed by the backend yet.
func (m Message) Provisional() bool { return m.LocalID != "" }

// NewProvisional builds a placeholder user message for an in-flight send.
func NewProvisional(text string) Message {
	return Message{
		LocalID:   uuid.NewString(),
		Sender:    SenderUser,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// SendOutcome is the backend's reply to a successful send: the stored
// user message plus, when the agent answered in the same turn, its reply.
type SendOutcome struct {
	UserMessage Message
	BotMessage  *Message
}

// Messages returns the outcome's messages in arrival order.
func (o SendOutcome) Messages() []Message {
	msgs := []Message{o.UserMessage}
	if o.BotMessage != nil {
		msgs = append(msgs, *o.BotMessage)
	}
	return msgs
}
