package ticket

// Status enumerates the lifecycle states of a chamado.
type Status int

const (
	StatusUnknown Status = iota - 1
	StatusPending
	StatusInProgress
	StatusResolved
	StatusEscalated
)

// statusLabels holds the wire labels the backend uses for each status.
var statusLabels = map[Status]string{
	StatusPending:    "Pendente",
	StatusInProgress: "Em Andamento",
	StatusResolved:   "Resolvido",
	StatusEscalated:  "Escalado",
}

// ParseStatus normalizes a backend status label. The backend emits
// Portuguese labels on most endpoints and bare enum codes on a few, so
// StatusFromCode covers the numeric half of the pair.
func ParseStatus(label string) (Status, bool) {
	for status, l := range statusLabels {
		if l == label {
			return status, true
		}
	}
	return StatusUnknown, false
}

// StatusFromCode maps the backend's numeric status representation.
func StatusFromCode(code int) (Status, bool) {
	if code < int(StatusPending) || code > int(StatusEscalated) {
		return StatusUnknown, false
	}
	return Status(code), true
}

// Label returns the backend wire label for the status.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Desconhecido"
}

// String implements fmt.Stringer with the wire label.
func (s Status) String() string { return s.Label() }

// Closed reports whether the chamado no longer accepts messages. Only
// Resolved closes the composer; an escalated chamado stays writable.
func (s Status) Closed() bool { return s == StatusResolved }
