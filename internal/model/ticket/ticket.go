package ticket

import "time"

// Ticket is a support chamado as mirrored from the backend. The client
// never deletes tickets; it only folds in remote snapshots.
type Ticket struct {
	ID                   int64     `json:"id"`
	Title                string    `json:"title"`
	Status               Status    `json:"status"`
	AssignedToTechnician bool      `json:"assignedToTechnician"`
	TechnicianName       string    `json:"technicianName,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Changed reports whether a fresh snapshot differs from t in the fields
// the poll loop watches: status and technician assignment.
func (t Ticket) Changed(fresh Ticket) bool {
	return t.Status != fresh.Status ||
		t.AssignedToTechnician != fresh.AssignedToTechnician ||
		t.TechnicianName != fresh.TechnicianName
}
