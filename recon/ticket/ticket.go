// Package ticket models the long-lived exception tickets and the store that
// holds them. One open ticket exists per QID at most; the reconciler enforces
// this by querying before creating, which is only safe under a single active
// run.
package ticket

import "context"

// Terminal ticket states. Anything else counts as open.
const (
	StateClosed    = "closed"
	StateCancelled = "cancelled"
	StateCompleted = "completed"
)

// Ticket is the partial view of an exception ticket the reconciler works
// with. ImpactedSystems is the comma-joined matched asset-id list and is the
// only persisted state used to detect host-set changes across runs.
type Ticket struct {
	SysID            string `json:"sys_id"`
	Number           string `json:"number"`
	State            string `json:"state"`
	QID              string `json:"u_qid"`
	ShortDescription string `json:"short_description"`
	ImpactedSystems  string `json:"u_impacted_systems"`
	Justification    string `json:"u_justification"`
}

// Open reports whether the ticket is still actionable.
func (t Ticket) Open() bool {
	switch t.State {
	case StateClosed, StateCancelled, StateCompleted:
		return false
	}
	return true
}

// Fields is a set of ticket field writes.
type Fields map[string]string

// Store is the ticket-record backend. FindOpenTicket returns (nil, nil) when
// no open ticket exists for the QID. Work notes are append-only; field
// updates replace.
type Store interface {
	FindOpenTicket(ctx context.Context, catalogItemID, qid string) (*Ticket, error)
	ListOpenTickets(ctx context.Context, catalogItemID string) ([]Ticket, error)
	CreateTicket(ctx context.Context, catalogItemID string, fields Fields) (*Ticket, error)
	UpdateTicket(ctx context.Context, t *Ticket, fields Fields) error
	AppendWorkNote(ctx context.Context, t *Ticket, note string) error
	DeleteTicket(ctx context.Context, t *Ticket) error
}
