package events

import (
	"time"

	"github.com/spec-kit/service-request-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketUpdated    EventType = "ticket_updated"
	EventTicketReassigned EventType = "ticket_reassigned"
	EventTicketEscalated  EventType = "ticket_escalated"
	EventTicketResolved   EventType = "ticket_resolved"
)

// Event represents a domain event emitted by services. Ticket is the state after
// the change; ActorID is nil when the escalation sweep made it.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Ticket    domain.Ticket `json:"ticket"`
	ActorID   *string       `json:"actor_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   interface{}   `json:"payload"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	NoteAdded bool                `json:"note_added"`
}

// TicketReassignedPayload payload.
type TicketReassignedPayload struct {
	PreviousAssignee *string `json:"previous_assignee,omitempty"`
	NewAssignee      string  `json:"new_assignee"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	FromLevel        domain.EscalationLevel `json:"from_level"`
	ToLevel          domain.EscalationLevel `json:"to_level"`
	PreviousAssignee *string                `json:"previous_assignee,omitempty"`
	NewAssignee      string                 `json:"new_assignee"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	ResolvedBy     string  `json:"resolved_by"`
	ResolutionNote *string `json:"resolution_note,omitempty"`
}
