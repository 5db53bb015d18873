package domain

import "time"

// TicketStatus enumerates lifecycle states for service requests.
type TicketStatus string

const (
	TicketStatusOpen                     TicketStatus = "Open"
	TicketStatusInProgress               TicketStatus = "In Progress"
	TicketStatusResolved                 TicketStatus = "Resolved"
	TicketStatusEscalatedRegionalManager TicketStatus = "Escalated to Regional Manager"
	TicketStatusEscalatedAdmin           TicketStatus = "Escalated to Admin"
)

// Valid reports whether the status is one of the known values.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved,
		TicketStatusEscalatedRegionalManager, TicketStatusEscalatedAdmin:
		return true
	}
	return false
}

// TicketCategory is the fixed list of problems an agent can raise.
type TicketCategory string

const (
	CategoryPaymentNotReceived  TicketCategory = "Payment Not Received"
	CategoryHalfPaymentReceived TicketCategory = "Half Payment Received"
	CategoryCommissionIssue     TicketCategory = "Commission Issue"
	CategoryDisbursementDelay   TicketCategory = "Disbursement Delay"
	CategoryOther               TicketCategory = "Other"
)

// Categories lists every accepted category.
var Categories = []TicketCategory{
	CategoryPaymentNotReceived,
	CategoryHalfPaymentReceived,
	CategoryCommissionIssue,
	CategoryDisbursementDelay,
	CategoryOther,
}

// Valid reports whether the category is in the fixed list.
func (c TicketCategory) Valid() bool {
	for _, candidate := range Categories {
		if candidate == c {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// EscalationLevel is how far up the hierarchy a ticket has travelled.
type EscalationLevel int

const (
	LevelSupervisor      EscalationLevel = 1
	LevelRegionalManager EscalationLevel = 2
	LevelAdmin           EscalationLevel = 3
)

// Next returns the following level, capped at LevelAdmin.
func (l EscalationLevel) Next() EscalationLevel {
	if l >= LevelAdmin {
		return LevelAdmin
	}
	return l + 1
}

// InternalNote is an append-only remark left on a ticket.
type InternalNote struct {
	Note      string    `json:"note"`
	AddedBy   string    `json:"addedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attachment references a stored document.
type Attachment struct {
	URL          string `json:"url"`
	FileName     string `json:"fileName"`
	OriginalName string `json:"originalName"`
}

// Ticket is the aggregate for service requests.
type Ticket struct {
	ID                string
	TicketID          string
	RaisedBy          string
	LeadID            *string
	Category          TicketCategory
	Description       string
	Attachment        *Attachment
	Status            TicketStatus
	Priority          TicketPriority
	EscalationLevel   EscalationLevel
	AssignedRole      Role
	AssignedTo        *string
	SLATimerStartedAt *time.Time
	SLADeadline       *time.Time
	InternalNotes     []InternalNote
	ResolvedBy        *string
	ResolutionNote    *string
	ResolvedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsResolved reports whether the ticket reached its terminal state.
func (t *Ticket) IsResolved() bool {
	return t.Status == TicketStatusResolved
}

// SLABreached reports whether the SLA deadline is set and has passed at now.
func (t *Ticket) SLABreached(now time.Time) bool {
	return t.SLADeadline != nil && !now.Before(*t.SLADeadline)
}

// AssignedToID returns the assignee id or an empty string.
func (t *Ticket) AssignedToID() string {
	if t.AssignedTo == nil {
		return ""
	}
	return *t.AssignedTo
}
