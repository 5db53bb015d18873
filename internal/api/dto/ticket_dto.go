package dto

import (
	"time"

	"github.com/spec-kit/service-request-desk/internal/domain"
)

// CreateServiceRequest payload. Multipart requests carry the same fields as form values
// plus an optional "attachment" file part.
type CreateServiceRequest struct {
	Category    domain.TicketCategory `json:"category" form:"category"`
	Description string                `json:"description" form:"description"`
	LeadID      *string               `json:"leadId" form:"leadId"`
}

// UpdateServiceRequest payload for PATCH /service-requests/:id.
type UpdateServiceRequest struct {
	Status   *domain.TicketStatus `json:"status"`
	Note     *string              `json:"note"`
	AssignTo *string              `json:"assignTo"`
}

// ResolveServiceRequest payload.
type ResolveServiceRequest struct {
	ResolutionNote *string `json:"resolutionNote"`
}

// ServiceRequestResponse is the full view of a ticket.
type ServiceRequestResponse struct {
	ID                string                `json:"id"`
	TicketID          string                `json:"ticketId"`
	RaisedBy          string                `json:"raisedBy"`
	LeadID            *string               `json:"leadId"`
	Category          domain.TicketCategory `json:"category"`
	Description       string                `json:"description"`
	Attachment        *domain.Attachment    `json:"attachment,omitempty"`
	Status            domain.TicketStatus   `json:"status"`
	Priority          domain.TicketPriority `json:"priority"`
	EscalationLevel   int                   `json:"escalationLevel"`
	AssignedRole      domain.Role           `json:"assignedRole"`
	AssignedTo        *string               `json:"assignedTo"`
	SLATimerStartedAt *time.Time            `json:"slaTimerStartedAt"`
	SLADeadline       *time.Time            `json:"slaDeadline"`
	SLABreached       bool                  `json:"slaBreached"`
	InternalNotes     []domain.InternalNote `json:"internalNotes"`
	ResolvedBy        *string               `json:"resolvedBy"`
	ResolutionNote    *string               `json:"resolutionNote"`
	ResolvedAt        *time.Time            `json:"resolvedAt"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID         string                  `json:"id"`
	ChangedBy  *string                 `json:"changedBy"`
	ChangeType domain.TicketChangeType `json:"changeType"`
	OldValue   map[string]any          `json:"oldValue"`
	NewValue   map[string]any          `json:"newValue"`
	CreatedAt  time.Time               `json:"createdAt"`
}
