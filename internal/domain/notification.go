package domain

import "time"

// NotificationType tags what a notification is about.
type NotificationType string

const (
	NotificationTicketCreated    NotificationType = "ticket_created"
	NotificationTicketEscalated  NotificationType = "ticket_escalated"
	NotificationTicketMoved      NotificationType = "ticket_moved"
	NotificationTicketReassigned NotificationType = "ticket_reassigned"
	NotificationTicketResolved   NotificationType = "ticket_resolved"
)

// Notification is a message delivered to a user's inbox.
type Notification struct {
	ID              string
	UserID          string
	Title           string
	Message         string
	RelatedTicketID *string
	Type            NotificationType
	IsRead          bool
	CreatedAt       time.Time
}
