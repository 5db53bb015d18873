package dto

import (
	"time"

	"github.com/spec-kit/service-request-desk/internal/domain"
)

// NotificationResponse is an inbox entry.
type NotificationResponse struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Message         string                  `json:"message"`
	RelatedTicketID *string                 `json:"relatedTicketId"`
	Type            domain.NotificationType `json:"type"`
	IsRead          bool                    `json:"isRead"`
	CreatedAt       time.Time               `json:"createdAt"`
}
