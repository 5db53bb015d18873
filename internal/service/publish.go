package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/events"
)

// publishEvent hands the event to subscribers after the ticket write has
// committed. Subscriber failures are logged and never undo the write.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event subscriber failed",
			zap.String("event", string(event.Type)),
			zap.String("ticket_id", event.Ticket.TicketID),
			zap.Error(err))
	}
}

// recordHistory appends an audit entry; a failed write is logged only.
func recordHistory(ctx context.Context, repo historyWriter, logger *zap.Logger, entry domain.TicketHistory) {
	if repo == nil {
		return
	}
	if err := repo.Create(ctx, &entry); err != nil {
		logger.Warn("ticket history write failed",
			zap.String("ticket", entry.TicketID),
			zap.String("change", string(entry.ChangeType)),
			zap.Error(err))
	}
}

type historyWriter interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
}

func strPtr(v string) *string {
	return &v
}
