package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/events"
	"github.com/spec-kit/service-request-desk/internal/repository"
	apperrors "github.com/spec-kit/service-request-desk/pkg/util"
)

// NotificationService turns ticket events into inbox entries and serves the inbox.
type NotificationService struct {
	notifications repository.NotificationRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: deps.NotificationRepo,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketReassigned, n.handleTicketReassigned)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEscalated)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
}

type notice struct {
	to      string
	title   string
	message string
	kind    domain.NotificationType
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket.AssignedTo == nil {
		return nil
	}
	return n.deliver(ctx, ticket, notice{
		to:      *ticket.AssignedTo,
		title:   "New service request " + ticket.TicketID,
		message: fmt.Sprintf("%s raised for %s. Respond before %s.", ticket.TicketID, ticket.Category, formatDeadline(ticket)),
		kind:    domain.NotificationTicketCreated,
	})
}

func (n *NotificationService) handleTicketReassigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketReassignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	ticket := event.Ticket
	notices := []notice{{
		to:      payload.NewAssignee,
		title:   "Service request " + ticket.TicketID + " assigned to you",
		message: fmt.Sprintf("%s has been reassigned to you.", ticket.TicketID),
		kind:    domain.NotificationTicketReassigned,
	}}
	if payload.PreviousAssignee != nil && *payload.PreviousAssignee != payload.NewAssignee {
		notices = append(notices, notice{
			to:      *payload.PreviousAssignee,
			title:   "Service request " + ticket.TicketID + " reassigned",
			message: fmt.Sprintf("%s has been reassigned to another user.", ticket.TicketID),
			kind:    domain.NotificationTicketMoved,
		})
	}
	return n.deliver(ctx, ticket, notices...)
}

func (n *NotificationService) handleTicketEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	ticket := event.Ticket
	notices := []notice{{
		to:      payload.NewAssignee,
		title:   "Service request " + ticket.TicketID + " escalated",
		message: fmt.Sprintf("%s escalated to level %d: no action within SLA.", ticket.TicketID, payload.ToLevel),
		kind:    domain.NotificationTicketEscalated,
	}}
	if payload.PreviousAssignee != nil && *payload.PreviousAssignee != payload.NewAssignee {
		notices = append(notices, notice{
			to:      *payload.PreviousAssignee,
			title:   "Service request " + ticket.TicketID + " moved on",
			message: fmt.Sprintf("%s breached its SLA and was escalated to level %d.", ticket.TicketID, payload.ToLevel),
			kind:    domain.NotificationTicketMoved,
		})
	}
	return n.deliver(ctx, ticket, notices...)
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	message := ticket.TicketID + " has been resolved."
	if ticket.ResolutionNote != nil {
		message += " Note: " + *ticket.ResolutionNote
	}
	return n.deliver(ctx, ticket, notice{
		to:      ticket.RaisedBy,
		title:   "Service request " + ticket.TicketID + " resolved",
		message: message,
		kind:    domain.NotificationTicketResolved,
	})
}

// deliver writes every notice, continuing past failures.
func (n *NotificationService) deliver(ctx context.Context, ticket domain.Ticket, notices ...notice) error {
	var errs []error
	for _, item := range notices {
		if item.to == "" {
			continue
		}
		record := &domain.Notification{
			UserID:          item.to,
			Title:           item.title,
			Message:         item.message,
			RelatedTicketID: strPtr(ticket.ID),
			Type:            item.kind,
		}
		if err := n.notifications.Create(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", item.to, err))
			continue
		}
		n.logger.Debug("notification created",
			zap.String("user_id", item.to),
			zap.String("type", string(item.kind)),
			zap.String("ticket_id", ticket.TicketID))
	}
	return errors.Join(errs...)
}

func formatDeadline(ticket domain.Ticket) string {
	if ticket.SLADeadline == nil {
		return "the deadline"
	}
	return ticket.SLADeadline.Format("02 Jan 2006 15:04 MST")
}

// ListForUser returns the actor's notifications, newest first.
func (n *NotificationService) ListForUser(ctx context.Context, actor *domain.User, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	items, err := n.notifications.ListByUser(ctx, actor.ID, unreadOnly, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// MarkRead flips the read flag on one of the actor's notifications. Repeating it is harmless.
func (n *NotificationService) MarkRead(ctx context.Context, actor *domain.User, id string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := n.notifications.MarkRead(ctx, id, actor.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("notification", map[string]any{"notification_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}
