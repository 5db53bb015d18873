package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/events"
	"github.com/spec-kit/service-request-desk/internal/hierarchy"
	"github.com/spec-kit/service-request-desk/internal/repository"
	"github.com/spec-kit/service-request-desk/internal/storage"
	"github.com/spec-kit/service-request-desk/internal/workhours"
	apperrors "github.com/spec-kit/service-request-desk/pkg/util"
)

const maxTicketIDAttempts = 3

// DocumentStore stores a ticket attachment and returns its reference.
type DocumentStore interface {
	Upload(ctx context.Context, prefix string, file storage.File) (*domain.Attachment, error)
}

// TicketService coordinates the service request lifecycle.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	leads      repository.LeadRepository
	history    repository.TicketHistoryRepository
	resolver   *hierarchy.Resolver
	calculator *workhours.Calculator
	documents  DocumentStore
	dispatcher events.Dispatcher
	clock      clockwork.Clock
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service. Documents
// may be nil, in which case attachments are rejected.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	LeadRepo    repository.LeadRepository
	HistoryRepo repository.TicketHistoryRepository
	Resolver    *hierarchy.Resolver
	Calculator  *workhours.Calculator
	Documents   DocumentStore
	Dispatcher  events.Dispatcher
	Clock       clockwork.Clock
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	c := deps.Clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		leads:      deps.LeadRepo,
		history:    deps.HistoryRepo,
		resolver:   deps.Resolver,
		calculator: deps.Calculator,
		documents:  deps.Documents,
		dispatcher: deps.Dispatcher,
		clock:      c,
		logger:     logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Category    domain.TicketCategory
	Description string
	LeadID      *string
	Attachment  *storage.File
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Categories []domain.TicketCategory
	Limit      int
	Offset     int
}

// TicketUpdateInput carries the optional fields of a manual update.
type TicketUpdateInput struct {
	Status   *domain.TicketStatus
	Note     *string
	AssignTo *string
}

// CreateTicket raises a ticket for an agent and assigns it to the agent's supervisor.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !actor.Role.Capabilities().CreateTicket {
		return nil, apperrors.NewForbidden("only agents can raise service requests")
	}
	if !input.Category.Valid() {
		return nil, apperrors.NewValidationError("invalid category", map[string]any{
			"category": input.Category,
			"allowed":  domain.Categories,
		})
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description is required", nil)
	}
	if input.LeadID != nil && strings.TrimSpace(*input.LeadID) == "" {
		input.LeadID = nil
	}
	if input.LeadID != nil {
		exists, err := s.leads.Exists(ctx, *input.LeadID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !exists {
			return nil, apperrors.NewValidationError("invalid lead reference", map[string]any{"lead_id": *input.LeadID})
		}
	}
	if input.Attachment != nil && s.documents == nil {
		return nil, apperrors.NewValidationError("attachments are not enabled", nil)
	}

	assignment, found, err := s.resolver.ResolveSupervisor(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !found {
		return nil, apperrors.NewUnassignable("no assignable supervisor", map[string]any{"agent_id": actor.ID})
	}

	var attachment *domain.Attachment
	if input.Attachment != nil {
		attachment, err = s.documents.Upload(ctx, "service-requests/"+actor.ID, *input.Attachment)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}

	now := s.clock.Now()
	sla := s.calculator.Compute(now)
	ticket := &domain.Ticket{
		RaisedBy:          actor.ID,
		LeadID:            input.LeadID,
		Category:          input.Category,
		Description:       description,
		Attachment:        attachment,
		Status:            domain.TicketStatusOpen,
		Priority:          domain.TicketPriorityMedium,
		EscalationLevel:   domain.LevelSupervisor,
		AssignedRole:      assignment.SupervisorRole,
		AssignedTo:        strPtr(assignment.SupervisorID),
		SLATimerStartedAt: &sla.StartedAt,
		SLADeadline:       &sla.Deadline,
		InternalNotes:     []domain.InternalNote{},
	}

	idClock := s.calculator.Window().In(now)
	for attempt := 1; ; attempt++ {
		ticket.TicketID, err = nextTicketID(ctx, s.tickets, idClock)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateTicketID) {
			return nil, apperrors.MapError(err)
		}
		if attempt == maxTicketIDAttempts {
			return nil, apperrors.NewConflict("could not allocate a ticket id, retry", map[string]any{"ticket_id": ticket.TicketID})
		}
		s.logger.Debug("ticket id taken, retrying", zap.String("ticket_id", ticket.TicketID), zap.Int("attempt", attempt))
	}

	recordHistory(ctx, s.history, s.logger, domain.TicketHistory{
		TicketID:   ticket.ID,
		ChangedBy:  strPtr(actor.ID),
		ChangeType: domain.ChangeTypeCreated,
		NewValue: map[string]any{
			"ticket_id":     ticket.TicketID,
			"assigned_to":   assignment.SupervisorID,
			"assigned_role": assignment.SupervisorRole,
			"sla_deadline":  sla.Deadline,
		},
	})
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketCreated,
		Ticket:    *ticket,
		ActorID:   strPtr(actor.ID),
		Timestamp: now,
	})
	s.logger.Info("service request created",
		zap.String("ticket_id", ticket.TicketID),
		zap.String("raised_by", actor.ID),
		zap.String("assigned_to", assignment.SupervisorID),
		zap.Time("sla_deadline", sla.Deadline))
	return ticket, nil
}

// ListTickets returns the tickets visible to actor, newest first.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	scope, err := s.resolver.AccessibleAgentIDs(ctx, actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	repoFilter := repository.TicketFilter{
		Unrestricted: scope.All,
		AgentIDs:     scope.AgentIDs,
		Statuses:     filter.Statuses,
		Categories:   filter.Categories,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	if !scope.All {
		repoFilter.OrAssignedTo = strPtr(actor.ID)
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// GetTicket loads a ticket by its SRN and checks actor may see it.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.tickets.GetByTicketID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	ok, err := s.resolver.CanAccessTicket(ctx, actor, ticket)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// History returns the audit trail of a ticket the actor can see.
func (s *TicketService) History(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketHistory, error) {
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// UpdateTicket applies a status change, a note and/or a reassignment. A note on
// its own is accepted even after resolution; status and assignee are not.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	caps := actor.Role.Capabilities()
	if !caps.UpdateTicket {
		return nil, apperrors.NewForbidden("role cannot update service requests")
	}
	if input.Note != nil {
		trimmed := strings.TrimSpace(*input.Note)
		if trimmed == "" {
			input.Note = nil
		} else {
			input.Note = &trimmed
		}
	}
	if input.AssignTo != nil && strings.TrimSpace(*input.AssignTo) == "" {
		input.AssignTo = nil
	}
	if input.Status == nil && input.Note == nil && input.AssignTo == nil {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		if *input.Status == domain.TicketStatusResolved {
			return nil, apperrors.NewValidationError("use the resolve action to close a service request", nil)
		}
	}
	if input.AssignTo != nil && !caps.Reassign {
		return nil, apperrors.NewForbidden("only regional managers and admins can reassign")
	}

	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	var note *domain.InternalNote
	if input.Note != nil {
		note = &domain.InternalNote{Note: *input.Note, AddedBy: actor.ID, CreatedAt: now}
	}

	if input.Status == nil && input.AssignTo == nil {
		if err := s.tickets.AppendNote(ctx, ticket.ID, *note); err != nil {
			return nil, apperrors.MapError(err)
		}
		ticket.InternalNotes = append(ticket.InternalNotes, *note)
		s.recordNote(ctx, actor, ticket, note)
		s.publishUpdated(ctx, actor, ticket, ticket.Status, true, now)
		return ticket, nil
	}

	if ticket.IsResolved() {
		return nil, apperrors.NewConflict("service request already resolved", map[string]any{"ticket_id": ticket.TicketID})
	}

	var assignee *domain.User
	if input.AssignTo != nil {
		assignee, err = s.users.GetByID(ctx, *input.AssignTo)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("user", map[string]any{"user_id": *input.AssignTo})
			}
			return nil, apperrors.MapError(err)
		}
		if assignee.Role == domain.RoleAgent {
			return nil, apperrors.NewValidationError("service requests cannot be assigned to agents", map[string]any{"user_id": assignee.ID})
		}
		if !assignee.Active() {
			return nil, apperrors.NewValidationError("assignee account is suspended", map[string]any{"user_id": assignee.ID})
		}
	}

	update := repository.TicketUpdate{
		ID:            ticket.ID,
		ExpectedLevel: ticket.EscalationLevel,
		Status:        input.Status,
		Note:          note,
	}
	if assignee != nil {
		update.AssignedTo = strPtr(assignee.ID)
		update.AssignedRole = &assignee.Role
	}
	if err := s.tickets.Update(ctx, update); err != nil {
		if errors.Is(err, repository.ErrStaleTicket) {
			return nil, apperrors.NewStaleState("service request changed, reload and retry", map[string]any{"ticket_id": ticket.TicketID})
		}
		return nil, apperrors.MapError(err)
	}

	oldStatus := ticket.Status
	previousAssignee := ticket.AssignedTo
	if input.Status != nil {
		ticket.Status = *input.Status
	}
	if note != nil {
		ticket.InternalNotes = append(ticket.InternalNotes, *note)
	}
	if assignee != nil {
		ticket.AssignedTo = strPtr(assignee.ID)
		ticket.AssignedRole = assignee.Role
	}
	ticket.UpdatedAt = now

	statusChanged := oldStatus != ticket.Status
	if statusChanged {
		recordHistory(ctx, s.history, s.logger, domain.TicketHistory{
			TicketID:   ticket.ID,
			ChangedBy:  strPtr(actor.ID),
			ChangeType: domain.ChangeTypeStatus,
			OldValue:   map[string]any{"status": oldStatus},
			NewValue:   map[string]any{"status": ticket.Status},
		})
	}
	if note != nil {
		s.recordNote(ctx, actor, ticket, note)
	}
	if statusChanged || note != nil {
		s.publishUpdated(ctx, actor, ticket, oldStatus, note != nil, now)
	}
	if assignee != nil {
		recordHistory(ctx, s.history, s.logger, domain.TicketHistory{
			TicketID:   ticket.ID,
			ChangedBy:  strPtr(actor.ID),
			ChangeType: domain.ChangeTypeAssignee,
			OldValue:   map[string]any{"assigned_to": previousAssignee},
			NewValue:   map[string]any{"assigned_to": assignee.ID, "assigned_role": assignee.Role},
		})
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:      events.EventTicketReassigned,
			Ticket:    *ticket,
			ActorID:   strPtr(actor.ID),
			Timestamp: now,
			Payload: events.TicketReassignedPayload{
				PreviousAssignee: previousAssignee,
				NewAssignee:      assignee.ID,
			},
		})
	}
	return ticket, nil
}

func (s *TicketService) recordNote(ctx context.Context, actor *domain.User, ticket *domain.Ticket, note *domain.InternalNote) {
	recordHistory(ctx, s.history, s.logger, domain.TicketHistory{
		TicketID:   ticket.ID,
		ChangedBy:  strPtr(actor.ID),
		ChangeType: domain.ChangeTypeNote,
		NewValue:   map[string]any{"note": note.Note},
	})
}

// publishUpdated emits one ticket_updated event per update covering both the
// status transition and an added note.
func (s *TicketService) publishUpdated(ctx context.Context, actor *domain.User, ticket *domain.Ticket, oldStatus domain.TicketStatus, noteAdded bool, at time.Time) {
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketUpdated,
		Ticket:    *ticket,
		ActorID:   strPtr(actor.ID),
		Timestamp: at,
		Payload:   events.TicketUpdatedPayload{OldStatus: oldStatus, NewStatus: ticket.Status, NoteAdded: noteAdded},
	})
}

// ResolveTicket closes a ticket. Admins cannot resolve; the write fails with a
// stale-state error if the sweep moved the ticket after it was read.
func (s *TicketService) ResolveTicket(ctx context.Context, actor *domain.User, ticketID string, resolutionNote *string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !actor.Role.Capabilities().Resolve {
		return nil, apperrors.NewForbidden("role cannot resolve service requests")
	}
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsResolved() {
		return nil, apperrors.NewConflict("service request already resolved", map[string]any{"ticket_id": ticket.TicketID})
	}
	if resolutionNote != nil {
		trimmed := strings.TrimSpace(*resolutionNote)
		resolutionNote = &trimmed
		if trimmed == "" {
			resolutionNote = nil
		}
	}

	now := s.clock.Now()
	change := repository.ResolutionChange{
		ID:             ticket.ID,
		ExpectedLevel:  ticket.EscalationLevel,
		ResolvedBy:     actor.ID,
		ResolutionNote: resolutionNote,
		ResolvedAt:     now,
	}
	if err := s.tickets.Resolve(ctx, change); err != nil {
		if errors.Is(err, repository.ErrStaleTicket) {
			return nil, apperrors.NewStaleState("service request changed, reload and retry", map[string]any{"ticket_id": ticket.TicketID})
		}
		return nil, apperrors.MapError(err)
	}

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusResolved
	ticket.ResolvedBy = strPtr(actor.ID)
	ticket.ResolutionNote = resolutionNote
	ticket.ResolvedAt = &now
	ticket.UpdatedAt = now

	recordHistory(ctx, s.history, s.logger, domain.TicketHistory{
		TicketID:   ticket.ID,
		ChangedBy:  strPtr(actor.ID),
		ChangeType: domain.ChangeTypeResolution,
		OldValue:   map[string]any{"status": oldStatus},
		NewValue:   map[string]any{"status": ticket.Status, "resolution_note": resolutionNote},
	})
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketResolved,
		Ticket:    *ticket,
		ActorID:   strPtr(actor.ID),
		Timestamp: now,
		Payload:   events.TicketResolvedPayload{ResolvedBy: actor.ID, ResolutionNote: resolutionNote},
	})
	s.logger.Info("service request resolved",
		zap.String("ticket_id", ticket.TicketID),
		zap.String("resolved_by", actor.ID),
		zap.Duration("open_for", now.Sub(ticket.CreatedAt)))
	return ticket, nil
}
