package service

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/events"
	"github.com/spec-kit/service-request-desk/internal/hierarchy"
	"github.com/spec-kit/service-request-desk/internal/observability"
	"github.com/spec-kit/service-request-desk/internal/repository"
	"github.com/spec-kit/service-request-desk/internal/workhours"
)

// Skip reasons reported in logs and metrics.
const (
	skipNoRegionalManager = "no_regional_manager"
	skipNoAdmin           = "no_admin"
	skipStale             = "stale"
	skipNotDue            = "not_due"
)

const defaultSweepBatchSize = 500

// SweepResult summarises one escalation pass.
type SweepResult struct {
	Examined  int `json:"examined"`
	Escalated int `json:"escalated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// EscalationService moves breached tickets one level up the hierarchy.
type EscalationService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	history    repository.TicketHistoryRepository
	resolver   *hierarchy.Resolver
	calculator *workhours.Calculator
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clock      clockwork.Clock
	logger     *zap.Logger
	batchSize  int
}

// EscalationDependencies bundles collaborators for the sweep.
type EscalationDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Resolver    *hierarchy.Resolver
	Calculator  *workhours.Calculator
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Clock       clockwork.Clock
	Logger      *zap.Logger
	BatchSize   int
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	c := deps.Clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		resolver:   deps.Resolver,
		calculator: deps.Calculator,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		clock:      c,
		logger:     logger,
		batchSize:  batchSize,
	}
}

// RunSweep escalates every unresolved ticket whose SLA deadline has passed.
// Candidates are read in pages of batchSize keyed on (sla_deadline, id) until
// the set is exhausted. Per-ticket failures are logged and counted; only a
// failed candidate query aborts the pass.
func (s *EscalationService) RunSweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	started := time.Now()
	now := s.clock.Now()

	var cursor *repository.EscalationCursor
	for ctx.Err() == nil {
		page, err := s.tickets.ListEscalationCandidates(ctx, now, cursor, s.batchSize)
		if err != nil {
			s.logger.Error("escalation sweep: candidate query failed", zap.Error(err))
			return result, err
		}
		s.sweepPage(ctx, page, now, &result)
		if len(page) < s.batchSize {
			break
		}
		last := page[len(page)-1]
		cursor = &repository.EscalationCursor{Deadline: *last.SLADeadline, ID: last.ID}
	}

	s.metrics.ObserveSweep(time.Since(started))
	s.logger.Info("escalation sweep finished",
		zap.Int("examined", result.Examined),
		zap.Int("escalated", result.Escalated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, ctx.Err()
}

func (s *EscalationService) sweepPage(ctx context.Context, candidates []domain.Ticket, now time.Time, result *SweepResult) {
	for i := range candidates {
		if ctx.Err() != nil {
			return
		}
		ticket := &candidates[i]
		result.Examined++

		escalated, reason, err := s.escalateTicket(ctx, ticket, now)
		switch {
		case err != nil:
			result.Failed++
			s.metrics.RecordFailure()
			s.logger.Error("escalation failed",
				zap.String("ticket_id", ticket.TicketID),
				zap.Int("level", int(ticket.EscalationLevel)),
				zap.Error(err))
		case escalated:
			result.Escalated++
		default:
			result.Skipped++
			s.metrics.RecordSkip(reason)
			s.logger.Info("escalation skipped",
				zap.String("ticket_id", ticket.TicketID),
				zap.Int("level", int(ticket.EscalationLevel)),
				zap.String("reason", reason))
		}
	}
}

// escalateTicket advances one ticket. It reports escalated=false with a reason
// when the ticket cannot move right now; that is not an error.
func (s *EscalationService) escalateTicket(ctx context.Context, ticket *domain.Ticket, now time.Time) (bool, string, error) {
	if ticket.IsResolved() || ticket.EscalationLevel >= domain.LevelAdmin || !ticket.SLABreached(now) {
		return false, skipNotDue, nil
	}

	change := repository.EscalationChange{
		ID:        ticket.ID,
		FromLevel: ticket.EscalationLevel,
		ToLevel:   ticket.EscalationLevel.Next(),
	}

	switch ticket.EscalationLevel {
	case domain.LevelSupervisor:
		regionalManager, found, err := s.resolver.ResolveRegionalManager(ctx, ticket.RaisedBy)
		if err != nil {
			return false, "", err
		}
		if !found {
			return false, skipNoRegionalManager, nil
		}
		sla := s.calculator.Compute(now)
		change.Status = domain.TicketStatusEscalatedRegionalManager
		change.AssignedRole = domain.RoleRegionalManager
		change.AssignedTo = regionalManager
		change.SLATimerStartedAt = &sla.StartedAt
		change.SLADeadline = &sla.Deadline
	case domain.LevelRegionalManager:
		admins, err := s.users.ListActiveByRole(ctx, domain.RoleSuperAdmin)
		if err != nil {
			return false, "", err
		}
		if len(admins) == 0 {
			return false, skipNoAdmin, nil
		}
		high := domain.TicketPriorityHigh
		change.Status = domain.TicketStatusEscalatedAdmin
		change.AssignedRole = domain.RoleSuperAdmin
		change.AssignedTo = admins[0].ID
		change.Priority = &high
	}

	if err := s.tickets.Escalate(ctx, change); err != nil {
		if errors.Is(err, repository.ErrStaleTicket) {
			return false, skipStale, nil
		}
		return false, "", err
	}

	previous := ticket.AssignedTo
	old := map[string]any{
		"escalation_level": ticket.EscalationLevel,
		"status":           ticket.Status,
		"assigned_to":      previous,
	}
	applyEscalation(ticket, change, now)

	s.metrics.RecordEscalation(int(change.ToLevel))
	recordHistory(ctx, s.history, s.logger, domain.TicketHistory{
		TicketID:   ticket.ID,
		ChangeType: domain.ChangeTypeEscalation,
		OldValue:   old,
		NewValue: map[string]any{
			"escalation_level": ticket.EscalationLevel,
			"status":           ticket.Status,
			"assigned_to":      change.AssignedTo,
			"sla_deadline":     ticket.SLADeadline,
		},
	})
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketEscalated,
		Ticket:    *ticket,
		Timestamp: now,
		Payload: events.TicketEscalatedPayload{
			FromLevel:        change.FromLevel,
			ToLevel:          change.ToLevel,
			PreviousAssignee: previous,
			NewAssignee:      change.AssignedTo,
		},
	})
	s.logger.Info("ticket escalated",
		zap.String("ticket_id", ticket.TicketID),
		zap.Int("from_level", int(change.FromLevel)),
		zap.Int("to_level", int(change.ToLevel)),
		zap.String("assigned_to", change.AssignedTo),
		zap.Duration("age", now.Sub(ticket.CreatedAt)))
	return true, "", nil
}

// applyEscalation mirrors the stored change onto the in-memory ticket.
func applyEscalation(ticket *domain.Ticket, change repository.EscalationChange, now time.Time) {
	ticket.EscalationLevel = change.ToLevel
	ticket.Status = change.Status
	ticket.AssignedRole = change.AssignedRole
	ticket.AssignedTo = strPtr(change.AssignedTo)
	if change.Priority != nil {
		ticket.Priority = *change.Priority
	}
	if change.SLATimerStartedAt != nil {
		ticket.SLATimerStartedAt = change.SLATimerStartedAt
	}
	if change.SLADeadline != nil {
		ticket.SLADeadline = change.SLADeadline
	}
	ticket.UpdatedAt = now
}
