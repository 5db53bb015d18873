package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/repository"
)

type ticketStore struct{ *Store }

// Tickets returns the store's ticket repository.
func (s *Store) Tickets() repository.TicketRepository { return ticketStore{s} }

func (s ticketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.ticketIDs[ticket.TicketID]; taken {
		return repository.ErrDuplicateTicketID
	}
	ticket.ID = uuid.NewString()
	stamp := s.now()
	ticket.CreatedAt = stamp
	ticket.UpdatedAt = stamp
	if ticket.InternalNotes == nil {
		ticket.InternalNotes = []domain.InternalNote{}
	}
	s.tickets[ticket.ID] = copyTicket(*ticket)
	s.ticketIDs[ticket.TicketID] = ticket.ID
	return nil
}

func (s ticketStore) GetByTicketID(_ context.Context, ticketID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ticketIDs[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	ticket := copyTicket(s.tickets[id])
	return &ticket, nil
}

func (s ticketStore) LastTicketIDWithPrefix(_ context.Context, prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := ""
	for ticketID := range s.ticketIDs {
		if strings.HasPrefix(ticketID, prefix) && sequenceAfter(ticketID, last) {
			last = ticketID
		}
	}
	return last, nil
}

// sequenceAfter orders ids sharing a prefix by their zero-padded numeric
// suffix: a longer suffix is always the larger number.
func sequenceAfter(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

func (s ticketStore) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agents := toSet(filter.AgentIDs)
	statuses := map[domain.TicketStatus]struct{}{}
	for _, status := range filter.Statuses {
		statuses[status] = struct{}{}
	}
	categories := map[domain.TicketCategory]struct{}{}
	for _, category := range filter.Categories {
		categories[category] = struct{}{}
	}

	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if !filter.Unrestricted {
			_, raised := agents[ticket.RaisedBy]
			assigned := filter.OrAssignedTo != nil && ticket.AssignedTo != nil && *ticket.AssignedTo == *filter.OrAssignedTo
			if !raised && !assigned {
				continue
			}
		}
		if len(statuses) > 0 {
			if _, ok := statuses[ticket.Status]; !ok {
				continue
			}
		}
		if len(categories) > 0 {
			if _, ok := categories[ticket.Category]; !ok {
				continue
			}
		}
		result = append(result, copyTicket(ticket))
	}
	sortTicketsNewestFirst(result)
	return page(result, filter.Limit, filter.Offset, 20), nil
}

func (s ticketStore) ListEscalationCandidates(_ context.Context, now time.Time, after *repository.EscalationCursor, limit int) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.IsResolved() || ticket.EscalationLevel > domain.LevelRegionalManager {
			continue
		}
		if !ticket.SLABreached(now) {
			continue
		}
		if after != nil && !afterCursor(ticket, *after) {
			continue
		}
		result = append(result, copyTicket(ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.SLADeadline.Equal(*b.SLADeadline) {
			return a.SLADeadline.Before(*b.SLADeadline)
		}
		return a.ID < b.ID
	})
	return page(result, limit, 0, 500), nil
}

// afterCursor reports whether ticket sorts strictly after the cursor.
func afterCursor(ticket domain.Ticket, cursor repository.EscalationCursor) bool {
	if ticket.SLADeadline.Equal(cursor.Deadline) {
		return ticket.ID > cursor.ID
	}
	return ticket.SLADeadline.After(cursor.Deadline)
}

// guarded loads the ticket for a conditional write, reporting ErrStaleTicket
// when it is resolved or no longer at expected.
func (s ticketStore) guarded(id string, expected domain.EscalationLevel) (domain.Ticket, error) {
	ticket, ok := s.tickets[id]
	if !ok || ticket.IsResolved() || ticket.EscalationLevel != expected {
		return domain.Ticket{}, repository.ErrStaleTicket
	}
	return ticket, nil
}

func (s ticketStore) Escalate(_ context.Context, change repository.EscalationChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, err := s.guarded(change.ID, change.FromLevel)
	if err != nil {
		return err
	}
	ticket.EscalationLevel = change.ToLevel
	ticket.Status = change.Status
	ticket.AssignedRole = change.AssignedRole
	assignee := change.AssignedTo
	ticket.AssignedTo = &assignee
	if change.Priority != nil {
		ticket.Priority = *change.Priority
	}
	if change.SLATimerStartedAt != nil {
		started := *change.SLATimerStartedAt
		ticket.SLATimerStartedAt = &started
	}
	if change.SLADeadline != nil {
		deadline := *change.SLADeadline
		ticket.SLADeadline = &deadline
	}
	ticket.UpdatedAt = s.now()
	s.tickets[ticket.ID] = ticket
	return nil
}

func (s ticketStore) Update(_ context.Context, update repository.TicketUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, err := s.guarded(update.ID, update.ExpectedLevel)
	if err != nil {
		return err
	}
	if update.Status != nil {
		ticket.Status = *update.Status
	}
	if update.AssignedTo != nil {
		assignee := *update.AssignedTo
		ticket.AssignedTo = &assignee
	}
	if update.AssignedRole != nil {
		ticket.AssignedRole = *update.AssignedRole
	}
	if update.Note != nil {
		ticket.InternalNotes = append(copyTicket(ticket).InternalNotes, *update.Note)
	}
	ticket.UpdatedAt = s.now()
	s.tickets[ticket.ID] = ticket
	return nil
}

func (s ticketStore) AppendNote(_ context.Context, id string, note domain.InternalNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.InternalNotes = append(copyTicket(ticket).InternalNotes, note)
	ticket.UpdatedAt = s.now()
	s.tickets[id] = ticket
	return nil
}

func (s ticketStore) Resolve(_ context.Context, change repository.ResolutionChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, err := s.guarded(change.ID, change.ExpectedLevel)
	if err != nil {
		return err
	}
	ticket.Status = domain.TicketStatusResolved
	resolvedBy := change.ResolvedBy
	ticket.ResolvedBy = &resolvedBy
	if change.ResolutionNote != nil {
		note := *change.ResolutionNote
		ticket.ResolutionNote = &note
	}
	resolvedAt := change.ResolvedAt
	ticket.ResolvedAt = &resolvedAt
	ticket.UpdatedAt = s.now()
	s.tickets[ticket.ID] = ticket
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
