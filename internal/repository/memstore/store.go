// Package memstore keeps every repository in process memory. The API falls back
// to it when no database DSN is configured, and service tests run against it.
package memstore

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/service-request-desk/internal/domain"
)

// Store holds all records behind a single mutex.
type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	users         map[string]domain.User
	entities      map[domain.ManagedByModel]map[string]domain.SupervisorEntity
	leads         map[string]struct{}
	tickets       map[string]domain.Ticket
	ticketIDs     map[string]string
	history       []domain.TicketHistory
	notifications []domain.Notification
}

// New returns an empty store stamping records with the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty store stamping records with now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:   now,
		users: map[string]domain.User{},
		entities: map[domain.ManagedByModel]map[string]domain.SupervisorEntity{
			domain.ManagedByRelationshipManager: {},
			domain.ManagedByFranchise:           {},
		},
		leads:     map[string]struct{}{},
		tickets:   map[string]domain.Ticket{},
		ticketIDs: map[string]string{},
	}
}

// PutUser inserts or replaces a user. An empty ID is filled in.
func (s *Store) PutUser(user domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	stamp := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = stamp
	}
	user.UpdatedAt = stamp
	s.users[user.ID] = user
	return user
}

// PutEntity inserts or replaces a RelationshipManager or Franchise record.
func (s *Store) PutEntity(entity domain.SupervisorEntity) domain.SupervisorEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	stamp := s.now()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = stamp
	}
	entity.UpdatedAt = stamp
	if s.entities[entity.Model] == nil {
		s.entities[entity.Model] = map[string]domain.SupervisorEntity{}
	}
	s.entities[entity.Model][entity.ID] = entity
	return entity
}

// DeleteEntity removes an entity, leaving any agents pointing at it dangling.
func (s *Store) DeleteEntity(model domain.ManagedByModel, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities[model], id)
}

// PutLead registers a lead id.
func (s *Store) PutLead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[id] = struct{}{}
}

// Ticket returns a copy of the stored ticket by SRN.
func (s *Store) Ticket(ticketID string) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ticketIDs[ticketID]
	if !ok {
		return domain.Ticket{}, false
	}
	return copyTicket(s.tickets[id]), true
}

// NotificationsFor returns every notification addressed to userID, oldest first.
func (s *Store) NotificationsFor(userID string) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func copyTicket(ticket domain.Ticket) domain.Ticket {
	if ticket.InternalNotes != nil {
		notes := make([]domain.InternalNote, len(ticket.InternalNotes))
		copy(notes, ticket.InternalNotes)
		ticket.InternalNotes = notes
	}
	return ticket
}

func sortTicketsNewestFirst(tickets []domain.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return strings.Compare(tickets[i].TicketID, tickets[j].TicketID) > 0
		}
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
}

func page[T any](items []T, limit, offset, defaultLimit int) []T {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
