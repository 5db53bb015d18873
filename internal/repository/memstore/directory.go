package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/repository"
)

type userStore struct{ *Store }

// Users returns the store's user repository.
func (s *Store) Users() repository.UserRepository { return userStore{s} }

func (s userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (s userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s userStore) ListActiveByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	return s.collect(func(user domain.User) bool {
		return user.Role == role && user.Active()
	}), nil
}

func (s userStore) ListAgentsManagedBy(_ context.Context, model domain.ManagedByModel, entityIDs []string) ([]domain.User, error) {
	ids := toSet(entityIDs)
	return s.collect(func(user domain.User) bool {
		if user.Role != domain.RoleAgent || user.ManagedBy == nil || user.ManagedByModel == nil {
			return false
		}
		_, ok := ids[*user.ManagedBy]
		return ok && *user.ManagedByModel == model
	}), nil
}

func (s userStore) collect(match func(domain.User) bool) []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []domain.User{}
	for _, user := range s.users {
		if match(user) {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

type entityStore struct{ *Store }

// Entities returns the store's RelationshipManager and Franchise repository.
func (s *Store) Entities() repository.SupervisorEntityRepository { return entityStore{s} }

func (s entityStore) GetByID(_ context.Context, model domain.ManagedByModel, id string) (*domain.SupervisorEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.entities[model][id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &entity, nil
}

func (s entityStore) ListByOwner(_ context.Context, model domain.ManagedByModel, ownerID string) ([]domain.SupervisorEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.SupervisorEntity
	for _, entity := range s.entities[model] {
		if entity.Owner != nil && *entity.Owner == ownerID {
			result = append(result, entity)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s entityStore) ListByRegionalManager(_ context.Context, regionalManagerID string) ([]domain.SupervisorEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.SupervisorEntity
	for _, model := range []domain.ManagedByModel{domain.ManagedByRelationshipManager, domain.ManagedByFranchise} {
		var batch []domain.SupervisorEntity
		for _, entity := range s.entities[model] {
			if entity.RegionalManager != nil && *entity.RegionalManager == regionalManagerID {
				batch = append(batch, entity)
			}
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })
		result = append(result, batch...)
	}
	return result, nil
}

type leadStore struct{ *Store }

// Leads returns the store's lead repository.
func (s *Store) Leads() repository.LeadRepository { return leadStore{s} }

func (s leadStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.leads[id]
	return ok, nil
}

type historyStore struct{ *Store }

// History returns the store's audit repository.
func (s *Store) History() repository.TicketHistoryRepository { return historyStore{s} }

func (s historyStore) Create(_ context.Context, history *domain.TicketHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history.ID = uuid.NewString()
	history.CreatedAt = s.now()
	s.history = append(s.history, *history)
	return nil
}

func (s historyStore) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []domain.TicketHistory{}
	for _, entry := range s.history {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type notificationStore struct{ *Store }

// Notifications returns the store's inbox repository.
func (s *Store) Notifications() repository.NotificationRepository { return notificationStore{s} }

func (s notificationStore) Create(_ context.Context, notification *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification.ID = uuid.NewString()
	notification.IsRead = false
	notification.CreatedAt = s.now()
	s.notifications = append(s.notifications, *notification)
	return nil
}

func (s notificationStore) ListByUser(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []domain.Notification{}
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, n)
	}
	return page(result, limit, offset, 20), nil
}

func (s notificationStore) MarkRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == userID {
			s.notifications[i].IsRead = true
			return nil
		}
	}
	return pgx.ErrNoRows
}
