package service

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/events"
	"github.com/spec-kit/service-request-desk/internal/hierarchy"
	"github.com/spec-kit/service-request-desk/internal/observability"
	"github.com/spec-kit/service-request-desk/internal/repository"
	"github.com/spec-kit/service-request-desk/internal/repository/memstore"
	"github.com/spec-kit/service-request-desk/internal/workhours"
)

// 10:00 on a Tuesday, inside the 07:00-18:00 window.
var tuesdayTen = time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

type harnessOptions struct {
	tickets       func(repository.TicketRepository) repository.TicketRepository
	notifications func(repository.NotificationRepository) repository.NotificationRepository
	documents     DocumentStore
	batchSize     int
}

type harness struct {
	clock         *clockwork.FakeClock
	store         *memstore.Store
	ticketRepo    repository.TicketRepository
	tickets       *TicketService
	escalation    *EscalationService
	notifications *NotificationService
	dispatcher    events.Dispatcher

	regional   domain.User
	supervisor domain.User
	agent      domain.User
	franchise  domain.User
	franAgent  domain.User
	loneRM     domain.User
	loneAgent  domain.User
	orphan     domain.User
	admin      domain.User
	otherAdmin domain.User
}

func modelPtr(m domain.ManagedByModel) *domain.ManagedByModel { return &m }

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	fake := clockwork.NewFakeClockAt(tuesdayTen)
	store := memstore.NewWithClock(fake.Now)
	h := &harness{clock: fake, store: store}

	h.regional = store.PutUser(domain.User{ID: "rgm-1", Email: "rgm@example.com", Role: domain.RoleRegionalManager})
	h.supervisor = store.PutUser(domain.User{ID: "rm-user-1", Email: "rm@example.com", Role: domain.RoleRelationshipManager})
	h.franchise = store.PutUser(domain.User{ID: "fr-user-1", Role: domain.RoleFranchise})
	h.loneRM = store.PutUser(domain.User{ID: "rm-user-2", Role: domain.RoleRelationshipManager})
	h.otherAdmin = store.PutUser(domain.User{ID: "admin-b", Role: domain.RoleSuperAdmin})
	h.admin = store.PutUser(domain.User{ID: "admin-a", Role: domain.RoleSuperAdmin})
	store.PutUser(domain.User{ID: "admin-0", Role: domain.RoleSuperAdmin, Status: domain.UserStatusSuspended})

	store.PutEntity(domain.SupervisorEntity{ID: "rm-1", Model: domain.ManagedByRelationshipManager, Owner: strPtr(h.supervisor.ID), RegionalManager: strPtr(h.regional.ID)})
	store.PutEntity(domain.SupervisorEntity{ID: "fr-1", Model: domain.ManagedByFranchise, Owner: strPtr(h.franchise.ID), RegionalManager: strPtr(h.regional.ID)})
	store.PutEntity(domain.SupervisorEntity{ID: "rm-2", Model: domain.ManagedByRelationshipManager, Owner: strPtr(h.loneRM.ID)})

	h.agent = store.PutUser(domain.User{ID: "agent-1", Role: domain.RoleAgent, ManagedBy: strPtr("rm-1"), ManagedByModel: modelPtr(domain.ManagedByRelationshipManager)})
	h.franAgent = store.PutUser(domain.User{ID: "agent-2", Role: domain.RoleAgent, ManagedBy: strPtr("fr-1"), ManagedByModel: modelPtr(domain.ManagedByFranchise)})
	h.loneAgent = store.PutUser(domain.User{ID: "agent-4", Role: domain.RoleAgent, ManagedBy: strPtr("rm-2"), ManagedByModel: modelPtr(domain.ManagedByRelationshipManager)})
	h.orphan = store.PutUser(domain.User{ID: "agent-3", Role: domain.RoleAgent})
	store.PutLead("lead-1")

	window, err := workhours.NewWindow(7, 18, time.UTC)
	require.NoError(t, err)
	calculator := workhours.NewCalculator(window, 2*time.Hour)
	resolver := hierarchy.NewResolver(store.Users(), store.Entities())
	dispatcher := events.NewInMemoryDispatcher()
	h.dispatcher = dispatcher
	logger := zap.NewNop()

	h.ticketRepo = store.Tickets()
	if opts.tickets != nil {
		h.ticketRepo = opts.tickets(h.ticketRepo)
	}
	notificationRepo := store.Notifications()
	if opts.notifications != nil {
		notificationRepo = opts.notifications(notificationRepo)
	}

	h.notifications = NewNotificationService(NotificationDependencies{
		NotificationRepo: notificationRepo,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	h.notifications.RegisterHandlers()

	h.tickets = NewTicketService(TicketDependencies{
		TicketRepo:  h.ticketRepo,
		UserRepo:    store.Users(),
		LeadRepo:    store.Leads(),
		HistoryRepo: store.History(),
		Resolver:    resolver,
		Calculator:  calculator,
		Documents:   opts.documents,
		Dispatcher:  dispatcher,
		Clock:       fake,
		Logger:      logger,
	})
	h.escalation = NewEscalationService(EscalationDependencies{
		TicketRepo:  h.ticketRepo,
		UserRepo:    store.Users(),
		HistoryRepo: store.History(),
		Resolver:    resolver,
		Calculator:  calculator,
		Dispatcher:  dispatcher,
		Metrics:     observability.NewMetrics(prometheus.NewRegistry()),
		Clock:       fake,
		Logger:      logger,
		BatchSize:   opts.batchSize,
	})
	return h
}

// setClock moves the fake clock to at.
func (h *harness) setClock(at time.Time) {
	h.clock.Advance(at.Sub(h.clock.Now()))
}

func (h *harness) raise(t *testing.T, agent domain.User) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.CreateTicket(context.Background(), &agent, TicketCreateInput{
		Category:    domain.CategoryPaymentNotReceived,
		Description: "Payout for lead not received",
	})
	require.NoError(t, err)
	return ticket
}

// captureEvents records every published event of the given type.
func (h *harness) captureEvents(eventType events.EventType) *[]events.Event {
	var captured []events.Event
	h.dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
		captured = append(captured, event)
		return nil
	})
	return &captured
}

func (h *harness) stored(t *testing.T, ticketID string) domain.Ticket {
	t.Helper()
	ticket, ok := h.store.Ticket(ticketID)
	require.True(t, ok, "ticket %s missing", ticketID)
	return ticket
}

func (h *harness) sweep(t *testing.T) SweepResult {
	t.Helper()
	result, err := h.escalation.RunSweep(context.Background())
	require.NoError(t, err)
	return result
}

func assertInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func notificationTypes(items []domain.Notification) []domain.NotificationType {
	types := make([]domain.NotificationType, 0, len(items))
	for _, item := range items {
		types = append(types, item.Type)
	}
	return types
}
