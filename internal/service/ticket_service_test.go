package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/events"
	"github.com/spec-kit/service-request-desk/internal/repository"
	"github.com/spec-kit/service-request-desk/internal/storage"
	apperrors "github.com/spec-kit/service-request-desk/pkg/util"
)

func TestCreateTicketAssignsSupervisor(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	ticket := h.raise(t, h.agent)

	assert.Equal(t, "SRN-2025-000001", ticket.TicketID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.LevelSupervisor, ticket.EscalationLevel)
	assert.Equal(t, domain.RoleRelationshipManager, ticket.AssignedRole)
	assert.Equal(t, h.supervisor.ID, *ticket.AssignedTo)
	assertInstant(t, tuesdayTen, *ticket.SLATimerStartedAt)
	assertInstant(t, tuesdayTen.Add(2*time.Hour), *ticket.SLADeadline)

	inbox := h.store.NotificationsFor(h.supervisor.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationTicketCreated, inbox[0].Type)
	assert.Equal(t, ticket.ID, *inbox[0].RelatedTicketID)

	second := h.raise(t, h.franAgent)
	assert.Equal(t, "SRN-2025-000002", second.TicketID)
	assert.Equal(t, domain.RoleFranchise, second.AssignedRole)

	history, err := h.tickets.History(context.Background(), &h.agent, ticket.TicketID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypeCreated, history[0].ChangeType)
}

func TestCreateTicketOutsideWorkingHours(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.setClock(time.Date(2025, 6, 10, 20, 0, 0, 0, time.UTC))

	ticket := h.raise(t, h.agent)

	assertInstant(t, time.Date(2025, 6, 11, 7, 0, 0, 0, time.UTC), *ticket.SLATimerStartedAt)
	assertInstant(t, time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC), *ticket.SLADeadline)
}

func TestCreateTicketRejections(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	valid := TicketCreateInput{Category: domain.CategoryOther, Description: "help"}

	tests := []struct {
		name  string
		actor domain.User
		input TicketCreateInput
		code  string
	}{
		{"supervisor cannot raise", h.supervisor, valid, "FORBIDDEN"},
		{"admin cannot raise", h.admin, valid, "FORBIDDEN"},
		{"unknown category", h.agent, TicketCreateInput{Category: "Refund", Description: "x"}, "VALIDATION_FAILED"},
		{"blank description", h.agent, TicketCreateInput{Category: domain.CategoryOther, Description: "   "}, "VALIDATION_FAILED"},
		{"unknown lead", h.agent, TicketCreateInput{Category: domain.CategoryOther, Description: "x", LeadID: strPtr("lead-404")}, "VALIDATION_FAILED"},
		{"agent without supervisor", h.orphan, valid, "UNASSIGNABLE"},
		{"attachments disabled", h.agent, TicketCreateInput{Category: domain.CategoryOther, Description: "x", Attachment: &storage.File{OriginalName: "a.pdf", Body: strings.NewReader("")}}, "VALIDATION_FAILED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actor := tc.actor
			_, err := h.tickets.CreateTicket(ctx, &actor, tc.input)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, tc.code), "got %v", err)
		})
	}

	list, err := h.tickets.ListTickets(ctx, &h.admin, TicketListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list, "rejected requests leave no ticket behind")
}

func TestCreateTicketWithLeadAndAttachment(t *testing.T) {
	docs := &fakeDocuments{}
	h := newHarness(t, harnessOptions{documents: docs})

	ticket, err := h.tickets.CreateTicket(context.Background(), &h.agent, TicketCreateInput{
		Category:    domain.CategoryCommissionIssue,
		Description: "commission short",
		LeadID:      strPtr("lead-1"),
		Attachment:  &storage.File{OriginalName: "statement.pdf", Body: strings.NewReader("pdf")},
	})
	require.NoError(t, err)
	assert.Equal(t, "lead-1", *ticket.LeadID)
	require.NotNil(t, ticket.Attachment)
	assert.Equal(t, "statement.pdf", ticket.Attachment.OriginalName)
	assert.Equal(t, "service-requests/"+h.agent.ID, docs.prefix)
}

type fakeDocuments struct {
	prefix string
}

func (f *fakeDocuments) Upload(_ context.Context, prefix string, file storage.File) (*domain.Attachment, error) {
	f.prefix = prefix
	return &domain.Attachment{URL: "https://files/" + file.OriginalName, FileName: "generated.pdf", OriginalName: file.OriginalName}, nil
}

// collidingTickets rejects the first n creates as if another request took the id.
type collidingTickets struct {
	repository.TicketRepository
	collisions int
	attempts   []string
}

func (c *collidingTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	c.attempts = append(c.attempts, ticket.TicketID)
	if c.collisions > 0 {
		c.collisions--
		// The competing request wins the id, so the next lookup sees it.
		competitor := *ticket
		if err := c.TicketRepository.Create(ctx, &competitor); err != nil {
			return err
		}
		return repository.ErrDuplicateTicketID
	}
	return c.TicketRepository.Create(ctx, ticket)
}

func TestCreateTicketRetriesTakenID(t *testing.T) {
	colliding := &collidingTickets{collisions: 2}
	h := newHarness(t, harnessOptions{tickets: func(r repository.TicketRepository) repository.TicketRepository {
		colliding.TicketRepository = r
		return colliding
	}})

	ticket := h.raise(t, h.agent)
	assert.Equal(t, "SRN-2025-000003", ticket.TicketID)
	assert.Equal(t, []string{"SRN-2025-000001", "SRN-2025-000002", "SRN-2025-000003"}, colliding.attempts)
}

func TestCreateTicketGivesUpAfterRepeatedCollisions(t *testing.T) {
	colliding := &collidingTickets{collisions: 5}
	h := newHarness(t, harnessOptions{tickets: func(r repository.TicketRepository) repository.TicketRepository {
		colliding.TicketRepository = r
		return colliding
	}})

	_, err := h.tickets.CreateTicket(context.Background(), &h.agent, TicketCreateInput{Category: domain.CategoryOther, Description: "x"})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"), "got %v", err)
	assert.Len(t, colliding.attempts, maxTicketIDAttempts)
}

func TestListTicketsScopedByHierarchy(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	rmTicket := h.raise(t, h.agent)
	franTicket := h.raise(t, h.franAgent)
	loneTicket := h.raise(t, h.loneAgent)

	ids := func(actor domain.User, filter TicketListFilter) []string {
		list, err := h.tickets.ListTickets(ctx, &actor, filter)
		require.NoError(t, err)
		out := []string{}
		for _, ticket := range list {
			out = append(out, ticket.TicketID)
		}
		return out
	}

	assert.Equal(t, []string{rmTicket.TicketID}, ids(h.agent, TicketListFilter{}))
	assert.Equal(t, []string{rmTicket.TicketID}, ids(h.supervisor, TicketListFilter{}))
	assert.Equal(t, []string{franTicket.TicketID}, ids(h.franchise, TicketListFilter{}))
	assert.ElementsMatch(t, []string{rmTicket.TicketID, franTicket.TicketID}, ids(h.regional, TicketListFilter{}))
	assert.ElementsMatch(t, []string{rmTicket.TicketID, franTicket.TicketID, loneTicket.TicketID}, ids(h.admin, TicketListFilter{}))
	assert.Empty(t, ids(h.admin, TicketListFilter{Statuses: []domain.TicketStatus{domain.TicketStatusResolved}}))
	assert.Len(t, ids(h.admin, TicketListFilter{Limit: 2}), 2)
}

func TestGetTicketAccess(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	ticket := h.raise(t, h.agent)

	_, err := h.tickets.GetTicket(ctx, &h.supervisor, ticket.TicketID)
	assert.NoError(t, err)
	_, err = h.tickets.GetTicket(ctx, &h.franAgent, ticket.TicketID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	_, err = h.tickets.GetTicket(ctx, &h.loneRM, ticket.TicketID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	_, err = h.tickets.GetTicket(ctx, &h.admin, "SRN-2025-999999")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestUpdateTicketStatusAndNote(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	ticket := h.raise(t, h.agent)
	inProgress := domain.TicketStatusInProgress

	updated, err := h.tickets.UpdateTicket(ctx, &h.supervisor, ticket.TicketID, TicketUpdateInput{
		Status: &inProgress,
		Note:   strPtr("  called the agent  "),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	stored := h.stored(t, ticket.TicketID)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)
	require.Len(t, stored.InternalNotes, 1)
	assert.Equal(t, "called the agent", stored.InternalNotes[0].Note)
	assert.Equal(t, h.supervisor.ID, stored.InternalNotes[0].AddedBy)

	history, err := h.tickets.History(ctx, &h.supervisor, ticket.TicketID)
	require.NoError(t, err)
	var kinds []domain.TicketChangeType
	for _, entry := range history {
		kinds = append(kinds, entry.ChangeType)
	}
	assert.Equal(t, []domain.TicketChangeType{domain.ChangeTypeCreated, domain.ChangeTypeStatus, domain.ChangeTypeNote}, kinds)
}

func TestUpdateTicketPublishesStatusChange(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	ticket := h.raise(t, h.agent)
	updates := h.captureEvents(events.EventTicketUpdated)
	inProgress := domain.TicketStatusInProgress

	_, err := h.tickets.UpdateTicket(ctx, &h.supervisor, ticket.TicketID, TicketUpdateInput{Status: &inProgress})
	require.NoError(t, err)
	_, err = h.tickets.UpdateTicket(ctx, &h.supervisor, ticket.TicketID, TicketUpdateInput{Note: strPtr("waiting on finance")})
	require.NoError(t, err)
	// Re-sending the current status changes nothing and publishes nothing.
	_, err = h.tickets.UpdateTicket(ctx, &h.supervisor, ticket.TicketID, TicketUpdateInput{Status: &inProgress})
	require.NoError(t, err)

	require.Len(t, *updates, 2)
	assert.Equal(t, events.TicketUpdatedPayload{
		OldStatus: domain.TicketStatusOpen,
		NewStatus: domain.TicketStatusInProgress,
	}, (*updates)[0].Payload)
	assert.Equal(t, events.TicketUpdatedPayload{
		OldStatus: domain.TicketStatusInProgress,
		NewStatus: domain.TicketStatusInProgress,
		NoteAdded: true,
	}, (*updates)[1].Payload)
	assert.Equal(t, h.supervisor.ID, *(*updates)[0].ActorID)
}

func TestUpdateTicketRejections(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	ticket := h.raise(t, h.agent)
	resolved := domain.TicketStatusResolved
	bogus := domain.TicketStatus("Parked")
	inProgress := domain.TicketStatusInProgress

	tests := []struct {
		name  string
		actor domain.User
		input TicketUpdateInput
		code  string
	}{
		{"agents cannot update", h.agent, TicketUpdateInput{Status: &inProgress}, "FORBIDDEN"},
		{"resolved via update", h.supervisor, TicketUpdateInput{Status: &resolved}, "VALIDATION_FAILED"},
		{"unknown status", h.supervisor, TicketUpdateInput{Status: &bogus}, "VALIDATION_FAILED"},
		{"empty update", h.supervisor, TicketUpdateInput{Note: strPtr("  ")}, "VALIDATION_FAILED"},
		{"supervisor cannot reassign", h.supervisor, TicketUpdateInput{AssignTo: strPtr(h.admin.ID)}, "FORBIDDEN"},
		{"outside hierarchy", h.loneRM, TicketUpdateInput{Status: &inProgress}, "FORBIDDEN"},
		{"reassign to agent", h.regional, TicketUpdateInput{AssignTo: strPtr(h.franAgent.ID)}, "VALIDATION_FAILED"},
		{"reassign to unknown user", h.regional, TicketUpdateInput{AssignTo: strPtr("ghost")}, "NOT_FOUND"},
		{"reassign to suspended user", h.regional, TicketUpdateInput{AssignTo: strPtr("admin-0")}, "VALIDATION_FAILED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actor := tc.actor
			_, err := h.tickets.UpdateTicket(ctx, &actor, ticket.TicketID, tc.input)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, tc.code), "got %v", err)
		})
	}
	assert.Equal(t, domain.TicketStatusOpen, h.stored(t, ticket.TicketID).Status)
}

func TestReassignNotifiesBothAssignees(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	ticket := h.raise(t, h.agent)

	updated, err := h.tickets.UpdateTicket(ctx, &h.regional, ticket.TicketID, TicketUpdateInput{AssignTo: strPtr(h.loneRM.ID)})
	require.NoError(t, err)
	assert.Equal(t, h.loneRM.ID, *updated.AssignedTo)
	assert.Equal(t, domain.RoleRelationshipManager, updated.AssignedRole)
	assert.Equal(t, domain.LevelSupervisor, updated.EscalationLevel, "reassignment does not change the level")

	assert.Equal(t, []domain.NotificationType{domain.NotificationTicketReassigned}, notificationTypes(h.store.NotificationsFor(h.loneRM.ID)))
	assert.Equal(t, []domain.NotificationType{domain.NotificationTicketCreated, domain.NotificationTicketMoved}, notificationTypes(h.store.NotificationsFor(h.supervisor.ID)))

	// The new assignee can act on the ticket even though it is outside their hierarchy.
	_, err = h.tickets.GetTicket(ctx, &h.loneRM, ticket.TicketID)
	assert.NoError(t, err)
}

func TestResolveTicket(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	ticket := h.raise(t, h.agent)
	h.clock.Advance(30 * time.Minute)

	_, err := h.tickets.ResolveTicket(ctx, &h.admin, ticket.TicketID, nil)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "admins cannot resolve")

	_, err = h.tickets.ResolveTicket(ctx, &h.franAgent, ticket.TicketID, nil)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "other agents cannot resolve")

	resolved, err := h.tickets.ResolveTicket(ctx, &h.supervisor, ticket.TicketID, strPtr("paid out"))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)

	stored := h.stored(t, ticket.TicketID)
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
	assert.Equal(t, h.supervisor.ID, *stored.ResolvedBy)
	assert.Equal(t, "paid out", *stored.ResolutionNote)
	assertInstant(t, tuesdayTen.Add(30*time.Minute), *stored.ResolvedAt)

	agentInbox := h.store.NotificationsFor(h.agent.ID)
	require.Len(t, agentInbox, 1)
	assert.Equal(t, domain.NotificationTicketResolved, agentInbox[0].Type)

	_, err = h.tickets.ResolveTicket(ctx, &h.supervisor, ticket.TicketID, nil)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"), "resolution happens once")

	inProgress := domain.TicketStatusInProgress
	_, err = h.tickets.UpdateTicket(ctx, &h.supervisor, ticket.TicketID, TicketUpdateInput{Status: &inProgress})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"), "status is frozen after resolution")

	_, err = h.tickets.UpdateTicket(ctx, &h.supervisor, ticket.TicketID, TicketUpdateInput{Note: strPtr("agent confirmed receipt")})
	require.NoError(t, err, "notes stay appendable")
	assert.Len(t, h.stored(t, ticket.TicketID).InternalNotes, 1)
}

func TestAgentResolvesOwnTicket(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ticket := h.raise(t, h.agent)

	_, err := h.tickets.ResolveTicket(context.Background(), &h.agent, ticket.TicketID, nil)
	require.NoError(t, err)
	assert.Nil(t, h.stored(t, ticket.TicketID).ResolutionNote)
}
