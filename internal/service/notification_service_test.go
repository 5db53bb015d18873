package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-request-desk/internal/domain"
	apperrors "github.com/spec-kit/service-request-desk/pkg/util"
)

func TestInboxListAndMarkRead(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	first := h.raise(t, h.agent)
	second := h.raise(t, h.agent)

	inbox, err := h.notifications.ListForUser(ctx, &h.supervisor, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, second.ID, *inbox[0].RelatedTicketID, "newest first")
	assert.Equal(t, first.ID, *inbox[1].RelatedTicketID)

	require.NoError(t, h.notifications.MarkRead(ctx, &h.supervisor, inbox[1].ID))
	require.NoError(t, h.notifications.MarkRead(ctx, &h.supervisor, inbox[1].ID), "marking twice is harmless")

	unread, err := h.notifications.ListForUser(ctx, &h.supervisor, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, inbox[0].ID, unread[0].ID)

	err = h.notifications.MarkRead(ctx, &h.regional, inbox[0].ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"), "only the recipient can mark it read")

	_, err = h.notifications.ListForUser(ctx, nil, false, 0, 0)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestResolutionNoteInMessage(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ticket := h.raise(t, h.agent)
	_, err := h.tickets.ResolveTicket(context.Background(), &h.supervisor, ticket.TicketID, strPtr("paid on 11 June"))
	require.NoError(t, err)

	inbox := h.store.NotificationsFor(h.agent.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationTicketResolved, inbox[0].Type)
	assert.Contains(t, inbox[0].Message, "paid on 11 June")
	assert.Contains(t, inbox[0].Title, ticket.TicketID)
}
