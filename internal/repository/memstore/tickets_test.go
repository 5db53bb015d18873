package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-request-desk/internal/domain"
	"github.com/spec-kit/service-request-desk/internal/repository"
)

func putTicket(t *testing.T, store *Store, ticketID string, deadline time.Time) domain.Ticket {
	t.Helper()
	ticket := domain.Ticket{
		TicketID:        ticketID,
		Status:          domain.TicketStatusOpen,
		EscalationLevel: domain.LevelSupervisor,
		SLADeadline:     &deadline,
	}
	require.NoError(t, store.Tickets().Create(context.Background(), &ticket))
	return ticket
}

func TestLastTicketIDWithPrefixOrdersBySequence(t *testing.T) {
	store := New()
	deadline := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	putTicket(t, store, "SRN-2025-999999", deadline)
	putTicket(t, store, "SRN-2025-1000000", deadline)
	putTicket(t, store, "SRN-2025-000123", deadline)
	putTicket(t, store, "SRN-2026-000001", deadline)

	last, err := store.Tickets().LastTicketIDWithPrefix(context.Background(), "SRN-2025-")
	require.NoError(t, err)
	assert.Equal(t, "SRN-2025-1000000", last)

	last, err = store.Tickets().LastTicketIDWithPrefix(context.Background(), "SRN-2027-")
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestListEscalationCandidatesPagesByKeyset(t *testing.T) {
	store := New()
	early := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	now := late.Add(time.Hour)

	var want []string
	for _, ticketID := range []string{"SRN-2025-000001", "SRN-2025-000002", "SRN-2025-000003"} {
		putTicket(t, store, ticketID, early)
	}
	putTicket(t, store, "SRN-2025-000004", late)
	putTicket(t, store, "SRN-2025-000005", now.Add(time.Hour))

	tickets := store.Tickets()
	var cursor *repository.EscalationCursor
	var got []string
	for {
		page, err := tickets.ListEscalationCandidates(context.Background(), now, cursor, 2)
		require.NoError(t, err)
		for _, ticket := range page {
			got = append(got, ticket.TicketID)
		}
		if len(page) < 2 {
			break
		}
		last := page[len(page)-1]
		cursor = &repository.EscalationCursor{Deadline: *last.SLADeadline, ID: last.ID}
	}

	all, err := tickets.ListEscalationCandidates(context.Background(), now, nil, 0)
	require.NoError(t, err)
	for _, ticket := range all {
		want = append(want, ticket.TicketID)
	}
	assert.Len(t, want, 4, "the not-yet-due ticket is excluded")
	assert.Equal(t, want, got, "pages cover every candidate once, in order")
	assert.Equal(t, "SRN-2025-000004", got[3])
}
