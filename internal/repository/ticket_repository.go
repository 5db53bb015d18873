package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-request-desk/internal/domain"
)

var (
	// ErrStaleTicket means a conditional update matched no row: the ticket was
	// resolved or moved to another escalation level since it was read.
	ErrStaleTicket = errors.New("ticket state changed concurrently")
	// ErrDuplicateTicketID means another request claimed the same SRN first.
	ErrDuplicateTicketID = errors.New("ticket id already taken")
)

// TicketFilter captures listing parameters. AgentIDs restricts tickets to those
// raised by the given agents unless Unrestricted is set.
type TicketFilter struct {
	Unrestricted bool
	AgentIDs     []string
	OrAssignedTo *string
	Statuses     []domain.TicketStatus
	Categories   []domain.TicketCategory
	Limit        int
	Offset       int
}

// EscalationChange moves a ticket from FromLevel to ToLevel. Nil SLA fields and
// a nil Priority leave the stored values untouched.
type EscalationChange struct {
	ID                string
	FromLevel         domain.EscalationLevel
	ToLevel           domain.EscalationLevel
	Status            domain.TicketStatus
	AssignedRole      domain.Role
	AssignedTo        string
	Priority          *domain.TicketPriority
	SLATimerStartedAt *time.Time
	SLADeadline       *time.Time
}

// TicketUpdate is a manual change applied only while the ticket is unresolved
// and still at ExpectedLevel.
type TicketUpdate struct {
	ID            string
	ExpectedLevel domain.EscalationLevel
	Status        *domain.TicketStatus
	AssignedTo    *string
	AssignedRole  *domain.Role
	Note          *domain.InternalNote
}

// EscalationCursor is the (sla_deadline, id) key of the last candidate read.
type EscalationCursor struct {
	Deadline time.Time
	ID       string
}

// ResolutionChange closes a ticket that is unresolved and still at ExpectedLevel.
type ResolutionChange struct {
	ID             string
	ExpectedLevel  domain.EscalationLevel
	ResolvedBy     string
	ResolutionNote *string
	ResolvedAt     time.Time
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.Ticket, error)
	LastTicketIDWithPrefix(ctx context.Context, prefix string) (string, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListEscalationCandidates(ctx context.Context, now time.Time, after *EscalationCursor, limit int) ([]domain.Ticket, error)
	Escalate(ctx context.Context, change EscalationChange) error
	Update(ctx context.Context, update TicketUpdate) error
	AppendNote(ctx context.Context, id string, note domain.InternalNote) error
	Resolve(ctx context.Context, change ResolutionChange) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_id, raised_by, lead_id, category, description, attachment, status, priority,
               escalation_level, assigned_role, assigned_to, sla_timer_started_at, sla_deadline,
               internal_notes, resolved_by, resolution_note, resolved_at, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_id, raised_by, lead_id, category, description, attachment, status, priority,
            escalation_level, assigned_role, assigned_to, sla_timer_started_at, sla_deadline, internal_notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,COALESCE($14::jsonb, '[]'::jsonb))
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.TicketID,
		ticket.RaisedBy,
		ticket.LeadID,
		ticket.Category,
		ticket.Description,
		ticket.Attachment,
		ticket.Status,
		ticket.Priority,
		ticket.EscalationLevel,
		ticket.AssignedRole,
		ticket.AssignedTo,
		ticket.SLATimerStartedAt,
		ticket.SLADeadline,
		ticket.InternalNotes,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "tickets_ticket_id_key" {
		return ErrDuplicateTicketID
	}
	return err
}

func (r *ticketRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, ticketID))
}

// LastTicketIDWithPrefix returns the ticket id with the highest numeric suffix
// after prefix, or "" when none exists. Suffixes are zero-padded, so a longer
// id always carries the larger sequence.
func (r *ticketRepository) LastTicketIDWithPrefix(ctx context.Context, prefix string) (string, error) {
	const query = `SELECT ticket_id FROM tickets WHERE ticket_id LIKE $1 ORDER BY length(ticket_id) DESC, ticket_id DESC LIMIT 1`
	var last string
	if err := r.pool.QueryRow(ctx, query, prefix+"%").Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return last, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if !filter.Unrestricted {
		args = append(args, filter.AgentIDs)
		scope := fmt.Sprintf("raised_by = ANY($%d)", len(args))
		if filter.OrAssignedTo != nil {
			args = append(args, *filter.OrAssignedTo)
			scope = fmt.Sprintf("(%s OR assigned_to=$%d)", scope, len(args))
		}
		clauses = append(clauses, scope)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListEscalationCandidates returns one page of unresolved tickets below the admin
// level whose deadline has passed, ordered by (sla_deadline, id) and starting
// after the cursor when one is given.
func (r *ticketRepository) ListEscalationCandidates(ctx context.Context, now time.Time, after *EscalationCursor, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 500
	}
	args := []any{domain.TicketStatusResolved, domain.LevelRegionalManager, now}
	keyset := ""
	if after != nil {
		args = append(args, after.Deadline, after.ID)
		keyset = " AND (sla_deadline, id) > ($4, $5)"
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s
        FROM tickets
        WHERE status <> $1 AND escalation_level <= $2 AND sla_deadline IS NOT NULL AND sla_deadline <= $3%s
        ORDER BY sla_deadline ASC, id ASC
        LIMIT $%d`, ticketColumns, keyset, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Escalate(ctx context.Context, change EscalationChange) error {
	const query = `
        UPDATE tickets SET escalation_level=$1, status=$2, assigned_role=$3, assigned_to=$4,
            priority=COALESCE($5, priority),
            sla_timer_started_at=COALESCE($6, sla_timer_started_at),
            sla_deadline=COALESCE($7, sla_deadline),
            updated_at=NOW()
        WHERE id=$8 AND status <> $9 AND escalation_level=$10`
	cmd, err := r.pool.Exec(ctx, query,
		change.ToLevel,
		change.Status,
		change.AssignedRole,
		change.AssignedTo,
		change.Priority,
		change.SLATimerStartedAt,
		change.SLADeadline,
		change.ID,
		domain.TicketStatusResolved,
		change.FromLevel,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleTicket
	}
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, update TicketUpdate) error {
	notes, err := noteArray(update.Note)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET status=COALESCE($1, status),
            assigned_to=COALESCE($2, assigned_to),
            assigned_role=COALESCE($3, assigned_role),
            internal_notes=internal_notes || COALESCE($4::jsonb, '[]'::jsonb),
            updated_at=NOW()
        WHERE id=$5 AND status <> $6 AND escalation_level=$7`
	cmd, err := r.pool.Exec(ctx, query,
		update.Status,
		update.AssignedTo,
		update.AssignedRole,
		notes,
		update.ID,
		domain.TicketStatusResolved,
		update.ExpectedLevel,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleTicket
	}
	return nil
}

// AppendNote adds a note regardless of ticket state; notes are never rewritten.
func (r *ticketRepository) AppendNote(ctx context.Context, id string, note domain.InternalNote) error {
	notes, err := noteArray(&note)
	if err != nil {
		return err
	}
	const query = `UPDATE tickets SET internal_notes=internal_notes || $1::jsonb, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, notes, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Resolve(ctx context.Context, change ResolutionChange) error {
	const query = `
        UPDATE tickets SET status=$1, resolved_by=$2, resolution_note=$3, resolved_at=$4, updated_at=NOW()
        WHERE id=$5 AND status <> $1 AND escalation_level=$6`
	cmd, err := r.pool.Exec(ctx, query,
		domain.TicketStatusResolved,
		change.ResolvedBy,
		change.ResolutionNote,
		change.ResolvedAt,
		change.ID,
		change.ExpectedLevel,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleTicket
	}
	return nil
}

func noteArray(note *domain.InternalNote) ([]byte, error) {
	if note == nil {
		return nil, nil
	}
	return json.Marshal([]domain.InternalNote{*note})
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketID,
		&ticket.RaisedBy,
		&ticket.LeadID,
		&ticket.Category,
		&ticket.Description,
		&ticket.Attachment,
		&ticket.Status,
		&ticket.Priority,
		&ticket.EscalationLevel,
		&ticket.AssignedRole,
		&ticket.AssignedTo,
		&ticket.SLATimerStartedAt,
		&ticket.SLADeadline,
		&ticket.InternalNotes,
		&ticket.ResolvedBy,
		&ticket.ResolutionNote,
		&ticket.ResolvedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
