package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

// DBTX matches both *pgxpool.Pool and pgx.Tx so the store works inside
// or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TicketStore is the secondary adapter for ticket lookups and the
// contact presence mirror.
type TicketStore struct {
	db DBTX
}

var _ ports.TicketStore = (*TicketStore)(nil)

// NewTicketStore creates a new ticket store backed by the given pool.
func NewTicketStore(pool *pgxpool.Pool) *TicketStore {
	return &TicketStore{db: pool}
}

const findTicketByIDAndTenantQuery = `
SELECT id, empresa_id, status, assignee_id, contato_id, contato_online, updated_at
FROM tickets
WHERE id = $1 AND empresa_id = $2`

// FindByIDAndTenant returns the ticket only when it exists and belongs to
// the given tenant. A ticket owned by another tenant is indistinguishable
// from a missing one.
func (s *TicketStore) FindByIDAndTenant(ctx context.Context, ticketID string, empresaID uuid.UUID) (*domain.Ticket, error) {
	var (
		ticket     domain.Ticket
		empresa    pgtype.UUID
		status     string
		assigneeID pgtype.UUID
		updatedAt  pgtype.Timestamptz
	)

	row := s.db.QueryRow(ctx, findTicketByIDAndTenantQuery, ticketID, pgtype.UUID{Bytes: empresaID, Valid: true})
	err := row.Scan(&ticket.ID, &empresa, &status, &assigneeID, &ticket.ContatoID, &ticket.ContatoOnline, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to query ticket %s: %w", ticketID, err)
	}

	ticket.Status = domain.TicketStatus(status)
	if empresa.Valid {
		ticket.EmpresaID = empresa.Bytes
	}
	if assigneeID.Valid {
		id := uuid.UUID(assigneeID.Bytes)
		ticket.AssigneeID = &id
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		ticket.UpdatedAt = &t
	}

	return &ticket, nil
}

const setContactOnlineQuery = `
UPDATE tickets
SET contato_online = $3, updated_at = now()
WHERE contato_id = $1 AND empresa_id = $2
  AND status NOT IN ('ENCERRADO', 'CANCELADO', 'CONCLUIDO')`

// SetContactOnline mirrors the contact's online flag into the contact's
// open tickets. Finished tickets keep whatever flag they had.
func (s *TicketStore) SetContactOnline(ctx context.Context, contatoID string, empresaID uuid.UUID, online bool) error {
	_, err := s.db.Exec(ctx, setContactOnlineQuery, contatoID, pgtype.UUID{Bytes: empresaID, Valid: true}, online)
	if err != nil {
		return fmt.Errorf("failed to mirror contact presence for %s: %w", contatoID, err)
	}
	return nil
}
