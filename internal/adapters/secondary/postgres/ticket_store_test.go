package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

func truncateTickets(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), "TRUNCATE TABLE tickets")
	require.NoError(t, err)
}

func seedTicket(t *testing.T, ticket domain.Ticket) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO tickets (id, empresa_id, status, assignee_id, contato_id, contato_online)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ticket.ID, ticket.EmpresaID, string(ticket.Status), ticket.AssigneeID, ticket.ContatoID, ticket.ContatoOnline,
	)
	require.NoError(t, err)
}

func TestTicketStore_FindByIDAndTenant(t *testing.T) {
	truncateTickets(t)
	store := NewTicketStore(testPool)
	ctx := context.Background()

	empresaID := uuid.New()
	otherEmpresaID := uuid.New()
	assigneeID := uuid.New()

	seedTicket(t, domain.Ticket{
		ID:         "5511999998888-1700000000",
		EmpresaID:  empresaID,
		Status:     domain.StatusEmAtendimento,
		AssigneeID: &assigneeID,
		ContatoID:  "5511999998888",
	})

	t.Run("returns ticket for owning tenant", func(t *testing.T) {
		ticket, err := store.FindByIDAndTenant(ctx, "5511999998888-1700000000", empresaID)
		require.NoError(t, err)
		assert.Equal(t, "5511999998888-1700000000", ticket.ID)
		assert.Equal(t, empresaID, ticket.EmpresaID)
		assert.Equal(t, domain.StatusEmAtendimento, ticket.Status)
		require.NotNil(t, ticket.AssigneeID)
		assert.Equal(t, assigneeID, *ticket.AssigneeID)
	})

	t.Run("hides ticket from other tenants", func(t *testing.T) {
		ticket, err := store.FindByIDAndTenant(ctx, "5511999998888-1700000000", otherEmpresaID)
		assert.ErrorIs(t, err, ports.ErrTicketNotFound)
		assert.Nil(t, ticket)
	})

	t.Run("missing ticket", func(t *testing.T) {
		_, err := store.FindByIDAndTenant(ctx, "does-not-exist", empresaID)
		assert.ErrorIs(t, err, ports.ErrTicketNotFound)
	})
}

func TestTicketStore_SetContactOnline(t *testing.T) {
	truncateTickets(t)
	store := NewTicketStore(testPool)
	ctx := context.Background()

	empresaID := uuid.New()
	contatoID := "5511988887777"

	seedTicket(t, domain.Ticket{
		ID:        "open-ticket",
		EmpresaID: empresaID,
		Status:    domain.StatusFila,
		ContatoID: contatoID,
	})
	seedTicket(t, domain.Ticket{
		ID:        "closed-ticket",
		EmpresaID: empresaID,
		Status:    domain.StatusEncerrado,
		ContatoID: contatoID,
	})
	seedTicket(t, domain.Ticket{
		ID:        "other-tenant-ticket",
		EmpresaID: uuid.New(),
		Status:    domain.StatusFila,
		ContatoID: contatoID,
	})

	require.NoError(t, store.SetContactOnline(ctx, contatoID, empresaID, true))

	open, err := store.FindByIDAndTenant(ctx, "open-ticket", empresaID)
	require.NoError(t, err)
	assert.True(t, open.ContatoOnline, "open ticket should mirror the online flag")
	assert.NotNil(t, open.UpdatedAt)

	closed, err := store.FindByIDAndTenant(ctx, "closed-ticket", empresaID)
	require.NoError(t, err)
	assert.False(t, closed.ContatoOnline, "finished tickets keep their flag")

	t.Run("flips back offline", func(t *testing.T) {
		require.NoError(t, store.SetContactOnline(ctx, contatoID, empresaID, false))

		open, err := store.FindByIDAndTenant(ctx, "open-ticket", empresaID)
		require.NoError(t, err)
		assert.False(t, open.ContatoOnline)
	})
}
