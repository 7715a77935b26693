package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	apperrors "github.com/atendo/realtime-gateway/internal/core/errors"
)

func TestTransitionTable_IsTotal(t *testing.T) {
	// Every enumerated status must have a table entry, possibly empty.
	for _, s := range domain.AllStatuses {
		t.Run(string(s), func(t *testing.T) {
			assert.True(t, s.IsValid(), "status %s has no transition table entry", s)
			assert.NotNil(t, domain.NextValidStates(s))
		})
	}
}

func TestIsValidTransition_SelfTransitionAlwaysAllowed(t *testing.T) {
	for _, s := range domain.AllStatuses {
		t.Run(string(s), func(t *testing.T) {
			assert.True(t, domain.IsValidTransition(s, s))
		})
	}
}

func TestIsValidTransition_Table(t *testing.T) {
	tests := []struct {
		name string
		from domain.TicketStatus
		to   domain.TicketStatus
		want bool
	}{
		{"queue to in progress", domain.StatusFila, domain.StatusEmAtendimento, true},
		{"queue straight to completed", domain.StatusFila, domain.StatusConcluido, false},
		{"closed reopens to queue", domain.StatusEncerrado, domain.StatusFila, true},
		{"closed cannot resume handling", domain.StatusEncerrado, domain.StatusEmAtendimento, false},
		{"cancelled reopens to queue", domain.StatusCancelado, domain.StatusFila, true},
		{"handling to awaiting customer", domain.StatusEmAtendimento, domain.StatusAguardandoCliente, true},
		{"awaiting customer back to handling", domain.StatusAguardandoCliente, domain.StatusEmAtendimento, true},
		{"awaiting internal to awaiting customer", domain.StatusAguardandoInterno, domain.StatusAguardandoCliente, true},
		{"active outbound to completed", domain.StatusEnvioAtivo, domain.StatusConcluido, true},
		{"queue to active outbound", domain.StatusFila, domain.StatusEnvioAtivo, true},
		{"completed back to awaiting customer", domain.StatusConcluido, domain.StatusAguardandoCliente, false},
		{"unknown status has no exits", domain.TicketStatus("ABERTO"), domain.StatusFila, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsValidTransition(tt.from, tt.to))
		})
	}
}

func TestNextValidStates_ReturnsCopy(t *testing.T) {
	first := domain.NextValidStates(domain.StatusEncerrado)
	require.Equal(t, []domain.TicketStatus{domain.StatusFila}, first)

	first[0] = domain.StatusConcluido

	assert.Equal(t, []domain.TicketStatus{domain.StatusFila}, domain.NextValidStates(domain.StatusEncerrado))
}

func TestDescribeTransition(t *testing.T) {
	t.Run("known pair has a dedicated description", func(t *testing.T) {
		desc := domain.DescribeTransition(domain.StatusEncerrado, domain.StatusFila)
		assert.Equal(t, "Ticket reaberto e devolvido à fila", desc)
	})

	t.Run("unmapped pair falls back to generic text", func(t *testing.T) {
		desc := domain.DescribeTransition(domain.StatusConcluido, domain.StatusEnvioAtivo)
		assert.Contains(t, desc, "CONCLUIDO")
		assert.Contains(t, desc, "ENVIO_ATIVO")
	})

	t.Run("never panics for unknown statuses", func(t *testing.T) {
		assert.NotPanics(t, func() {
			_ = domain.DescribeTransition(domain.TicketStatus("X"), domain.TicketStatus("Y"))
		})
	})
}

func TestExplainRejection_ListsValidStates(t *testing.T) {
	explanation := domain.ExplainRejection(domain.StatusFila, domain.StatusConcluido)

	assert.Contains(t, explanation, string(domain.StatusEmAtendimento))
	assert.Contains(t, explanation, string(domain.StatusEnvioAtivo))
	assert.Contains(t, explanation, string(domain.StatusCancelado))
}

func TestTicket_UpdateStatus(t *testing.T) {
	t.Run("valid transition updates status and timestamp", func(t *testing.T) {
		ticket := &domain.Ticket{ID: "t-1", Status: domain.StatusFila}

		err := ticket.UpdateStatus(domain.StatusEmAtendimento)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusEmAtendimento, ticket.Status)
		require.NotNil(t, ticket.UpdatedAt)
	})

	t.Run("self transition is a no-op", func(t *testing.T) {
		ticket := &domain.Ticket{ID: "t-1", Status: domain.StatusEncerrado}

		err := ticket.UpdateStatus(domain.StatusEncerrado)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusEncerrado, ticket.Status)
		assert.Nil(t, ticket.UpdatedAt)
	})

	t.Run("invalid transition is refused with explanation", func(t *testing.T) {
		ticket := &domain.Ticket{ID: "t-1", Status: domain.StatusEncerrado}

		err := ticket.UpdateStatus(domain.StatusEmAtendimento)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
		assert.Equal(t, domain.StatusEncerrado, ticket.Status)
	})
}
