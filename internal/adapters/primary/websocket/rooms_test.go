package websocket

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	apperrors "github.com/atendo/realtime-gateway/internal/core/errors"
	"github.com/atendo/realtime-gateway/internal/core/mocks"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

func TestRoom_String(t *testing.T) {
	empresaID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	userID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	tests := []struct {
		name string
		room Room
		want string
	}{
		{
			name: "tenant room",
			room: TenantRoom(empresaID),
			want: "tenant:11111111-1111-1111-1111-111111111111",
		},
		{
			name: "tenant attendants room",
			room: TenantAttendantsRoom(empresaID),
			want: "tenant:11111111-1111-1111-1111-111111111111:attendants",
		},
		{
			name: "user room",
			room: UserRoom(userID),
			want: "user:22222222-2222-2222-2222-222222222222",
		},
		{
			name: "ticket room",
			room: TicketRoom(empresaID, "5511999998888-1700000000"),
			want: "ticket:11111111-1111-1111-1111-111111111111:5511999998888-1700000000",
		},
		{
			name: "legacy ticket room",
			room: LegacyTicketRoom("5511999998888-1700000000"),
			want: "ticket:5511999998888-1700000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.room.String())
		})
	}
}

func TestRoom_Comparable(t *testing.T) {
	empresaID := uuid.New()

	assert.Equal(t, TicketRoom(empresaID, "t-1"), TicketRoom(empresaID, "t-1"))
	assert.NotEqual(t, TicketRoom(empresaID, "t-1"), TicketRoom(uuid.New(), "t-1"),
		"same ticket id under different tenants must be different rooms")
	assert.NotEqual(t, TicketRoom(empresaID, "t-1"), LegacyTicketRoom("t-1"))
}

func TestTopology_RoomsForIdentity(t *testing.T) {
	topology := NewTopology(mocks.NewMockTicketStore())
	userID := uuid.New()
	empresaID := uuid.New()

	t.Run("staff joins attendants room", func(t *testing.T) {
		rooms := topology.RoomsForIdentity(ConnectionRecord{
			ConnectionID: "conn-1",
			UserID:       userID,
			Role:         domain.RoleAtendente,
			EmpresaID:    empresaID,
		})

		assert.Contains(t, rooms, UserRoom(userID))
		assert.Contains(t, rooms, TenantRoom(empresaID))
		assert.Contains(t, rooms, TenantAttendantsRoom(empresaID))
	})

	t.Run("client does not join attendants room", func(t *testing.T) {
		rooms := topology.RoomsForIdentity(ConnectionRecord{
			ConnectionID: "conn-2",
			UserID:       userID,
			Role:         domain.RoleCliente,
			EmpresaID:    empresaID,
		})

		assert.Contains(t, rooms, UserRoom(userID))
		assert.Contains(t, rooms, TenantRoom(empresaID))
		assert.NotContains(t, rooms, TenantAttendantsRoom(empresaID))
	})
}

func TestTopology_AuthorizeTicketJoin(t *testing.T) {
	empresaID := uuid.New()
	ctx := context.Background()

	t.Run("empty ticket id", func(t *testing.T) {
		topology := NewTopology(mocks.NewMockTicketStore())

		_, err := topology.AuthorizeTicketJoin(ctx, empresaID, "")
		assert.ErrorIs(t, err, apperrors.ErrTicketIDRequired)
	})

	t.Run("ticket in another tenant is denied", func(t *testing.T) {
		store := mocks.NewMockTicketStore()
		store.On("FindByIDAndTenant", mock.Anything, "t-1", empresaID).
			Return(nil, ports.ErrTicketNotFound)
		topology := NewTopology(store)

		_, err := topology.AuthorizeTicketJoin(ctx, empresaID, "t-1")
		assert.ErrorIs(t, err, apperrors.ErrTicketNotInTenant)
		store.AssertExpectations(t)
	})

	t.Run("owning tenant is allowed", func(t *testing.T) {
		store := mocks.NewMockTicketStore()
		store.On("FindByIDAndTenant", mock.Anything, "t-1", empresaID).
			Return(&domain.Ticket{ID: "t-1", EmpresaID: empresaID, Status: domain.StatusFila}, nil)
		topology := NewTopology(store)

		ticket, err := topology.AuthorizeTicketJoin(ctx, empresaID, "t-1")
		require.NoError(t, err)
		assert.Equal(t, "t-1", ticket.ID)
	})

	t.Run("store is consulted on every join, including rejoins", func(t *testing.T) {
		store := mocks.NewMockTicketStore()
		store.On("FindByIDAndTenant", mock.Anything, "t-1", empresaID).
			Return(&domain.Ticket{ID: "t-1", EmpresaID: empresaID, Status: domain.StatusFila}, nil)
		topology := NewTopology(store)

		_, err := topology.AuthorizeTicketJoin(ctx, empresaID, "t-1")
		require.NoError(t, err)
		_, err = topology.AuthorizeTicketJoin(ctx, empresaID, "t-1")
		require.NoError(t, err)

		store.AssertNumberOfCalls(t, "FindByIDAndTenant", 2)
	})
}
