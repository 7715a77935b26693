package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	apperrors "github.com/atendo/realtime-gateway/internal/core/errors"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

// RoomKind discriminates the room variants. Rooms are a tagged union
// internally and only become strings at the transport boundary, so a typo
// in a hand-built room name can never leak events across tenants.
type RoomKind int

const (
	RoomTenant RoomKind = iota
	RoomTenantAttendants
	RoomUser
	RoomTicket
	// RoomTicketLegacy is the pre-multi-tenant room keyed only by ticket
	// id. Kept so clients that subscribed before tenant-scoped rooms
	// existed still receive status updates.
	RoomTicketLegacy
)

// Room identifies a broadcast group. Comparable, so it can key the hub's
// membership map directly.
type Room struct {
	Kind     RoomKind
	Tenant   uuid.UUID
	User     uuid.UUID
	TicketID string
}

func TenantRoom(empresaID uuid.UUID) Room {
	return Room{Kind: RoomTenant, Tenant: empresaID}
}

func TenantAttendantsRoom(empresaID uuid.UUID) Room {
	return Room{Kind: RoomTenantAttendants, Tenant: empresaID}
}

func UserRoom(userID uuid.UUID) Room {
	return Room{Kind: RoomUser, User: userID}
}

func TicketRoom(empresaID uuid.UUID, ticketID string) Room {
	return Room{Kind: RoomTicket, Tenant: empresaID, TicketID: ticketID}
}

func LegacyTicketRoom(ticketID string) Room {
	return Room{Kind: RoomTicketLegacy, TicketID: ticketID}
}

// String serializes the room to its canonical wire name.
func (r Room) String() string {
	switch r.Kind {
	case RoomTenant:
		return fmt.Sprintf("tenant:%s", r.Tenant)
	case RoomTenantAttendants:
		return fmt.Sprintf("tenant:%s:attendants", r.Tenant)
	case RoomUser:
		return fmt.Sprintf("user:%s", r.User)
	case RoomTicket:
		return fmt.Sprintf("ticket:%s:%s", r.Tenant, r.TicketID)
	case RoomTicketLegacy:
		return fmt.Sprintf("ticket:%s", r.TicketID)
	default:
		return "unknown"
	}
}

// Topology derives room membership from connection identity and owns the
// authorization check for ticket room joins.
type Topology struct {
	tickets ports.TicketStore
}

func NewTopology(tickets ports.TicketStore) *Topology {
	return &Topology{tickets: tickets}
}

// RoomsForIdentity returns the rooms every authenticated connection joins:
// its personal room, its tenant room, and the tenant attendants room when
// the role is staff.
func (t *Topology) RoomsForIdentity(rec ConnectionRecord) []Room {
	rooms := []Room{
		UserRoom(rec.UserID),
		TenantRoom(rec.EmpresaID),
	}
	if rec.Role.IsStaff() {
		rooms = append(rooms, TenantAttendantsRoom(rec.EmpresaID))
	}
	return rooms
}

// AuthorizeTicketJoin confirms the ticket exists and belongs to the
// caller's tenant. It consults the ticket store on every call, including
// rejoins of the same ticket: this check is the tenant-isolation boundary
// and is never cached.
func (t *Topology) AuthorizeTicketJoin(ctx context.Context, empresaID uuid.UUID, ticketID string) (*domain.Ticket, error) {
	if ticketID == "" {
		return nil, apperrors.ErrTicketIDRequired
	}

	ticket, err := t.tickets.FindByIDAndTenant(ctx, ticketID, empresaID)
	if err != nil {
		if errors.Is(err, ports.ErrTicketNotFound) {
			return nil, apperrors.ErrTicketNotInTenant
		}
		return nil, err
	}
	return ticket, nil
}
