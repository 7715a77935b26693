package websocket

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

// envelope pairs an event with the rooms it targets. Everything flows
// through one broadcast channel so events for a room are delivered in the
// order the notifier calls were issued.
type envelope struct {
	rooms []Room
	event domain.Event
}

// Hub is the broadcast gateway: it tracks connection identity in the
// registry, owns room membership, and fans domain events out to the
// sockets in the target rooms.
type Hub struct {
	registry *Registry
	topology *Topology
	presence ports.PresenceService

	// rooms maps room identity to member connections.
	rooms map[Room]map[*Client]bool

	broadcast  chan envelope
	Register   chan *Client
	Unregister chan *Client

	// running is false until Run starts; notifiers invoked before that
	// log and return instead of failing the caller.
	running atomic.Bool

	// mu protects the rooms map.
	mu sync.RWMutex

	logger *slog.Logger
}

// Ensure Hub implements the Broadcaster output port.
var _ ports.Broadcaster = (*Hub)(nil)

// NewHub creates the gateway hub.
func NewHub(topology *Topology, presence ports.PresenceService, logger *slog.Logger) *Hub {
	return &Hub{
		registry:   NewRegistry(),
		topology:   topology,
		presence:   presence,
		rooms:      make(map[Room]map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Registry exposes the connection registry for read-side collaborators.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run starts the hub's event loop. This MUST be run as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// registerClient records the connection identity and joins the identity
// rooms. The client was already authenticated by the transport handler.
func (h *Hub) registerClient(client *Client) {
	rec := ConnectionRecord{
		ConnectionID: client.ID,
		UserID:       client.Identity.UserID,
		Role:         client.Identity.Role,
		EmpresaID:    client.Identity.EmpresaID,
	}
	h.registry.Register(rec.ConnectionID, rec.UserID, rec.Role, rec.EmpresaID)

	for _, room := range h.topology.RoomsForIdentity(rec) {
		h.joinRoom(client, room)
	}

	client.deliver(domain.Event{
		Type:    domain.EventConnected,
		Payload: map[string]any{"connectionId": client.ID, "serverTime": time.Now().UTC()},
	})

	if rec.Role.IsStaff() {
		h.deliver(envelope{
			rooms: []Room{TenantAttendantsRoom(rec.EmpresaID)},
			event: domain.Event{
				Type: domain.EventAtendenteOnline,
				Payload: map[string]any{
					"atendenteId": rec.UserID,
					"updatedAt":   time.Now().UTC(),
				},
			},
		})
	}

	h.logger.Info("client registered",
		"connection_id", client.ID,
		"user_id", rec.UserID,
		"empresa_id", rec.EmpresaID,
		"role", rec.Role,
	)
}

// unregisterClient removes the connection record and the client from all
// rooms, then announces the attendant going offline when applicable.
func (h *Hub) unregisterClient(client *Client) {
	rec, ok := h.registry.Lookup(client.ID)
	if !ok {
		// Already unregistered; close is idempotent.
		client.CloseSend()
		return
	}
	h.registry.Unregister(client.ID)

	for _, room := range client.JoinedRooms() {
		h.leaveRoom(client, room)
	}

	client.CloseSend()

	if rec.Role.IsStaff() {
		h.deliver(envelope{
			rooms: []Room{TenantAttendantsRoom(rec.EmpresaID)},
			event: domain.Event{
				Type: domain.EventAtendenteOffline,
				Payload: map[string]any{
					"atendenteId": rec.UserID,
					"updatedAt":   time.Now().UTC(),
				},
			},
		})
	}

	h.logger.Info("client unregistered",
		"connection_id", client.ID,
		"user_id", rec.UserID,
	)
}

// joinRoom adds a client to a room's membership.
func (h *Hub) joinRoom(client *Client, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.addRoom(room)

	h.logger.Debug("client joined room",
		"connection_id", client.ID,
		"room", room.String(),
	)
}

// leaveRoom removes a client from a room. Idempotent: leaving a room never
// joined is a no-op.
func (h *Hub) leaveRoom(client *Client, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.removeRoom(room)
}

// deliver fans an event out to every member of the target rooms. A client
// whose send buffer is full misses the event; correctness of ticket state
// never depends on a single delivery.
func (h *Hub) deliver(env envelope) {
	seen := make(map[*Client]bool)
	var targets []*Client

	h.mu.RLock()
	for _, room := range env.rooms {
		for client := range h.rooms[room] {
			if !seen[client] {
				seen[client] = true
				targets = append(targets, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.deliver(env.event) {
			h.logger.Warn("client send buffer full, dropping event",
				"connection_id", client.ID,
				"event_type", env.event.Type,
			)
		}
	}
}

// enqueue pushes an envelope onto the broadcast channel, or drops it with
// a log line when the hub is not running or saturated. Notifiers are
// called from the persistence layer after a committed write and must never
// fail that write.
func (h *Hub) enqueue(env envelope) {
	if !h.running.Load() {
		h.logger.Warn("hub not running, dropping event", "event_type", env.event.Type)
		return
	}
	select {
	case h.broadcast <- env:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "event_type", env.event.Type)
	}
}

// GetClientsInRoom returns the number of clients in a room.
func (h *Hub) GetClientsInRoom(room Room) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// GetRoomCount returns the number of active rooms.
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// IsUserConnected reports whether any connection is registered for the
// user.
func (h *Hub) IsUserConnected(userID uuid.UUID) bool {
	return len(h.registry.ListByRole(func(rec ConnectionRecord) bool {
		return rec.UserID == userID
	})) > 0
}

// --- Notifier methods (ports.Broadcaster) ---
//
// Invoked by external collaborators after they persist a domain change.
// Each resolves its target rooms and enqueues; none of them may propagate
// an error back into the persistence path.

// NotifyNewMessage emits the message to its ticket room. Unassigned
// tickets are additionally surfaced to the tenant attendants room so a
// free attendant can pick them up; assigned tickets also reach the
// attendant's personal room in case they have not joined the ticket room
// yet.
func (h *Hub) NotifyNewMessage(msg domain.Message) {
	if msg.EmpresaID == uuid.Nil {
		h.logger.Warn("message payload missing tenant id, degrading to legacy ticket room",
			"ticket_id", msg.TicketID,
		)
		h.enqueue(envelope{
			rooms: []Room{LegacyTicketRoom(msg.TicketID)},
			event: domain.Event{Type: domain.EventNovaMensagem, Payload: msg},
		})
		return
	}

	h.enqueue(envelope{
		rooms: []Room{TicketRoom(msg.EmpresaID, msg.TicketID)},
		event: domain.Event{Type: domain.EventNovaMensagem, Payload: msg},
	})

	if msg.AssigneeID == nil {
		h.enqueue(envelope{
			rooms: []Room{TenantAttendantsRoom(msg.EmpresaID)},
			event: domain.Event{Type: domain.EventMensagemNaoAtrib, Payload: msg},
		})
	} else {
		h.enqueue(envelope{
			rooms: []Room{UserRoom(*msg.AssigneeID)},
			event: domain.Event{Type: domain.EventNovaMensagem, Payload: msg},
		})
	}
}

// NotifyNewTicket emits to the tenant room.
func (h *Hub) NotifyNewTicket(ticket *domain.Ticket) {
	if ticket == nil {
		h.logger.Warn("nil ticket passed to NotifyNewTicket")
		return
	}
	if ticket.EmpresaID == uuid.Nil {
		h.logger.Warn("ticket payload missing tenant id, degrading to legacy ticket room",
			"ticket_id", ticket.ID,
		)
		h.enqueue(envelope{
			rooms: []Room{LegacyTicketRoom(ticket.ID)},
			event: domain.Event{Type: domain.EventNovoTicket, Payload: ticket},
		})
		return
	}
	h.enqueue(envelope{
		rooms: []Room{TenantRoom(ticket.EmpresaID)},
		event: domain.Event{Type: domain.EventNovoTicket, Payload: ticket},
	})
}

// NotifyStatusChanged emits to the ticket room, the legacy ticket-id-only
// room, and the tenant room as a generic "ticket updated".
func (h *Hub) NotifyStatusChanged(change domain.StatusChange) {
	statusEvent := domain.Event{Type: domain.EventTicketStatus, Payload: change}

	if change.EmpresaID == uuid.Nil {
		h.logger.Warn("status change missing tenant id, degrading to legacy ticket room",
			"ticket_id", change.TicketID,
		)
		h.enqueue(envelope{
			rooms: []Room{LegacyTicketRoom(change.TicketID)},
			event: statusEvent,
		})
		return
	}

	h.enqueue(envelope{
		rooms: []Room{
			TicketRoom(change.EmpresaID, change.TicketID),
			LegacyTicketRoom(change.TicketID),
		},
		event: statusEvent,
	})
	h.enqueue(envelope{
		rooms: []Room{TenantRoom(change.EmpresaID)},
		event: domain.Event{Type: domain.EventTicketAtualizado, Payload: change},
	})
}

// NotifyAssigned emits to the assigned attendant's personal room and to
// the tenant room.
func (h *Hub) NotifyAssigned(assignment domain.Assignment) {
	event := domain.Event{Type: domain.EventTicketAtribuido, Payload: assignment}

	if assignment.EmpresaID == uuid.Nil {
		h.logger.Warn("assignment missing tenant id, narrowing to attendant room",
			"ticket_id", assignment.TicketID,
		)
		h.enqueue(envelope{
			rooms: []Room{UserRoom(assignment.AtendenteID)},
			event: event,
		})
		return
	}

	h.enqueue(envelope{
		rooms: []Room{
			UserRoom(assignment.AtendenteID),
			TenantRoom(assignment.EmpresaID),
		},
		event: event,
	})
}

// NotifyContactPresence emits a contact online/offline flip to the tenant
// room.
func (h *Hub) NotifyContactPresence(presence domain.ContactPresence) {
	if presence.EmpresaID == uuid.Nil {
		h.logger.Warn("contact presence missing tenant id, dropping",
			"contato_id", presence.ContatoID,
		)
		return
	}
	h.enqueue(envelope{
		rooms: []Room{TenantRoom(presence.EmpresaID)},
		event: domain.Event{Type: domain.EventContatoStatus, Payload: presence},
	})
}

// NotifyUser delivers a direct notification to all of one user's
// connections.
func (h *Hub) NotifyUser(notification domain.Notification) {
	h.enqueue(envelope{
		rooms: []Room{UserRoom(notification.UserID)},
		event: domain.Event{Type: domain.EventNotificacao, Payload: notification},
	})
}
