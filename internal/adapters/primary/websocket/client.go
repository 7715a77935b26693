package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	apperrors "github.com/atendo/realtime-gateway/internal/core/errors"
	"github.com/atendo/realtime-gateway/internal/core/ports"
	"github.com/atendo/realtime-gateway/internal/infrastructure/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 2048

	// Typing indicators beyond this rate are silently dropped. They are
	// best-effort signals; dropping them never affects ticket state.
	typingRatePerSecond = 4
	typingBurst         = 8
)

// ackEventType is the envelope type of acknowledgement replies.
const ackEventType domain.EventType = "ack"

// Ack is the structured reply to an inbound client operation.
type Ack struct {
	Op        string `json:"op"`
	Success   bool   `json:"success"`
	TicketID  string `json:"ticketId,omitempty"`
	SubjectID string `json:"subjectId,omitempty"`
	IsOnline  *bool  `json:"isOnline,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound events.
	Send chan domain.Event

	// ID is the transport connection id, assigned by the gateway.
	ID string

	// Identity are the verified handshake claims.
	Identity ports.IdentityClaims

	// joined tracks the rooms this client is a member of.
	joined map[Room]bool

	// closeOnce ensures the Send channel is only closed once.
	closeOnce sync.Once

	// mu protects the joined map.
	mu sync.RWMutex

	typing *rate.Limiter

	logger *slog.Logger
}

// NewClient creates a client for an authenticated connection.
func NewClient(hub *Hub, conn *websocket.Conn, identity ports.IdentityClaims, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan domain.Event, 256),
		ID:       id,
		Identity: identity,
		joined:   make(map[Room]bool),
		typing:   rate.NewLimiter(rate.Limit(typingRatePerSecond), typingBurst),
		logger:   logger.With("connection_id", id, "user_id", identity.UserID.String()),
	}
}

// CloseSend safely closes the Send channel exactly once.
func (c *Client) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

func (c *Client) addRoom(room Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined[room] = true
}

func (c *Client) removeRoom(room Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joined, room)
}

// JoinedRooms returns a copy of the rooms this client is a member of.
func (c *Client) JoinedRooms() []Room {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]Room, 0, len(c.joined))
	for room := range c.joined {
		rooms = append(rooms, room)
	}
	return rooms
}

// InRoom reports whether the client is currently a member of the room.
func (c *Client) InRoom(room Room) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joined[room]
}

// deliver queues an event for the write pump without blocking. Returns
// false when the buffer is full and the event was dropped.
func (c *Client) deliver(event domain.Event) bool {
	select {
	case c.Send <- event:
		return true
	default:
		return false
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps events from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.writeJSON(event); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

func (c *Client) writeJSON(event domain.Event) error {
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(event); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// TicketPayload carries the ticket id for join/leave/typing operations.
type TicketPayload struct {
	TicketID string `json:"ticketId"`
}

// StatusPayload carries a manual attendant availability flag.
type StatusPayload struct {
	Status string `json:"status"`
}

// PresencePayload carries the subject of a presence query.
type PresencePayload struct {
	SubjectID string `json:"subjectId"`
}

// handleIncomingMessage dispatches a raw client frame. Any panic or error
// inside a handler is converted into a negative acknowledgement plus a log
// line; a failing handler never takes down the connection or the hub.
func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logging.LogPanic(c.logger, r)
			c.sendAck(Ack{Op: msg.Type, Success: false, Message: "Erro inesperado, tente novamente"})
		}
	}()

	switch msg.Type {
	case "ticket:entrar":
		c.handleJoinTicket(msg.Payload)

	case "ticket:sair":
		c.handleLeaveTicket(msg.Payload)

	case "mensagem:digitando":
		c.handleTyping(msg.Payload)

	case "atendente:status":
		c.handleAttendantStatus(msg.Payload)

	case "contato:status":
		c.handlePresenceQuery(msg.Payload)

	case "ping":
		c.deliver(domain.Event{Type: "pong"})

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

// identity returns the registry record for this connection. A connection
// without a record is unauthenticated and gets a negative ack.
func (c *Client) identity(op string) (ConnectionRecord, bool) {
	rec, ok := c.Hub.Registry().Lookup(c.ID)
	if !ok {
		c.logger.Warn("inbound operation from unauthenticated connection", "op", op)
		c.sendAck(Ack{Op: op, Success: false, Message: apperrors.NewUnauthenticatedError().Message})
	}
	return rec, ok
}

// handleJoinTicket authorizes and joins the tenant-scoped ticket room. The
// ownership check runs against the ticket store on every join, including
// rejoins.
func (c *Client) handleJoinTicket(payload json.RawMessage) {
	const op = "ticket:entrar"

	var p TicketPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendAck(Ack{Op: op, Success: false, Message: "Payload inválido"})
		return
	}

	rec, ok := c.identity(op)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Hub.topology.AuthorizeTicketJoin(ctx, rec.EmpresaID, p.TicketID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTicketIDRequired):
			c.sendAck(Ack{Op: op, Success: false, Message: "ticketId é obrigatório"})
		case errors.Is(err, apperrors.ErrTicketNotInTenant):
			c.logger.Warn("ticket join denied",
				"ticket_id", p.TicketID,
				"empresa_id", rec.EmpresaID,
			)
			c.sendAck(Ack{Op: op, Success: false, TicketID: p.TicketID, Message: "Ticket não encontrado"})
		default:
			c.logger.Error("ticket lookup failed", "ticket_id", p.TicketID, "error", err)
			c.sendAck(Ack{Op: op, Success: false, TicketID: p.TicketID, Message: "Erro ao validar ticket"})
		}
		return
	}

	c.Hub.joinRoom(c, TicketRoom(rec.EmpresaID, p.TicketID))
	c.sendAck(Ack{Op: op, Success: true, TicketID: p.TicketID})
}

// handleLeaveTicket leaves the ticket room. Always succeeds, even when the
// room was never joined.
func (c *Client) handleLeaveTicket(payload json.RawMessage) {
	const op = "ticket:sair"

	var p TicketPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendAck(Ack{Op: op, Success: false, Message: "Payload inválido"})
		return
	}

	rec, ok := c.identity(op)
	if !ok {
		return
	}

	c.Hub.leaveRoom(c, TicketRoom(rec.EmpresaID, p.TicketID))
	c.sendAck(Ack{Op: op, Success: true, TicketID: p.TicketID})
}

// handleTyping relays a typing indicator to the ticket room. Fire and
// forget: no ack, and indicators beyond the rate limit are dropped. The
// sender identity always comes from the registry, never from the payload.
func (c *Client) handleTyping(payload json.RawMessage) {
	if !c.typing.Allow() {
		return
	}

	var p TicketPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.TicketID == "" {
		return
	}

	rec, ok := c.Hub.Registry().Lookup(c.ID)
	if !ok {
		return
	}

	c.Hub.enqueue(envelope{
		rooms: []Room{TicketRoom(rec.EmpresaID, p.TicketID)},
		event: domain.Event{
			Type: domain.EventDigitando,
			Payload: domain.Typing{
				TicketID:    p.TicketID,
				AtendenteID: rec.UserID,
				At:          time.Now().UTC(),
			},
		},
	})
}

// handleAttendantStatus lets staff publish manual availability to the
// tenant attendants room.
func (c *Client) handleAttendantStatus(payload json.RawMessage) {
	const op = "atendente:status"

	var p StatusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendAck(Ack{Op: op, Success: false, Message: "Payload inválido"})
		return
	}

	rec, ok := c.identity(op)
	if !ok {
		return
	}
	if !rec.Role.IsStaff() {
		c.sendAck(Ack{Op: op, Success: false, Message: "Operação permitida apenas para atendentes"})
		return
	}

	eventType := domain.EventAtendenteOnline
	if p.Status == "offline" {
		eventType = domain.EventAtendenteOffline
	}

	c.Hub.enqueue(envelope{
		rooms: []Room{TenantAttendantsRoom(rec.EmpresaID)},
		event: domain.Event{
			Type: eventType,
			Payload: map[string]any{
				"atendenteId": rec.UserID,
				"status":      p.Status,
				"updatedAt":   time.Now().UTC(),
			},
		},
	})
	c.sendAck(Ack{Op: op, Success: true, Status: p.Status})
}

// handlePresenceQuery answers a staff presence lookup privately to the
// requesting connection only.
func (c *Client) handlePresenceQuery(payload json.RawMessage) {
	const op = "contato:status"

	var p PresencePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendAck(Ack{Op: op, Success: false, Message: "Payload inválido"})
		return
	}

	rec, ok := c.identity(op)
	if !ok {
		return
	}
	if !rec.Role.IsStaff() {
		c.sendAck(Ack{Op: op, Success: false, Message: "Operação permitida apenas para atendentes"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record, err := c.Hub.presence.Lookup(ctx, p.SubjectID)
	if err != nil {
		c.logger.Error("presence lookup failed", "subject_id", p.SubjectID, "error", err)
		c.sendAck(Ack{Op: op, Success: false, SubjectID: p.SubjectID, Message: "Erro ao consultar presença"})
		return
	}

	online := record.Online
	c.sendAck(Ack{Op: op, Success: true, SubjectID: p.SubjectID, IsOnline: &online})
}

// sendAck queues an acknowledgement, dropping it if the buffer is full.
func (c *Client) sendAck(ack Ack) {
	if !c.deliver(domain.Event{Type: ackEventType, Payload: ack}) {
		c.logger.Warn("ack dropped, send buffer full", "op", ack.Op)
	}
}
