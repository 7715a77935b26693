package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a real-time event delivered over WebSocket. The wire
// names are kept identical to the ones the web client already listens on.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventAtendenteOnline  EventType = "atendente:online"
	EventAtendenteOffline EventType = "atendente:offline"
	EventNovaMensagem     EventType = "nova_mensagem"
	EventMensagemNaoAtrib EventType = "mensagem:nao-atribuida"
	EventNovoTicket       EventType = "novo_ticket"
	EventTicketStatus     EventType = "ticket:status"
	EventTicketAtualizado EventType = "ticket_atualizado"
	EventTicketAtribuido  EventType = "ticket:atribuido"
	EventNotificacao      EventType = "notificacao"
	EventContatoStatus    EventType = "contato:status:atualizado"
	EventDigitando        EventType = "mensagem:digitando"
)

// Event is the envelope written to a client socket.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Message is the slice of a persisted message the gateway needs for
// routing: which ticket it belongs to, which tenant owns that ticket and
// whether an attendant is already responsible for it.
type Message struct {
	ID         string     `json:"id"`
	TicketID   string     `json:"ticketId"`
	EmpresaID  uuid.UUID  `json:"empresaId"`
	AssigneeID *uuid.UUID `json:"assigneeId,omitempty"`
	Remetente  string     `json:"remetente"`
	Conteudo   string     `json:"conteudo"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// StatusChange is broadcast when a ticket moves through its lifecycle.
type StatusChange struct {
	TicketID  string       `json:"ticketId"`
	EmpresaID uuid.UUID    `json:"empresaId"`
	Status    TicketStatus `json:"status"`
	Descricao string       `json:"descricao,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Assignment is broadcast when a ticket is handed to an attendant.
type Assignment struct {
	TicketID    string    `json:"ticketId"`
	EmpresaID   uuid.UUID `json:"empresaId"`
	AtendenteID uuid.UUID `json:"atendenteId"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Typing is the fire-and-forget typing indicator relayed to a ticket room.
// The sender identity is always filled in by the gateway from the
// connection registry, never taken from the client payload.
type Typing struct {
	TicketID    string    `json:"ticketId"`
	AtendenteID uuid.UUID `json:"atendenteId"`
	At          time.Time `json:"at"`
}

// ContactPresence is broadcast when a contact flips between online and
// offline.
type ContactPresence struct {
	ContatoID string    `json:"contatoId"`
	EmpresaID uuid.UUID `json:"empresaId"`
	Online    bool      `json:"online"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Notification is a direct, user-addressed notice (assignment, mention).
type Notification struct {
	UserID    uuid.UUID `json:"userId"`
	TicketID  string    `json:"ticketId,omitempty"`
	Titulo    string    `json:"titulo"`
	Mensagem  string    `json:"mensagem"`
	CreatedAt time.Time `json:"createdAt"`
}
