package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/atendo/realtime-gateway/internal/core/errors"
)

// Ticket is the slice of the persisted ticket entity the gateway works
// with. Full CRUD of tickets is owned by the REST layer; the gateway only
// needs identity, tenant ownership, lifecycle status and assignment.
type Ticket struct {
	ID            string
	EmpresaID     uuid.UUID
	Status        TicketStatus
	AssigneeID    *uuid.UUID
	ContatoID     string
	ContatoOnline bool
	UpdatedAt     *time.Time
}

// Assigned reports whether an attendant is responsible for the ticket.
func (t *Ticket) Assigned() bool {
	return t.AssigneeID != nil
}

// UpdateStatus moves the ticket through its lifecycle, enforcing the
// transition table. A no-op transition leaves the ticket untouched.
func (t *Ticket) UpdateStatus(newStatus TicketStatus) error {
	if t.Status == newStatus {
		return nil
	}
	if !IsValidTransition(t.Status, newStatus) {
		return apperrors.NewInvalidTransition(ExplainRejection(t.Status, newStatus))
	}
	t.Status = newStatus
	now := time.Now().UTC()
	t.UpdatedAt = &now
	return nil
}
