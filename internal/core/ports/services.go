package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atendo/realtime-gateway/internal/core/domain"
)

// Broadcaster is the output port the persistence layer calls after it has
// committed a domain change. Implementations must never fail the caller:
// a gateway that is not running logs and returns.
type Broadcaster interface {
	// NotifyNewMessage emits to the ticket room. Unassigned tickets are
	// additionally surfaced to the tenant attendants room; assigned ones
	// to the attendant's personal room.
	NotifyNewMessage(msg domain.Message)

	// NotifyNewTicket emits to the tenant room.
	NotifyNewTicket(ticket *domain.Ticket)

	// NotifyStatusChanged emits to the ticket room, the legacy
	// ticket-id-only room and the tenant room.
	NotifyStatusChanged(change domain.StatusChange)

	// NotifyAssigned emits to the assigned attendant's personal room and
	// the tenant room.
	NotifyAssigned(assignment domain.Assignment)

	// NotifyContactPresence emits a contact online/offline flip to the
	// tenant room.
	NotifyContactPresence(presence domain.ContactPresence)

	// NotifyUser delivers a direct notification to one user's
	// connections.
	NotifyUser(notification domain.Notification)
}

// PresenceService derives and refreshes contact online state.
type PresenceService interface {
	IsOnline(lastActivityAt time.Time) bool
	RecordActivity(ctx context.Context, subjectID string, empresaID uuid.UUID, at time.Time) error
	Lookup(ctx context.Context, subjectID string) (domain.ActivityRecord, error)
	SweepStale(ctx context.Context) (int, error)
}

// TokenVerifier validates a handshake token and returns the identity
// claims the gateway needs. Token issuance lives elsewhere.
type TokenVerifier interface {
	Verify(token string) (*IdentityClaims, error)
}

// IdentityClaims is the decoded identity of a connecting client.
type IdentityClaims struct {
	UserID    uuid.UUID
	EmpresaID uuid.UUID
	Role      domain.Role
}
