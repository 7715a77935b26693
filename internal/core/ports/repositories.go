package ports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/atendo/realtime-gateway/internal/core/domain"
)

// TicketStore is the read-side collaborator for ticket lookups. The
// gateway never mutates tickets except for the denormalized contact
// presence mirror.
type TicketStore interface {
	// FindByIDAndTenant returns the ticket only when it exists AND belongs
	// to the given tenant. This is the tenant-isolation boundary: callers
	// must invoke it on every ticket room join, never cache the answer.
	FindByIDAndTenant(ctx context.Context, ticketID string, empresaID uuid.UUID) (*domain.Ticket, error)

	// SetContactOnline mirrors a contact's online flag into the open
	// tickets of that contact. Best-effort denormalization for list views.
	SetContactOnline(ctx context.Context, contatoID string, empresaID uuid.UUID, online bool) error
}

// ActivityStore persists last-activity timestamps for presence derivation.
type ActivityStore interface {
	Read(ctx context.Context, subjectID string) (domain.ActivityRecord, error)

	// Write records an interaction at the given instant together with the
	// online flag derived from it. A backdated interaction may be recorded
	// already offline.
	Write(ctx context.Context, subjectID string, empresaID uuid.UUID, at time.Time, online bool) error

	// ListStaleOnline returns subjects still flagged online whose last
	// activity is older than the cutoff.
	ListStaleOnline(ctx context.Context, cutoff time.Time) ([]domain.ActivityRecord, error)

	// MarkOffline clears the online flag, but only if the stored last
	// activity is still at or before the cutoff. A write that raced in
	// with a newer timestamp wins and the flip is skipped.
	MarkOffline(ctx context.Context, subjectID string, cutoff time.Time) (bool, error)
}

// Sentinel errors returned by the store adapters.
var (
	// ErrActivityNotFound is returned by Read when a subject has no
	// recorded activity. Callers treat it as "offline", not as a failure.
	ErrActivityNotFound = errors.New("no activity recorded for subject")

	// ErrTicketNotFound is returned by FindByIDAndTenant when no ticket
	// matches the id and tenant pair.
	ErrTicketNotFound = errors.New("ticket not found for tenant")
)
