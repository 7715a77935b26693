package websocket

import (
	"sync"

	"github.com/google/uuid"

	"github.com/atendo/realtime-gateway/internal/core/domain"
)

// ConnectionRecord is the identity of one live transport connection. A
// connection with no record is unauthenticated and must not send or
// receive domain events.
type ConnectionRecord struct {
	ConnectionID string
	UserID       uuid.UUID
	Role         domain.Role
	EmpresaID    uuid.UUID
}

// Registry is the single source of truth for who is connected and with
// which identity. It is mutated only by the hub's own connect/disconnect
// paths; many connections touch it concurrently, so every access goes
// through the lock.
type Registry struct {
	mu      sync.RWMutex
	records map[string]ConnectionRecord
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]ConnectionRecord)}
}

// Register inserts or replaces the record for a connection. Several
// connections may share a userId (multiple tabs/devices); there is no
// uniqueness across connections.
func (r *Registry) Register(connectionID string, userID uuid.UUID, role domain.Role, empresaID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[connectionID] = ConnectionRecord{
		ConnectionID: connectionID,
		UserID:       userID,
		Role:         domain.NormalizeRole(string(role)),
		EmpresaID:    empresaID,
	}
}

// Lookup returns the record for a connection. A missing record is not an
// error: it means "unauthenticated" and callers must refuse to act.
func (r *Registry) Lookup(connectionID string) (ConnectionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[connectionID]
	return rec, ok
}

// Unregister removes the record. Idempotent.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, connectionID)
}

// ListByRole returns the records matching the predicate, used to compute
// presence rosters such as "all connected attendants of a tenant".
func (r *Registry) ListByRole(pred func(ConnectionRecord) bool) []ConnectionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ConnectionRecord
	for _, rec := range r.records {
		if pred(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
