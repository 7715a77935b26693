package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityRecord tracks when a contact was last seen interacting. The
// record itself lives in the activity store; the gateway only derives the
// online flag from the timestamp.
type ActivityRecord struct {
	SubjectID      string
	EmpresaID      uuid.UUID
	LastActivityAt time.Time
	Online         bool
}

// HasActivity reports whether the record carries a usable timestamp. A
// subject with no recorded activity is always treated as offline.
func (r ActivityRecord) HasActivity() bool {
	return !r.LastActivityAt.IsZero()
}
