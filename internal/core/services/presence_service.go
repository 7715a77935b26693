package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	apperrors "github.com/atendo/realtime-gateway/internal/core/errors"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

// Default presence thresholds. A contact is online while its last activity
// is fresher than the online threshold; the sweep flips subjects idle
// beyond the offline threshold.
const (
	DefaultOnlineThreshold  = 5 * time.Minute
	DefaultOfflineThreshold = 30 * time.Minute
)

// PresenceService derives contact online/offline state from last-activity
// timestamps and keeps the activity store and the ticket-level mirror in
// sync.
type PresenceService struct {
	activity    ports.ActivityStore
	tickets     ports.TicketStore
	broadcaster ports.Broadcaster

	onlineThreshold  time.Duration
	offlineThreshold time.Duration

	now    func() time.Time
	logger *slog.Logger
}

var _ ports.PresenceService = (*PresenceService)(nil)

// PresenceConfig tunes the presence thresholds. Zero values fall back to
// the defaults.
type PresenceConfig struct {
	OnlineThreshold  time.Duration
	OfflineThreshold time.Duration
}

// NewPresenceService creates a presence service. The broadcaster may be
// nil in contexts (tests, CLIs) that do not fan out presence flips.
func NewPresenceService(
	activity ports.ActivityStore,
	tickets ports.TicketStore,
	broadcaster ports.Broadcaster,
	cfg PresenceConfig,
	logger *slog.Logger,
) *PresenceService {
	if cfg.OnlineThreshold <= 0 {
		cfg.OnlineThreshold = DefaultOnlineThreshold
	}
	if cfg.OfflineThreshold <= 0 {
		cfg.OfflineThreshold = DefaultOfflineThreshold
	}
	return &PresenceService{
		activity:         activity,
		tickets:          tickets,
		broadcaster:      broadcaster,
		onlineThreshold:  cfg.OnlineThreshold,
		offlineThreshold: cfg.OfflineThreshold,
		now:              time.Now,
		logger:           logger.With("component", "presence_service"),
	}
}

// SetBroadcaster attaches the gateway after construction. The service and
// the gateway reference each other, so one of them is wired late.
func (s *PresenceService) SetBroadcaster(b ports.Broadcaster) {
	s.broadcaster = b
}

// IsOnline derives the online flag from a last-activity timestamp. A zero
// timestamp means the subject was never seen and is offline.
func (s *PresenceService) IsOnline(lastActivityAt time.Time) bool {
	if lastActivityAt.IsZero() {
		return false
	}
	return s.now().Sub(lastActivityAt) < s.onlineThreshold
}

// RecordActivity stores a qualifying interaction (inbound message,
// heartbeat) and mirrors the derived online flag into the contact's open
// tickets. Mirror failures are logged, never propagated: presence must not
// fail the interaction that produced it.
func (s *PresenceService) RecordActivity(ctx context.Context, subjectID string, empresaID uuid.UUID, at time.Time) error {
	if subjectID == "" {
		return apperrors.ErrSubjectIDRequired
	}
	if at.IsZero() {
		at = s.now()
	}

	// A backdated interaction may already be past the online threshold, so
	// the flag is derived from the timestamp rather than assumed true.
	online := s.IsOnline(at)

	if err := s.activity.Write(ctx, subjectID, empresaID, at, online); err != nil {
		return err
	}

	if err := s.tickets.SetContactOnline(ctx, subjectID, empresaID, online); err != nil {
		s.logger.Warn("failed to mirror contact online flag",
			"subject_id", subjectID,
			"empresa_id", empresaID,
			"error", err,
		)
	}
	return nil
}

// Lookup reads the activity record for a subject and derives its current
// online flag. A subject with no record is reported offline.
func (s *PresenceService) Lookup(ctx context.Context, subjectID string) (domain.ActivityRecord, error) {
	if subjectID == "" {
		return domain.ActivityRecord{}, apperrors.ErrSubjectIDRequired
	}

	record, err := s.activity.Read(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ports.ErrActivityNotFound) {
			return domain.ActivityRecord{SubjectID: subjectID}, nil
		}
		return domain.ActivityRecord{}, err
	}

	record.Online = s.IsOnline(record.LastActivityAt)
	return record, nil
}

// SweepStale flips subjects idle beyond the offline threshold to offline
// and mirrors the flip into ticket caches. The cutoff is fixed before the
// stale read, and MarkOffline re-checks it, so a RecordActivity racing in
// with a newer timestamp is never overwritten. Returns how many subjects
// were flipped.
func (s *PresenceService) SweepStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.offlineThreshold)

	stale, err := s.activity.ListStaleOnline(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	flipped := 0
	for _, record := range stale {
		ok, err := s.activity.MarkOffline(ctx, record.SubjectID, cutoff)
		if err != nil {
			s.logger.Warn("failed to mark subject offline",
				"subject_id", record.SubjectID,
				"error", err,
			)
			continue
		}
		if !ok {
			// Subject was active again since the stale read.
			continue
		}
		flipped++

		if err := s.tickets.SetContactOnline(ctx, record.SubjectID, record.EmpresaID, false); err != nil {
			s.logger.Warn("failed to mirror contact offline flag",
				"subject_id", record.SubjectID,
				"empresa_id", record.EmpresaID,
				"error", err,
			)
		}

		if s.broadcaster != nil {
			s.broadcaster.NotifyContactPresence(domain.ContactPresence{
				ContatoID: record.SubjectID,
				EmpresaID: record.EmpresaID,
				Online:    false,
				UpdatedAt: s.now().UTC(),
			})
		}
	}

	if flipped > 0 {
		s.logger.Info("presence sweep flipped stale subjects",
			"flipped", flipped,
			"candidates", len(stale),
		)
	}
	return flipped, nil
}

// RunSweeper runs SweepStale on a fixed interval until the context is
// cancelled. Started from main as a goroutine.
func (s *PresenceService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepStale(ctx); err != nil {
				s.logger.Error("presence sweep failed", "error", err)
			}
		}
	}
}
