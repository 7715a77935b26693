package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

const (
	// activityKeyPrefix namespaces the per-subject activity hashes.
	activityKeyPrefix = "presence:activity:"

	// onlineIndexKey is a sorted set of online subjects scored by last
	// activity in unix microseconds. Only subjects currently flagged
	// online are members; the sweeper range-scans it for stale entries.
	onlineIndexKey = "presence:online"

	// activityTTL bounds how long an idle subject's record survives.
	// Long enough that the offline threshold fires well before expiry.
	activityTTL = 24 * time.Hour
)

// markOfflineScript flips a subject offline only when its indexed last
// activity is still at or before the cutoff. A concurrent Write with a
// newer timestamp wins and the flip is skipped.
//
// KEYS[1] = online index, KEYS[2] = subject hash
// ARGV[1] = subject id, ARGV[2] = cutoff in unix microseconds
var markOfflineScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score then
	return 0
end
if tonumber(score) > tonumber(ARGV[2]) then
	return 0
end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[2], 'online', '0')
return 1
`)

// ActivityStore persists contact activity in Redis. Each subject gets a
// hash with its last activity and a membership in the online index.
type ActivityStore struct {
	client *redis.Client
}

var _ ports.ActivityStore = (*ActivityStore)(nil)

// NewActivityStore creates an activity store backed by the given client.
func NewActivityStore(client *redis.Client) *ActivityStore {
	return &ActivityStore{client: client}
}

// Ping verifies Redis connectivity.
func (s *ActivityStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func activityKey(subjectID string) string {
	return activityKeyPrefix + subjectID
}

// Write records an interaction with its derived online flag. Only online
// subjects enter the sweep index: a backdated interaction that is already
// offline never needs sweeping.
func (s *ActivityStore) Write(ctx context.Context, subjectID string, empresaID uuid.UUID, at time.Time, online bool) error {
	key := activityKey(subjectID)

	onlineField := "0"
	if online {
		onlineField = "1"
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"empresa_id":       empresaID.String(),
		"last_activity_at": at.UTC().Format(time.RFC3339Nano),
		"online":           onlineField,
	})
	pipe.Expire(ctx, key, activityTTL)
	if online {
		pipe.ZAdd(ctx, onlineIndexKey, redis.Z{
			Score:  float64(at.UTC().UnixMicro()),
			Member: subjectID,
		})
	} else {
		pipe.ZRem(ctx, onlineIndexKey, subjectID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write activity for %s: %w", subjectID, err)
	}
	return nil
}

// Read returns the stored activity record for a subject.
func (s *ActivityStore) Read(ctx context.Context, subjectID string) (domain.ActivityRecord, error) {
	fields, err := s.client.HGetAll(ctx, activityKey(subjectID)).Result()
	if err != nil {
		return domain.ActivityRecord{}, fmt.Errorf("failed to read activity for %s: %w", subjectID, err)
	}
	if len(fields) == 0 {
		return domain.ActivityRecord{}, ports.ErrActivityNotFound
	}

	return recordFromFields(subjectID, fields)
}

// ListStaleOnline returns online subjects whose last activity is at or
// before the cutoff.
func (s *ActivityStore) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]domain.ActivityRecord, error) {
	subjectIDs, err := s.client.ZRangeByScore(ctx, onlineIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff.UTC().UnixMicro()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan online index: %w", err)
	}

	records := make([]domain.ActivityRecord, 0, len(subjectIDs))
	for _, subjectID := range subjectIDs {
		record, err := s.Read(ctx, subjectID)
		if err != nil {
			// The hash may have expired while still indexed; drop the
			// orphan membership and move on.
			if errors.Is(err, ports.ErrActivityNotFound) {
				s.client.ZRem(ctx, onlineIndexKey, subjectID)
				continue
			}
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// MarkOffline clears the online flag unless a newer write raced in.
func (s *ActivityStore) MarkOffline(ctx context.Context, subjectID string, cutoff time.Time) (bool, error) {
	flipped, err := markOfflineScript.Run(ctx, s.client,
		[]string{onlineIndexKey, activityKey(subjectID)},
		subjectID, cutoff.UTC().UnixMicro(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s offline: %w", subjectID, err)
	}
	return flipped == 1, nil
}

func recordFromFields(subjectID string, fields map[string]string) (domain.ActivityRecord, error) {
	record := domain.ActivityRecord{
		SubjectID: subjectID,
		Online:    fields["online"] == "1",
	}

	if raw, ok := fields["empresa_id"]; ok && raw != "" {
		empresaID, err := uuid.Parse(raw)
		if err != nil {
			return domain.ActivityRecord{}, fmt.Errorf("corrupt empresa_id for %s: %w", subjectID, err)
		}
		record.EmpresaID = empresaID
	}

	if raw, ok := fields["last_activity_at"]; ok && raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.ActivityRecord{}, fmt.Errorf("corrupt last_activity_at for %s: %w", subjectID, err)
		}
		record.LastActivityAt = at
	}

	return record, nil
}
