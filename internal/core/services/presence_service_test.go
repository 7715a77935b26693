package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	apperrors "github.com/atendo/realtime-gateway/internal/core/errors"
	"github.com/atendo/realtime-gateway/internal/core/mocks"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

func newTestPresenceService(t *testing.T, activity ports.ActivityStore, tickets ports.TicketStore, broadcaster ports.Broadcaster) *PresenceService {
	t.Helper()
	return NewPresenceService(activity, tickets, broadcaster, PresenceConfig{}, slog.New(slog.DiscardHandler))
}

func TestPresenceService_IsOnline_ThresholdBoundary(t *testing.T) {
	svc := newTestPresenceService(t, mocks.NewMockActivityStore(), mocks.NewMockTicketStore(), nil)

	now := time.Now()
	svc.now = func() time.Time { return now }

	tests := []struct {
		name           string
		lastActivityAt time.Time
		want           bool
	}{
		{"just inside threshold", now.Add(-(4*time.Minute + 59*time.Second)), true},
		{"just outside threshold", now.Add(-(5*time.Minute + 1*time.Second)), false},
		{"exactly at threshold", now.Add(-5 * time.Minute), false},
		{"no recorded activity", time.Time{}, false},
		{"activity right now", now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.IsOnline(tt.lastActivityAt))
		})
	}
}

func TestPresenceService_RecordActivity(t *testing.T) {
	ctx := context.Background()
	empresaID := uuid.New()

	t.Run("writes activity and mirrors online flag", func(t *testing.T) {
		activity := mocks.NewMockActivityStore()
		tickets := mocks.NewMockTicketStore()
		svc := newTestPresenceService(t, activity, tickets, nil)

		at := time.Now()
		activity.On("Write", ctx, "5511999990000", empresaID, at, true).Return(nil)
		tickets.On("SetContactOnline", ctx, "5511999990000", empresaID, true).Return(nil)

		err := svc.RecordActivity(ctx, "5511999990000", empresaID, at)

		require.NoError(t, err)
		activity.AssertExpectations(t)
		tickets.AssertExpectations(t)
	})

	t.Run("backdated activity is recorded already offline", func(t *testing.T) {
		activity := mocks.NewMockActivityStore()
		tickets := mocks.NewMockTicketStore()
		svc := newTestPresenceService(t, activity, tickets, nil)

		at := time.Now().Add(-10 * time.Minute)
		activity.On("Write", ctx, "5511999990000", empresaID, at, false).Return(nil)
		tickets.On("SetContactOnline", ctx, "5511999990000", empresaID, false).Return(nil)

		err := svc.RecordActivity(ctx, "5511999990000", empresaID, at)

		require.NoError(t, err)
		activity.AssertExpectations(t)
		tickets.AssertExpectations(t)
	})

	t.Run("mirror failure is swallowed", func(t *testing.T) {
		activity := mocks.NewMockActivityStore()
		tickets := mocks.NewMockTicketStore()
		svc := newTestPresenceService(t, activity, tickets, nil)

		activity.On("Write", ctx, "contact-1", empresaID, mock.AnythingOfType("time.Time"), true).Return(nil)
		tickets.On("SetContactOnline", ctx, "contact-1", empresaID, true).Return(errors.New("db down"))

		err := svc.RecordActivity(ctx, "contact-1", empresaID, time.Now())

		require.NoError(t, err)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		activity := mocks.NewMockActivityStore()
		svc := newTestPresenceService(t, activity, mocks.NewMockTicketStore(), nil)

		storeErr := errors.New("redis unreachable")
		activity.On("Write", ctx, "contact-1", empresaID, mock.AnythingOfType("time.Time"), true).Return(storeErr)

		err := svc.RecordActivity(ctx, "contact-1", empresaID, time.Now())

		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("empty subject is rejected", func(t *testing.T) {
		svc := newTestPresenceService(t, mocks.NewMockActivityStore(), mocks.NewMockTicketStore(), nil)

		err := svc.RecordActivity(ctx, "", empresaID, time.Now())

		assert.ErrorIs(t, err, apperrors.ErrSubjectIDRequired)
	})
}

func TestPresenceService_Lookup(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown subject is offline, not an error", func(t *testing.T) {
		activity := mocks.NewMockActivityStore()
		svc := newTestPresenceService(t, activity, mocks.NewMockTicketStore(), nil)

		activity.On("Read", ctx, "ghost").Return(domain.ActivityRecord{}, ports.ErrActivityNotFound)

		record, err := svc.Lookup(ctx, "ghost")

		require.NoError(t, err)
		assert.False(t, record.Online)
		assert.Equal(t, "ghost", record.SubjectID)
	})

	t.Run("fresh activity derives online", func(t *testing.T) {
		activity := mocks.NewMockActivityStore()
		svc := newTestPresenceService(t, activity, mocks.NewMockTicketStore(), nil)

		now := time.Now()
		svc.now = func() time.Time { return now }

		activity.On("Read", ctx, "contact-1").Return(domain.ActivityRecord{
			SubjectID:      "contact-1",
			LastActivityAt: now.Add(-time.Minute),
		}, nil)

		record, err := svc.Lookup(ctx, "contact-1")

		require.NoError(t, err)
		assert.True(t, record.Online)
	})

	t.Run("stale activity derives offline", func(t *testing.T) {
		activity := mocks.NewMockActivityStore()
		svc := newTestPresenceService(t, activity, mocks.NewMockTicketStore(), nil)

		now := time.Now()
		svc.now = func() time.Time { return now }

		activity.On("Read", ctx, "contact-1").Return(domain.ActivityRecord{
			SubjectID:      "contact-1",
			LastActivityAt: now.Add(-10 * time.Minute),
		}, nil)

		record, err := svc.Lookup(ctx, "contact-1")

		require.NoError(t, err)
		assert.False(t, record.Online)
	})
}

func TestPresenceService_SweepStale(t *testing.T) {
	ctx := context.Background()
	empresaID := uuid.New()

	t.Run("flips stale subjects and broadcasts", func(t *testing.T) {
		activity := mocks.NewMockActivityStore()
		tickets := mocks.NewMockTicketStore()
		broadcaster := mocks.NewRecordingBroadcaster()
		svc := newTestPresenceService(t, activity, tickets, broadcaster)

		now := time.Now()
		svc.now = func() time.Time { return now }
		cutoff := now.Add(-DefaultOfflineThreshold)

		stale := []domain.ActivityRecord{
			{SubjectID: "contact-1", EmpresaID: empresaID, LastActivityAt: now.Add(-time.Hour), Online: true},
			{SubjectID: "contact-2", EmpresaID: empresaID, LastActivityAt: now.Add(-2 * time.Hour), Online: true},
		}
		activity.On("ListStaleOnline", ctx, cutoff).Return(stale, nil)
		activity.On("MarkOffline", ctx, "contact-1", cutoff).Return(true, nil)
		activity.On("MarkOffline", ctx, "contact-2", cutoff).Return(true, nil)
		tickets.On("SetContactOnline", ctx, "contact-1", empresaID, false).Return(nil)
		tickets.On("SetContactOnline", ctx, "contact-2", empresaID, false).Return(nil)

		flipped, err := svc.SweepStale(ctx)

		require.NoError(t, err)
		assert.Equal(t, 2, flipped)
		require.Len(t, broadcaster.Presences, 2)
		assert.False(t, broadcaster.Presences[0].Online)
		activity.AssertExpectations(t)
		tickets.AssertExpectations(t)
	})

	t.Run("skips subjects that became active after the stale read", func(t *testing.T) {
		activity := mocks.NewMockActivityStore()
		tickets := mocks.NewMockTicketStore()
		broadcaster := mocks.NewRecordingBroadcaster()
		svc := newTestPresenceService(t, activity, tickets, broadcaster)

		now := time.Now()
		svc.now = func() time.Time { return now }
		cutoff := now.Add(-DefaultOfflineThreshold)

		stale := []domain.ActivityRecord{
			{SubjectID: "contact-1", EmpresaID: empresaID, Online: true},
		}
		activity.On("ListStaleOnline", ctx, cutoff).Return(stale, nil)
		// MarkOffline reports the record was refreshed concurrently.
		activity.On("MarkOffline", ctx, "contact-1", cutoff).Return(false, nil)

		flipped, err := svc.SweepStale(ctx)

		require.NoError(t, err)
		assert.Zero(t, flipped)
		assert.Empty(t, broadcaster.Presences)
		tickets.AssertNotCalled(t, "SetContactOnline", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("list failure propagates", func(t *testing.T) {
		activity := mocks.NewMockActivityStore()
		svc := newTestPresenceService(t, activity, mocks.NewMockTicketStore(), nil)

		activity.On("ListStaleOnline", ctx, mock.AnythingOfType("time.Time")).Return(nil, errors.New("redis unreachable"))

		_, err := svc.SweepStale(ctx)

		assert.Error(t, err)
	})
}
