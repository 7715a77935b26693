package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

// MockTicketStore is a mock implementation of ports.TicketStore
type MockTicketStore struct {
	mock.Mock
}

func NewMockTicketStore() *MockTicketStore {
	return &MockTicketStore{}
}

func (m *MockTicketStore) FindByIDAndTenant(ctx context.Context, ticketID string, empresaID uuid.UUID) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketID, empresaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketStore) SetContactOnline(ctx context.Context, contatoID string, empresaID uuid.UUID, online bool) error {
	args := m.Called(ctx, contatoID, empresaID, online)
	return args.Error(0)
}

// MockActivityStore is a mock implementation of ports.ActivityStore
type MockActivityStore struct {
	mock.Mock
}

func NewMockActivityStore() *MockActivityStore {
	return &MockActivityStore{}
}

func (m *MockActivityStore) Read(ctx context.Context, subjectID string) (domain.ActivityRecord, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(domain.ActivityRecord), args.Error(1)
}

func (m *MockActivityStore) Write(ctx context.Context, subjectID string, empresaID uuid.UUID, at time.Time, online bool) error {
	args := m.Called(ctx, subjectID, empresaID, at, online)
	return args.Error(0)
}

func (m *MockActivityStore) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]domain.ActivityRecord, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ActivityRecord), args.Error(1)
}

func (m *MockActivityStore) MarkOffline(ctx context.Context, subjectID string, cutoff time.Time) (bool, error) {
	args := m.Called(ctx, subjectID, cutoff)
	return args.Bool(0), args.Error(1)
}

// RecordingBroadcaster is a ports.Broadcaster fake that records every
// notifier call so tests can assert on fan-out without a live hub.
type RecordingBroadcaster struct {
	mu sync.Mutex

	Messages      []domain.Message
	Tickets       []*domain.Ticket
	StatusChanges []domain.StatusChange
	Assignments   []domain.Assignment
	Presences     []domain.ContactPresence
	Notifications []domain.Notification
}

var _ ports.Broadcaster = (*RecordingBroadcaster)(nil)

func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{}
}

func (r *RecordingBroadcaster) NotifyNewMessage(msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, msg)
}

func (r *RecordingBroadcaster) NotifyNewTicket(ticket *domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tickets = append(r.Tickets, ticket)
}

func (r *RecordingBroadcaster) NotifyStatusChanged(change domain.StatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StatusChanges = append(r.StatusChanges, change)
}

func (r *RecordingBroadcaster) NotifyAssigned(assignment domain.Assignment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Assignments = append(r.Assignments, assignment)
}

func (r *RecordingBroadcaster) NotifyContactPresence(presence domain.ContactPresence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Presences = append(r.Presences, presence)
}

func (r *RecordingBroadcaster) NotifyUser(notification domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications = append(r.Notifications, notification)
}
