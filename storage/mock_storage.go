package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStorage implements the Storage interface for testing
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) CreateEvent(ctx context.Context, ev *EventRecord) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockStorage) GetEvent(ctx context.Context, id uuid.UUID) (*EventRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*EventRecord), args.Error(1)
}

func (m *MockStorage) ListEvents(ctx context.Context) ([]*EventRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*EventRecord), args.Error(1)
}

func (m *MockStorage) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStorage) CreateOccurrence(ctx context.Context, rec *OccurrenceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStorage) GetOccurrence(ctx context.Context, id uuid.UUID) (*OccurrenceRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OccurrenceRecord), args.Error(1)
}

func (m *MockStorage) UpdateOccurrence(ctx context.Context, rec *OccurrenceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStorage) DeleteOccurrence(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStorage) ListOccurrences(ctx context.Context, f *RangeFilter) ([]*OccurrenceRecord, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OccurrenceRecord), args.Error(1)
}

func (m *MockStorage) ListEventOccurrences(ctx context.Context, eventID uuid.UUID, f *RangeFilter) ([]*OccurrenceRecord, error) {
	args := m.Called(ctx, eventID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OccurrenceRecord), args.Error(1)
}

func (m *MockStorage) MigrateIntegerRepeat(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
