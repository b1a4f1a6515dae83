package api

import (
	"context"
	"testing"

	"metasnap.app/msc/internal/logger"
)

// MockStorage implements ValueStore for testing
type MockStorage struct {
	Stored  uint64
	ReadErr error
	SetErr  error
	SetLog  []uint64
}

func (m *MockStorage) Value(ctx context.Context) (uint64, error) {
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	return m.Stored, nil
}

func (m *MockStorage) SetValue(ctx context.Context, value uint64) error {
	m.SetLog = append(m.SetLog, value)
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Stored = value
	return nil
}

// setupTest creates a service backed by a mock storage contract
func setupTest(t *testing.T) (*Service, *MockStorage) {
	t.Helper()
	mock := &MockStorage{Stored: 42}
	svc := NewService(mock, logger.New(100), t.TempDir())
	return svc, mock
}
