package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/gbfs-cli/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveSnapshot(ctx context.Context, meta model.SystemMeta, stations []model.Station, fetchedAt time.Time) (*Snapshot, error) {
	args := m.Called(ctx, meta, stations, fetchedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Snapshot), args.Error(1)
}

func (m *mockStore) LatestSnapshot(ctx context.Context, tag string) (*Snapshot, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Snapshot), args.Error(1)
}

func (m *mockStore) GetCachedResponse(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockStore) SetCachedResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return m.Called(ctx, key, data, ttl).Error(0)
}

func (m *mockStore) DeleteExpiredResponses(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
