package scoring

import (
	"context"

	"github.com/jason-s-yu/arcade/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserStore) GetScore(ctx context.Context, username string, game models.Game) (int, error) {
	args := m.Called(ctx, username, game)
	return args.Int(0), args.Error(1)
}

func (m *MockUserStore) UpdateScore(ctx context.Context, key models.UserKey, game models.Game, score int, combine models.Combine) (bool, error) {
	args := m.Called(ctx, key, game, score, combine)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) RecordMatch(ctx context.Context, result models.MatchResult, points int) error {
	args := m.Called(ctx, result, points)
	return args.Error(0)
}
