package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mediagateway/internal/model"
)

type MockPolicyResolver struct {
	mock.Mock
}

func (m *MockPolicyResolver) Resolve(ctx context.Context, recordID string) (*model.MediaRecord, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MediaRecord), args.Error(1)
}

func (m *MockPolicyResolver) GetLimits(ctx context.Context, category model.Category) (*model.CategoryPolicy, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CategoryPolicy), args.Error(1)
}
