package mocks

import (
	"context"

	"mediagateway/internal/model"
	"mediagateway/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockMediaService struct {
	mock.Mock
}

// Download returns the mocked error. A func(service.Sink) error return value is
// called with the sink instead, so tests can drive the response.
func (m *MockMediaService) Download(ctx context.Context, category model.Category, recordID, rangeHeader string, sink service.Sink) error {
	args := m.Called(ctx, category, recordID, rangeHeader, sink)
	if f, ok := args.Get(0).(func(service.Sink) error); ok {
		return f(sink)
	}
	return args.Error(0)
}

func (m *MockMediaService) Head(ctx context.Context, category model.Category, recordID, rangeHeader string) (*service.ResponseMeta, error) {
	args := m.Called(ctx, category, recordID, rangeHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ResponseMeta), args.Error(1)
}

func (m *MockMediaService) Upload(ctx context.Context, req service.UploadRequest) (*model.StoredObject, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredObject), args.Error(1)
}

func (m *MockMediaService) Replace(ctx context.Context, recordID string, req service.UploadRequest) (*model.StoredObject, error) {
	args := m.Called(ctx, recordID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredObject), args.Error(1)
}
