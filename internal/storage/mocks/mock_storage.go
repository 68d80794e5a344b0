package mocks

import (
	"context"
	"io"

	"mediagateway/internal/model"
	"mediagateway/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Head(ctx context.Context, key string) (model.ObjectMetadata, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(model.ObjectMetadata), args.Error(1)
}

func (m *MockStorage) GetRange(ctx context.Context, key string, rng *storage.ByteRange) (io.ReadCloser, error) {
	args := m.Called(ctx, key, rng)
	if f, ok := args.Get(0).(func(context.Context, string, *storage.ByteRange) io.ReadCloser); ok {
		return f(ctx, key, rng), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStorage) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	args := m.Called(ctx, key, r, opt)
	if f, ok := args.Get(0).(func(context.Context, string, io.Reader, storage.PutObjectOptions) storage.ObjectInfo); ok {
		return f(ctx, key, r, opt), args.Error(1)
	}
	return args.Get(0).(storage.ObjectInfo), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
