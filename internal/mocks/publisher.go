package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type ImageStoreMock struct {
	mock.Mock
}

func (m *ImageStoreMock) Store(data []byte, originalName string) (string, error) {
	args := m.Called(data, originalName)
	return args.String(0), args.Error(1)
}
