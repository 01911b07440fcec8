package app

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPubSub Mock PubSub
type MockPubSub struct {
	mock.Mock
}

// Publish moke publisher
func (m *MockPubSub) Publish(channel string, message interface{}) error {
	args := m.Called(channel, message)
	return args.Error(0)
}

// Subscribe moke subscriber
func (m *MockPubSub) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	args := m.Called(channel, handler)
	return args.Error(0)
}
