package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/felipemacedo1/go-msg-wss-app/internal/archive"
	"github.com/felipemacedo1/go-msg-wss-app/internal/models"
	"github.com/felipemacedo1/go-msg-wss-app/internal/rabbitmq"
	"github.com/felipemacedo1/go-msg-wss-app/internal/session"
)

type SnapshotSourceMock struct {
	mock.Mock
}

func (m *SnapshotSourceMock) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

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

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) SaveSnapshot(ctx context.Context, roomID string, msgs []models.Message) error {
	args := m.Called(ctx, roomID, msgs)
	return args.Error(0)
}

func (m *StoreMock) SaveMessage(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *StoreMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ session.SnapshotSource = (*SnapshotSourceMock)(nil)
var _ rabbitmq.Publisher = (*PublisherMock)(nil)
var _ archive.Store = (*StoreMock)(nil)
