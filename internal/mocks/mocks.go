package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
	"chat-client/internal/session"
)

type BackendMock struct {
	mock.Mock
}

func (m *BackendMock) ConnectUser(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *BackendMock) DisconnectUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *BackendMock) ListChannels(ctx context.Context) ([]models.Channel, error) {
	args := m.Called(ctx)
	var list []models.Channel
	if val := args.Get(0); val != nil {
		list = val.([]models.Channel)
	}
	return list, args.Error(1)
}

func (m *BackendMock) CreateChannel(ctx context.Context, req models.CreateChannelRequest) (models.Channel, error) {
	args := m.Called(ctx, req)
	var ch models.Channel
	if val := args.Get(0); val != nil {
		ch = val.(models.Channel)
	}
	return ch, args.Error(1)
}

func (m *BackendMock) ListMessages(ctx context.Context, channelID string) ([]models.Message, error) {
	args := m.Called(ctx, channelID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *BackendMock) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type StatusProviderMock struct {
	mock.Mock
}

func (m *StatusProviderMock) Snapshot() session.Snapshot {
	args := m.Called()
	var snap session.Snapshot
	if val := args.Get(0); val != nil {
		snap = val.(session.Snapshot)
	}
	return snap
}
