package service

import (
	"context"

	"sendlog/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) InsertPayload(ctx context.Context, payload *models.Payload, relatedMessageIDs []string) (int64, error) {
	args := m.Called(ctx, payload, relatedMessageIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) PayloadsByDedupKey(ctx context.Context, threadID string, sentTimestamp int64) ([]models.Payload, error) {
	args := m.Called(ctx, threadID, sentTimestamp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payload), args.Error(1)
}

func (m *mockStore) PayloadsForRecipient(ctx context.Context, sentTimestamp int64, recipientID string, deviceID uint32) ([]models.Payload, error) {
	args := m.Called(ctx, sentTimestamp, recipientID, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payload), args.Error(1)
}

func (m *mockStore) SetSendComplete(ctx context.Context, payloadID int64, complete bool) error {
	args := m.Called(ctx, payloadID, complete)
	return args.Error(0)
}

func (m *mockStore) DeletePayload(ctx context.Context, payloadID int64) error {
	args := m.Called(ctx, payloadID)
	return args.Error(0)
}

func (m *mockStore) HasPendingDeliveries(ctx context.Context, payloadID int64) (bool, error) {
	args := m.Called(ctx, payloadID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) InsertPendingDelivery(ctx context.Context, payloadID int64, recipientID string, deviceID uint32) error {
	args := m.Called(ctx, payloadID, recipientID, deviceID)
	return args.Error(0)
}

func (m *mockStore) DeletePendingDeliveries(ctx context.Context, payloadID int64, recipientID string, deviceID uint32) error {
	args := m.Called(ctx, payloadID, recipientID, deviceID)
	return args.Error(0)
}

func (m *mockStore) PendingDeviceIDs(ctx context.Context, payloadID int64, recipientID string) ([]uint32, error) {
	args := m.Called(ctx, payloadID, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint32), args.Error(1)
}

func (m *mockStore) MoveThreadPayloads(ctx context.Context, fromThreadID, intoThreadID string) (int64, error) {
	args := m.Called(ctx, fromThreadID, intoThreadID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) DeletePayloadsForMessage(ctx context.Context, messageID string) (int64, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) DeleteExpiredBatch(ctx context.Context, cutoffTimestamp int64, limit int) (int, error) {
	args := m.Called(ctx, cutoffTimestamp, limit)
	return args.Int(0), args.Error(1)
}

type mockStatusSource struct {
	mock.Mock
}

func (m *mockStatusSource) DeliveryStatus(ctx context.Context, messageID, recipientID string) (models.DeliveryStatus, error) {
	args := m.Called(ctx, messageID, recipientID)
	return args.Get(0).(models.DeliveryStatus), args.Error(1)
}
