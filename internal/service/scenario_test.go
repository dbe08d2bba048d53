package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sendlog/internal/database"
	"sendlog/internal/features"
	"sendlog/internal/migrations"
	"sendlog/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupScenarioDB stands up a real SQLite store so the full lifecycle can be
// exercised end to end, without mocks.
func setupScenarioDB(t *testing.T) (*database.Database, func()) {
	tmpDir, err := os.MkdirTemp("", "sendlog-scenario-test")
	require.NoError(t, err)

	schema, err := os.ReadFile(filepath.Join("..", "..", "scripts", "migrations", "001_initial_schema.sql"))
	require.NoError(t, err)

	migrationsPath := filepath.Join(tmpDir, "migrations")
	require.NoError(t, os.MkdirAll(migrationsPath, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(migrationsPath, "001_initial_schema.sql"), schema, 0644))

	originalMigrationsDir := migrations.MigrationsDir
	migrations.MigrationsDir = migrationsPath

	db, err := database.New(filepath.Join(tmpDir, "scenario.db"))
	require.NoError(t, err)

	cleanup := func() {
		_ = db.Close()
		_ = os.RemoveAll(tmpDir)
		migrations.MigrationsDir = originalMigrationsDir
	}
	return db, cleanup
}

// TestFullDeliveryLifecycle walks one message to two recipients with two
// devices each through record, pending deliveries, acks, completion and the
// final deletion.
func TestFullDeliveryLifecycle(t *testing.T) {
	db, cleanup := setupScenarioDB(t)
	defer cleanup()
	ctx := context.Background()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	log := NewMessageSendLog(db, features.NewFlags(), nil, func() time.Time { return now }, logger)

	sentTimestamp := now.Add(-time.Minute).UnixMilli()
	msg := models.Outgoing{
		ThreadID:          "thread-1",
		SentTimestamp:     sentTimestamp,
		ContentHint:       models.ContentHintResendable,
		Kind:              models.KindStandard,
		ShouldLog:         true,
		RelatedMessageIDs: []string{"msg-1"},
	}

	payloadID, recorded := log.RecordPayload(ctx, []byte("the original ciphertext input"), msg)
	require.True(t, recorded)
	require.Greater(t, payloadID, int64(0))

	// Two recipients, two devices each.
	for _, recipient := range []string{"alice", "bob"} {
		for _, device := range []uint32{1, 2} {
			log.RecordPendingDelivery(ctx, payloadID, recipient, device, "msg-1")
		}
	}
	assert.ElementsMatch(t, []uint32{1, 2}, log.DeviceIDsPendingDelivery(ctx, payloadID, "alice"))

	// All attempts made; four deliveries still outstanding so the payload stays.
	log.SendComplete(ctx, msg)
	payload := log.FetchPayload(ctx, "alice", 1, sentTimestamp)
	require.NotNil(t, payload)
	assert.Equal(t, []byte("the original ciphertext input"), payload.Plaintext)
	assert.True(t, payload.SendComplete)

	// Three of four devices ack.
	key := models.DedupKey{ThreadID: "thread-1", SentTimestamp: sentTimestamp}
	log.RecordSuccessfulDelivery(ctx, key, "alice", 1)
	log.RecordSuccessfulDelivery(ctx, key, "alice", 2)
	log.RecordSuccessfulDelivery(ctx, key, "bob", 1)

	// Still resendable for the holdout device.
	payload = log.FetchPayload(ctx, "bob", 2, sentTimestamp)
	require.NotNil(t, payload)
	assert.ElementsMatch(t, []uint32{2}, log.DeviceIDsPendingDelivery(ctx, payloadID, "bob"))

	// The final ack removes the payload entirely.
	log.RecordSuccessfulDelivery(ctx, key, "bob", 2)
	assert.Nil(t, log.FetchPayload(ctx, "bob", 2, sentTimestamp))
	assert.Empty(t, log.DeviceIDsPendingDelivery(ctx, payloadID, "bob"))
}

// TestRetriedSendRevivesEntry covers a partial failure: the same message is
// sent again, reuses its entry, and a late completion still deletes it.
func TestRetriedSendRevivesEntry(t *testing.T) {
	db, cleanup := setupScenarioDB(t)
	defer cleanup()
	ctx := context.Background()

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	log := NewMessageSendLog(db, features.NewFlags(), nil, func() time.Time { return now }, logger)

	sentTimestamp := now.Add(-time.Minute).UnixMilli()
	msg := models.Outgoing{
		ThreadID:      "thread-1",
		SentTimestamp: sentTimestamp,
		Kind:          models.KindStandard,
		ShouldLog:     true,
	}

	firstID, recorded := log.RecordPayload(ctx, []byte("payload"), msg)
	require.True(t, recorded)

	// First attempt reached nobody but was marked complete; no pending rows,
	// so the payload would normally be deleted — but the send failed before
	// completion, so it never was.
	log.RecordPendingDelivery(ctx, firstID, "alice", 1, "msg-1")

	// Retry with identical plaintext lands on the same entry.
	secondID, recorded := log.RecordPayload(ctx, []byte("payload"), msg)
	require.True(t, recorded)
	assert.Equal(t, firstID, secondID)

	log.SendComplete(ctx, msg)
	log.RecordSuccessfulDelivery(ctx, models.DedupKey{ThreadID: "thread-1", SentTimestamp: sentTimestamp}, "alice", 1)
	assert.Nil(t, log.FetchPayload(ctx, "alice", 1, sentTimestamp))
}
