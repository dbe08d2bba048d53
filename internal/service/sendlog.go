package service

import (
	"bytes"
	"context"
	"time"

	"sendlog/internal/constants"
	apperrors "sendlog/internal/errors"
	"sendlog/internal/features"
	"sendlog/internal/metrics"
	"sendlog/internal/models"

	"github.com/sirupsen/logrus"
)

// Store is the transactional storage consumed by the send log.
type Store interface {
	InsertPayload(ctx context.Context, payload *models.Payload, relatedMessageIDs []string) (int64, error)
	PayloadsByDedupKey(ctx context.Context, threadID string, sentTimestamp int64) ([]models.Payload, error)
	PayloadsForRecipient(ctx context.Context, sentTimestamp int64, recipientID string, deviceID uint32) ([]models.Payload, error)
	SetSendComplete(ctx context.Context, payloadID int64, complete bool) error
	DeletePayload(ctx context.Context, payloadID int64) error
	HasPendingDeliveries(ctx context.Context, payloadID int64) (bool, error)
	InsertPendingDelivery(ctx context.Context, payloadID int64, recipientID string, deviceID uint32) error
	DeletePendingDeliveries(ctx context.Context, payloadID int64, recipientID string, deviceID uint32) error
	PendingDeviceIDs(ctx context.Context, payloadID int64, recipientID string) ([]uint32, error)
	MoveThreadPayloads(ctx context.Context, fromThreadID, intoThreadID string) (int64, error)
	DeletePayloadsForMessage(ctx context.Context, messageID string) (int64, error)
	DeleteExpiredBatch(ctx context.Context, cutoffTimestamp int64, limit int) (int, error)
}

// DeliveryStatusSource answers what a recipient's delivery status is for an
// application message. It is only consulted to classify the race where a
// delivery receipt lands before the pending row is recorded.
type DeliveryStatusSource interface {
	DeliveryStatus(ctx context.Context, messageID, recipientID string) (models.DeliveryStatus, error)
}

// MessageSendLog retains the plaintext of outgoing messages until every
// target device has acknowledged them, so a decryption failure on one device
// can be answered with a resend of the original bytes. Entries are
// short-lived: the log is a resend aid, not an archive, and it never fails a
// send — every operation degrades to a no-op on storage trouble.
type MessageSendLog struct {
	store  Store
	flags  *features.Flags
	status DeliveryStatusSource
	now    func() time.Time
	logger *logrus.Logger
}

func NewMessageSendLog(store Store, flags *features.Flags, status DeliveryStatusSource, now func() time.Time, logger *logrus.Logger) *MessageSendLog {
	if now == nil {
		now = time.Now
	}
	return &MessageSendLog{
		store:  store,
		flags:  flags,
		status: status,
		now:    now,
		logger: logger,
	}
}

// currentExpiredTimestamp returns the cutoff below which payloads are
// logically expired, in milliseconds since epoch.
func (l *MessageSendLog) currentExpiredTimestamp() int64 {
	return l.now().Add(-l.flags.EntryLifetime()).UnixMilli()
}

// RecordPayload stores the plaintext for a send attempt, or revives the
// existing entry when this is a retry. Returns (0, false) when nothing was
// recorded; callers must tolerate an absent log entry.
func (l *MessageSendLog) RecordPayload(ctx context.Context, plaintext []byte, msg models.Outgoing) (int64, bool) {
	if l.flags.KillSwitch() {
		return 0, false
	}
	if !msg.ShouldLog {
		return 0, false
	}

	existing, err := l.fetchUniquePayload(ctx, msg.ThreadID, msg.SentTimestamp)
	if err != nil {
		l.logger.WithError(err).WithField("threadId", msg.ThreadID).Error("Failed to look up existing payload")
		return 0, false
	}

	if existing != nil {
		// A payload already exists for this dedup key, so the previous
		// attempt was a partial failure. If the plaintext matches we can
		// reuse the entry; the send is in flight again, so clear
		// send_complete in case a delivery receipt arrives before the
		// remaining recipients have been attempted.
		if bytes.Equal(existing.Plaintext, plaintext) {
			if err := l.store.SetSendComplete(ctx, existing.ID, false); err != nil {
				l.logger.WithError(err).WithField("payloadId", existing.ID).Error("Failed to mark existing payload incomplete")
			}
			metrics.IncrementCounter("sendlog_payload_dedup_hits", nil, "Payloads reused across retried sends")
			return existing.ID, true
		}

		// Different plaintext behind one dedup key. A sync echo aliasing its
		// original is expected; anything else means two distinct sends
		// collided on (threadId, sentTimestamp) and neither can be resent
		// safely.
		if msg.Kind != models.KindSyncEcho {
			l.logger.WithFields(logrus.Fields{
				"threadId":      msg.ThreadID,
				"sentTimestamp": msg.SentTimestamp,
				"kind":          msg.Kind,
			}).Error(apperrors.New(apperrors.ErrCodePayloadCollision, "send log inconsistency for a non-sync message").Error())
		}
		return 0, false
	}

	payload := &models.Payload{
		Plaintext:     plaintext,
		ContentHint:   msg.ContentHint,
		SentTimestamp: msg.SentTimestamp,
		ThreadID:      msg.ThreadID,
		SendComplete:  false,
	}

	payloadID, err := l.store.InsertPayload(ctx, payload, msg.RelatedMessageIDs)
	if err != nil {
		l.logger.WithError(err).WithField("threadId", msg.ThreadID).Error("Failed to insert payload")
		return 0, false
	}

	metrics.IncrementCounter("sendlog_payloads_recorded", nil, "Payloads recorded for resend")
	return payloadID, true
}

// SendComplete marks that delivery has been attempted to every target device
// for this send, then deletes the payload if nothing is pending anymore.
func (l *MessageSendLog) SendComplete(ctx context.Context, msg models.Outgoing) {
	if l.flags.KillSwitch() {
		return
	}
	if !msg.ShouldLog {
		return
	}

	payload, err := l.fetchUniquePayload(ctx, msg.ThreadID, msg.SentTimestamp)
	if err != nil {
		l.logger.WithError(err).WithField("sentTimestamp", msg.SentTimestamp).Error("Failed to mark send complete")
		return
	}
	if payload == nil {
		return
	}

	if err := l.store.SetSendComplete(ctx, payload.ID, true); err != nil {
		l.logger.WithError(err).WithField("payloadId", payload.ID).Error("Failed to mark send complete")
		return
	}
	payload.SendComplete = true

	l.deletePayloadIfNecessary(ctx, payload)
}

// FetchPayload returns the payload a recipient device is asking to have
// resent, or nil. Logically expired entries are never returned even if the
// sweep hasn't physically removed the row yet.
func (l *MessageSendLog) FetchPayload(ctx context.Context, recipientID string, deviceID uint32, sentTimestamp int64) *models.Payload {
	if l.flags.KillSwitch() {
		return nil
	}

	if sentTimestamp <= l.currentExpiredTimestamp() {
		l.logger.WithField("sentTimestamp", sentTimestamp).Debug("Resend request for expired payload")
		return nil
	}

	payloads, err := l.store.PayloadsForRecipient(ctx, sentTimestamp, recipientID, deviceID)
	if err != nil {
		l.logger.WithError(err).Error("Failed to fetch payload for recipient")
		return nil
	}
	if len(payloads) == 0 {
		return nil
	}
	if len(payloads) > 1 {
		l.logger.WithFields(logrus.Fields{
			"sentTimestamp": sentTimestamp,
			"matches":       len(payloads),
		}).Error(apperrors.New(apperrors.ErrCodeDuplicatePayload, "duplicate payloads in the send log").Error())
		return nil
	}

	metrics.IncrementCounter("sendlog_payloads_fetched", nil, "Payloads fetched for resend")
	return &payloads[0]
}

// MergePayloads moves every payload from one thread to another when two
// conversations are merged. Best-effort: a failure is logged, not returned.
func (l *MessageSendLog) MergePayloads(ctx context.Context, fromThreadID, intoThreadID string) {
	moved, err := l.store.MoveThreadPayloads(ctx, fromThreadID, intoThreadID)
	if err != nil {
		l.logger.WithError(err).WithFields(logrus.Fields{
			"fromThreadId": fromThreadID,
			"intoThreadId": intoThreadID,
		}).Error("Failed to merge send log payloads")
		return
	}
	if moved > 0 {
		l.logger.WithField("moved", moved).Debug("Merged send log payloads")
	}
}

// DeleteAllPayloadsForMessage removes every payload owned by an application
// message when that message is deleted.
func (l *MessageSendLog) DeleteAllPayloadsForMessage(ctx context.Context, messageID string) {
	if _, err := l.store.DeletePayloadsForMessage(ctx, messageID); err != nil {
		l.logger.WithError(err).WithField("messageId", messageID).Error("Failed to delete payloads for message")
	}
}

// RecordPendingDelivery registers one outstanding device delivery for a
// payload. A foreign key failure here is usually the expected race where the
// recipient acked before this row landed and the completion path already
// deleted the payload; the recipient's delivery status decides whether it
// was that race or a real ordering bug.
func (l *MessageSendLog) RecordPendingDelivery(ctx context.Context, payloadID int64, recipientID string, deviceID uint32, messageID string) {
	if l.flags.KillSwitch() {
		return
	}

	err := l.store.InsertPendingDelivery(ctx, payloadID, recipientID, deviceID)
	if err == nil {
		metrics.IncrementCounter("sendlog_pending_deliveries_recorded", nil, "Pending device deliveries recorded")
		return
	}

	if apperrors.IsForeignKeyViolation(err) {
		if l.deliveryStatusFor(ctx, messageID, recipientID).IsTerminal() {
			// Receipt beat the insert; the payload is legitimately gone.
			return
		}
		l.logger.WithFields(logrus.Fields{
			"payloadId":   payloadID,
			"recipientId": recipientID,
			"deviceId":    deviceID,
		}).Error(apperrors.New(apperrors.ErrCodeUnexpectedRace, "unexpected foreign key constraint violation").Error())
		return
	}

	l.logger.WithError(err).WithField("payloadId", payloadID).Error("Failed to record pending delivery")
}

// RecordSuccessfulDelivery clears the pending row for a device that has
// confirmed decryption, and deletes the payload once it is complete and
// nothing else is pending.
func (l *MessageSendLog) RecordSuccessfulDelivery(ctx context.Context, key models.DedupKey, recipientID string, deviceID uint32) {
	if l.flags.KillSwitch() {
		return
	}

	payload, err := l.fetchUniquePayload(ctx, key.ThreadID, key.SentTimestamp)
	if err != nil {
		l.logger.WithError(err).WithField("sentTimestamp", key.SentTimestamp).Error("Failed to record successful delivery")
		return
	}
	if payload == nil {
		return
	}

	if err := l.store.DeletePendingDeliveries(ctx, payload.ID, recipientID, deviceID); err != nil {
		l.logger.WithError(err).WithField("payloadId", payload.ID).Error("Failed to delete pending delivery")
		return
	}

	metrics.IncrementCounter("sendlog_deliveries_acked", nil, "Device deliveries acknowledged")
	l.deletePayloadIfNecessary(ctx, payload)
}

// DeviceIDsPendingDelivery lists the recipient's devices that still have an
// outstanding delivery for the payload. Nil on storage error.
func (l *MessageSendLog) DeviceIDsPendingDelivery(ctx context.Context, payloadID int64, recipientID string) []uint32 {
	deviceIDs, err := l.store.PendingDeviceIDs(ctx, payloadID, recipientID)
	if err != nil {
		l.logger.WithError(err).WithField("payloadId", payloadID).Error("Failed to list pending device ids")
		return nil
	}
	return deviceIDs
}

// CleanUpExpiredEntries deletes every payload older than the entry lifetime,
// in batches, committing between batches so the sweep never starves
// interactive operations. It stops once a batch comes back short.
func (l *MessageSendLog) CleanUpExpiredEntries(ctx context.Context) (int, error) {
	cutoff := l.currentExpiredTimestamp()
	total := 0

	for {
		deleted, err := l.store.DeleteExpiredBatch(ctx, cutoff, constants.CleanupBatchSize)
		if err != nil {
			// Report and surface, but keep what was already deleted counted.
			l.logger.WithError(err).Warn("Expiry sweep batch failed")
			return total, err
		}
		total += deleted
		if deleted < constants.CleanupBatchSize {
			break
		}
	}

	if total > 0 {
		metrics.AddToCounter("sendlog_expired_payloads_deleted", float64(total), nil, "Payloads removed by the expiry sweep")
		l.logger.WithField("deleted", total).Info("Deleted stale send log entries")
	}
	return total, nil
}

// fetchUniquePayload returns the single payload for a dedup key, nil when
// absent. More than one match is an invariant violation.
func (l *MessageSendLog) fetchUniquePayload(ctx context.Context, threadID string, sentTimestamp int64) (*models.Payload, error) {
	payloads, err := l.store.PayloadsByDedupKey(ctx, threadID, sentTimestamp)
	if err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, nil
	}
	if len(payloads) > 1 {
		return nil, apperrors.New(apperrors.ErrCodeDuplicatePayload, "duplicate payloads in the send log").
			WithContext("threadId", threadID).
			WithContext("sentTimestamp", sentTimestamp)
	}
	return &payloads[0], nil
}

// deletePayloadIfNecessary deletes a payload once it is sent and delivered
// everywhere: send_complete set and no pending rows left. This is the only
// deletion authority outside the expiry sweep and interaction deletion.
func (l *MessageSendLog) deletePayloadIfNecessary(ctx context.Context, payload *models.Payload) {
	if !payload.SendComplete {
		return
	}

	pending, err := l.store.HasPendingDeliveries(ctx, payload.ID)
	if err != nil {
		l.logger.WithError(err).WithField("payloadId", payload.ID).Error("Failed to check pending deliveries")
		return
	}
	if pending {
		return
	}

	if err := l.store.DeletePayload(ctx, payload.ID); err != nil {
		l.logger.WithError(err).WithField("payloadId", payload.ID).Error("Failed to delete completed payload")
		return
	}
	metrics.IncrementCounter("sendlog_payloads_completed", nil, "Payloads deleted after full delivery")
}

func (l *MessageSendLog) deliveryStatusFor(ctx context.Context, messageID, recipientID string) models.DeliveryStatus {
	if l.status == nil {
		return models.DeliveryStatusUnknown
	}
	status, err := l.status.DeliveryStatus(ctx, messageID, recipientID)
	if err != nil {
		l.logger.WithError(err).WithField("messageId", messageID).Warn("Failed to fetch delivery status")
		return models.DeliveryStatusUnknown
	}
	return status
}
