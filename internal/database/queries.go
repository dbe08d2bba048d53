package database

// Payload queries
const (
	InsertPayloadQuery = `
		INSERT INTO payloads (
			plaintext, content_hint, sent_timestamp, thread_id, send_complete
		) VALUES (?, ?, ?, ?, ?)
	`

	SelectPayloadsByDedupKeyQuery = `
		SELECT payload_id, plaintext, content_hint, sent_timestamp, thread_id, send_complete
		FROM payloads
		WHERE thread_id = ? AND sent_timestamp = ?
	`

	SelectPayloadsForRecipientQuery = `
		SELECT p.payload_id, p.plaintext, p.content_hint, p.sent_timestamp, p.thread_id, p.send_complete
		FROM payloads p
		JOIN pending_deliveries d ON d.payload_id = p.payload_id
		WHERE p.sent_timestamp = ? AND d.recipient_id = ? AND d.device_id = ?
	`

	UpdateSendCompleteQuery = `
		UPDATE payloads
		SET send_complete = ?
		WHERE payload_id = ?
	`

	UpdateThreadIDQuery = `
		UPDATE payloads
		SET thread_id = ?
		WHERE thread_id = ?
	`

	DeletePayloadQuery = `
		DELETE FROM payloads
		WHERE payload_id = ?
	`

	SelectExpiredPayloadIDsQuery = `
		SELECT payload_id
		FROM payloads
		WHERE sent_timestamp < ?
		LIMIT ?
	`
)

// Pending delivery queries
const (
	InsertPendingDeliveryQuery = `
		INSERT INTO pending_deliveries (payload_id, recipient_id, device_id)
		VALUES (?, ?, ?)
	`

	DeletePendingDeliveriesQuery = `
		DELETE FROM pending_deliveries
		WHERE payload_id = ? AND recipient_id = ? AND device_id = ?
	`

	SelectPendingDeliveryExistsQuery = `
		SELECT EXISTS (
			SELECT 1 FROM pending_deliveries WHERE payload_id = ?
		)
	`

	SelectPendingDeviceIDsQuery = `
		SELECT device_id
		FROM pending_deliveries
		WHERE payload_id = ? AND recipient_id = ?
	`
)

// Message reference queries
const (
	InsertMessageReferenceQuery = `
		INSERT INTO message_references (payload_id, message_id)
		VALUES (?, ?)
	`

	SelectPayloadIDsForMessageQuery = `
		SELECT payload_id
		FROM message_references
		WHERE message_id = ?
	`
)
