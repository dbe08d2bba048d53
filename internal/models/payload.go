package models

// ContentHint tells a recipient how to react if it still cannot decrypt a
// message after a resend.
type ContentHint int

const (
	ContentHintDefault    ContentHint = 0
	ContentHintResendable ContentHint = 1
	ContentHintImplicit   ContentHint = 2
)

// MessageKind classifies an outgoing message for send-log purposes. Sync
// echoes (copies of a message sent to the sender's own linked devices) are
// allowed to alias an existing payload's dedup key.
type MessageKind string

const (
	KindStandard MessageKind = "standard"
	KindSyncEcho MessageKind = "sync_echo"
)

type DeliveryStatus string

const (
	DeliveryStatusUnknown   DeliveryStatus = "unknown"
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSending   DeliveryStatus = "sending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusViewed    DeliveryStatus = "viewed"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusSkipped   DeliveryStatus = "skipped"
)

// IsTerminal reports whether the recipient has confirmed receipt, meaning a
// pending-delivery row for it may legitimately already be gone.
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusRead, DeliveryStatusViewed:
		return true
	}
	return false
}

// DedupKey is the logical identity of one outgoing send, used to detect
// retries of the same message.
type DedupKey struct {
	ThreadID      string `json:"threadId"`
	SentTimestamp int64  `json:"sentTimestamp"` // milliseconds since epoch
}

// Payload is one retained plaintext, kept until the send completes and every
// recipient device has acknowledged it, or until it expires.
type Payload struct {
	ID            int64       `json:"id"`
	Plaintext     []byte      `json:"plaintext"`
	ContentHint   ContentHint `json:"contentHint"`
	SentTimestamp int64       `json:"sentTimestamp"`
	ThreadID      string      `json:"threadId"`
	SendComplete  bool        `json:"sendComplete"`
}

// Key returns the payload's dedup key.
func (p *Payload) Key() DedupKey {
	return DedupKey{ThreadID: p.ThreadID, SentTimestamp: p.SentTimestamp}
}

// PendingDelivery marks delivery of a payload to one recipient device as
// still outstanding.
type PendingDelivery struct {
	PayloadID   int64  `json:"payloadId"`
	RecipientID string `json:"recipientId"`
	DeviceID    uint32 `json:"deviceId"`
}

// MessageReference links a payload to an application-level message so that
// deleting the message can cascade into the send log. Several references may
// share one payload (a sync echo reuses the original's plaintext).
type MessageReference struct {
	PayloadID int64  `json:"payloadId"`
	MessageID string `json:"messageId"`
}

// Outgoing carries the send-log relevant attributes of a message being sent.
type Outgoing struct {
	ThreadID          string      `json:"threadId"`
	SentTimestamp     int64       `json:"sentTimestamp"`
	ContentHint       ContentHint `json:"contentHint"`
	Kind              MessageKind `json:"kind"`
	ShouldLog         bool        `json:"shouldLog"`
	RelatedMessageIDs []string    `json:"relatedMessageIds"`
}

// Key returns the message's dedup key.
func (m *Outgoing) Key() DedupKey {
	return DedupKey{ThreadID: m.ThreadID, SentTimestamp: m.SentTimestamp}
}
