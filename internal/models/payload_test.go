package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryStatus_IsTerminal(t *testing.T) {
	terminal := []DeliveryStatus{DeliveryStatusDelivered, DeliveryStatusRead, DeliveryStatusViewed}
	for _, status := range terminal {
		assert.True(t, status.IsTerminal(), "status %q should be terminal", status)
	}

	nonTerminal := []DeliveryStatus{
		DeliveryStatusUnknown,
		DeliveryStatusPending,
		DeliveryStatusSending,
		DeliveryStatusSent,
		DeliveryStatusFailed,
		DeliveryStatusSkipped,
	}
	for _, status := range nonTerminal {
		assert.False(t, status.IsTerminal(), "status %q should not be terminal", status)
	}
}

func TestDedupKeys(t *testing.T) {
	payload := &Payload{ThreadID: "thread-1", SentTimestamp: 1000}
	msg := &Outgoing{ThreadID: "thread-1", SentTimestamp: 1000}

	assert.Equal(t, DedupKey{ThreadID: "thread-1", SentTimestamp: 1000}, payload.Key())
	assert.Equal(t, payload.Key(), msg.Key())
}
