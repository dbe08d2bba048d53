package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"sendlog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusSource_Delivered(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/msg-1/recipients/alice/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "delivered"}`))
	}))
	defer backend.Close()

	source := newHTTPStatusSource(backend.URL)
	status, err := source.DeliveryStatus(context.Background(), "msg-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDelivered, status)
	assert.True(t, status.IsTerminal())
}

func TestHTTPStatusSource_EmptyStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer backend.Close()

	source := newHTTPStatusSource(backend.URL)
	status, err := source.DeliveryStatus(context.Background(), "msg-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusUnknown, status)
}

func TestHTTPStatusSource_BackendError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	source := newHTTPStatusSource(backend.URL)
	status, err := source.DeliveryStatus(context.Background(), "msg-1", "alice")
	assert.Error(t, err)
	assert.Equal(t, models.DeliveryStatusUnknown, status)
}

func TestHTTPStatusSource_Unreachable(t *testing.T) {
	source := newHTTPStatusSource("http://127.0.0.1:1")
	status, err := source.DeliveryStatus(context.Background(), "msg-1", "alice")
	assert.Error(t, err)
	assert.Equal(t, models.DeliveryStatusUnknown, status)
}
