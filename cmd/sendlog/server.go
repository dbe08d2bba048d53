package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"sendlog/internal/constants"
	"sendlog/internal/middleware"
	"sendlog/internal/models"
	"sendlog/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server fronts the send log for its collaborating pipelines: the message
// send pipeline records payloads and completion, the delivery-receipt
// pipeline records pending/successful deliveries and fetches payloads for
// resend, and the deletion/merge pipelines clean up.
type Server struct {
	router  *mux.Router
	logger  *logrus.Logger
	sendLog *service.MessageSendLog
	port    int
	server  *http.Server
}

func NewServer(sendLog *service.MessageSendLog, port int, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		sendLog: sendLog,
		port:    port,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	// Health check
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/v1").Subrouter()

	// Send pipeline
	api.HandleFunc("/payloads", s.handleRecordPayload()).Methods(http.MethodPost)
	api.HandleFunc("/payloads/complete", s.handleSendComplete()).Methods(http.MethodPost)

	// Delivery-receipt pipeline
	api.HandleFunc("/payloads", s.handleFetchPayload()).Methods(http.MethodGet)
	api.HandleFunc("/deliveries", s.handleRecordPendingDelivery()).Methods(http.MethodPost)
	api.HandleFunc("/deliveries/ack", s.handleSuccessfulDelivery()).Methods(http.MethodPost)
	api.HandleFunc("/deliveries/pending", s.handlePendingDevices()).Methods(http.MethodGet)

	// Merge and deletion pipelines
	api.HandleFunc("/threads/merge", s.handleMergeThreads()).Methods(http.MethodPost)
	api.HandleFunc("/messages/{messageId}/payloads", s.handleDeleteMessagePayloads()).Methods(http.MethodDelete)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

type recordPayloadRequest struct {
	Plaintext         []byte             `json:"plaintext"`
	ThreadID          string             `json:"threadId"`
	SentTimestamp     int64              `json:"sentTimestamp"`
	ContentHint       models.ContentHint `json:"contentHint"`
	Kind              models.MessageKind `json:"kind"`
	ShouldLog         bool               `json:"shouldLog"`
	RelatedMessageIDs []string           `json:"relatedMessageIds"`
}

func (s *Server) handleRecordPayload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordPayloadRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		if req.ThreadID == "" || req.SentTimestamp <= 0 {
			http.Error(w, "threadId and sentTimestamp are required", http.StatusBadRequest)
			return
		}

		kind := req.Kind
		if kind == "" {
			kind = models.KindStandard
		}

		payloadID, recorded := s.sendLog.RecordPayload(r.Context(), req.Plaintext, models.Outgoing{
			ThreadID:          req.ThreadID,
			SentTimestamp:     req.SentTimestamp,
			ContentHint:       req.ContentHint,
			Kind:              kind,
			ShouldLog:         req.ShouldLog,
			RelatedMessageIDs: req.RelatedMessageIDs,
		})
		if !recorded {
			// Not an error: the log is best-effort and the caller proceeds
			// without a resend entry.
			w.WriteHeader(http.StatusNoContent)
			return
		}

		s.writeJSON(w, http.StatusCreated, map[string]int64{"payloadId": payloadID})
	}
}

type dedupKeyRequest struct {
	ThreadID      string `json:"threadId"`
	SentTimestamp int64  `json:"sentTimestamp"`
	ShouldLog     bool   `json:"shouldLog"`
}

func (s *Server) handleSendComplete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dedupKeyRequest
		if !s.decodeBody(w, r, &req) {
			return
		}

		s.sendLog.SendComplete(r.Context(), models.Outgoing{
			ThreadID:      req.ThreadID,
			SentTimestamp: req.SentTimestamp,
			ShouldLog:     req.ShouldLog,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleFetchPayload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recipientID := r.URL.Query().Get("recipientId")
		deviceID, errDevice := strconv.ParseUint(r.URL.Query().Get("deviceId"), 10, 32)
		sentTimestamp, errTimestamp := strconv.ParseInt(r.URL.Query().Get("sentTimestamp"), 10, 64)
		if recipientID == "" || errDevice != nil || errTimestamp != nil {
			http.Error(w, "recipientId, deviceId and sentTimestamp are required", http.StatusBadRequest)
			return
		}

		payload := s.sendLog.FetchPayload(r.Context(), recipientID, uint32(deviceID), sentTimestamp)
		if payload == nil {
			http.Error(w, "payload not found", http.StatusNotFound)
			return
		}

		s.writeJSON(w, http.StatusOK, payload)
	}
}

type pendingDeliveryRequest struct {
	PayloadID   int64  `json:"payloadId"`
	RecipientID string `json:"recipientId"`
	DeviceID    uint32 `json:"deviceId"`
	MessageID   string `json:"messageId"`
}

func (s *Server) handleRecordPendingDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pendingDeliveryRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		if req.PayloadID <= 0 || req.RecipientID == "" {
			http.Error(w, "payloadId and recipientId are required", http.StatusBadRequest)
			return
		}

		s.sendLog.RecordPendingDelivery(r.Context(), req.PayloadID, req.RecipientID, req.DeviceID, req.MessageID)
		w.WriteHeader(http.StatusNoContent)
	}
}

type successfulDeliveryRequest struct {
	ThreadID      string `json:"threadId"`
	SentTimestamp int64  `json:"sentTimestamp"`
	RecipientID   string `json:"recipientId"`
	DeviceID      uint32 `json:"deviceId"`
}

func (s *Server) handleSuccessfulDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req successfulDeliveryRequest
		if !s.decodeBody(w, r, &req) {
			return
		}

		s.sendLog.RecordSuccessfulDelivery(r.Context(),
			models.DedupKey{ThreadID: req.ThreadID, SentTimestamp: req.SentTimestamp},
			req.RecipientID, req.DeviceID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handlePendingDevices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payloadID, errPayload := strconv.ParseInt(r.URL.Query().Get("payloadId"), 10, 64)
		recipientID := r.URL.Query().Get("recipientId")
		if errPayload != nil || recipientID == "" {
			http.Error(w, "payloadId and recipientId are required", http.StatusBadRequest)
			return
		}

		deviceIDs := s.sendLog.DeviceIDsPendingDelivery(r.Context(), payloadID, recipientID)
		if deviceIDs == nil {
			deviceIDs = []uint32{}
		}
		s.writeJSON(w, http.StatusOK, map[string][]uint32{"deviceIds": deviceIDs})
	}
}

type mergeThreadsRequest struct {
	FromThreadID string `json:"fromThreadId"`
	IntoThreadID string `json:"intoThreadId"`
}

func (s *Server) handleMergeThreads() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mergeThreadsRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		if req.FromThreadID == "" || req.IntoThreadID == "" {
			http.Error(w, "fromThreadId and intoThreadId are required", http.StatusBadRequest)
			return
		}

		s.sendLog.MergePayloads(r.Context(), req.FromThreadID, req.IntoThreadID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDeleteMessagePayloads() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID := mux.Vars(r)["messageId"]
		if messageID == "" {
			http.Error(w, "messageId is required", http.StatusBadRequest)
			return
		}

		s.sendLog.DeleteAllPayloadsForMessage(r.Context(), messageID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.DefaultMaxRequestBodyKiB*1024)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
