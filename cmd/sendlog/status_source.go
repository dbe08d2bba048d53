package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"sendlog/internal/constants"
	"sendlog/internal/models"
)

// httpStatusSource asks the messaging backend for a recipient's delivery
// status on an application message. The send log only consults it to decide
// whether a foreign key failure on a pending-delivery insert was the benign
// receipt-before-insert race.
type httpStatusSource struct {
	baseURL string
	client  *http.Client
}

func newHTTPStatusSource(baseURL string) *httpStatusSource {
	return &httpStatusSource{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: constants.DefaultStatusFetchTimeoutSec * time.Second,
		},
	}
}

type deliveryStatusResponse struct {
	Status models.DeliveryStatus `json:"status"`
}

func (s *httpStatusSource) DeliveryStatus(ctx context.Context, messageID, recipientID string) (models.DeliveryStatus, error) {
	endpoint := fmt.Sprintf("%s/messages/%s/recipients/%s/status",
		s.baseURL, url.PathEscape(messageID), url.PathEscape(recipientID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.DeliveryStatusUnknown, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.DeliveryStatusUnknown, fmt.Errorf("failed to fetch delivery status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return models.DeliveryStatusUnknown, fmt.Errorf("delivery status request returned %d", resp.StatusCode)
	}

	var body deliveryStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.DeliveryStatusUnknown, fmt.Errorf("failed to decode delivery status: %w", err)
	}
	if body.Status == "" {
		return models.DeliveryStatusUnknown, nil
	}
	return body.Status, nil
}
