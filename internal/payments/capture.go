package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrNotConfigured = errors.New("payment capture endpoint not configured")

type CaptureRequest struct {
	OrderID   int64  `json:"order_id"`
	Method    string `json:"method"`
	MandateID string `json:"mandate_id,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// Capturer collects the money of an order through a payment gateway.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) error
}

// HTTPCapturer posts capture requests to the gateway wrapper service.
type HTTPCapturer struct {
	url    string
	client *http.Client
}

func NewHTTPCapturer(url string, timeout time.Duration) *HTTPCapturer {
	return &HTTPCapturer{url: url, client: &http.Client{Timeout: timeout}}
}

func (c *HTTPCapturer) Capture(ctx context.Context, req CaptureRequest) error {
	if c.url == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal capture request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("capture request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("capture rejected with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
