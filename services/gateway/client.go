package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Refund statuses the gateway reports.
const (
	RefundStatusProcessed = "processed"
	RefundStatusPending   = "pending"
	RefundStatusFailed    = "failed"
)

// Error is a payment-gateway failure. It is surfaced to callers with a
// retry hint and never swallowed.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s failed (%d): %s", e.Op, e.StatusCode, e.Message)
}

// Order is the gateway's order-create response.
type Order struct {
	ID string `json:"orderId"`
}

// Refund is the gateway's refund response.
type Refund struct {
	ID     string `json:"refundId"`
	Status string `json:"status"`
}

// Client talks to the external payment gateway. Amounts are minor units.
type Client struct {
	baseURL string
	keyID   string
	secret  string
	httpc   *http.Client
}

// NewClient constructs a gateway client.
func NewClient(baseURL, keyID, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateOrder opens a payment order. The receipt ties the order back to our
// booking for reconciliation.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	body := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	var order Order
	if err := c.post(ctx, "orders", "create order", body, nil, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, &Error{Op: "create order", Message: "gateway returned no order id"}
	}
	return &order, nil
}

// CreateRefund reverses captured funds. idempotencyKey makes retries safe:
// the gateway returns the original refund for a repeated key instead of
// issuing a second one.
func (c *Client) CreateRefund(ctx context.Context, gatewayPaymentID string, amount int64, idempotencyKey string) (*Refund, error) {
	body := map[string]interface{}{
		"paymentId": gatewayPaymentID,
		"amount":    amount,
	}
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	var refund Refund
	if err := c.post(ctx, "refunds", "refund", body, headers, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// GetRefund polls the state of a previously created refund.
func (c *Client) GetRefund(ctx context.Context, refundID string) (*Refund, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/refunds/"+refundID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build refund lookup request: %w", err)
	}
	var refund Refund
	if err := c.do(req, "refund lookup", &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *Client) post(ctx context.Context, path, op string, body map[string]interface{}, headers map[string]string, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/"+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out interface{}) error {
	req.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &Error{Op: op, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: err.Error(), Retryable: true}
	}
	if resp.StatusCode >= 400 {
		return &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    string(raw),
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Op: op, StatusCode: resp.StatusCode, Message: "malformed gateway response: " + err.Error()}
		}
	}
	return nil
}
