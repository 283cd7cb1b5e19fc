package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// WebhookClient posts codes to a merchant-operated endpoint that forwards them to the payer (SMS, email, push).
type WebhookClient struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

// NewWebhookClient returns a client that posts to url, authenticating with token when non-empty.
func NewWebhookClient(url, token string) *WebhookClient {
	return &WebhookClient{
		URL:        url,
		Token:      token,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type webhookPayload struct {
	MerchantID string `json:"merchantId,omitempty"`
	OrderID    string `json:"orderId"`
	Code       string `json:"code"`
	ExpiresAt  string `json:"expiresAt"`
}

// Deliver posts the code as JSON. Non-2xx responses are errors. Does not log the code.
func (c *WebhookClient) Deliver(ctx context.Context, msg Message) error {
	if c.URL == "" {
		return fmt.Errorf("delivery: webhook URL not configured")
	}
	raw, err := json.Marshal(webhookPayload{
		MerchantID: msg.MerchantID,
		OrderID:    msg.OrderID,
		Code:       msg.Code,
		ExpiresAt:  msg.ExpiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delivery: webhook failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
