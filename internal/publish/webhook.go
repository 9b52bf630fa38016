package publish

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Webhook posts payloads to an HTTP endpoint, optionally signing each request
// with an HMAC-SHA256 timestamp signature in the query string.
type Webhook struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

type webhookResponse struct {
	DeliveryID string `json:"delivery_id"`
	Error      string `json:"error"`
}

func NewWebhook(endpoint, secret string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		endpoint: endpoint,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (w *Webhook) Send(ctx context.Context, topic string, payload []byte) (string, error) {
	if w.endpoint == "" {
		return "", fmt.Errorf("webhook endpoint is empty")
	}

	endpoint, err := w.signedURL(topic)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("webhook status %d", resp.StatusCode)
	}

	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.DeliveryID == "" {
		// The sink is not required to return a delivery id.
		return uuid.NewString(), nil
	}
	if out.Error != "" {
		return "", fmt.Errorf("webhook error: %s", out.Error)
	}
	return out.DeliveryID, nil
}

func (w *Webhook) signedURL(topic string) (string, error) {
	u, err := url.Parse(w.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid webhook url: %w", err)
	}
	q := u.Query()
	q.Set("topic", topic)
	if w.secret != "" {
		ts := time.Now().UnixMilli()
		q.Set("timestamp", fmt.Sprintf("%d", ts))
		q.Set("sign", sign(fmt.Sprintf("%d\n%s", ts, w.secret), w.secret))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sign(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
