package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// sendTimeout bounds one webhook delivery end to end.
const sendTimeout = 10 * time.Second

// errBodyLimit caps how much of an error response body is carried into the
// returned error.
const errBodyLimit = 1024

func newWebhookClient() *http.Client {
	return &http.Client{Timeout: sendTimeout}
}

// postJSON delivers a JSON payload to a webhook endpoint. Any non-2xx status
// is an error carrying a truncated response body; Telegram answers 200 and
// Discord 204, both of which pass.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
