// Package mailer はResend HTTP APIを使った通知メール送信を提供する。
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultResendBaseURL はResend APIのベースURL。
const DefaultResendBaseURL = "https://api.resend.com"

// Message は送信する1通のメールを表す。
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// Sender はメール送信のインターフェース。
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// ResendClient はResendの /emails エンドポイントにメールを送信する。
type ResendClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewResendClient はResendClientを生成する。
// baseURLが空の場合はDefaultResendBaseURLを使用する。
func NewResendClient(apiKey, baseURL string, httpClient *http.Client) *ResendClient {
	if baseURL == "" {
		baseURL = DefaultResendBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ResendClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Send はメールを1通送信する。2xx以外のレスポンスはエラーとして返す。
func (c *ResendClient) Send(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	// レスポンスボディ（送信ID）は使用しない
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// compile-time interface check
var _ Sender = (*ResendClient)(nil)
