package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/guonaihong/gout"
	"github.com/guonaihong/gout/filter"
	"go.uber.org/zap"
)

// Client is the outbound surface of the external gateway: session listing
// for reconciliation/status sync, and the send endpoints. Send results are
// reported synchronously; retry of delivery itself is the gateway's job.
type Client interface {
	ListSessions(ctx context.Context) ([]Session, error)
	SendText(ctx context.Context, sessionID, toPhone, text string) (string, error)
	SendImage(ctx context.Context, sessionID, toPhone, url, caption string) (string, error)
}

// HTTPClient talks to the gateway's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewHTTPClient creates a gateway client. baseURL has no trailing slash.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: 10 * time.Second,
	}
}

func (c *HTTPClient) headers() gout.H {
	h := gout.H{"Content-Type": "application/json"}
	if c.apiKey != "" {
		h["Authorization"] = "Bearer " + c.apiKey
	}
	return h
}

// ListSessions fetches the gateway's live session listing. Safe to retry,
// so transient failures are retried with backoff.
func (c *HTTPClient) ListSessions(ctx context.Context) ([]Session, error) {
	var rsp struct {
		Success  bool      `json:"success"`
		Sessions []Session `json:"sessions"`
	}
	code := 0

	err := gout.GET(c.baseURL+"/api/sessions").
		WithContext(ctx).
		SetHeader(c.headers()).
		SetTimeout(c.timeout).
		BindJSON(&rsp).
		Code(&code).
		F().Retry().Attempt(3).
		WaitTime(300 * time.Millisecond).
		MaxWaitTime(2 * time.Second).
		Func(func(gc *gout.Context) error {
			if gc.Error != nil || gc.Code >= 500 {
				return filter.ErrRetry
			}
			return nil
		}).Do()
	if err != nil {
		return nil, fmt.Errorf("gateway list sessions: %w", err)
	}
	if code != 200 {
		return nil, fmt.Errorf("gateway list sessions: status %d", code)
	}
	return rsp.Sessions, nil
}

type sendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// SendText delivers a text message through the given session. Returns the
// gateway's message id. Not retried here: sends are not idempotent.
func (c *HTTPClient) SendText(ctx context.Context, sessionID, toPhone, text string) (string, error) {
	var rsp sendResponse
	code := 0

	err := gout.POST(fmt.Sprintf("%s/api/sessions/%s/send-message", c.baseURL, sessionID)).
		WithContext(ctx).
		SetHeader(c.headers()).
		SetTimeout(c.timeout).
		SetJSON(gout.H{"phone": toPhone, "message": text}).
		BindJSON(&rsp).
		Code(&code).
		Do()
	if err != nil {
		return "", fmt.Errorf("gateway send text: %w", err)
	}
	if code != 200 || !rsp.Success {
		zap.L().Warn("gateway rejected send",
			zap.Int("status", code),
			zap.String("session_id", sessionID),
			zap.String("gateway_error", rsp.Error))
		return "", fmt.Errorf("gateway send text: status %d %s", code, rsp.Error)
	}
	return rsp.MessageID, nil
}

// SendImage delivers an image by URL with an optional caption.
func (c *HTTPClient) SendImage(ctx context.Context, sessionID, toPhone, url, caption string) (string, error) {
	var rsp sendResponse
	code := 0

	err := gout.POST(fmt.Sprintf("%s/api/sessions/%s/send-image", c.baseURL, sessionID)).
		WithContext(ctx).
		SetHeader(c.headers()).
		SetTimeout(c.timeout).
		SetJSON(gout.H{"phone": toPhone, "image": url, "caption": caption}).
		BindJSON(&rsp).
		Code(&code).
		Do()
	if err != nil {
		return "", fmt.Errorf("gateway send image: %w", err)
	}
	if code != 200 || !rsp.Success {
		return "", fmt.Errorf("gateway send image: status %d %s", code, rsp.Error)
	}
	return rsp.MessageID, nil
}
