package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultAPIURL is the public Bot API endpoint.
	DefaultAPIURL = "https://api.telegram.org"

	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
	tracerName       = "github.com/flemzord/tgrelay/internal/telegram"
)

// Observer is notified after every Bot API call. err is nil on success.
type Observer func(method string, err error)

// Client is a thin HTTP wrapper around the Telegram Bot API, scoped to a
// single bot token.
type Client struct {
	token    string
	baseURL  string
	http     *http.Client
	tracer   trace.Tracer
	observer Observer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Clients built for
// different tokens can share one *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTracer sets the tracer used for per-call client spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithObserver registers a callback invoked after every call.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a new Telegram Bot API client for token.
// An empty baseURL selects DefaultAPIURL.
func NewClient(token, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	c := &Client{
		token:   token,
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends a JSON POST request to the given Bot API method and decodes the
// response. It performs exactly one round trip; interpreting failures is
// left to the caller.
func do[T any](ctx context.Context, c *Client, method string, payload any) (_ *T, err error) {
	ctx, span := c.tracer.Start(ctx, "telegram."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("telegram.method", method)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if c.observer != nil {
			c.observer(method, err)
		}
	}()

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("telegram: marshal %s request: %w", method, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("telegram: create %s request: %w", method, stripURL(err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s request failed: %w", method, stripURL(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("telegram: read %s response: %w", method, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	var apiResp APIResponse[T]
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		// Proxies in front of the Bot API answer errors with HTML.
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{
				Method:      method,
				Code:        resp.StatusCode,
				Description: http.StatusText(resp.StatusCode),
			}
		}
		return nil, fmt.Errorf("telegram: decode %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if !apiResp.OK {
		apiErr := &APIError{
			Method:      method,
			Code:        apiResp.ErrorCode,
			Description: apiResp.Description,
		}
		if apiResp.Parameters != nil {
			apiErr.RetryAfter = apiResp.Parameters.RetryAfter
		}
		return nil, apiErr
	}

	return &apiResp.Result, nil
}

// stripURL drops the token-bearing URL from *url.Error values so it never
// ends up in error strings.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

// SetWebhookRequest is the request body for the setWebhook method.
type SetWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
	MaxConnections int      `json:"max_connections,omitempty"`
}

// SendMessageRequest is the request body for the sendMessage method.
type SendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

// CopyMessageRequest is the request body for the copyMessage method.
type CopyMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	FromChatID  int64                 `json:"from_chat_id"`
	MessageID   int                   `json:"message_id"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendMessage sends a text message to the specified chat.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	return do[Message](ctx, c, "sendMessage", req)
}

// CopyMessage copies an existing message into another chat, optionally
// attaching an inline keyboard.
func (c *Client) CopyMessage(ctx context.Context, req CopyMessageRequest) (*MessageID, error) {
	return do[MessageID](ctx, c, "copyMessage", req)
}

// SetWebhook configures the webhook URL for receiving updates.
func (c *Client) SetWebhook(ctx context.Context, req SetWebhookRequest) error {
	_, err := do[bool](ctx, c, "setWebhook", req)
	return err
}

// DeleteWebhook removes the current webhook integration.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := do[bool](ctx, c, "deleteWebhook", nil)
	return err
}
