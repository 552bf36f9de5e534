// Package registration installs and removes the Telegram webhook that
// points a bot at this relay.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/flemzord/tgrelay/internal/metrics"
	"github.com/flemzord/tgrelay/internal/security"
	"github.com/flemzord/tgrelay/internal/telegram"
)

// Success messages returned to the caller.
const (
	MsgInstalled   = "Webhook successfully installed."
	MsgUninstalled = "Webhook successfully uninstalled."
)

// Actions, used in error messages, metrics and the audit log.
const (
	ActionInstall   = "install"
	ActionUninstall = "uninstall"
)

// allowedUpdates restricts delivery to message updates.
var allowedUpdates = []string{"message"}

// Validation errors. Both are client errors.
var (
	ErrInvalidSecret = errors.New("Secret token must be at least 16 characters and contain uppercase letters, lowercase letters, and numbers.") //nolint:staticcheck // user-facing text
	ErrInvalidOwner  = errors.New("Owner id must be a positive integer.")                                                                       //nolint:staticcheck // user-facing text
)

// RemoteError reports that Telegram rejected the registration call.
type RemoteError struct {
	Action      string
	Description string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("Failed to %s webhook: %s", e.Action, e.Description)
}

// CallError reports that the registration call could not be completed.
type CallError struct {
	Action string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("Error %sing webhook: %v", e.Action, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// ValidateSecret reports whether s is acceptable as a webhook secret:
// longer than 15 bytes with at least one ASCII upper-case letter, one
// lower-case letter and one digit.
func ValidateSecret(s string) bool {
	if len(s) <= 15 {
		return false
	}
	var upper, lower, digit bool
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		}
	}
	return upper && lower && digit
}

// WebhookURL builds <base>/<prefix>/webhook/<owner>/<token>. An empty
// prefix adds no segment.
func WebhookURL(baseURL, prefix, owner, token string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		b.WriteString("/" + prefix)
	}
	b.WriteString("/webhook/" + owner + "/" + token)
	return b.String()
}

// Webhooks is the subset of the Bot API used for registration.
type Webhooks interface {
	SetWebhook(ctx context.Context, req telegram.SetWebhookRequest) error
	DeleteWebhook(ctx context.Context) error
}

// WebhooksFactory returns a Webhooks client scoped to token.
type WebhooksFactory func(token string) Webhooks

// InstallRequest carries everything needed to register a webhook.
type InstallRequest struct {
	BaseURL  string
	Prefix   string
	OwnerID  string
	BotToken string
	Secret   string
	// RequestID is copied to the audit log.
	RequestID string
}

// Manager performs install and uninstall against Telegram.
type Manager struct {
	clients WebhooksFactory
	audit   *security.AuditLogger
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewManager creates a Manager. audit and m may be nil.
func NewManager(clients WebhooksFactory, audit *security.AuditLogger, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{clients: clients, audit: audit, metrics: m, logger: logger}
}

// Install validates the request and points the bot's webhook at this
// relay. On success it returns MsgInstalled.
func (m *Manager) Install(ctx context.Context, req InstallRequest) (string, error) {
	botID := telegram.BotID(req.BotToken)

	err := m.install(ctx, req)
	m.record(ActionInstall, req.RequestID, botID, req.OwnerID, err)
	if err != nil {
		return "", err
	}
	return MsgInstalled, nil
}

func (m *Manager) install(ctx context.Context, req InstallRequest) error {
	if !ValidateSecret(req.Secret) {
		return ErrInvalidSecret
	}
	if id, err := strconv.ParseInt(req.OwnerID, 10, 64); err != nil || id <= 0 {
		return ErrInvalidOwner
	}

	err := m.clients(req.BotToken).SetWebhook(ctx, telegram.SetWebhookRequest{
		URL:            WebhookURL(req.BaseURL, req.Prefix, req.OwnerID, req.BotToken),
		SecretToken:    req.Secret,
		AllowedUpdates: allowedUpdates,
	})
	return classify(ActionInstall, err)
}

// Uninstall validates the secret and removes the bot's webhook.
// On success it returns MsgUninstalled.
func (m *Manager) Uninstall(ctx context.Context, botToken, secret, requestID string) (string, error) {
	var err error
	if !ValidateSecret(secret) {
		err = ErrInvalidSecret
	} else {
		err = classify(ActionUninstall, m.clients(botToken).DeleteWebhook(ctx))
	}

	m.record(ActionUninstall, requestID, telegram.BotID(botToken), "", err)
	if err != nil {
		return "", err
	}
	return MsgUninstalled, nil
}

func classify(action string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{Action: action, Description: apiErr.Description}
	}
	return &CallError{Action: action, Err: err}
}

func (m *Manager) record(action, requestID, botID, ownerID string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidSecret), errors.Is(err, ErrInvalidOwner):
		result = "invalid"
	default:
		var remote *RemoteError
		if errors.As(err, &remote) {
			result = "rejected"
		} else {
			result = "error"
		}
	}
	m.metrics.RegistrationsTotal.WithLabelValues(action, result).Inc()

	eventType := security.EventInstall
	if action == ActionUninstall {
		eventType = security.EventUninstall
	}
	event := security.AuditEvent{
		Type:      eventType,
		RequestID: requestID,
		BotID:     botID,
		OwnerID:   ownerID,
		Success:   err == nil,
	}
	if err != nil {
		event.Detail = err.Error()
	}
	m.audit.Log(event)

	if err != nil {
		m.logger.Warn("webhook "+action+" failed", "bot_id", botID, "result", result, "error", err)
		return
	}
	m.logger.Info("webhook "+action+"ed", "bot_id", botID, "owner_id", ownerID)
}

// IsClientError reports whether err should be answered with 400.
func IsClientError(err error) bool {
	var remote *RemoteError
	return errors.Is(err, ErrInvalidSecret) || errors.Is(err, ErrInvalidOwner) || errors.As(err, &remote)
}
