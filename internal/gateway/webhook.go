package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/tgrelay/internal/registration"
	"github.com/flemzord/tgrelay/internal/security"
	"github.com/flemzord/tgrelay/internal/telegram"
)

// secretHeader is set by Telegram on every webhook delivery.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// apiResult is the JSON body of install and uninstall responses.
type apiResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleWebhook authenticates a Telegram delivery and hands the update
// to the relay.
func (g *Gateway) handleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")
		token := chi.URLParam(r, "token")

		if !constantTimeEqual(r.Header.Get(secretHeader), g.config.Secret) {
			g.logger.Warn("webhook rejected: bad secret", "bot_id", telegram.BotID(token))
			g.audit.Log(security.AuditEvent{
				Type:      security.EventAuthFailure,
				RequestID: RequestIDFrom(r.Context()),
				BotID:     telegram.BotID(token),
				OwnerID:   owner,
				Detail:    "secret header mismatch",
			})
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var update telegram.Update
		if err := security.DecodeJSONBody(r.Body, g.config.MaxBodyBytes, 0, &update); err != nil {
			g.logger.Warn("webhook rejected: bad body", "bot_id", telegram.BotID(token), "error", err)
			status := http.StatusBadRequest
			if errors.Is(err, security.ErrBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, http.StatusText(status), status)
			return
		}

		route, err := g.relay.HandleUpdate(r.Context(), owner, token, update)
		if err != nil {
			g.logger.Error("webhook handling failed",
				"bot_id", telegram.BotID(token),
				"update_id", update.UpdateID,
				"route", route,
				"error", err,
			)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	}
}

func (g *Gateway) handleInstall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := g.registrar.Install(r.Context(), registration.InstallRequest{
			BaseURL:   g.baseURL(r),
			Prefix:    g.config.RoutePrefix(),
			OwnerID:   chi.URLParam(r, "owner"),
			BotToken:  chi.URLParam(r, "token"),
			Secret:    g.config.Secret,
			RequestID: RequestIDFrom(r.Context()),
		})
		writeRegistration(w, msg, err)
	}
}

func (g *Gateway) handleUninstall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := g.registrar.Uninstall(r.Context(), chi.URLParam(r, "token"), g.config.Secret, RequestIDFrom(r.Context()))
		writeRegistration(w, msg, err)
	}
}

func writeRegistration(w http.ResponseWriter, msg string, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, apiResult{Success: true, Message: msg})
	case registration.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, apiResult{Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, apiResult{Message: err.Error()})
	}
}

// baseURL returns the scheme and host webhook URLs are built from.
func (g *Gateway) baseURL(r *http.Request) string {
	if g.config.PublicURL != "" {
		return strings.TrimRight(g.config.PublicURL, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstValue(r.Header.Get("X-Forwarded-Proto")); proto == "http" || proto == "https" {
		scheme = proto
	}

	host := r.Host
	if fwd := firstValue(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}

// firstValue returns the first entry of a comma-separated header.
func firstValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.ToLower(strings.TrimSpace(first))
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
