package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/tgrelay/internal/dedup"
	"github.com/flemzord/tgrelay/internal/metrics"
	"github.com/flemzord/tgrelay/internal/registration"
	"github.com/flemzord/tgrelay/internal/relay"
	"github.com/flemzord/tgrelay/internal/security"
	"github.com/flemzord/tgrelay/internal/telegram"
)

const (
	testSecret = "Abcdefgh12345678"
	testOwner  = "1000"
	testToken  = "123456:TEST-token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI is a Bot API server that records method names and bodies.
type fakeAPI struct {
	srv *httptest.Server

	mu      sync.Mutex
	methods []string
	bodies  [][]byte
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		method := path.Base(r.URL.Path)

		f.mu.Lock()
		f.methods = append(f.methods, method)
		f.bodies = append(f.bodies, body)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		var resp any
		switch method {
		case "setWebhook", "deleteWebhook":
			resp = map[string]any{"ok": true, "result": true}
		case "copyMessage":
			resp = map[string]any{"ok": true, "result": map[string]any{"message_id": 9}}
		default:
			resp = map[string]any{"ok": true, "result": map[string]any{"message_id": 8, "chat": map[string]any{"id": 1}}}
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) Methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func (f *fakeAPI) lastBody() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return nil
	}
	return f.bodies[len(f.bodies)-1]
}

// harness is a gateway wired to a real relay and registration manager
// that both talk to a fakeAPI.
type harness struct {
	api     *fakeAPI
	metrics *metrics.Metrics
	handler http.Handler

	mu     sync.Mutex
	events []security.AuditEvent
}

type harnessOption func(*Config, *Deps)

func withPrefix(p string) harnessOption {
	return func(c *Config, _ *Deps) { c.SetPrefix(p) }
}

func withSecret(s string) harnessOption {
	return func(c *Config, _ *Deps) { c.Secret = s }
}

func withPublicURL(u string) harnessOption {
	return func(c *Config, _ *Deps) { c.PublicURL = u }
}

func withMetricsDisabled() harnessOption {
	return func(c *Config, _ *Deps) {
		off := false
		c.Metrics.Enabled = &off
	}
}

func withRelay(h UpdateHandler) harnessOption {
	return func(_ *Config, d *Deps) { d.Relay = h }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{api: newFakeAPI(t), metrics: metrics.New()}

	audit := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) {
			h.mu.Lock()
			h.events = append(h.events, e)
			h.mu.Unlock()
		},
	})

	baseURL := h.api.srv.URL
	store := dedup.NewMemoryStore(time.Minute, 100)
	t.Cleanup(func() { _ = store.Close() })

	cfg := Config{Secret: testSecret}
	deps := Deps{
		Relay: relay.New(relay.Options{
			Bots:    func(token string) relay.Bot { return telegram.NewClient(token, baseURL) },
			Dedup:   store,
			Metrics: h.metrics,
			Logger:  discardLogger(),
		}),
		Registrar: registration.NewManager(
			func(token string) registration.Webhooks { return telegram.NewClient(token, baseURL) },
			audit, h.metrics, discardLogger(),
		),
		Metrics: h.metrics.Handler(),
		Audit:   audit,
		Logger:  discardLogger(),
		Version: "test",
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}

	h.handler = New(cfg, deps).Handler()
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) Events() []security.AuditEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]security.AuditEvent(nil), h.events...)
}

func webhookRequest(target, secret, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(secretHeader, secret)
	}
	return req
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) apiResult {
	t.Helper()
	var res apiResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return res
}

// funcHandler adapts a function to UpdateHandler.
type funcHandler func(ctx context.Context, owner, token string, update telegram.Update) (relay.Route, error)

func (f funcHandler) HandleUpdate(ctx context.Context, owner, token string, update telegram.Update) (relay.Route, error) {
	return f(ctx, owner, token, update)
}
