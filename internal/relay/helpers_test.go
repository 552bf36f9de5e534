package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"

	"github.com/flemzord/tgrelay/internal/dedup"
	"github.com/flemzord/tgrelay/internal/metrics"
	"github.com/flemzord/tgrelay/internal/replies"
	"github.com/flemzord/tgrelay/internal/telegram"
)

const (
	testOwner   = "1000"
	testOwnerID = int64(1000)
	testToken   = "123456:TEST-token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// apiCall is one request received by fakeAPI.
type apiCall struct {
	Token  string
	Method string
	Body   []byte
}

func (c apiCall) copyRequest(t *testing.T) telegram.CopyMessageRequest {
	t.Helper()
	var req telegram.CopyMessageRequest
	if err := json.Unmarshal(c.Body, &req); err != nil {
		t.Fatalf("decode copyMessage body: %v", err)
	}
	return req
}

func (c apiCall) sendRequest(t *testing.T) telegram.SendMessageRequest {
	t.Helper()
	var req telegram.SendMessageRequest
	if err := json.Unmarshal(c.Body, &req); err != nil {
		t.Fatalf("decode sendMessage body: %v", err)
	}
	return req
}

// fakeAPI is an httptest Bot API server that records calls. The first
// reject[method] calls of a method are answered with ok=false.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu     sync.Mutex
	calls  []apiCall
	reject map[string]int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, reject: make(map[string]int)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	dir, method := path.Split(r.URL.Path)
	token := path.Base(dir)
	if len(token) > 3 {
		token = token[3:] // strip "bot"
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Token: token, Method: method, Body: body})
	rejected := f.reject[method] > 0
	if rejected {
		f.reject[method]--
	}
	f.mu.Unlock()

	if rejected {
		writeJSON(f.t, w, map[string]any{
			"ok":          false,
			"error_code":  400,
			"description": "Bad Request: BUTTON_USER_INVALID",
		})
		return
	}

	switch method {
	case "copyMessage":
		writeJSON(f.t, w, telegram.APIResponse[telegram.MessageID]{OK: true, Result: telegram.MessageID{MessageID: 77}})
	default:
		writeJSON(f.t, w, telegram.APIResponse[telegram.Message]{OK: true, Result: telegram.Message{MessageID: 76}})
	}
}

func (f *fakeAPI) rejectNext(method string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject[method] = n
}

func (f *fakeAPI) Calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func (f *fakeAPI) factory() BotFactory {
	return func(token string) Bot {
		return telegram.NewClient(token, f.srv.URL)
	}
}

// stubBot returns fixed errors without any network.
type stubBot struct {
	mu      sync.Mutex
	sendErr error
	copyErr error
	sends   int
	copies  int
}

func (b *stubBot) SendMessage(context.Context, telegram.SendMessageRequest) (*telegram.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sends++
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	return &telegram.Message{}, nil
}

func (b *stubBot) CopyMessage(context.Context, telegram.CopyMessageRequest) (*telegram.MessageID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.copies++
	if b.copyErr != nil {
		return nil, b.copyErr
	}
	return &telegram.MessageID{}, nil
}

// failingStore is a dedup.Store whose every call fails.
type failingStore struct{ err error }

func (s failingStore) Seen(context.Context, string) (bool, error)     { return false, s.err }
func (s failingStore) MarkSeen(context.Context, string) (bool, error) { return false, s.err }
func (s failingStore) Forget(context.Context, string) error           { return s.err }
func (s failingStore) Prune(context.Context) (int, error)             { return 0, s.err }
func (s failingStore) Close() error                                   { return nil }

var _ dedup.Store = failingStore{}

func testTable() replies.Table {
	return replies.Table{
		OwnerHelp:    "owner-help",
		Welcome:      "welcome",
		DefaultText:  "default-text",
		DefaultMedia: "default-media",
		Keywords: []replies.Rule{
			{Triggers: []string{"hello"}, Reply: "greeting"},
		},
	}
}

func newTestRelay(bots BotFactory, store dedup.Store, m *metrics.Metrics) *Relay {
	return New(Options{
		Bots:    bots,
		Replies: replies.NewResolver(testTable()),
		Dedup:   store,
		Metrics: m,
		Logger:  discardLogger(),
	})
}

func userMessage(id int, chatID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		Message: &telegram.Message{
			MessageID: id,
			Chat:      telegram.Chat{ID: chatID, Type: "private", Username: "alice"},
			Text:      text,
		},
	}
}
