package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/tgrelay/internal/dedup"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearRelayEnv makes sure host variables do not leak into a test.
func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvPrefix, EnvSecretToken, EnvPort, EnvPublicURL} {
		if v, ok := os.LookupEnv(name); ok {
			t.Setenv(name, v) // restores on cleanup
			_ = os.Unsetenv(name)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearRelayEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.RoutePrefix() != "telegram-bot" {
		t.Errorf("prefix = %q, want telegram-bot", cfg.Server.RoutePrefix())
	}
	if cfg.Server.Bind != "127.0.0.1:8080" {
		t.Errorf("bind = %q", cfg.Server.Bind)
	}
	if cfg.Telegram.APIURL != "https://api.telegram.org" || cfg.Telegram.Timeout != 10*time.Second {
		t.Errorf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Dedup.Backend != dedup.BackendMemory {
		t.Errorf("dedup backend = %q", cfg.Dedup.Backend)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileWithEnvExpansion(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("TGRELAY_TEST_SECRET", "Abcdefgh12345678")

	path := writeFile(t, "tgrelay.yaml", `
version: "1"
server:
  bind: 0.0.0.0:9000
  prefix: relay
  secret: ${TGRELAY_TEST_SECRET}
  public_url: ${TGRELAY_TEST_URL:-https://relay.example.com}
dedup:
  backend: sqlite
  path: /tmp/dedup.db
  ttl: 30m
replies:
  welcome: hi!
  keywords:
    - triggers: [ping]
      reply: pong
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Secret != "Abcdefgh12345678" {
		t.Errorf("secret = %q", cfg.Server.Secret)
	}
	if cfg.Server.PublicURL != "https://relay.example.com" {
		t.Errorf("public_url = %q", cfg.Server.PublicURL)
	}
	if cfg.Server.RoutePrefix() != "relay" {
		t.Errorf("prefix = %q", cfg.Server.RoutePrefix())
	}
	if cfg.Dedup.TTL != 30*time.Minute || cfg.Dedup.Backend != dedup.BackendSQLite {
		t.Errorf("dedup = %+v", cfg.Dedup)
	}
	if len(cfg.Replies.Keywords) != 1 || cfg.Replies.Keywords[0].Reply != "pong" {
		t.Errorf("keywords = %+v", cfg.Replies.Keywords)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	clearRelayEnv(t)
	path := writeFile(t, "bad.yaml", "server:\n  secret: ${TGRELAY_TEST_DEFINITELY_UNSET}\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "TGRELAY_TEST_DEFINITELY_UNSET") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearRelayEnv(t)
	path := writeFile(t, "bad.yaml", "server: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv(EnvPrefix, "")
	t.Setenv(EnvSecretToken, "FromEnv123456789")
	t.Setenv(EnvPort, "3000")
	t.Setenv(EnvPublicURL, "https://env.example.com")

	path := writeFile(t, "cfg.yaml", "server:\n  prefix: from-file\n  secret: FromFile12345678\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.RoutePrefix() != "" {
		t.Errorf("empty PREFIX should mount at root, got %q", cfg.Server.RoutePrefix())
	}
	if cfg.Server.Secret != "FromEnv123456789" {
		t.Errorf("secret = %q", cfg.Server.Secret)
	}
	if cfg.Server.Bind != ":3000" {
		t.Errorf("bind = %q, want :3000", cfg.Server.Bind)
	}
	if cfg.Server.PublicURL != "https://env.example.com" {
		t.Errorf("public_url = %q", cfg.Server.PublicURL)
	}
}

func TestLoad_PortKeepsConfiguredHost(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv(EnvPort, "3001")

	path := writeFile(t, "cfg.yaml", "server:\n  bind: 10.0.0.1:8080\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Bind != "10.0.0.1:3001" {
		t.Errorf("bind = %q", cfg.Server.Bind)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearRelayEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SECRET_TOKEN=DotEnv1234567890\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv(EnvSecretToken) })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(EnvSecretToken); got != "DotEnv1234567890" {
		t.Errorf("SECRET_TOKEN = %q", got)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TGRELAY_TEST_A", "alpha")

	got, err := expandEnv([]byte("a: ${TGRELAY_TEST_A}\nb: ${TGRELAY_TEST_B:-beta}\nc: ${TGRELAY_TEST_C:-}"))
	if err != nil {
		t.Fatal(err)
	}
	want := "a: alpha\nb: beta\nc: "
	if string(got) != want {
		t.Errorf("expandEnv = %q, want %q", got, want)
	}
}
