package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, "{}\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Store.DataRoot != DefaultDataRoot {
		t.Errorf("data_root: got %q, want %q", cfg.Store.DataRoot, DefaultDataRoot)
	}
	if cfg.Store.Retry.Attempts != 3 || cfg.Store.Retry.Delay != 100*time.Millisecond {
		t.Errorf("retry: got %+v, want 3 attempts / 100ms", cfg.Store.Retry)
	}
	if want := filepath.Join(DefaultDataRoot, "queue"); cfg.Queue.Dir != want {
		t.Errorf("queue.dir: got %q, want %q", cfg.Queue.Dir, want)
	}
	if cfg.Queue.TargetCollection != "reports" {
		t.Errorf("queue.target_collection: got %q, want reports", cfg.Queue.TargetCollection)
	}
	if cfg.Queue.EmptyGrace != DefaultEmptyGrace {
		t.Errorf("queue.empty_grace: got %v, want %v", cfg.Queue.EmptyGrace, DefaultEmptyGrace)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("cache.ttl: got %v, want 5m", cfg.Cache.TTL)
	}
	if cfg.Cache.Collections["settings"] != 10*time.Minute {
		t.Errorf("cache.collections.settings: got %v, want 10m", cfg.Cache.Collections["settings"])
	}
	if cfg.Ledger.Path != "" {
		t.Errorf("ledger.path: got %q, want empty", cfg.Ledger.Path)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  status_interval: 2s
  auth:
    mode: apikey
    key_env: MY_KEY
    header: x-vault-key
store:
  data_root: /srv/vault
  strict: true
  retry:
    attempts: 5
    delay: 50ms
queue:
  target_collection: submissions
  rescan_interval: 1m
  empty_grace: 5m
  dead_letter_dir: /srv/vault/dead
  exclusive: true
cache:
  ttl: 1m
  collections:
    schools: 30s
ledger:
  path: /srv/vault/ledger.db
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Server.HTTPPort)
	}
	if cfg.Server.Auth.EffectiveHeader() != "x-vault-key" {
		t.Errorf("header: got %q, want x-vault-key", cfg.Server.Auth.EffectiveHeader())
	}
	if !cfg.Store.Strict || cfg.Store.Retry.Attempts != 5 || cfg.Store.Retry.Delay != 50*time.Millisecond {
		t.Errorf("store: got %+v", cfg.Store)
	}
	if want := filepath.Join("/srv/vault", "queue"); cfg.Queue.Dir != want {
		t.Errorf("queue.dir: got %q, want %q", cfg.Queue.Dir, want)
	}
	if cfg.Queue.TargetCollection != "submissions" || !cfg.Queue.Exclusive || cfg.Queue.EmptyGrace != 5*time.Minute {
		t.Errorf("queue: got %+v", cfg.Queue)
	}
	if cfg.Cache.Collections["schools"] != 30*time.Second {
		t.Errorf("cache.collections.schools: got %v, want 30s", cfg.Cache.Collections["schools"])
	}
	if cfg.Cache.Collections["settings"] != DefaultSettingsTTL {
		t.Errorf("default settings override lost: got %v", cfg.Cache.Collections["settings"])
	}
	if cfg.Ledger.Path != "/srv/vault/ledger.db" {
		t.Errorf("ledger.path: got %q", cfg.Ledger.Path)
	}
}

func TestLoad_ExplicitQueueDir(t *testing.T) {
	p := writeConfig(t, `queue:
  dir: /var/spool/reports
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.Dir != "/var/spool/reports" {
		t.Errorf("queue.dir: got %q", cfg.Queue.Dir)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", h)
	}
}

func TestLoad_KeyEnvResolution(t *testing.T) {
	t.Setenv("TEST_VAULT_KEY", "supersecret")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_VAULT_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown auth mode", "server:\n  auth:\n    mode: oauth2\n"},
		{"apikey without env", "server:\n  auth:\n    mode: apikey\n"},
		{"port out of range", "server:\n  http_port: 70000\n"},
		{"zero attempts", "store:\n  retry:\n    attempts: 0\n"},
		{"negative delay", "store:\n  retry:\n    delay: -1s\n"},
		{"empty target", "queue:\n  target_collection: \"\"\n"},
		{"zero empty grace", "queue:\n  empty_grace: 0s\n"},
		{"zero cache ttl", "cache:\n  ttl: 0s\n"},
		{"zero override", "cache:\n  collections:\n    schools: 0s\n"},
		{"bad yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg == nil || cfg.Queue.TargetCollection != DefaultTargetCollection {
		t.Fatalf("Default() = %+v", cfg)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "cache:\n  ttl: 1m\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, p, func(c *Config) { got <- c }) }()

	// Give the watcher time to register before writing.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := os.WriteFile(p, []byte("cache:\n  ttl: 2m\n"), 0o600); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		select {
		case cfg := <-got:
			if cfg.Cache.TTL != 2*time.Minute {
				t.Errorf("reloaded cache.ttl: got %v, want 2m", cfg.Cache.TTL)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned %v", err)
			}
			return
		case <-deadline:
			t.Fatal("no reload within 5s")
		case <-tick.C:
		}
	}
}

func TestWatch_MissingFile(t *testing.T) {
	if err := Watch(context.Background(), "/nonexistent/config.yaml", func(*Config) {}); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
