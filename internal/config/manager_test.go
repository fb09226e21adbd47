package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json", `{
		"telegram": {"token": "t", "owner_user_ids": [42], "poll_timeout": "10s"},
		"logging": {"level": "debug", "console": true, "file": {"enabled": false}, "telegram": {"enabled": false}},
		"llm": {"model": "googleai/gemini-2.0-flash", "rate_per_sec": 2},
		"scheduler": {"timezone": "Asia/Jakarta"},
		"storage": {"driver": "sqlite", "path": "bot.db"}
	}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "t" || len(cfg.Telegram.OwnerUserIDs) != 1 || cfg.Telegram.OwnerUserIDs[0] != 42 {
		t.Fatalf("telegram section mismatch: %+v", cfg.Telegram)
	}
	if cfg.LLM.Model != "googleai/gemini-2.0-flash" || cfg.LLM.RatePerSec != 2 {
		t.Fatalf("llm section mismatch: %+v", cfg.LLM)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage section mismatch: %+v", cfg.Storage)
	}
	if cfg.API != nil || cfg.Notify != nil || cfg.Bot != nil {
		t.Fatalf("omitted sections should stay nil")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", `
telegram:
  token: t
  poll_timeout: 15s
logging:
  level: info
  console: true
  file:
    enabled: false
  telegram:
    enabled: false
llm:
  model: googleai/gemini-2.0-flash
scheduler:
  timezone: UTC
api:
  enabled: true
  addr: 127.0.0.1:9090
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.PollTimeout != "15s" {
		t.Fatalf("poll_timeout = %q", cfg.Telegram.PollTimeout)
	}
	if cfg.API == nil || !cfg.API.Enabled || cfg.API.Addr != "127.0.0.1:9090" {
		t.Fatalf("api section mismatch: %+v", cfg.API)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json", `{"telegram": {"token": "t", "tokenn": "typo"}, "logging": {}, "llm": {}, "scheduler": {}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json", `{"telegram": {}, "logging": {}, "llm": {}, "scheduler": {}}{"extra": true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()

	m := NewManager("unused")
	sub := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-sub:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("expected delivery")
	}

	// full buffer: oldest is dropped, newest wins
	first, second := &Config{}, &Config{Scheduler: SchedulerConfig{Timezone: "UTC"}}
	m.publish(first)
	m.publish(second)
	if got := <-sub; got != second {
		t.Fatal("expected newest config after overflow")
	}

	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel after Unsubscribe")
	}
}

func TestWatchReloadsAndValidates(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json", `{"telegram": {"token": "t"}, "logging": {}, "llm": {}, "scheduler": {}}`)

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		if cfg.Scheduler.Timezone == "bad" {
			return errors.New("bad timezone")
		}
		return nil
	})
	sub := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// give the watcher a moment to arm before writing
	time.Sleep(200 * time.Millisecond)

	// rejected update must not be committed or published
	if err := os.WriteFile(path, []byte(`{"telegram": {"token": "t"}, "logging": {}, "llm": {}, "scheduler": {"timezone": "bad"}}`), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case cfg := <-sub:
		t.Fatalf("rejected config was published: %+v", cfg)
	case <-time.After(700 * time.Millisecond):
	}
	if got := m.Get().Scheduler.Timezone; got == "bad" {
		t.Fatal("rejected config was committed")
	}

	// valid update flows through
	if err := os.WriteFile(path, []byte(`{"telegram": {"token": "t"}, "logging": {}, "llm": {}, "scheduler": {"timezone": "UTC"}}`), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case cfg := <-sub:
		if cfg.Scheduler.Timezone != "UTC" {
			t.Fatalf("timezone = %q", cfg.Scheduler.Timezone)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{LLM: LLMConfig{Model: "a"}}
	newCfg := &Config{
		LLM:     LLMConfig{Model: "b"},
		Storage: &StorageConfig{Driver: "sqlite"},
	}
	changed, _ := SummarizeChange(oldCfg, newCfg)
	want := map[string]bool{"llm": true, "storage": true}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v", changed)
	}
	for _, c := range changed {
		if !want[c] {
			t.Fatalf("unexpected section %q in %v", c, changed)
		}
	}

	if changed, _ := SummarizeChange(newCfg, newCfg); len(changed) != 0 {
		t.Fatalf("no-op diff reported %v", changed)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("x", " 10s "); err != nil || d != 10*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative accepted")
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatal("garbage accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", 3*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("default: got %v, %v", d, err)
	}
}
