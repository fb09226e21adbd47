package core

import (
	"testing"
	"time"

	"schedbot/internal/config"
)

func TestBuildNotifyConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	n, err := buildNotifyConfig(cfg)
	if err != nil {
		t.Fatalf("buildNotifyConfig: %v", err)
	}
	if !n.Enabled {
		t.Fatal("omitted notify section should default to enabled")
	}
	if n.ChatID != 0 {
		t.Fatalf("ChatID = %d, want 0", n.ChatID)
	}
}

func TestBuildNotifyConfigChatFallback(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Telegram: config.TelegramConfig{GroupLog: "-1001234"},
	}
	n, err := buildNotifyConfig(cfg)
	if err != nil {
		t.Fatalf("buildNotifyConfig: %v", err)
	}
	if n.ChatID != -1001234 {
		t.Fatalf("ChatID = %d, want fallback to telegram.group_log", n.ChatID)
	}

	cfg.Notify = &config.NotifyConfig{Chat: "42", RetryBase: "250ms"}
	n, err = buildNotifyConfig(cfg)
	if err != nil {
		t.Fatalf("buildNotifyConfig: %v", err)
	}
	if n.ChatID != 42 || n.RetryBase != 250*time.Millisecond {
		t.Fatalf("got ChatID=%d RetryBase=%v", n.ChatID, n.RetryBase)
	}
}

func TestBuildNotifyConfigRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		n    config.NotifyConfig
	}{
		{"bad chat", config.NotifyConfig{Chat: "not-a-number"}},
		{"bad duration", config.NotifyConfig{DedupWindow: "soon"}},
		{"negative duration", config.NotifyConfig{RetryBase: "-1s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			n := tc.n
			if _, err := buildNotifyConfig(&config.Config{Notify: &n}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildStorageConfig(t *testing.T) {
	t.Parallel()

	if s, err := buildStorageConfig(&config.Config{}); err != nil || s.Driver != "" {
		t.Fatalf("nil section: got %+v, %v", s, err)
	}

	s, err := buildStorageConfig(&config.Config{Storage: &config.StorageConfig{
		Driver: "sqlite", Path: "bot.db", BusyTimeout: "5s",
	}})
	if err != nil {
		t.Fatalf("buildStorageConfig: %v", err)
	}
	if s.Driver != "sqlite" || s.BusyTimeout != 5*time.Second {
		t.Fatalf("got %+v", s)
	}

	if _, err := buildStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "postgres"}}); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestBuildScheduleConfigTimezone(t *testing.T) {
	t.Parallel()

	if _, err := buildScheduleConfig(&config.Config{Scheduler: config.SchedulerConfig{Timezone: "Asia/Jakarta"}}); err != nil {
		t.Fatalf("valid timezone rejected: %v", err)
	}
	if _, err := buildScheduleConfig(&config.Config{Scheduler: config.SchedulerConfig{Timezone: "Mars/Olympus"}}); err == nil {
		t.Fatal("invalid timezone accepted")
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	good := &config.Config{
		Telegram: config.TelegramConfig{PollTimeout: "10s"},
		API:      &config.APIConfig{Enabled: true, Addr: "127.0.0.1:8080", ReadTimeout: "5s"},
	}
	if err := validateConfig(good); err != nil {
		t.Fatalf("validateConfig: %v", err)
	}

	bad := &config.Config{Telegram: config.TelegramConfig{PollTimeout: "never"}}
	if err := validateConfig(bad); err == nil {
		t.Fatal("bad poll_timeout accepted")
	}

	bad = &config.Config{API: &config.APIConfig{ReadTimeout: "-1s"}}
	if err := validateConfig(bad); err == nil {
		t.Fatal("negative api timeout accepted")
	}
}
