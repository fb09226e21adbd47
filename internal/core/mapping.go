package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"schedbot/internal/api"
	"schedbot/internal/bot"
	"schedbot/internal/config"
	"schedbot/internal/extract"
	"schedbot/internal/logging"
	"schedbot/internal/notify"
	"schedbot/internal/schedule"
	"schedbot/internal/storage"
)

// The mapping helpers translate the file-level config (duration strings,
// chat ids as strings) into the typed Config each service takes. They are
// also the validation surface: a config that maps cleanly is applyable.

func buildLoggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logging.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logging.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func buildExtractConfig(cfg *config.Config) extract.Config {
	return extract.Config{
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		RatePerSec: cfg.LLM.RatePerSec,
	}
}

func buildScheduleConfig(cfg *config.Config) (schedule.Config, error) {
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return schedule.Config{}, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return schedule.Config{Timezone: cfg.Scheduler.Timezone}, nil
}

func buildNotifyConfig(cfg *config.Config) (notify.Config, error) {
	n := cfg.Notify
	if n == nil {
		n = &config.NotifyConfig{}
	}
	// Omitted section or omitted flag means enabled.
	enabled := n.Enabled == nil || *n.Enabled

	retryBase, err := config.ParseDurationField("notify.retry_base", n.RetryBase)
	if err != nil {
		return notify.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notify.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notify.Config{}, err
	}
	dedupWindow, err := config.ParseDurationField("notify.dedup_window", n.DedupWindow)
	if err != nil {
		return notify.Config{}, err
	}

	chatRaw := strings.TrimSpace(n.Chat)
	if chatRaw == "" {
		chatRaw = strings.TrimSpace(cfg.Telegram.GroupLog)
	}
	var chatID int64
	if chatRaw != "" {
		chatID, err = parseChatID("notify.chat", chatRaw)
		if err != nil {
			return notify.Config{}, err
		}
	}

	return notify.Config{
		Enabled:       enabled,
		Workers:       n.Workers,
		QueueSize:     n.QueueSize,
		RatePerSec:    n.RatePerSec,
		RetryMax:      n.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
		DedupWindow:   dedupWindow,
		ChatID:        chatID,
		ThreadID:      n.ThreadID,
	}, nil
}

func buildAPIConfig(cfg *config.Config) (api.Config, error) {
	a := cfg.API
	if a == nil {
		return api.Config{}, nil
	}
	readTimeout, err := config.ParseDurationField("api.read_timeout", a.ReadTimeout)
	if err != nil {
		return api.Config{}, err
	}
	writeTimeout, err := config.ParseDurationField("api.write_timeout", a.WriteTimeout)
	if err != nil {
		return api.Config{}, err
	}
	idleTimeout, err := config.ParseDurationField("api.idle_timeout", a.IdleTimeout)
	if err != nil {
		return api.Config{}, err
	}
	return api.Config{
		Enabled:       a.Enabled,
		Addr:          a.Addr,
		Token:         a.Token,
		AllowInsecure: a.AllowInsecure,
		ReadTimeout:   readTimeout,
		WriteTimeout:  writeTimeout,
		IdleTimeout:   idleTimeout,
	}, nil
}

func buildStorageConfig(cfg *config.Config) (storage.Config, error) {
	s := cfg.Storage
	if s == nil {
		return storage.Config{}, nil
	}
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "", "none", "sqlite":
	default:
		return storage.Config{}, fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", s.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      s.Driver,
		Path:        s.Path,
		BusyTimeout: busy,
	}, nil
}

func buildBotConfig(cfg *config.Config) (bot.Config, error) {
	b := cfg.Bot
	if b == nil {
		b = &config.BotConfig{}
	}
	handleTimeout, err := config.ParseDurationField("bot.handle_timeout", b.HandleTimeout)
	if err != nil {
		return bot.Config{}, err
	}
	return bot.Config{
		Owners:        cfg.Telegram.OwnerUserIDs,
		Workers:       b.Workers,
		HandleTimeout: handleTimeout,
	}, nil
}

func parseChatID(path, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid chat id %q: %w", path, raw, err)
	}
	return id, nil
}
