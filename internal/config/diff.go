package config

import (
	"log/slog"
	"reflect"
	"strings"
)

// SummarizeChange returns a compact list of changed sections plus structured
// attrs safe for logging (secrets like tokens and API keys are never
// included, only whether they are set).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []slog.Attr) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]slog.Attr, 0, 16)

	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			slog.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
			slog.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			slog.String("logging.level", newCfg.Logging.Level),
			slog.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			slog.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.LLM != newCfg.LLM {
		changed = append(changed, "llm")
		attrs = append(attrs,
			slog.String("llm.model", strings.TrimSpace(newCfg.LLM.Model)),
			slog.Bool("llm.api_key_set", strings.TrimSpace(newCfg.LLM.APIKey) != ""),
			slog.Int("llm.rate_per_sec", newCfg.LLM.RatePerSec),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs, slog.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)))
	}

	if !reflect.DeepEqual(oldCfg.Bot, newCfg.Bot) {
		changed = append(changed, "bot")
	}

	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
	}

	if !apiEqualRedacted(oldCfg.API, newCfg.API) {
		changed = append(changed, "api")
		if newCfg.API != nil {
			attrs = append(attrs,
				slog.Bool("api.enabled", newCfg.API.Enabled),
				slog.String("api.addr", strings.TrimSpace(newCfg.API.Addr)),
				slog.Bool("api.token_set", strings.TrimSpace(newCfg.API.Token) != ""),
			)
		}
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		if newCfg.Storage != nil {
			attrs = append(attrs,
				slog.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			)
		}
	}

	return changed, attrs
}

// apiEqualRedacted compares API sections with the token reduced to
// set/unset, so the summary never depends on the secret value itself.
func apiEqualRedacted(a, b *APIConfig) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	ac, bc := *a, *b
	ac.Token = boolMark(strings.TrimSpace(a.Token) != "")
	bc.Token = boolMark(strings.TrimSpace(b.Token) != "")
	return ac == bc
}

func boolMark(set bool) string {
	if set {
		return "set"
	}
	return ""
}
