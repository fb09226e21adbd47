package config

// Config is the whole bot configuration. It is decoded strictly: unknown
// fields are rejected so typos in a config file fail loudly instead of
// silently doing nothing.
//
// All duration-like fields are Go duration strings (e.g. "500ms", "10s").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	LLM       LLMConfig       `json:"llm"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Optional sections. A nil section means "use defaults".
	Bot     *BotConfig     `json:"bot,omitempty"`
	Notify  *NotifyConfig  `json:"notify,omitempty"`
	API     *APIConfig     `json:"api,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// OwnerUserIDs restricts who may talk to the bot. Empty allows everyone.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`

	// GroupLog is the chat id (as a string) that receives warn/error log
	// lines when logging.telegram is enabled.
	GroupLog string `json:"group_log,omitempty"`

	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string             `json:"level"`
	Console  bool               `json:"console"`
	File     LogFileConfig      `json:"file"`
	Telegram LogTelegramConfig  `json:"telegram"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type LogTelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// LLMConfig configures the extraction model.
type LLMConfig struct {
	// Model is the fully-qualified model name, e.g. "googleai/gemini-2.0-flash".
	Model string `json:"model,omitempty"`

	// APIKey for the model provider. Falls back to GEMINI_API_KEY when empty.
	APIKey string `json:"api_key,omitempty"`

	// RatePerSec bounds outgoing model calls.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type SchedulerConfig struct {
	// Timezone is the IANA zone cron expressions evaluate in, e.g. "Asia/Jakarta".
	Timezone string `json:"timezone,omitempty"`
}

type BotConfig struct {
	Workers       int    `json:"workers,omitempty"`
	HandleTimeout string `json:"handle_timeout,omitempty"`
}

// NotifyConfig controls the async reminder delivery pipeline.
// If the whole section is omitted the deliverer defaults to enabled.
type NotifyConfig struct {
	Enabled *bool `json:"enabled,omitempty"`

	// Chat is the chat id (as a string) fired reminders are sent to.
	// Empty falls back to telegram.group_log.
	Chat     string `json:"chat,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`

	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	DedupWindow   string `json:"dedup_window,omitempty"`
}

// APIConfig controls the local HTTP surface (query/confirmations/schedules).
type APIConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type StorageConfig struct {
	// Driver is "sqlite" or "none"/empty (in-memory only).
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}
