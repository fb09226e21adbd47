package notify

import "time"

// Config controls the async delivery pipeline.
type Config struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	DedupWindow   time.Duration
	// Default chat for fired-schedule reminders.
	ChatID   int64
	ThreadID int
}

type HistoryItem struct {
	At   time.Time
	Text string
}

// DeliveryEvent is the bus payload for delivery lifecycle events.
type DeliveryEvent struct {
	ChatID int64     `json:"chat_id"`
	Key    string    `json:"key"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}
