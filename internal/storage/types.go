package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled and the agent runs
// purely in-memory.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// ScheduleRecord is a persisted schedule definition.
// Data is the schedule package's JSON snapshot; this layer never inspects it.
type ScheduleRecord struct {
	ID        string
	Data      []byte
	CreatedAt time.Time
}

// ConfirmationRecord is a persisted staged confirmation.
// Insertion order per actor is preserved and is the only ordering guarantee.
type ConfirmationRecord struct {
	ActorID   string
	ID        string
	Data      []byte
	CreatedAt time.Time
}
