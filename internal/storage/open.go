package storage

import (
	"context"
	"errors"
	"strings"

	logx "schedbot/pkg/logx"
)

// Store is the minimal persistence API used by the agent core and the
// schedule store.
type Store interface {
	PutSchedule(ctx context.Context, rec ScheduleRecord) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context) ([]ScheduleRecord, error)

	PutConfirmation(ctx context.Context, rec ConfirmationRecord) error
	DeleteConfirmation(ctx context.Context, actorID, id string) error
	ListConfirmations(ctx context.Context, actorID string) ([]ConfirmationRecord, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
