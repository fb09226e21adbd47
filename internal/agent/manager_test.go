package agent

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"schedbot/internal/extract"
	"schedbot/internal/storage"
	"schedbot/pkg/logx"
)

func TestManagerHydratesFromStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := storage.Open(storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "agent.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer db.Close()

	ext := newFakeExtractor()
	ext.cls = extract.Classification{Action: extract.ActionAdd}
	ext.message = "stand up"
	ext.alarmType = extract.AlarmCron
	ext.cron = "0 * * * *"
	store := &fakeScheduleStore{}
	log := slog.New(slog.DiscardHandler)

	m1 := NewManager(ext, store, db, log, nil)
	out, err := m1.HandleQuery(ctx, "u1", "hourly stand up reminder")
	if err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}
	staged := out.(PendingCreated).Action

	// A fresh manager over the same database sees the staged action.
	m2 := NewManager(ext, store, db, log, nil)
	pending, err := m2.Pending(ctx, "u1")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != staged.ID {
		t.Fatalf("pending = %+v, want staged %q", pending, staged.ID)
	}
	if pending[0].Add == nil || pending[0].Add.Payload != "stand up" {
		t.Fatalf("hydrated spec = %+v", pending[0].Add)
	}

	res, err := m2.ResolveConfirmation(ctx, "u1", staged.ID, true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := res.(ScheduleCreated); !ok {
		t.Fatalf("got %T, want ScheduleCreated", res)
	}

	// Resolution removed the persisted mirror too.
	m3 := NewManager(ext, store, db, log, nil)
	pending, err = m3.Pending(ctx, "u1")
	if err != nil {
		t.Fatalf("Pending after resolve: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("resolved action still persisted: %+v", pending)
	}
}
