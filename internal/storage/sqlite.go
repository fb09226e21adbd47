package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "schedbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutSchedule(ctx context.Context, rec ScheduleRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(id, data, created_at) VALUES(?,?,?)
		 ON CONFLICT(id) DO UPDATE SET data=excluded.data`,
		rec.ID, rec.Data, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) DeleteSchedule(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) ListSchedules(ctx context.Context) ([]ScheduleRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at FROM schedules ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduleRecord
	for rows.Next() {
		var rec ScheduleRecord
		var at string
		if err := rows.Scan(&rec.ID, &rec.Data, &at); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PutConfirmation(ctx context.Context, rec ConfirmationRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO confirmations(actor_id, id, data, created_at) VALUES(?,?,?,?)
		 ON CONFLICT(actor_id, id) DO UPDATE SET data=excluded.data`,
		rec.ActorID, rec.ID, rec.Data, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) DeleteConfirmation(ctx context.Context, actorID, id string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM confirmations WHERE actor_id = ? AND id = ?`, actorID, id)
	return err
}

func (s *sqliteStore) ListConfirmations(ctx context.Context, actorID string) ([]ConfirmationRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at FROM confirmations WHERE actor_id = ? ORDER BY seq`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConfirmationRecord
	for rows.Next() {
		rec := ConfirmationRecord{ActorID: actorID}
		var at string
		if err := rows.Scan(&rec.ID, &rec.Data, &at); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, rec)
	}
	return out, rows.Err()
}
