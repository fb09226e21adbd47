package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"schedbot/internal/eventbus"
	"schedbot/internal/extract"
	"schedbot/internal/schedule"
	"schedbot/internal/storage"
)

var ErrActorRequired = errors.New("actor id required")

// Manager materializes one Agent per actor id and is the process-wide entry
// point for the two caller-facing operations. Agents are created on first
// use and hydrated from storage, so a staged confirmation survives restarts.
type Manager struct {
	mu     sync.Mutex
	agents map[string]*Agent

	ext   extract.Extractor
	store schedule.Store
	db    storage.Store
	log   *slog.Logger
	bus   eventbus.Bus
}

func NewManager(ext extract.Extractor, store schedule.Store, db storage.Store, log *slog.Logger, bus eventbus.Bus) *Manager {
	return &Manager{
		agents: map[string]*Agent{},
		ext:    ext,
		store:  store,
		db:     db,
		log:    log,
		bus:    bus,
	}
}

// HandleQuery runs the intent pipeline for the given actor.
func (m *Manager) HandleQuery(ctx context.Context, actorID, text string) (Outcome, error) {
	a, err := m.agent(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return a.HandleQuery(ctx, text)
}

// ResolveConfirmation approves or rejects a staged action for the given actor.
func (m *Manager) ResolveConfirmation(ctx context.Context, actorID, confirmationID string, approved bool) (Result, error) {
	a, err := m.agent(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return a.Resolve(ctx, confirmationID, approved)
}

// Pending lists the actor's staged actions (diagnostics and transports).
func (m *Manager) Pending(ctx context.Context, actorID string) ([]PendingAction, error) {
	a, err := m.agent(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return a.Pending(), nil
}

func (m *Manager) agent(ctx context.Context, actorID string) (*Agent, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, ErrActorRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.agents[actorID]; ok {
		return a, nil
	}

	a := &Agent{
		id:    actorID,
		state: NewState(),
		ext:   m.ext,
		store: m.store,
		db:    m.db,
		log:   m.log.With(slog.String("actor", actorID)),
		bus:   m.bus,
	}
	m.hydrate(ctx, a)
	m.agents[actorID] = a
	return a, nil
}

// hydrate restores the actor's staged confirmations from storage, keeping
// the persisted insertion order.
func (m *Manager) hydrate(ctx context.Context, a *Agent) {
	if m.db == nil {
		return
	}
	recs, err := m.db.ListConfirmations(ctx, a.id)
	if err != nil {
		m.log.Warn("confirmation hydrate failed", slog.String("actor", a.id), slog.Any("err", err))
		return
	}
	for _, rec := range recs {
		var act PendingAction
		if err := json.Unmarshal(rec.Data, &act); err != nil {
			m.log.Warn("skipping corrupt confirmation record",
				slog.String("actor", a.id), slog.String("id", rec.ID), slog.Any("err", err))
			continue
		}
		a.state.Append(act)
	}
	if a.state.Len() > 0 {
		m.log.Debug("confirmations hydrated", slog.String("actor", a.id), slog.Int("count", a.state.Len()))
	}
}
