package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"schedbot/internal/eventbus"
	"schedbot/internal/extract"
	"schedbot/internal/schedule"
	"schedbot/internal/storage"
)

// Agent owns the pipeline and resolver for one actor. Its mutex serializes
// HandleQuery/Resolve so state mutations never interleave.
type Agent struct {
	id string

	mu    sync.Mutex
	state *State

	ext   extract.Extractor
	store schedule.Store
	db    storage.Store // nil means in-memory only
	log   *slog.Logger
	bus   eventbus.Bus
}

// ConfirmationEvent is the bus payload for staging/resolution events.
type ConfirmationEvent struct {
	ActorID  string `json:"actor_id"`
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Approved *bool  `json:"approved,omitempty"` // resolution only
}

// stage appends the action, mirrors it to storage, and announces it.
// Call with a.mu held.
func (a *Agent) stage(ctx context.Context, act PendingAction) {
	a.state.Append(act)
	if a.db != nil {
		b, err := json.Marshal(act)
		if err == nil {
			err = a.db.PutConfirmation(ctx, storage.ConfirmationRecord{
				ActorID: a.id, ID: act.ID, Data: b, CreatedAt: act.CreatedAt,
			})
		}
		if err != nil {
			a.log.Warn("confirmation persist failed", slog.String("id", act.ID), slog.Any("err", err))
		}
	}
	if a.bus != nil {
		a.bus.Publish(eventbus.Event{
			Type: eventbus.EventConfirmationStaged,
			Data: ConfirmationEvent{ActorID: a.id, ID: act.ID, Kind: string(act.Kind)},
		})
	}
	a.log.Info("confirmation staged",
		slog.String("actor", a.id), slog.String("id", act.ID),
		slog.String("kind", string(act.Kind)), slog.Int("pending", a.state.Len()))
}

// unstage removes the action and its persisted mirror. Call with a.mu held.
func (a *Agent) unstage(ctx context.Context, id string) {
	if !a.state.Remove(id) {
		return
	}
	if a.db != nil {
		if err := a.db.DeleteConfirmation(ctx, a.id, id); err != nil {
			a.log.Warn("confirmation unpersist failed", slog.String("id", id), slog.Any("err", err))
		}
	}
}

// Pending returns the actor's staged actions in insertion order.
func (a *Agent) Pending() []PendingAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Actions()
}
