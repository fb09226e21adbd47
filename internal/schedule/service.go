package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"schedbot/internal/eventbus"
	"schedbot/internal/storage"
)

// Service is the runtime behind the Store contract: it keeps definitions in
// memory, mirrors them to storage, and arms timers/cron entries so alarms
// actually fire.
type Service struct {
	mu sync.Mutex

	log *slog.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron

	scheds  map[string]Schedule
	order   []string
	entries map[string]cron.EntryID

	// one-shot timers; ver guards against stale callbacks after cancel/replace
	tmu    sync.Mutex
	timers map[string]*time.Timer
	ver    map[string]uint64

	onFire FireHandler
	store  storage.Store
	bus    eventbus.Bus

	runCtx  context.Context
	started bool
}

var _ Store = (*Service)(nil)

func New(cfg Config, log *slog.Logger, store storage.Store, bus eventbus.Bus) *Service {
	return &Service{
		log: log,
		cfg: cfg,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		scheds:  map[string]Schedule{},
		entries: map[string]cron.EntryID{},
		timers:  map[string]*time.Timer{},
		ver:     map[string]uint64{},
		store:   store,
		bus:     bus,
	}
}

// SetFireHandler installs the due-payload callback. Call before Start.
func (s *Service) SetFireHandler(h FireHandler) {
	s.mu.Lock()
	s.onFire = h
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.runCtx = ctx
	s.loc = s.loadLocationLocked()

	if err := s.hydrateLocked(ctx); err != nil {
		return fmt.Errorf("schedule hydrate: %w", err)
	}

	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for _, id := range s.order {
		s.armLocked(s.scheds[id])
	}
	s.c.Start()
	s.started = true
	s.log.Info("schedule store started", slog.String("tz", s.loc.String()), slog.Int("schedules", len(s.order)))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	c := s.c
	s.c = nil
	s.entries = map[string]cron.EntryID{}
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	// Stop runtime timers; definitions stay persisted and re-arm on Start.
	s.tmu.Lock()
	for _, t := range s.timers {
		_ = t.Stop()
	}
	s.timers = map[string]*time.Timer{}
	s.tmu.Unlock()

	s.log.Info("schedule store stopped")
}

// Apply handles config hot reload. A timezone change restarts the cron
// runner with the new location.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg
	if !s.started || oldTZ == newTZ {
		return
	}

	if s.c != nil {
		<-s.c.Stop().Done()
	}
	s.loc = s.loadLocationLocked()
	s.entries = map[string]cron.EntryID{}
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for _, id := range s.order {
		if sc := s.scheds[id]; sc.Kind == KindCron {
			s.armLocked(sc)
		}
	}
	s.c.Start()
	s.log.Info("schedule store restarted", slog.String("tz", s.loc.String()))
}

// Create validates the trigger, stores the schedule, arms it, and persists
// the definition. It is the system's validation backstop for user-supplied
// trigger data.
func (s *Service) Create(ctx context.Context, tr Trigger, label, payload string) (Schedule, error) {
	now := time.Now()
	sc := Schedule{
		ID:        uuid.NewString(),
		Label:     label,
		Payload:   payload,
		CreatedAt: now,
	}

	switch t := tr.(type) {
	case TriggerAt:
		at, err := parseISOTime(t.Date)
		if err != nil {
			return Schedule{}, fmt.Errorf("%w: date %q: %v", ErrInvalidTrigger, t.Date, err)
		}
		sc.Kind = KindScheduled
		sc.Time = at
	case TriggerAfter:
		if t.Seconds <= 0 {
			return Schedule{}, fmt.Errorf("%w: delay must be positive, got %d", ErrInvalidTrigger, t.Seconds)
		}
		sc.Kind = KindDelayed
		sc.DelaySeconds = t.Seconds
		sc.Time = now.Add(time.Duration(t.Seconds) * time.Second)
	case TriggerCron:
		expr := strings.TrimSpace(t.Expr)
		sched, err := s.parser.Parse(expr)
		if err != nil {
			return Schedule{}, fmt.Errorf("%w: cron %q: %v", ErrInvalidTrigger, t.Expr, err)
		}
		sc.Kind = KindCron
		sc.Cron = expr
		sc.Time = sched.Next(now)
	case nil:
		return Schedule{}, fmt.Errorf("%w: missing trigger", ErrInvalidTrigger)
	default:
		return Schedule{}, fmt.Errorf("%w: unsupported trigger %T", ErrInvalidTrigger, tr)
	}

	s.mu.Lock()
	s.scheds[sc.ID] = sc
	s.order = append(s.order, sc.ID)
	s.armLocked(sc)
	s.mu.Unlock()

	s.persist(ctx, sc)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventScheduleCreated, Data: sc})
	}
	s.log.Info("schedule created",
		slog.String("id", sc.ID), slog.String("kind", string(sc.Kind)),
		slog.Time("next", sc.Time), slog.String("payload", sc.Payload))
	return sc, nil
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	sc, ok := s.scheds[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.removeLocked(id)
	s.mu.Unlock()

	s.unpersist(ctx, id)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventScheduleCancelled, Data: sc})
	}
	s.log.Info("schedule cancelled", slog.String("id", id), slog.String("kind", string(sc.Kind)))
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (Schedule, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scheds[id]
	if !ok {
		return Schedule{}, false, nil
	}
	return s.refreshNextLocked(sc), true, nil
}

// List returns all schedules in creation order.
func (s *Service) List(ctx context.Context) ([]Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Schedule, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.refreshNextLocked(s.scheds[id]))
	}
	return out, nil
}

// ---- internals ----

// refreshNextLocked recomputes Time for cron schedules from the live entry.
func (s *Service) refreshNextLocked(sc Schedule) Schedule {
	if sc.Kind != KindCron || s.c == nil {
		return sc
	}
	if eid, ok := s.entries[sc.ID]; ok {
		if next := s.c.Entry(eid).Next; !next.IsZero() {
			sc.Time = next
		}
	}
	return sc
}

// armLocked registers the runtime side of a schedule. Call with s.mu held.
func (s *Service) armLocked(sc Schedule) {
	if !s.started && s.c == nil {
		// Start() will arm everything that is already in the maps.
		return
	}
	switch sc.Kind {
	case KindCron:
		if s.c == nil {
			return
		}
		id := sc.ID
		eid, err := s.c.AddFunc(sc.Cron, func() { s.fire(id, false) })
		if err != nil {
			// Parse was validated at Create; a failure here means the stored
			// definition predates a parser change. Keep the record, log loudly.
			s.log.Error("cron registration failed", slog.String("id", sc.ID), slog.String("cron", sc.Cron), slog.Any("err", err))
			return
		}
		s.entries[sc.ID] = eid
	case KindScheduled, KindDelayed:
		s.armTimer(sc.ID, sc.Time)
	}
}

func (s *Service) armTimer(id string, at time.Time) {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.tmu.Lock()
	if t, ok := s.timers[id]; ok {
		_ = t.Stop()
	}
	ver := s.ver[id] + 1
	s.ver[id] = ver
	localVer := ver
	s.timers[id] = time.AfterFunc(delay, func() {
		// Ignore stale callbacks from cancelled/replaced timers.
		s.tmu.Lock()
		if s.ver[id] != localVer {
			s.tmu.Unlock()
			return
		}
		delete(s.timers, id)
		delete(s.ver, id)
		s.tmu.Unlock()

		s.fire(id, true)
	})
	s.tmu.Unlock()
}

// fire delivers a due schedule. One-shot schedules are removed from the
// store before the handler runs so a crash in the handler cannot double-fire.
func (s *Service) fire(id string, oneShot bool) {
	s.mu.Lock()
	sc, ok := s.scheds[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if oneShot {
		s.removeLocked(id)
	}
	h := s.onFire
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if oneShot {
		s.unpersist(ctx, id)
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventScheduleFired, Data: sc})
	}
	s.log.Info("schedule fired", slog.String("id", id), slog.String("kind", string(sc.Kind)), slog.String("payload", sc.Payload))
	if h != nil {
		h(ctx, sc)
	}
}

// removeLocked drops a schedule from maps, cron, and timers. Call with s.mu held.
func (s *Service) removeLocked(id string) {
	delete(s.scheds, id)
	n := 0
	for _, x := range s.order {
		if x == id {
			continue
		}
		s.order[n] = x
		n++
	}
	s.order = s.order[:n]

	if eid, ok := s.entries[id]; ok {
		if s.c != nil {
			s.c.Remove(eid)
		}
		delete(s.entries, id)
	}

	s.tmu.Lock()
	if t, ok := s.timers[id]; ok {
		_ = t.Stop()
		delete(s.timers, id)
	}
	delete(s.ver, id)
	s.tmu.Unlock()
}

func (s *Service) persist(ctx context.Context, sc Schedule) {
	if s.store == nil {
		return
	}
	b, err := json.Marshal(sc)
	if err == nil {
		err = s.store.PutSchedule(ctx, storage.ScheduleRecord{ID: sc.ID, Data: b, CreatedAt: sc.CreatedAt})
	}
	if err != nil {
		s.log.Warn("schedule persist failed", slog.String("id", sc.ID), slog.Any("err", err))
	}
}

func (s *Service) unpersist(ctx context.Context, id string) {
	if s.store == nil {
		return
	}
	if err := s.store.DeleteSchedule(ctx, id); err != nil {
		s.log.Warn("schedule unpersist failed", slog.String("id", id), slog.Any("err", err))
	}
}

// hydrateLocked loads persisted definitions. Call with s.mu held, before the
// cron runner exists; Start arms everything afterwards.
func (s *Service) hydrateLocked(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	recs, err := s.store.ListSchedules(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		var sc Schedule
		if err := json.Unmarshal(rec.Data, &sc); err != nil {
			s.log.Warn("skipping corrupt schedule record", slog.String("id", rec.ID), slog.Any("err", err))
			continue
		}
		if _, dup := s.scheds[sc.ID]; dup {
			continue
		}
		s.scheds[sc.ID] = sc
		s.order = append(s.order, sc.ID)
	}
	if len(recs) > 0 {
		s.log.Debug("schedules hydrated", slog.Int("count", len(s.order)))
	}
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", slog.String("tz", tz), slog.Any("err", err))
		return time.Local
	}
	return loc
}

// parseISOTime accepts the ISO-8601 shapes the date extractor produces.
func parseISOTime(raw string) (time.Time, error) {
	sdate := strings.TrimSpace(raw)
	if sdate == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(time.RFC3339, sdate); err == nil {
		return t, nil
	}
	// Tolerate a missing zone (assume local): "2006-01-02T15:04:05".
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", sdate, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 date-time: %q", raw)
}
