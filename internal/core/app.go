package core

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"schedbot/internal/agent"
	"schedbot/internal/api"
	"schedbot/internal/bot"
	"schedbot/internal/config"
	"schedbot/internal/eventbus"
	"schedbot/internal/extract"
	"schedbot/internal/logging"
	"schedbot/internal/notify"
	"schedbot/internal/runtime/supervisor"
	"schedbot/internal/schedule"
	"schedbot/internal/storage"
	"schedbot/internal/transport"
	"schedbot/internal/transport/telegram"
	logx "schedbot/pkg/logx"
)

// App owns the whole wiring: config, logging, the Telegram adapter, the
// schedule/notify services, the per-chat agents, the bot router and the
// optional HTTP API. It starts everything under one supervisor and applies
// config hot-reloads live.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  *slog.Logger
	logs *logging.Service
	lx   logx.Logger

	bus eventbus.Bus
	db  storage.Store

	adapter *telegram.Adapter
	sched   *schedule.Service
	notif   *notify.Deliverer
	agents  *agent.Manager
	router  *bot.Router
	api     *api.Service

	updates chan transport.Update
}

func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := slog.New(logging.NewPrettyHandler(logging.Stdout(), slog.LevelInfo)).
		With(slog.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logging.New(buildLoggingConfig(cfg), ad)
	log = log.With(slog.String("comp", "app"))
	applyLogTarget(logSvc, cfg)

	lx := logx.NewConsole(cfg.Logging.Level)

	bus := eventbus.New()

	storageCfg, err := buildStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(storageCfg, lx.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	schedCfg, err := buildScheduleConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched := schedule.New(schedCfg, log.With(slog.String("comp", "schedule")), db, bus)

	notifCfg, err := buildNotifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notify.New(notifCfg, ad, lx.With(logx.String("comp", "notify")), bus)
	sched.SetFireHandler(notif.FireHandler())

	ext, err := extract.NewGenkit(ctx, buildExtractConfig(cfg))
	if err != nil {
		return nil, err
	}

	agents := agent.NewManager(ext, sched, db, log.With(slog.String("comp", "agent")), bus)

	botCfg, err := buildBotConfig(cfg)
	if err != nil {
		return nil, err
	}
	router := bot.New(botCfg, ad, agents, sched, lx.With(logx.String("comp", "bot")))

	apiCfg, err := buildAPIConfig(cfg)
	if err != nil {
		return nil, err
	}
	apiSvc := api.New(apiCfg, agents, sched, lx.With(logx.String("comp", "api")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		lx:      lx,
		bus:     bus,
		db:      db,
		adapter: ad,
		sched:   sched,
		notif:   notif,
		agents:  agents,
		router:  router,
		api:     apiSvc,
		updates: make(chan transport.Update, 256),
	}, nil
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.lx.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	// Transactional hot-reload: a config that fails to map or validate is
	// rejected and the previous one stays in force.
	a.cfgm.SetLogger(a.lx.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}
	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	if a.api.Enabled() {
		a.api.Start(a.sup.Context())
	}

	a.sup.Go("bot.router", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	events, unsubEvents := a.bus.Subscribe(64)
	a.sup.Go0("events.log", func(c context.Context) {
		defer unsubEvents()
		runEventLog(c, a.log.With(slog.String("comp", "events")), events)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only apply the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
					continue
				default:
				}
				break
			}

			sections, attrs := config.SummarizeChange(lastApplied, newCfg)
			lastApplied = newCfg
			a.applyConfig(ctx, newCfg)

			if len(sections) > 0 {
				a.log.Info("config reloaded",
					append([]any{slog.String("changed", strings.Join(sections, ","))}, attrsToAny(attrs)...)...)
			} else {
				a.log.Info("config reloaded (no changes)")
			}
		}
	}
}

// applyConfig pushes a validated config into the running services. Mapping
// errors are logged and skipped per section so one bad value cannot take an
// unrelated service down mid-flight.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(buildLoggingConfig(cfg))
	applyLogTarget(a.logs, cfg)

	a.router.SetOwners(cfg.Telegram.OwnerUserIDs)

	if schedCfg, err := buildScheduleConfig(cfg); err == nil {
		a.sched.Apply(schedCfg)
	} else {
		a.log.Warn("scheduler config not applied", slog.Any("err", err))
	}

	if notifCfg, err := buildNotifyConfig(cfg); err == nil {
		wasEnabled := a.notif.Enabled()
		a.notif.Apply(notifCfg)
		if !wasEnabled && notifCfg.Enabled {
			a.notif.Start(a.sup.Context())
		} else if wasEnabled && !notifCfg.Enabled {
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		}
	} else {
		a.log.Warn("notify config not applied", slog.Any("err", err))
	}

	if apiCfg, err := buildAPIConfig(cfg); err == nil {
		a.api.Reconfigure(a.sup.Context(), apiCfg)
	} else {
		a.log.Warn("api config not applied", slog.Any("err", err))
	}
}

// validateConfig is the reload gate: everything the mapping layer would
// reject at startup is rejected here too.
func validateConfig(cfg *config.Config) error {
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := buildScheduleConfig(cfg); err != nil {
		return err
	}
	if _, err := buildNotifyConfig(cfg); err != nil {
		return err
	}
	if _, err := buildAPIConfig(cfg); err != nil {
		return err
	}
	if _, err := buildStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := buildBotConfig(cfg); err != nil {
		return err
	}
	if cfg.Bot != nil && cfg.Bot.Workers < 0 {
		return fmt.Errorf("bot.workers must be >= 0")
	}
	if cfg.LLM.RatePerSec < 0 {
		return fmt.Errorf("llm.rate_per_sec must be >= 0")
	}
	return nil
}

func applyLogTarget(logs *logging.Service, cfg *config.Config) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		logs.SetTelegramTarget(0, 0)
		return
	}
	if chatID, err := strconv.ParseInt(raw, 10, 64); err == nil {
		logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// step bounds one shutdown stage so a stuck component cannot stall the
	// whole stop. fn must honor its context; a deadline overrun is logged
	// and the stop moves on.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", slog.String("name", name), slog.String("err", err.Error()))
			}
			a.log.Debug("stop step done", slog.String("name", name), slog.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				slog.String("name", name),
				slog.Duration("elapsed", time.Since(start)))
		}
	}

	step("api", 2*time.Second, func(c context.Context) error { a.api.Stop(c); return nil })
	step("notify", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("schedule", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	if a.db != nil {
		step("storage", 1*time.Second, func(context.Context) error { return a.db.Close() })
	}

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}
