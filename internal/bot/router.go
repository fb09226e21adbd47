package bot

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"schedbot/internal/agent"
	rtsup "schedbot/internal/runtime/supervisor"
	"schedbot/internal/schedule"
	"schedbot/internal/transport"
	logx "schedbot/pkg/logx"
	"schedbot/pkg/tgui"
)

// Callback data scope for confirmation buttons.
const cbScope = "confirm"

type Config struct {
	// Owners restricts who may talk to the bot. Empty means everyone.
	Owners []int64
	// Workers bounds concurrent update handling. Defaults to NumCPU (min 2).
	Workers int
	// HandleTimeout bounds one update end to end, extraction calls included.
	HandleTimeout time.Duration
}

// menuUpdater is implemented by adapters that can publish a command menu.
type menuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error
}

// Router consumes transport updates and drives the per-chat agents:
// free text goes through the intent pipeline, inline buttons resolve
// staged confirmations.
type Router struct {
	log     logx.Logger
	adapter transport.Adapter
	agents  *agent.Manager
	store   schedule.Store
	cfg     Config

	// ownersMu guards owners: SetOwners runs on the config hot-reload
	// goroutine while workers read concurrently in allowed.
	ownersMu sync.RWMutex
	owners   []int64

	jobs chan func()
}

func New(cfg Config, adapter transport.Adapter, agents *agent.Manager, store schedule.Store, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
		if cfg.Workers < 2 {
			cfg.Workers = 2
		}
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 60 * time.Second
	}
	return &Router{
		log:     log,
		adapter: adapter,
		agents:  agents,
		store:   store,
		cfg:     cfg,
		owners:  append([]int64(nil), cfg.Owners...),
		jobs:    make(chan func(), 256),
	}
}

// SetOwners updates the allowlist. Safe to call during hot-reload.
func (r *Router) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	r.ownersMu.Lock()
	r.owners = cp
	r.ownersMu.Unlock()
}

// Run dispatches updates until ctx is canceled. It blocks.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log.With(logx.String("comp", "bot.router"))),
		rtsup.WithCancelOnError(false),
	)

	for i := 0; i < r.cfg.Workers; i++ {
		name := "worker." + strconv.Itoa(i)
		sup.GoRestart(name, func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					job()
				}
			}
		}, rtsup.WithPublishFirstError(true))
	}

	r.publishMenu(ctx)
	r.log.Info("dispatcher started", logx.Int("workers", r.cfg.Workers))

	for {
		select {
		case <-ctx.Done():
			sup.Cancel()
			return sup.Wait(context.Background())
		case up, ok := <-updates:
			if !ok {
				sup.Cancel()
				return sup.Wait(context.Background())
			}
			r.enqueue(ctx, up)
		}
	}
}

func (r *Router) enqueue(ctx context.Context, up transport.Update) {
	job := func() {
		hctx, cancel := context.WithTimeout(ctx, r.cfg.HandleTimeout)
		defer cancel()
		switch up.Kind {
		case transport.UpdateMessage:
			if up.Message != nil {
				r.handleMessage(hctx, up.Message)
			}
		case transport.UpdateCallback:
			if up.Callback != nil {
				r.handleCallback(hctx, up.Callback)
			}
		}
	}
	select {
	case r.jobs <- job:
	default:
		r.log.Warn("update dropped (job queue full)")
	}
}

func (r *Router) allowed(fromID int64) bool {
	r.ownersMu.RLock()
	owners := r.owners
	r.ownersMu.RUnlock()
	if len(owners) == 0 {
		return true
	}
	for _, id := range owners {
		if id == fromID {
			return true
		}
	}
	return false
}

// actorID keys agent state by chat, so group members share one pending list.
func actorID(chatID int64) string { return strconv.FormatInt(chatID, 10) }

func (r *Router) handleMessage(ctx context.Context, m *transport.Message) {
	if !r.allowed(m.FromID) {
		return
	}
	to := transport.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
	text := strings.TrimSpace(m.Text)

	if strings.HasPrefix(text, "/") {
		r.handleCommand(ctx, to, text)
		return
	}

	out, err := r.agents.HandleQuery(ctx, actorID(m.ChatID), text)
	if err != nil {
		r.log.Warn("query failed", logx.Int64("chat", m.ChatID), logx.Any("err", err))
		r.send(ctx, to, tgui.New().Line("Something went wrong handling that, please try again.").Build())
		return
	}
	r.send(ctx, to, renderOutcome(out))
}

func (r *Router) handleCommand(ctx context.Context, to transport.ChatTarget, text string) {
	cmd := strings.ToLower(strings.TrimPrefix(strings.Fields(text)[0], "/"))
	// Strip a possible @botname suffix used in groups.
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "start", "help":
		r.send(ctx, to, renderHelp())
	case "list":
		scheds, err := r.store.List(ctx)
		if err != nil {
			r.log.Warn("list failed", logx.Any("err", err))
			r.send(ctx, to, tgui.New().Line("Could not load the schedule list.").Build())
			return
		}
		r.send(ctx, to, renderSchedules(scheds))
	case "pending":
		pend, err := r.agents.Pending(ctx, actorID(to.ChatID))
		if err != nil {
			r.send(ctx, to, tgui.New().Line("Could not load pending confirmations.").Build())
			return
		}
		r.send(ctx, to, renderPending(pend))
	default:
		r.send(ctx, to, tgui.New().Line("Unknown command. Try /help.").Build())
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *transport.Callback) {
	if !r.allowed(cb.FromID) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Not allowed.")
		return
	}
	scope, action, id := tgui.ParseData(cb.Data)
	if scope != cbScope || id == "" {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	approved := action == "ok"

	res, err := r.agents.ResolveConfirmation(ctx, actorID(cb.ChatID), id, approved)
	if err != nil {
		r.log.Warn("confirmation failed", logx.String("id", id), logx.Any("err", err))
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "That didn't work, please try again.")
		return
	}
	_ = r.adapter.AnswerCallback(ctx, cb.ID, "")

	// Replace the confirmation prompt with the outcome so the buttons
	// can't be pressed twice.
	ref := transport.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
	msg := renderResult(res)
	if err := msg.Edit(ctx, r.adapter, ref); err != nil {
		r.send(ctx, transport.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}, msg)
	}
}

func (r *Router) send(ctx context.Context, to transport.ChatTarget, msg tgui.Message) {
	if _, err := msg.Send(ctx, r.adapter, to); err != nil {
		r.log.Warn("send failed", logx.Int64("chat", to.ChatID), logx.Any("err", err))
	}
}

func (r *Router) publishMenu(ctx context.Context) {
	up, ok := r.adapter.(menuUpdater)
	if !ok {
		return
	}
	mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := up.UpdateMenuCommands(mctx, []transport.BotCommand{
		{Command: "list", Description: "show all schedules"},
		{Command: "pending", Description: "show pending confirmations"},
		{Command: "help", Description: "how to talk to the bot"},
	})
	if err != nil {
		r.log.Debug("menu update failed", logx.Any("err", err))
	}
}
