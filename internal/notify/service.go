package notify

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"schedbot/internal/eventbus"
	rtsup "schedbot/internal/runtime/supervisor"
	"schedbot/internal/transport"
	logx "schedbot/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notify disabled")
	ErrQueueFull = errors.New("notify queue full")
	ErrStopped   = errors.New("notify stopped")
)

const (
	EventQueued  = "notify.queued"
	EventSent    = "notify.sent"
	EventDropped = "notify.dropped"
	EventFailed  = "notify.failed"
	EventDeduped = "notify.deduped"
)

type job struct {
	n transport.Notification
	// dedupKey is computed at enqueue time for cheap per-worker processing.
	dedupKey string
}

// Deliverer is an async delivery pipeline for outgoing reminders:
// queue + worker pool + rate limit + retry + dedup window.
//
// It is safe for concurrent use.
type Deliverer struct {
	mu sync.Mutex

	log     logx.Logger
	adapter transport.Adapter
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	// Suppression cache: key -> suppress until.
	dmu   sync.Mutex
	dedup map[string]time.Time

	// Recent deliveries, newest last, for status output.
	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, adapter transport.Adapter, log logx.Logger, bus eventbus.Bus) *Deliverer {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Deliverer{
		adapter: adapter,
		log:     log,
		bus:     bus,
		dedup:   map[string]time.Time{},
	}
	d.applyLocked(cfg)
	return d
}

func (d *Deliverer) Enabled() bool {
	d.mu.Lock()
	en := d.cfg.Enabled
	d.mu.Unlock()
	return en
}

func (d *Deliverer) Apply(cfg Config) {
	d.mu.Lock()
	d.applyLocked(cfg)
	d.mu.Unlock()
}

func (d *Deliverer) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}

	d.cfg = cfg
	// Token bucket with burst = rate per sec, so short spikes don't stall.
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start is idempotent. If a Stop is in flight it waits for it first.
func (d *Deliverer) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	if d.stopDone != nil {
		done := d.stopDone
		d.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		d.mu.Lock()
	}
	if d.queue != nil || !d.cfg.Enabled {
		d.mu.Unlock()
		return
	}

	d.queue = make(chan job, d.cfg.QueueSize)
	d.accepting = true
	workers := d.cfg.Workers

	d.sup = rtsup.New(ctx,
		rtsup.WithLogger(d.log.With(logx.String("comp", "notify"))),
		// Delivery is best-effort; a failing worker must not take the app down.
		rtsup.WithCancelOnError(false),
	)
	sup := d.sup
	q := d.queue
	d.mu.Unlock()

	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("worker.%d", i)
		sup.GoRestart(name, func(c context.Context) error {
			d.workerLoop(c, q)
			d.mu.Lock()
			stopping := d.stopDone != nil
			d.mu.Unlock()
			if stopping {
				return context.Canceled
			}
			if c.Err() != nil {
				return c.Err()
			}
			return errors.New("delivery worker exited unexpectedly")
		}, rtsup.WithPublishFirstError(true))
	}
}

// Stop closes intake and drains the queue best-effort until ctx expires.
func (d *Deliverer) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	q := d.queue
	sup := d.sup
	if q == nil {
		d.mu.Unlock()
		return
	}
	if d.stopDone != nil {
		done := d.stopDone
		d.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	d.stopDone = done
	d.accepting = false
	d.mu.Unlock()

	go func() {
		defer close(done)
		// Let in-flight enqueues finish, then close the queue so workers drain.
		d.sendWG.Wait()
		func() {
			defer func() { _ = recover() }()
			close(q)
		}()
		if sup != nil {
			_ = sup.Wait(context.Background())
		}

		d.mu.Lock()
		d.queue = nil
		d.stopDone = nil
		d.sup = nil
		d.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if sup != nil {
			sup.Cancel()
		}
	}
}

// Notify enqueues one notification. It never blocks on a full queue.
func (d *Deliverer) Notify(ctx context.Context, n transport.Notification) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	d.mu.Lock()
	if !d.cfg.Enabled {
		d.mu.Unlock()
		return ErrDisabled
	}
	if !d.accepting || d.queue == nil {
		d.mu.Unlock()
		return ErrStopped
	}
	q := d.queue
	window := d.cfg.DedupWindow
	d.sendWG.Add(1)
	d.mu.Unlock()
	defer d.sendWG.Done()

	key := dedupKey(n)
	if window > 0 && key != "" && !d.dedupAllow(key, window) {
		d.publish(EventDeduped, n, key, nil)
		return nil
	}

	d.publish(EventQueued, n, key, nil)
	select {
	case q <- job{n: n, dedupKey: key}:
		return nil
	default:
		d.publish(EventDropped, n, key, ErrQueueFull)
		return ErrQueueFull
	}
}

// History returns recent deliveries, oldest first.
func (d *Deliverer) History() []HistoryItem {
	d.hmu.Lock()
	out := append([]HistoryItem(nil), d.history...)
	d.hmu.Unlock()
	return out
}

func (d *Deliverer) appendHistory(text string) {
	d.hmu.Lock()
	d.history = append(d.history, HistoryItem{At: time.Now(), Text: text})
	if len(d.history) > 200 {
		d.history = d.history[len(d.history)-200:]
	}
	d.hmu.Unlock()
}

func (d *Deliverer) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			d.sendWithRetry(ctx, j)
		}
	}
}

func (d *Deliverer) sendWithRetry(ctx context.Context, j job) {
	d.mu.Lock()
	cfg := d.cfg
	lim := d.limiter
	ad := d.adapter
	log := d.log
	d.mu.Unlock()

	if ad == nil || j.n.Text == "" {
		return
	}

	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return
			}
		}

		// Bound each send so a wedged transport can't hang a worker.
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := ad.SendText(callCtx, j.n.Target, j.n.Text, j.n.Options)
		cancel()
		if err == nil {
			d.appendHistory(j.n.Text)
			d.publish(EventSent, j.n, j.dedupKey, nil)
			return
		}
		lastErr = err
		log.Debug("delivery failed", logx.Any("err", err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		}
	}

	d.publish(EventFailed, j.n, j.dedupKey, lastErr)
}

func (d *Deliverer) publish(typ string, n transport.Notification, key string, err error) {
	if d.bus == nil {
		return
	}
	now := time.Now()
	ev := DeliveryEvent{ChatID: n.Target.ChatID, Key: key, At: now}
	if err != nil {
		ev.Error = err.Error()
	}
	d.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}

func dedupKey(n transport.Notification) string {
	if n.Text == "" {
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(fmt.Sprintf("%d:%d|", n.Target.ChatID, n.Target.ThreadID)))
	_, _ = h.Write([]byte(n.Text))
	return fmt.Sprintf("%x", h.Sum64())
}

// dedupAllow reports whether the key is outside its suppression window and,
// if so, opens a new window. Expired entries are pruned on the way.
func (d *Deliverer) dedupAllow(key string, window time.Duration) bool {
	now := time.Now()
	d.dmu.Lock()
	defer d.dmu.Unlock()
	if until, ok := d.dedup[key]; ok && now.Before(until) {
		return false
	}
	for k, until := range d.dedup {
		if !now.Before(until) {
			delete(d.dedup, k)
		}
	}
	d.dedup[key] = now.Add(window)
	return true
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1; the delay is for the next attempt.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3 to spread synchronized retries.
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
