package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"schedbot/internal/schedule"
	"schedbot/internal/transport"
	logx "schedbot/pkg/logx"
)

// captureAdapter records sends and can fail the first N attempts.
type captureAdapter struct {
	mu       sync.Mutex
	sent     []string
	failures int
	sentCh   chan string
}

func newCaptureAdapter() *captureAdapter {
	return &captureAdapter{sentCh: make(chan string, 64)}
}

func (a *captureAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (a *captureAdapter) Stop(context.Context) error                           { return nil }
func (a *captureAdapter) EditText(context.Context, transport.MessageRef, string, *transport.SendOptions) error {
	return nil
}
func (a *captureAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (a *captureAdapter) SendText(_ context.Context, _ transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failures > 0 {
		a.failures--
		return transport.MessageRef{}, errors.New("transient send failure")
	}
	a.sent = append(a.sent, text)
	select {
	case a.sentCh <- text:
	default:
	}
	return transport.MessageRef{MessageID: len(a.sent)}, nil
}

func waitSent(t *testing.T, a *captureAdapter, want string) {
	t.Helper()
	select {
	case got := <-a.sentCh:
		if got != want {
			t.Fatalf("sent %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestDelivererSends(t *testing.T) {
	t.Parallel()
	ad := newCaptureAdapter()
	d := New(Config{Enabled: true, RatePerSec: 100}, ad, logx.Nop(), nil)
	ctx := context.Background()
	d.Start(ctx)
	defer d.Stop(ctx)

	err := d.Notify(ctx, transport.Notification{Target: transport.ChatTarget{ChatID: 7}, Text: "hello"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitSent(t, ad, "hello")

	hist := d.History()
	if len(hist) != 1 || hist[0].Text != "hello" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestDelivererDisabled(t *testing.T) {
	t.Parallel()
	d := New(Config{}, newCaptureAdapter(), logx.Nop(), nil)
	d.Start(context.Background())
	if err := d.Notify(context.Background(), transport.Notification{Text: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestDelivererRetries(t *testing.T) {
	t.Parallel()
	ad := newCaptureAdapter()
	ad.failures = 2
	d := New(Config{
		Enabled: true, RatePerSec: 100,
		RetryMax: 3, RetryBase: time.Millisecond, RetryMaxDelay: 5 * time.Millisecond,
	}, ad, logx.Nop(), nil)
	ctx := context.Background()
	d.Start(ctx)
	defer d.Stop(ctx)

	if err := d.Notify(ctx, transport.Notification{Target: transport.ChatTarget{ChatID: 7}, Text: "retry me"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitSent(t, ad, "retry me")
}

func TestDelivererDedupWindow(t *testing.T) {
	t.Parallel()
	ad := newCaptureAdapter()
	d := New(Config{Enabled: true, RatePerSec: 100, DedupWindow: time.Minute}, ad, logx.Nop(), nil)
	ctx := context.Background()
	d.Start(ctx)
	defer d.Stop(ctx)

	n := transport.Notification{Target: transport.ChatTarget{ChatID: 7}, Text: "once"}
	if err := d.Notify(ctx, n); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := d.Notify(ctx, n); err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	waitSent(t, ad, "once")

	// Give a would-be duplicate time to arrive, then check it didn't.
	time.Sleep(50 * time.Millisecond)
	ad.mu.Lock()
	n1 := len(ad.sent)
	ad.mu.Unlock()
	if n1 != 1 {
		t.Fatalf("sent %d times, want 1", n1)
	}
}

func TestDelivererStopBlocksIntake(t *testing.T) {
	t.Parallel()
	ad := newCaptureAdapter()
	d := New(Config{Enabled: true, RatePerSec: 100}, ad, logx.Nop(), nil)
	ctx := context.Background()
	d.Start(ctx)
	d.Stop(ctx)

	if err := d.Notify(ctx, transport.Notification{Text: "late"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestFireHandlerDeliversPayload(t *testing.T) {
	t.Parallel()
	ad := newCaptureAdapter()
	d := New(Config{Enabled: true, RatePerSec: 100, ChatID: 42}, ad, logx.Nop(), nil)
	ctx := context.Background()
	d.Start(ctx)
	defer d.Stop(ctx)

	h := d.FireHandler()
	h(ctx, schedule.Schedule{ID: "s1", Payload: "drink water"})
	waitSent(t, ad, "⏰ drink water")
}
