package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"

	"schedbot/internal/schedule"
)

// Config configures the genkit-backed extractor.
type Config struct {
	// Model is the fully-qualified genkit model name.
	Model string
	// APIKey for the Google AI plugin; falls back to GEMINI_API_KEY.
	APIKey string
	// RatePerSec bounds outgoing model calls (0 means 2/s).
	RatePerSec int
}

const defaultModel = "googleai/gemini-2.0-flash"

// GenkitExtractor implements Extractor with one structured-output model call
// per question.
type GenkitExtractor struct {
	g       *genkit.Genkit
	limiter *rate.Limiter
}

var _ Extractor = (*GenkitExtractor)(nil)

func NewGenkit(ctx context.Context, cfg Config) (*GenkitExtractor, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	g, err := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.APIKey}),
		genkit.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("genkit init: %w", err)
	}

	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 2
	}
	return &GenkitExtractor{
		g:       g,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Answer shapes. Field names feed the output schema the model is held to.

type actionAnswer struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}

type messageAnswer struct {
	Message string `json:"message"`
}

type typeAnswer struct {
	Type string `json:"type"`
}

type dateAnswer struct {
	Datetime string `json:"datetime"`
}

type cronAnswer struct {
	Cron string `json:"cron"`
}

type idAnswer struct {
	ScheduleID string `json:"schedule_id"`
}

func (e *GenkitExtractor) ClassifyAction(ctx context.Context, query string, schedules []schedule.Schedule) (Classification, error) {
	out, err := ask[actionAnswer](ctx, e, classifyPrompt(query, schedules))
	if err != nil {
		return Classification{}, fmt.Errorf("classify action: %w", err)
	}
	switch Action(strings.ToLower(strings.TrimSpace(out.Action))) {
	case ActionAdd:
		return Classification{Action: ActionAdd}, nil
	case ActionCancel:
		return Classification{Action: ActionCancel}, nil
	case ActionList:
		return Classification{Action: ActionList}, nil
	default:
		return Classification{Action: ActionNone, Message: out.Message}, nil
	}
}

func (e *GenkitExtractor) AlarmMessage(ctx context.Context, query string) (string, error) {
	out, err := ask[messageAnswer](ctx, e, alarmMessagePrompt(query))
	if err != nil {
		return "", fmt.Errorf("alarm message: %w", err)
	}
	return strings.TrimSpace(out.Message), nil
}

func (e *GenkitExtractor) AlarmType(ctx context.Context, query string) (AlarmType, error) {
	out, err := ask[typeAnswer](ctx, e, alarmTypePrompt(query))
	if err != nil {
		return "", fmt.Errorf("alarm type: %w", err)
	}
	switch AlarmType(strings.ToLower(strings.TrimSpace(out.Type))) {
	case AlarmScheduled:
		return AlarmScheduled, nil
	case AlarmDelayed:
		return AlarmDelayed, nil
	case AlarmCron:
		return AlarmCron, nil
	default:
		return "", nil
	}
}

func (e *GenkitExtractor) ScheduledDate(ctx context.Context, query string, now time.Time) (string, error) {
	out, err := ask[dateAnswer](ctx, e, scheduledDatePrompt(query, now))
	if err != nil {
		return "", fmt.Errorf("scheduled date: %w", err)
	}
	return strings.TrimSpace(out.Datetime), nil
}

func (e *GenkitExtractor) CronSchedule(ctx context.Context, query string) (string, error) {
	out, err := ask[cronAnswer](ctx, e, cronPrompt(query))
	if err != nil {
		return "", fmt.Errorf("cron schedule: %w", err)
	}
	return strings.TrimSpace(out.Cron), nil
}

func (e *GenkitExtractor) ScheduleID(ctx context.Context, query string, schedules []schedule.Schedule) (string, error) {
	out, err := ask[idAnswer](ctx, e, scheduleIDPrompt(query, schedules))
	if err != nil {
		return "", fmt.Errorf("schedule id: %w", err)
	}
	return strings.TrimSpace(out.ScheduleID), nil
}

// ask runs one rate-limited structured-output generation.
func ask[T any](ctx context.Context, e *GenkitExtractor, prompt string) (T, error) {
	var zero T
	if err := e.limiter.Wait(ctx); err != nil {
		return zero, err
	}
	out, _, err := genkit.GenerateData[T](ctx, e.g, ai.WithPrompt(prompt))
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, fmt.Errorf("model returned no structured output")
	}
	return *out, nil
}
