package bot

import (
	"fmt"
	"time"

	"schedbot/internal/agent"
	"schedbot/internal/schedule"
	"schedbot/pkg/tgui"
)

func renderHelp() tgui.Message {
	return tgui.New().
		Title("🤖", "Scheduling assistant").
		Line("Tell me what to remind you about, in plain language:").
		Bullets(
			"remind me to stretch tomorrow at 9am",
			"ping me in 20 minutes to take the tea off",
			"every weekday at 8:30 say: stand-up time",
			"what do I have scheduled?",
			"cancel the stretching reminder",
		).
		Blank().
		Line("I always ask before creating or cancelling anything.").
		Build()
}

func renderOutcome(out agent.Outcome) tgui.Message {
	switch o := out.(type) {
	case agent.ScheduleList:
		return renderSchedules(o.Schedules)
	case agent.InfoMessage:
		return tgui.New().Line(o.Message).Build()
	case agent.PendingCreated:
		return renderConfirmPrompt(o.Action)
	default:
		return tgui.New().Line("No action was taken.").Build()
	}
}

// maxPayloadPreview caps extracted free-text payloads in chat renderings;
// the stored payload stays untruncated.
const maxPayloadPreview = 64

func renderConfirmPrompt(act agent.PendingAction) tgui.Message {
	b := tgui.New()
	switch act.Kind {
	case agent.ActionAdd:
		b.Title("📝", "Create this reminder?")
		b.KV("message", tgui.TruncRunes(act.Add.Payload, maxPayloadPreview))
		b.KV("when", describeSpec(act.Add.Trigger))
	case agent.ActionCancel:
		b.Title("🗑", "Cancel this schedule?")
		b.KV("message", tgui.TruncRunes(act.Cancel.Payload, maxPayloadPreview))
		b.KV("when", describeSchedule(*act.Cancel))
	}
	kb := confirmKeyboard(act.ID)
	if kb == nil {
		return b.Line("Cannot attach buttons; resolve this one via the API.").Build()
	}
	return b.Inline(kb).Build()
}

// confirmKeyboard builds the approve/reject buttons for a staged
// confirmation. Ids are uuids, so the callback data always fits Telegram's
// limit; nil guards against a malformed id shipping a broken keyboard.
func confirmKeyboard(id string) *tgui.Inline {
	yes, err := tgui.DataChecked(cbScope, "ok", id)
	if err != nil {
		return nil
	}
	no, err := tgui.DataChecked(cbScope, "no", id)
	if err != nil {
		return nil
	}
	return tgui.ConfirmInline(tgui.Btn("✅ Yes", yes), tgui.Btn("❌ No", no))
}

func renderSchedules(scheds []schedule.Schedule) tgui.Message {
	b := tgui.New().Title("🗓", "Schedules")
	if len(scheds) == 0 {
		return b.Line("Nothing scheduled yet.").Build()
	}
	for _, sc := range scheds {
		b.KV(tgui.TruncRunes(sc.Payload, maxPayloadPreview), describeSchedule(sc))
	}
	return b.Build()
}

func renderPending(pend []agent.PendingAction) tgui.Message {
	b := tgui.New().Title("⏳", "Pending confirmations")
	if len(pend) == 0 {
		return b.Line("Nothing waiting for confirmation.").Build()
	}
	for _, act := range pend {
		switch act.Kind {
		case agent.ActionAdd:
			b.KV(tgui.TruncRunes(act.Add.Payload, maxPayloadPreview), describeSpec(act.Add.Trigger))
		case agent.ActionCancel:
			b.KV("cancel "+tgui.TruncRunes(act.Cancel.Payload, maxPayloadPreview), describeSchedule(*act.Cancel))
		}
	}
	return b.Build()
}

func renderResult(res agent.Result) tgui.Message {
	switch r := res.(type) {
	case agent.ScheduleCreated:
		return tgui.New().
			Title("✅", "Reminder created").
			KV("message", r.Schedule.Payload).
			KV("when", describeSchedule(r.Schedule)).
			Build()
	case agent.ScheduleCancelled:
		return tgui.New().
			Title("✅", "Schedule cancelled").
			KV("message", r.Schedule.Payload).
			Build()
	case agent.Rejected:
		return tgui.New().Line(r.Reason).Build()
	case agent.NotFound:
		return tgui.New().Line(r.Reason).Build()
	default:
		return tgui.New().Line("No action was taken.").Build()
	}
}

func describeSpec(spec agent.TriggerSpec) string {
	switch t := spec.(type) {
	case agent.ScheduledSpec:
		return "at " + t.Date
	case agent.DelayedSpec:
		return fmt.Sprintf("in %s", (time.Duration(t.Seconds) * time.Second).String())
	case agent.CronSpec:
		return "on cron " + t.Expr
	default:
		return "unknown"
	}
}

func describeSchedule(sc schedule.Schedule) string {
	switch sc.Kind {
	case schedule.KindCron:
		return "cron " + sc.Cron
	case schedule.KindDelayed:
		if sc.DelaySeconds > 0 {
			return fmt.Sprintf("in %s", (time.Duration(sc.DelaySeconds) * time.Second).String())
		}
		return "at " + sc.Time.Format(time.RFC3339)
	default:
		return "at " + sc.Time.Format(time.RFC3339)
	}
}
