package extract

import (
	"encoding/json"
	"fmt"
	"time"

	"schedbot/internal/schedule"
)

// Each prompt asks exactly one question and demands a small JSON object, so
// the model's structured output maps 1:1 onto the answer structs in genkit.go.

func classifyPrompt(query string, schedules []schedule.Schedule) string {
	return fmt.Sprintf(`You are an intelligent scheduled alarms manager. Based on the user's prompt, decide whether to:
  - "add" a new scheduled alarm,
  - "cancel" an existing scheduled alarm,
  - "list" existing scheduled alarms,
  - "none" if no action is needed.

Prompt: %q

Current scheduled alarms: %s

Respond with a JSON object:
  {"action": "add"} or {"action": "cancel"} or {"action": "list"}
  or, to do nothing: {"action": "none", "message": "[explanation]"}`,
		query, schedulesJSON(schedules))
}

func alarmMessagePrompt(query string) string {
	return fmt.Sprintf(`You are an intelligent alarm scheduler manager. What follows is a user prompt for creating an alarm. Extract the short message that should be delivered when the alarm fires.

Prompt: %q

Respond with a JSON object: {"message": "[the alarm message]"}.
If no message can be extracted, use an empty string.

Example:
User prompt: remind me in 10 minutes to turn off the oven
Your response: {"message": "Turn off the oven"}`, query)
}

func alarmTypePrompt(query string) string {
	return fmt.Sprintf(`You are an intelligent alarm scheduler manager. What follows is a user prompt for creating an alarm. Your job is to extract the "type" of alarm.
The types of alarm available are:

"scheduled" - a specific time is mentioned. E.g. please set an alarm for 12pm tomorrow.
"delayed" - an offset is mentioned. E.g. please set an alarm for 10 seconds time.
"cron" - a regularly repeating alarm. E.g. please set an alarm to go off every minute.

Prompt: %q

Respond with a JSON object: {"type": "[scheduled|delayed|cron]"}.
If you cannot tell, use an empty string.

Examples:
User prompt: please remind me to take the bins out on Sunday night
Your response: {"type": "scheduled"}
User prompt: set an alarm for 12pm every Tuesday
Your response: {"type": "cron"}
User prompt: remind me in 10 minutes to turn off the oven
Your response: {"type": "delayed"}`, query)
}

func scheduledDatePrompt(query string, now time.Time) string {
	return fmt.Sprintf(`You are an intelligent alarm scheduler manager. What follows is a user prompt for creating an alarm at a specific time in the future. Extract the ISO date-time mentioned in the prompt.
The current date/time in ISO 8601 format is %s.

Steps:
1. Parse the natural language prompt which specifies a point in time in the future.
2. Calculate the exact date and time that is specified.
3. Convert to ISO 8601 format (YYYY-MM-DDThh:mm:ssZ).

Prompt: %q

Respond with a JSON object: {"datetime": "[ISO 8601 date-time]"}.
If no time can be extracted, use an empty string.`,
		now.UTC().Format(time.RFC3339), query)
}

func cronPrompt(query string) string {
	return fmt.Sprintf(`You are an intelligent alarm scheduler manager. What follows is a user prompt for creating a regularly repeating alarm. Extract a standard 5-field cron expression (minute hour day-of-month month day-of-week) for it.

Prompt: %q

Respond with a JSON object: {"cron": "[cron expression]"}.
If no repeating schedule can be extracted, use an empty string.

Example:
User prompt: set an alarm to go off every minute
Your response: {"cron": "* * * * *"}`, query)
}

func scheduleIDPrompt(query string, schedules []schedule.Schedule) string {
	return fmt.Sprintf(`You are an intelligent alarm scheduler manager. The user wants to cancel one of their scheduled alarms. Pick the id of the alarm the prompt refers to.

Prompt: %q

Current scheduled alarms: %s

Respond with a JSON object: {"schedule_id": "[id of the matching alarm]"}.
If no alarm matches, use an empty string.`, query, schedulesJSON(schedules))
}

func schedulesJSON(schedules []schedule.Schedule) string {
	if len(schedules) == 0 {
		return "[]"
	}
	b, err := json.Marshal(schedules)
	if err != nil {
		return "[]"
	}
	return string(b)
}
