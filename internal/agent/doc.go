// Package agent is the orchestration core: it turns a free-text request
// into either an immediate answer or a staged PendingAction, and commits or
// discards staged actions when the caller confirms.
//
// # Flow
//
// HandleQuery classifies the request first; list/none short-circuit without
// staging. An add-intent runs the message and type extractions concurrently,
// then one more extraction (date or cron) picks the trigger, and the result
// is staged. A cancel-intent resolves the target schedule and stages a
// snapshot of it. Nothing touches the schedule store until Resolve approves
// the staged action.
//
// # State
//
// Each actor owns one ordered list of pending actions. Calls for one actor
// are serialized by the Agent's mutex; there is no cross-actor state. A
// pending action leaves the list exactly once - when Resolve is called with
// its id - regardless of approve/reject outcome or store failure.
package agent
