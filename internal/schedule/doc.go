// Package schedule implements the persistent schedule store.
//
// # Overview
//
// A Schedule is an alarm with an opaque payload and one trigger: an absolute
// time ("scheduled"), a delay from creation ("delayed"), or a cron
// expression ("cron"). One-shot triggers are backed by runtime timers and
// removed when they fire; cron triggers are registered with robfig/cron and
// fire repeatedly until cancelled.
//
// # Validation
//
// Create is the validation backstop for the whole system: malformed dates,
// non-positive delays and unparseable cron expressions are rejected here,
// not upstream. Callers staging user input do not pre-validate.
//
// # Lifecycle
//
// Definitions are persisted through the storage layer and re-registered on
// Start. A one-shot whose time passed while the process was down fires
// immediately after Start.
package schedule
